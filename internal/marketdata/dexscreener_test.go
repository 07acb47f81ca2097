package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"solana-trade-bot-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestServer creates a test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := NewClient(&config.MarketData{
		BaseURL:        server.URL,
		RateLimit:      1000, // allow all requests in tests
		RateLimitBurst: 1000,
	}, zap.NewNop())

	return client, server
}

func TestGetTokenPairs(t *testing.T) {
	t.Run("PrefersRaydiumSOLPair", func(t *testing.T) {
		mockResponse := `[
			{"chainId":"solana","dexId":"orca","baseToken":{"name":"Some Token","symbol":"TKN"},"quoteToken":{"symbol":"SOL"},"priceNative":"0.002","priceUsd":"0.40"},
			{"chainId":"solana","dexId":"raydium","baseToken":{"name":"Some Token","symbol":"TKN"},"quoteToken":{"symbol":"SOL"},"priceNative":"0.001","priceUsd":"0.20"},
			{"chainId":"solana","dexId":"raydium","baseToken":{"name":"Some Token","symbol":"TKN"},"quoteToken":{"symbol":"USDC"},"priceNative":"0.003","priceUsd":"0.60"}
		]`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/token-pairs/v1/solana/MINT1", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(mockResponse))
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		quote, err := client.GetTokenPairs(context.Background(), "MINT1")
		require.NoError(t, err)
		assert.Equal(t, "Some Token", quote.TokenName)
		assert.Equal(t, "TKN", quote.TokenSymbol)
		assert.Equal(t, 0.001, quote.PriceSOL)
		assert.Equal(t, 0.20, quote.PriceUSD)
	})

	t.Run("FallsBackToAnySOLPair", func(t *testing.T) {
		mockResponse := `[
			{"chainId":"solana","dexId":"orca","baseToken":{"name":"Some Token","symbol":"TKN"},"quoteToken":{"symbol":"SOL"},"priceNative":"0.002","priceUsd":"0.40"}
		]`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(mockResponse))
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		quote, err := client.GetTokenPairs(context.Background(), "MINT1")
		require.NoError(t, err)
		assert.Equal(t, 0.002, quote.PriceSOL)
	})

	t.Run("NoSOLPair", func(t *testing.T) {
		mockResponse := `[
			{"chainId":"solana","dexId":"raydium","baseToken":{"name":"Some Token","symbol":"TKN"},"quoteToken":{"symbol":"USDC"},"priceNative":"0.003","priceUsd":"0.60"}
		]`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(mockResponse))
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		_, err := client.GetTokenPairs(context.Background(), "MINT1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no SOL-quoted pair")
	})

	t.Run("ClientError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		_, err := client.GetTokenPairs(context.Background(), "MINT1")
		assert.Error(t, err)
	})
}

func TestGetLatestTokenProfiles_FiltersToSolana(t *testing.T) {
	mockResponse := `[
		{"chainId":"solana","tokenAddress":"MINT1"},
		{"chainId":"ethereum","tokenAddress":"0xabc"},
		{"chainId":"solana","tokenAddress":""},
		{"chainId":"solana","tokenAddress":"MINT2"}
	]`

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-profiles/latest/v1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(mockResponse))
	})

	client, server := setupTestServer(handler)
	defer server.Close()

	profiles, err := client.GetLatestTokenProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "MINT1", profiles[0].TokenAddress)
	assert.Equal(t, "MINT2", profiles[1].TokenAddress)
}

func TestGetTokenPairs_RetriesOnServerError(t *testing.T) {
	// This test exercises the retry loop and takes ~1s of backoff.
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"chainId":"solana","dexId":"raydium","baseToken":{"name":"T","symbol":"T"},"quoteToken":{"symbol":"SOL"},"priceNative":"1.0","priceUsd":"150"}]`))
	})

	client, server := setupTestServer(handler)
	defer server.Close()

	quote, err := client.GetTokenPairs(context.Background(), "MINT1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, quote.PriceSOL)
	assert.Equal(t, 2, attempts)
}
