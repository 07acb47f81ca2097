package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"solana-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const chainSolana = "solana"

// ClientInterface defines the market-data surface consumed by the monitor.
type ClientInterface interface {
	GetTokenPairs(ctx context.Context, tokenAddress string) (*PairQuote, error)
	GetLatestTokenProfiles(ctx context.Context) ([]TokenProfile, error)
	GetTopBoostedTokens(ctx context.Context) ([]TokenProfile, error)
}

// Client is a DexScreener API client. It implements ClientInterface.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new DexScreener client.
func NewClient(cfg *config.MarketData, logger *zap.Logger) *Client {
	return &Client{
		client:  resty.New().SetBaseURL(cfg.BaseURL),
		logger:  logger.Named("marketdata"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
	}
}

// doRequest executes a request with rate limiting and bounded retries on
// throttling and server errors.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// Exponential backoff: 1s, 2s, 4s
		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// tokenInfo is the token identity block inside a DexScreener pair.
type tokenInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// tokenPair is one pool listing for a token.
type tokenPair struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	BaseToken   tokenInfo `json:"baseToken"`
	QuoteToken  tokenInfo `json:"quoteToken"`
	PriceNative string    `json:"priceNative"`
	PriceUsd    string    `json:"priceUsd"`
}

// PairQuote is the flattened price view of a token's best SOL-quoted pair.
type PairQuote struct {
	TokenName   string
	TokenSymbol string
	PriceSOL    float64
	PriceUSD    float64
}

// GetTokenPairs fetches the pools for a token and returns its SOL-quoted
// quote. Raydium and pump.fun pools are preferred; any SOL-quoted pool is
// accepted as a fallback.
func (c *Client) GetTokenPairs(ctx context.Context, tokenAddress string) (*PairQuote, error) {
	var pairs []tokenPair

	req := c.client.R().
		SetResult(&pairs).
		SetHeader("Content-Type", "application/json")

	url := fmt.Sprintf("/token-pairs/v1/%s/%s", chainSolana, tokenAddress)
	if _, err := c.doRequest(ctx, "GET", url, req); err != nil {
		return nil, fmt.Errorf("failed to get token pairs for %s: %w", tokenAddress, err)
	}

	pair := pickPair(pairs)
	if pair == nil {
		return nil, fmt.Errorf("no SOL-quoted pair found for %s", tokenAddress)
	}

	priceSOL, err := strconv.ParseFloat(pair.PriceNative, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse native price %q: %w", pair.PriceNative, err)
	}
	priceUSD, err := strconv.ParseFloat(pair.PriceUsd, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse usd price %q: %w", pair.PriceUsd, err)
	}

	return &PairQuote{
		TokenName:   pair.BaseToken.Name,
		TokenSymbol: pair.BaseToken.Symbol,
		PriceSOL:    priceSOL,
		PriceUSD:    priceUSD,
	}, nil
}

func pickPair(pairs []tokenPair) *tokenPair {
	var fallback *tokenPair
	for i := range pairs {
		pair := &pairs[i]
		if pair.QuoteToken.Symbol != "SOL" {
			continue
		}
		if pair.DexID == "raydium" || pair.DexID == "pumpfun" {
			return pair
		}
		if fallback == nil {
			fallback = pair
		}
	}
	return fallback
}

// TokenProfile is a token discovery entry from the profile/boost feeds.
type TokenProfile struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Description  string `json:"description"`
}

// GetLatestTokenProfiles fetches the newest token profiles, filtered to
// Solana tokens.
func (c *Client) GetLatestTokenProfiles(ctx context.Context) ([]TokenProfile, error) {
	return c.getProfiles(ctx, "/token-profiles/latest/v1")
}

// GetTopBoostedTokens fetches the top boosted tokens, filtered to Solana
// tokens.
func (c *Client) GetTopBoostedTokens(ctx context.Context) ([]TokenProfile, error) {
	return c.getProfiles(ctx, "/token-boosts/top/v1")
}

func (c *Client) getProfiles(ctx context.Context, url string) ([]TokenProfile, error) {
	var profiles []TokenProfile

	req := c.client.R().
		SetResult(&profiles).
		SetHeader("Content-Type", "application/json")

	if _, err := c.doRequest(ctx, "GET", url, req); err != nil {
		return nil, fmt.Errorf("failed to get token profiles: %w", err)
	}

	valid := make([]TokenProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.TokenAddress != "" && p.ChainID == chainSolana {
			valid = append(valid, p)
		}
	}
	return valid, nil
}
