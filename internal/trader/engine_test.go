package trader

import (
	"context"
	"errors"
	"testing"

	"solana-trade-bot-go/internal/config"
	"solana-trade-bot-go/internal/ledger"
	"solana-trade-bot-go/internal/marketdata"
	"solana-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MockMarketClient is a mock implementation of marketdata.ClientInterface.
type MockMarketClient struct {
	mock.Mock
}

func (m *MockMarketClient) GetTokenPairs(ctx context.Context, tokenAddress string) (*marketdata.PairQuote, error) {
	args := m.Called(ctx, tokenAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketdata.PairQuote), args.Error(1)
}

func (m *MockMarketClient) GetLatestTokenProfiles(ctx context.Context) ([]marketdata.TokenProfile, error) {
	args := m.Called(ctx)
	return args.Get(0).([]marketdata.TokenProfile), args.Error(1)
}

func (m *MockMarketClient) GetTopBoostedTokens(ctx context.Context) ([]marketdata.TokenProfile, error) {
	args := m.Called(ctx)
	return args.Get(0).([]marketdata.TokenProfile), args.Error(1)
}

// MockSettler is a mock implementation of the Settler interface.
type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, tokenMint, ownerAddress, signingSecret string) error {
	args := m.Called(ctx, tokenMint, ownerAddress, signingSecret)
	return args.Error(0)
}

const testOwner = "OwnerPubKey"

// setupTest creates an engine over a fresh in-memory ledger with mocked
// market data and settlement.
func setupTest(t *testing.T) (*Engine, *ledger.Ledger, *MockMarketClient, *MockSettler) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Trade{}, &models.PastTrade{}, &models.Wallet{}))
	require.NoError(t, db.Create(&models.Wallet{
		SolPublicKey:  testOwner,
		SolPrivateKey: "signing-secret",
	}).Error)

	cfg := &config.Config{
		Solana: config.Solana{PublicKey: testOwner},
		Trading: config.Trading{
			TickInterval:      1,
			DedupWindowHours:  24,
			DefaultTargetGain: 50,
			DefaultTargetLoss: 30,
		},
	}

	lgr := ledger.NewLedger(db, zap.NewNop())
	market := new(MockMarketClient)
	settler := new(MockSettler)
	engine := NewEngine(zap.NewNop(), cfg, lgr, market, settler, &TargetStrategy{})

	return engine, lgr, market, settler
}

func openParams(token string) ledger.NewTradeParams {
	return ledger.NewTradeParams{
		TokenAddress:   token,
		TokenName:      "Test Token",
		AmountInvested: 1.0,
		TokensReceived: 1000,
		EntryPriceSOL:  0.001,
		EntryPriceUSD:  0.2,
		TradeType:      models.TradeTypeInvest,
	}
}

func TestOpenPosition_CreatesTradeWithDefaultTargets(t *testing.T) {
	engine, lgr, _, _ := setupTest(t)
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	trade, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, models.StatusActive, trade.Status)
	assert.Equal(t, 50.0, trade.TargetPercentageGain)
	assert.Equal(t, 30.0, trade.TargetPercentageLoss)
}

func TestOpenPosition_RepeatBuyInExtendsExistingTrade(t *testing.T) {
	engine, lgr, _, _ := setupTest(t)
	ctx := context.Background()

	firstID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	again := openParams("MINT1")
	again.AmountInvested = 0.5
	again.TokensReceived = 400
	again.TargetPercentageGain = 80
	again.TargetPercentageLoss = 20

	secondID, err := engine.OpenPosition(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "a repeat buy-in must not open a second trade")

	trade, err := lgr.GetTrade(ctx, firstID)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, trade.AmountInvested, 1e-9)
	assert.InDelta(t, 1400, trade.TokensReceived, 1e-9)
	assert.Equal(t, 80.0, trade.TargetPercentageGain)
	assert.Equal(t, 20.0, trade.TargetPercentageLoss)

	// Still exactly one active trade for the token.
	trades, err := lgr.GetActiveTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestOpenPosition_BlockedByDedupWindow(t *testing.T) {
	engine, lgr, _, _ := setupTest(t)
	ctx := context.Background()

	// Exit a position for the token just now; completedAt is stamped with
	// the current time, well inside the 24h window.
	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)
	trade, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	require.NoError(t, lgr.ArchiveTrade(ctx, trade, ledger.SettlementInfo{ExitPriceSOL: 0.002}))

	_, err = engine.OpenPosition(ctx, openParams("MINT1"))
	assert.ErrorIs(t, err, ErrRecentlyTraded)
}

func TestSettlePosition_SettlesThenArchives(t *testing.T) {
	engine, lgr, _, settler := setupTest(t)
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	settler.On("Settle", mock.Anything, "MINT1", testOwner, "signing-secret").Return(nil)

	gain := 50.0
	err = engine.SettlePosition(ctx, tradeID, ledger.SettlementInfo{
		ExitPriceSOL:       0.0015,
		ExitPriceUSD:       0.3,
		SellPercentageGain: &gain,
		Reason:             ReasonTargetGain,
	})
	require.NoError(t, err)

	active, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	assert.Nil(t, active)

	past, err := lgr.GetPastTradesByToken(ctx, "MINT1")
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, models.StatusCompleted, past[0].Status)
	require.NotNil(t, past[0].ExitPriceSOL)
	assert.Equal(t, 0.0015, *past[0].ExitPriceSOL)
	settler.AssertExpectations(t)
}

func TestSettlePosition_SettlementFailureLeavesTradeActive(t *testing.T) {
	engine, lgr, _, settler := setupTest(t)
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	settler.On("Settle", mock.Anything, "MINT1", testOwner, "signing-secret").
		Return(errors.New("retries exhausted"))

	err = engine.SettlePosition(ctx, tradeID, ledger.SettlementInfo{ExitPriceSOL: 0.0015})
	assert.Error(t, err)

	// The ledger record is untouched and the exit can be retried.
	trade, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, models.StatusActive, trade.Status)
}

func TestSettlePosition_UnknownTrade(t *testing.T) {
	engine, _, _, _ := setupTest(t)

	err := engine.SettlePosition(context.Background(), "missing", ledger.SettlementInfo{})
	assert.ErrorIs(t, err, ledger.ErrTradeNotFound)
}

func TestSettleTrade_DryRunSkipsOnChainSettlement(t *testing.T) {
	engine, lgr, _, settler := setupTest(t)
	engine.cfg.Trading.DryRun = true
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	err = engine.SettlePosition(ctx, tradeID, ledger.SettlementInfo{ExitPriceSOL: 0.002})
	require.NoError(t, err)

	settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	past, err := lgr.GetPastTradesByToken(ctx, "MINT1")
	require.NoError(t, err)
	assert.Len(t, past, 1)
}

func TestMonitor_ExitsPositionPastTargetGain(t *testing.T) {
	engine, lgr, market, settler := setupTest(t)
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	// Price doubled; the 50% target is well past.
	market.On("GetTokenPairs", mock.Anything, "MINT1").Return(&marketdata.PairQuote{
		TokenName: "Test Token",
		PriceSOL:  0.002,
		PriceUSD:  0.4,
	}, nil)
	settler.On("Settle", mock.Anything, "MINT1", testOwner, "signing-secret").Return(nil)

	require.NoError(t, engine.monitor(ctx))

	active, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	assert.Nil(t, active)

	past, err := lgr.GetPastTradesByToken(ctx, "MINT1")
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, ReasonTargetGain, past[0].Reason)
	require.NotNil(t, past[0].SellPercentageGain)
	assert.InDelta(t, 100.0, *past[0].SellPercentageGain, 1e-9)
	market.AssertExpectations(t)
	settler.AssertExpectations(t)
}

func TestMonitor_HoldsInsideTargets(t *testing.T) {
	engine, lgr, market, settler := setupTest(t)
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	market.On("GetTokenPairs", mock.Anything, "MINT1").Return(&marketdata.PairQuote{
		PriceSOL: 0.0011,
		PriceUSD: 0.22,
	}, nil)

	require.NoError(t, engine.monitor(ctx))

	trade, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	require.NotNil(t, trade)
	settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMonitor_QuoteFailureSkipsTrade(t *testing.T) {
	engine, lgr, market, settler := setupTest(t)
	ctx := context.Background()

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)

	market.On("GetTokenPairs", mock.Anything, "MINT1").
		Return(nil, errors.New("API down"))

	// A dead market feed must not error the whole cycle or touch the trade.
	require.NoError(t, engine.monitor(ctx))

	trade, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	require.NotNil(t, trade)
	settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecentExit(t *testing.T) {
	engine, lgr, _, _ := setupTest(t)
	ctx := context.Background()

	recent, err := engine.RecentExit(ctx, "MINT1")
	require.NoError(t, err)
	assert.False(t, recent)

	tradeID, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)
	trade, err := lgr.GetTrade(ctx, tradeID)
	require.NoError(t, err)
	require.NoError(t, lgr.ArchiveTrade(ctx, trade, ledger.SettlementInfo{ExitPriceSOL: 0.002}))

	recent, err = engine.RecentExit(ctx, "MINT1")
	require.NoError(t, err)
	assert.True(t, recent)
}

func TestActivePositions(t *testing.T) {
	engine, _, _, _ := setupTest(t)
	ctx := context.Background()

	_, err := engine.OpenPosition(ctx, openParams("MINT1"))
	require.NoError(t, err)
	_, err = engine.OpenPosition(ctx, openParams("MINT2"))
	require.NoError(t, err)

	trades, err := engine.ActivePositions(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}
