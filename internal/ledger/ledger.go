package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-trade-bot-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTradeNotFound is returned by operations that require an existing trade.
	ErrTradeNotFound = errors.New("trade not found")
	// ErrWalletNotFound is returned when no wallet row exists for a public key.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Ledger persists trades, past trades and wallets. It holds no locks: the
// design assumes a single logical owner drives each trade's lifecycle, and
// the only operation that must tolerate concurrent callers
// (UpdateTradeAmounts) is pushed down to the store as an atomic increment.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a Ledger on top of an already-migrated database.
func NewLedger(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
}

// NewTradeParams carries the caller-supplied fields for opening a position.
type NewTradeParams struct {
	TokenAddress         string
	TokenName            string
	AmountInvested       float64
	TokensReceived       float64
	EntryPriceSOL        float64
	EntryPriceUSD        float64
	TargetPercentageGain float64
	TargetPercentageLoss float64
	TradeType            string
}

// newTradeID builds a unique trade id from the creation time plus a random
// suffix. Uniqueness matters here, cryptographic strength does not.
func newTradeID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// CreateTrade persists a new ACTIVE trade and returns its generated id.
// Callers are expected to have checked FindActiveTradeByToken first; the
// ledger itself does not reject a second active trade for the same token.
func (l *Ledger) CreateTrade(ctx context.Context, p NewTradeParams) (string, error) {
	if p.TokenAddress == "" {
		return "", errors.New("token address is required")
	}

	now := l.now()
	trade := models.Trade{
		TradeID:              newTradeID(now),
		TokenAddress:         p.TokenAddress,
		TokenName:            p.TokenName,
		AmountInvested:       p.AmountInvested,
		TokensReceived:       p.TokensReceived,
		EntryPriceSOL:        p.EntryPriceSOL,
		EntryPriceUSD:        p.EntryPriceUSD,
		TargetPercentageGain: p.TargetPercentageGain,
		TargetPercentageLoss: p.TargetPercentageLoss,
		Status:               models.StatusActive,
		TradeType:            p.TradeType,
		Timestamp:            now.UTC().Format(time.RFC3339),
	}

	if err := l.db.WithContext(ctx).Create(&trade).Error; err != nil {
		return "", fmt.Errorf("failed to store trade: %w", err)
	}

	l.logger.Info("Stored new trade",
		zap.String("trade_id", trade.TradeID),
		zap.String("token_address", trade.TokenAddress),
		zap.String("trade_type", trade.TradeType),
	)
	return trade.TradeID, nil
}

// GetTrade returns the active trade with the given id, or nil when it does
// not exist. Absence is a normal outcome: the trade may already have been
// archived.
func (l *Ledger) GetTrade(ctx context.Context, tradeID string) (*models.Trade, error) {
	var trade models.Trade
	res := l.db.WithContext(ctx).Limit(1).Find(&trade, "trade_id = ?", tradeID)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to look up trade %s: %w", tradeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &trade, nil
}

// FindActiveTradeByToken returns the ACTIVE trade for a token, or nil when
// there is none. At most one active trade exists per token, so the first
// match is the match.
func (l *Ledger) FindActiveTradeByToken(ctx context.Context, tokenAddress string) (*models.Trade, error) {
	var trade models.Trade
	res := l.db.WithContext(ctx).
		Where("status = ? AND token_address = ?", models.StatusActive, tokenAddress).
		Limit(1).
		Find(&trade)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to find active trade for %s: %w", tokenAddress, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &trade, nil
}

// GetActiveTrades returns every ACTIVE trade. Consumed by the monitor loop
// each tick.
func (l *Ledger) GetActiveTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	if err := l.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get active trades: %w", err)
	}
	return trades, nil
}

// UpdateTradeAmounts adds a repeat buy-in to an existing trade. The
// increments are applied in a single UPDATE so two concurrent buy-ins on
// the same trade both land; a read-modify-write here would lose one.
func (l *Ledger) UpdateTradeAmounts(ctx context.Context, tradeID string, deltaInvested, deltaTokens float64) (*models.Trade, error) {
	res := l.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("trade_id = ?", tradeID).
		UpdateColumns(map[string]interface{}{
			"amount_invested": gorm.Expr("amount_invested + ?", deltaInvested),
			"tokens_received": gorm.Expr("tokens_received + ?", deltaTokens),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update trade amounts for %s: %w", tradeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}

	trade, err := l.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Updated trade amounts",
		zap.String("trade_id", tradeID),
		zap.Float64("delta_invested", deltaInvested),
		zap.Float64("delta_tokens", deltaTokens),
	)
	return trade, nil
}

// UpdateTradeTargets overwrites the gain/loss thresholds of a trade.
func (l *Ledger) UpdateTradeTargets(ctx context.Context, tradeID string, targetGain, targetLoss float64) (*models.Trade, error) {
	res := l.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("trade_id = ?", tradeID).
		Updates(map[string]interface{}{
			"target_percentage_gain": targetGain,
			"target_percentage_loss": targetLoss,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update trade targets for %s: %w", tradeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}

	trade, err := l.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Updated trade targets",
		zap.String("trade_id", tradeID),
		zap.Float64("target_gain", targetGain),
		zap.Float64("target_loss", targetLoss),
	)
	return trade, nil
}

// SettlementInfo carries the exit-side fields merged into a trade when it
// is archived.
type SettlementInfo struct {
	ExitPriceSOL       float64
	ExitPriceUSD       float64
	SellPercentageGain *float64
	SellPercentageLoss *float64
	Status             string // defaults to COMPLETED
	Reason             string
}

// ArchiveTrade moves a trade to the past-trades table: insert into the past
// store, then delete from the active store. The two writes are not
// transactional; a crash in between leaves the record in both tables. Both
// halves are idempotent (the insert is an upsert, deleting a missing row
// succeeds), so re-running the archive after a crash converges, and the
// past-store record wins.
func (l *Ledger) ArchiveTrade(ctx context.Context, trade *models.Trade, info SettlementInfo) error {
	status := info.Status
	if status == "" {
		status = models.StatusCompleted
	}

	exitSOL := info.ExitPriceSOL
	exitUSD := info.ExitPriceUSD
	past := models.PastTrade{
		TradeID:              trade.TradeID,
		TokenAddress:         trade.TokenAddress,
		TokenName:            trade.TokenName,
		AmountInvested:       trade.AmountInvested,
		TokensReceived:       trade.TokensReceived,
		EntryPriceSOL:        trade.EntryPriceSOL,
		EntryPriceUSD:        trade.EntryPriceUSD,
		ExitPriceSOL:         &exitSOL,
		ExitPriceUSD:         &exitUSD,
		TargetPercentageGain: trade.TargetPercentageGain,
		TargetPercentageLoss: trade.TargetPercentageLoss,
		SellPercentageGain:   info.SellPercentageGain,
		SellPercentageLoss:   info.SellPercentageLoss,
		Status:               status,
		TradeType:            trade.TradeType,
		Reason:               info.Reason,
		Timestamp:            trade.Timestamp,
		CompletedAt:          l.now().UTC().Format(time.RFC3339),
	}

	if err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&past).Error; err != nil {
		return fmt.Errorf("failed to write past trade %s: %w", trade.TradeID, err)
	}
	l.logger.Info("Trade archived to past trades", zap.String("trade_id", trade.TradeID))

	if err := l.db.WithContext(ctx).
		Delete(&models.Trade{}, "trade_id = ?", trade.TradeID).Error; err != nil {
		return fmt.Errorf("failed to remove active trade %s: %w", trade.TradeID, err)
	}
	l.logger.Info("Trade removed from active trades", zap.String("trade_id", trade.TradeID))

	return nil
}

// GetPastTradesByToken returns every archived trade for a token.
func (l *Ledger) GetPastTradesByToken(ctx context.Context, tokenAddress string) ([]models.PastTrade, error) {
	var trades []models.PastTrade
	if err := l.db.WithContext(ctx).
		Where("token_address = ?", tokenAddress).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get past trades for %s: %w", tokenAddress, err)
	}
	return trades, nil
}

// GetWallet returns the wallet row for an owner public key.
func (l *Ledger) GetWallet(ctx context.Context, publicKey string) (*models.Wallet, error) {
	var wallet models.Wallet
	res := l.db.WithContext(ctx).Limit(1).Find(&wallet, "sol_public_key = ?", publicKey)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to look up wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, publicKey)
	}
	return &wallet, nil
}
