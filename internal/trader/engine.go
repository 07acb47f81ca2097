package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-trade-bot-go/internal/config"
	"solana-trade-bot-go/internal/ledger"
	"solana-trade-bot-go/internal/marketdata"
	"solana-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// ErrRecentlyTraded is returned by OpenPosition when the token was exited
// within the dedup window and re-entry is blocked.
var ErrRecentlyTraded = errors.New("token was settled within the dedup window")

// Settler performs on-chain settlement of an exited position.
type Settler interface {
	Settle(ctx context.Context, tokenMint, ownerAddress, signingSecret string) error
}

// Engine drives the position lifecycle: it opens positions on behalf of
// upstream callers, polls active trades against market data, and on an exit
// condition runs settlement followed by the ledger archive. One engine owns
// every trade's lifecycle end to end, which is what makes the lock-free
// ledger and the settle-per-token serialization requirement hold.
type Engine struct {
	logger   *zap.Logger
	cfg      *config.Config
	ledger   *ledger.Ledger
	market   marketdata.ClientInterface
	settler  Settler
	strategy Strategy
}

// NewEngine creates a new monitor engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, lgr *ledger.Ledger, market marketdata.ClientInterface, settler Settler, strategy Strategy) *Engine {
	return &Engine{
		logger:   logger.Named("trader"),
		cfg:      cfg,
		ledger:   lgr,
		market:   market,
		settler:  settler,
		strategy: strategy,
	}
}

// Run starts the monitor loop and blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting position monitor",
		zap.Duration("interval", interval),
		zap.String("strategy", e.strategy.Name()),
		zap.Bool("dry_run", e.cfg.Trading.DryRun),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping position monitor...")
			return
		case <-ticker.C:
			if err := e.monitor(ctx); err != nil {
				e.logger.Error("Monitor cycle failed", zap.Error(err))
			}
		}
	}
}

// monitor performs a single pass over the active trades.
func (e *Engine) monitor(ctx context.Context) error {
	trades, err := e.ledger.GetActiveTrades(ctx)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		e.logger.Debug("No active trades to monitor")
		return nil
	}

	sctx := StrategyContext{Logger: e.logger, Cfg: e.cfg}

	for i := range trades {
		trade := &trades[i]
		l := e.logger.With(
			zap.String("trade_id", trade.TradeID),
			zap.String("token_address", trade.TokenAddress),
		)

		quote, err := e.market.GetTokenPairs(ctx, trade.TokenAddress)
		if err != nil {
			l.Warn("Could not fetch quote for trade, skipping this cycle", zap.Error(err))
			continue
		}

		decision := e.strategy.ShouldExit(sctx, trade, quote)
		if !decision.Exit {
			l.Debug("Holding position", zap.Float64("percentage_change", decision.PercentageChange))
			continue
		}

		info := exitInfo(quote, decision)
		if err := e.SettleTrade(ctx, trade, info); err != nil {
			// The trade stays ACTIVE; the next cycle retries the exit.
			l.Error("Failed to settle trade", zap.Error(err))
		}
	}

	return nil
}

// exitInfo turns a quote plus an exit decision into the archive record's
// settlement fields.
func exitInfo(quote *marketdata.PairQuote, decision ExitDecision) ledger.SettlementInfo {
	info := ledger.SettlementInfo{
		ExitPriceSOL: quote.PriceSOL,
		ExitPriceUSD: quote.PriceUSD,
		Status:       models.StatusCompleted,
		Reason:       decision.Reason,
	}
	change := decision.PercentageChange
	if change >= 0 {
		info.SellPercentageGain = &change
	} else {
		loss := -change
		info.SellPercentageLoss = &loss
	}
	return info
}

// SettleTrade performs on-chain settlement for a trade and then archives
// it. Settlement failure leaves the ledger untouched; the whole call is
// safe to repeat because a settled account is a no-op on the next attempt.
func (e *Engine) SettleTrade(ctx context.Context, trade *models.Trade, info ledger.SettlementInfo) error {
	if e.cfg.Trading.DryRun {
		e.logger.Warn("Dry run enabled, skipping on-chain settlement",
			zap.String("trade_id", trade.TradeID))
	} else {
		wallet, err := e.ledger.GetWallet(ctx, e.cfg.Solana.PublicKey)
		if err != nil {
			return err
		}
		if err := e.settler.Settle(ctx, trade.TokenAddress, wallet.SolPublicKey, wallet.SolPrivateKey); err != nil {
			return fmt.Errorf("settlement for trade %s: %w", trade.TradeID, err)
		}
	}

	return e.ledger.ArchiveTrade(ctx, trade, info)
}

// SettlePosition settles and archives a trade by id on behalf of an
// upstream caller. A missing id means the trade never existed or is already
// archived.
func (e *Engine) SettlePosition(ctx context.Context, tradeID string, info ledger.SettlementInfo) error {
	trade, err := e.ledger.GetTrade(ctx, tradeID)
	if err != nil {
		return err
	}
	if trade == nil {
		return fmt.Errorf("%w: %s", ledger.ErrTradeNotFound, tradeID)
	}
	return e.SettleTrade(ctx, trade, info)
}

// OpenPosition opens or extends a position. A token inside the dedup window
// is rejected. A token with an existing active trade takes the repeat
// buy-in path: amounts accumulate on the existing record and non-zero
// targets overwrite the stored thresholds, preserving the one-active-trade
// rule per token.
func (e *Engine) OpenPosition(ctx context.Context, p ledger.NewTradeParams) (string, error) {
	window := time.Duration(e.cfg.Trading.DedupWindowHours) * time.Hour
	recent, err := e.ledger.CheckRecentSettlement(ctx, p.TokenAddress, window)
	if err != nil {
		return "", err
	}
	if recent {
		return "", fmt.Errorf("%w: %s", ErrRecentlyTraded, p.TokenAddress)
	}

	existing, err := e.ledger.FindActiveTradeByToken(ctx, p.TokenAddress)
	if err != nil {
		return "", err
	}
	if existing != nil {
		e.logger.Info("Found existing active trade for token, adding to position",
			zap.String("trade_id", existing.TradeID),
			zap.String("token_address", p.TokenAddress),
		)
		if _, err := e.ledger.UpdateTradeAmounts(ctx, existing.TradeID, p.AmountInvested, p.TokensReceived); err != nil {
			return "", err
		}
		if p.TargetPercentageGain != 0 || p.TargetPercentageLoss != 0 {
			if _, err := e.ledger.UpdateTradeTargets(ctx, existing.TradeID, p.TargetPercentageGain, p.TargetPercentageLoss); err != nil {
				return "", err
			}
		}
		return existing.TradeID, nil
	}

	if p.TargetPercentageGain == 0 {
		p.TargetPercentageGain = e.cfg.Trading.DefaultTargetGain
	}
	if p.TargetPercentageLoss == 0 {
		p.TargetPercentageLoss = e.cfg.Trading.DefaultTargetLoss
	}

	return e.ledger.CreateTrade(ctx, p)
}

// ActivePositions returns the active trades for upstream callers.
func (e *Engine) ActivePositions(ctx context.Context) ([]models.Trade, error) {
	return e.ledger.GetActiveTrades(ctx)
}

// RecentExit reports whether the token sits inside the configured dedup
// window.
func (e *Engine) RecentExit(ctx context.Context, tokenAddress string) (bool, error) {
	window := time.Duration(e.cfg.Trading.DedupWindowHours) * time.Hour
	return e.ledger.CheckRecentSettlement(ctx, tokenAddress, window)
}
