package trader

import (
	"solana-trade-bot-go/internal/config"
	"solana-trade-bot-go/internal/marketdata"
	"solana-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// StrategyContext provides the strategy with access to the core components.
type StrategyContext struct {
	Logger *zap.Logger
	Cfg    *config.Config
}

// ExitDecision is a strategy's verdict on one open position.
type ExitDecision struct {
	Exit   bool
	Reason string
	// PercentageChange is the signed move from the entry price, in percent.
	PercentageChange float64
}

// Exit reasons recorded on archived trades.
const (
	ReasonTargetGain = "TARGET_GAIN"
	ReasonStopLoss   = "STOP_LOSS"
)

// Strategy decides when an open position should be closed. Entry decisions
// live with the upstream caller; the monitor only manages exits.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// ShouldExit evaluates one active trade against its current quote.
	ShouldExit(ctx StrategyContext, trade *models.Trade, quote *marketdata.PairQuote) ExitDecision
}

// percentageChange returns the signed percent move of current vs entry.
func percentageChange(entry, current float64) float64 {
	if entry == 0 {
		return 0
	}
	return (current - entry) / entry * 100
}
