package trader

import (
	"solana-trade-bot-go/internal/marketdata"
	"solana-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// TargetStrategy exits a position when its SOL price has moved past the
// trade's own gain or loss threshold. Thresholds are stored per trade and
// can be rewritten while the position is open.
type TargetStrategy struct{}

var _ Strategy = (*TargetStrategy)(nil)

func (s *TargetStrategy) Name() string { return "target" }

func (s *TargetStrategy) ShouldExit(ctx StrategyContext, trade *models.Trade, quote *marketdata.PairQuote) ExitDecision {
	change := percentageChange(trade.EntryPriceSOL, quote.PriceSOL)

	decision := ExitDecision{PercentageChange: change}
	switch {
	case trade.TargetPercentageGain > 0 && change >= trade.TargetPercentageGain:
		decision.Exit = true
		decision.Reason = ReasonTargetGain
	case trade.TargetPercentageLoss > 0 && change <= -trade.TargetPercentageLoss:
		decision.Exit = true
		decision.Reason = ReasonStopLoss
	}

	if decision.Exit {
		ctx.Logger.Info("Exit condition met",
			zap.String("trade_id", trade.TradeID),
			zap.String("reason", decision.Reason),
			zap.Float64("percentage_change", change),
		)
	}
	return decision
}
