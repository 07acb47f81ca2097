package models

// Trade status values. A trade leaves ACTIVE exactly once, when it is
// archived to the past-trades table.
const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Trade types recognized by the bot.
const (
	TradeTypeInvest      = "INVEST"
	TradeTypeQuickProfit = "QUICK_PROFIT"
	TradeTypeDegen       = "DEGEN"
)

// Trade represents an open position in a single token.
// The primary key is the application-generated trade id, not a database
// row id, so records keep their identity across the archive move.
type Trade struct {
	TradeID              string   `gorm:"primaryKey" json:"tradeId"`
	TokenAddress         string   `gorm:"index;not null" json:"tokenAddress"`
	TokenName            string   `json:"tokenName"`
	AmountInvested       float64  `json:"amountInvested"`
	TokensReceived       float64  `json:"tokensReceived"`
	EntryPriceSOL        float64  `json:"entryPriceSOL"`
	EntryPriceUSD        float64  `json:"entryPriceUSD"`
	ExitPriceSOL         *float64 `json:"exitPriceSOL"`
	ExitPriceUSD         *float64 `json:"exitPriceUSD"`
	TargetPercentageGain float64  `json:"targetPercentageGain"`
	TargetPercentageLoss float64  `json:"targetPercentageLoss"`
	Status               string   `gorm:"index" json:"status"`
	TradeType            string   `json:"tradeType"`
	Timestamp            string   `json:"timestamp"` // ISO-8601 creation time
}
