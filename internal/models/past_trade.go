package models

// PastTrade is the terminal record of a completed trade. It carries every
// Trade field plus the settlement outcome, and is never updated once written.
type PastTrade struct {
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
	SellPercentageGain   *float64 `json:"sellPercentageGain"`
	SellPercentageLoss   *float64 `json:"sellPercentageLoss"`
	Status               string   `json:"status"`
	TradeType            string   `json:"tradeType"`
	Reason               string   `json:"reason"`
	Timestamp            string   `json:"timestamp"`
	CompletedAt          string   `json:"completedAt"` // ISO-8601 completion time
}
