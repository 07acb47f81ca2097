package main

import (
	"encoding/json"
	"net/http"
	"time"

	"solana-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db}
}

// ActiveTradesHandler returns all open positions.
func (h *APIHandler) ActiveTradesHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.db.Where("status = ?", models.StatusActive).
		Order("timestamp desc").Find(&trades).Error; err != nil {
		h.log.Error("Failed to get active trades from database", zap.Error(err))
		http.Error(w, "Failed to get active trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// PastTradesHandler returns all archived trades, most recent first.
func (h *APIHandler) PastTradesHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.PastTrade
	if err := h.db.Order("completed_at desc").Find(&trades).Error; err != nil {
		h.log.Error("Failed to get past trades from database", zap.Error(err))
		http.Error(w, "Failed to get past trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalInvested    float64 `json:"total_invested"`
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatisticsHandler calculates and returns trading statistics from the
// archived trades.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	var pastTrades []models.PastTrade
	if err := h.db.Find(&pastTrades).Error; err != nil {
		h.log.Error("Failed to get past trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := time.Now().Add(-24 * time.Hour)

	stats24h := StatsDetail{}
	statsAllTime := StatsDetail{}

	for _, trade := range pastTrades {
		profitable := trade.SellPercentageGain != nil && *trade.SellPercentageGain > 0

		statsAllTime.TotalTrades++
		statsAllTime.TotalInvested += trade.AmountInvested
		if profitable {
			statsAllTime.ProfitableTrades++
		}

		completedAt, err := time.Parse(time.RFC3339, trade.CompletedAt)
		if err == nil && completedAt.After(since24h) {
			stats24h.TotalTrades++
			stats24h.TotalInvested += trade.AmountInvested
			if profitable {
				stats24h.ProfitableTrades++
			}
		}
	}

	if statsAllTime.TotalTrades > 0 {
		statsAllTime.WinRate = float64(statsAllTime.ProfitableTrades) / float64(statsAllTime.TotalTrades)
	}
	if stats24h.TotalTrades > 0 {
		stats24h.WinRate = float64(stats24h.ProfitableTrades) / float64(stats24h.TotalTrades)
	}

	response := StatisticsResponse{
		Since24h: stats24h,
		AllTime:  statsAllTime,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
