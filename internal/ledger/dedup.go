package ledger

import (
	"context"
	"time"
)

// CheckRecentSettlement reports whether the token was exited within the
// given window. It scans the past-trades table for the token and compares
// the most recent completion time against the injected clock. No history at
// all means no cool-down.
//
// Timestamps are RFC3339, so the lexicographically greatest string is also
// the most recent.
func (l *Ledger) CheckRecentSettlement(ctx context.Context, tokenAddress string, window time.Duration) (bool, error) {
	past, err := l.GetPastTradesByToken(ctx, tokenAddress)
	if err != nil {
		return false, err
	}
	if len(past) == 0 {
		return false, nil
	}

	var mostRecent string
	for _, trade := range past {
		ts := trade.CompletedAt
		if ts == "" {
			// Records imported from before completedAt was stamped.
			ts = trade.Timestamp
		}
		if ts > mostRecent {
			mostRecent = ts
		}
	}
	if mostRecent == "" {
		return false, nil
	}

	completedAt, err := time.Parse(time.RFC3339, mostRecent)
	if err != nil {
		return false, err
	}

	return l.now().Sub(completedAt) < window, nil
}
