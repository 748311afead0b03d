package trust

import (
	"time"

	"trustledger/internal/receipt/models"
	id "trustledger/pkg/domain"
)

// WindowSummary aggregates an agent's receipts over a trailing window. The
// credential engine signs these; the reputation query returns them raw.
type WindowSummary struct {
	TaskCount            int                        `json:"task_count"`
	AcceptedCount        int                        `json:"accepted_count"`
	DisputedCount        int                        `json:"disputed_count"`
	FailedCount          int                        `json:"failed_count"`
	TotalVolume          float64                    `json:"total_volume"`
	AverageVolume        float64                    `json:"average_volume"`
	UniqueCounterparties int                        `json:"unique_counterparties"`
	Categories           map[string]CategorySummary `json:"categories"`
}

// CategorySummary is the per-category slice of a window.
type CategorySummary struct {
	Count  int     `json:"count"`
	Volume float64 `json:"volume"`
}

// DisputeRate returns disputed over total, 0 when the window is empty.
func (w WindowSummary) DisputeRate() float64 {
	if w.TaskCount == 0 {
		return 0
	}
	return float64(w.DisputedCount) / float64(w.TaskCount)
}

// AggregateReceipts computes a WindowSummary over already-filtered receipts.
// Callers that need gating and aggregation from the same ledger snapshot fetch
// once and reuse the slice.
func AggregateReceipts(receipts []models.Receipt) WindowSummary {
	summary := WindowSummary{Categories: make(map[string]CategorySummary)}
	economicCount := 0
	unique := make(map[id.DID]bool)

	for _, r := range receipts {
		summary.TaskCount++
		switch r.Outcome {
		case models.OutcomeAccepted:
			summary.AcceptedCount++
		case models.OutcomeRejected:
			summary.FailedCount++
		}
		if r.Dispute || r.Outcome == models.OutcomeDisputed {
			summary.DisputedCount++
		}

		unique[r.BuyerDID] = true

		amount := r.AmountOrZero()
		if r.IsEconomic() && r.Amount != nil {
			summary.TotalVolume += amount
			economicCount++
		}

		cs := summary.Categories[r.Category.String()]
		cs.Count++
		cs.Volume += amount
		summary.Categories[r.Category.String()] = cs
	}

	summary.UniqueCounterparties = len(unique)
	if economicCount > 0 {
		summary.AverageVolume = summary.TotalVolume / float64(economicCount)
	}
	return summary
}

// WindowStart converts a trailing day count to a cutoff; 0 means unbounded.
func WindowStart(now time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(windowDays) * 24 * time.Hour)
}
