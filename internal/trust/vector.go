package trust

import "math"

// TrustVector is the seven-dimension numeric summary of an agent's history.
// Derived, never stored durably; recomputed from the ledger on demand.
type TrustVector struct {
	Economic     float64 `json:"economic"`
	Productivity float64 `json:"productivity"`
	Behavioral   float64 `json:"behavioral"`
	Diversity    float64 `json:"diversity"`
	Recency      float64 `json:"recency"`
	Anomaly      float64 `json:"anomaly"`
	Compliance   float64 `json:"compliance"`
}

// halfLifeDays parameterizes recency decay: a signal loses half its weight
// every 90 days.
const halfLifeDays = 90.0

// RecencyDecay returns the decay multiplier for a signal aged days.
// RecencyDecay(0) = 1, RecencyDecay(90) ≈ 0.5, strictly decreasing.
func RecencyDecay(days float64) float64 {
	if days < 0 {
		days = 0
	}
	return math.Exp(-math.Ln2 / halfLifeDays * days)
}

// DiminishingReturns discounts repetition within a category: the weight grows
// with the log of the distinct (timestamp, counterparty) pairs seen, so the
// hundredth repeat is worth far less than ten times the tenth.
func DiminishingReturns(baseWeight float64, uniqueCount int) float64 {
	if uniqueCount < 0 {
		uniqueCount = 0
	}
	return baseWeight * math.Log(1+float64(uniqueCount))
}

// EconomicScale log-scales an amount so a single very large transaction
// cannot dominate the score linearly.
func EconomicScale(amount float64) float64 {
	return math.Log(1 + math.Max(0, amount))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// rounded returns the vector with every dimension at two decimal places.
func (v TrustVector) rounded() TrustVector {
	return TrustVector{
		Economic:     round2(v.Economic),
		Productivity: round2(v.Productivity),
		Behavioral:   round2(v.Behavioral),
		Diversity:    round2(v.Diversity),
		Recency:      round2(v.Recency),
		Anomaly:      round2(v.Anomaly),
		Compliance:   round2(v.Compliance),
	}
}
