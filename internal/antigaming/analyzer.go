// Package antigaming detects reputation-farming patterns: circular payments,
// burst submission, and low counterparty diversity.
//
// Detections are soft signals. They never reject a receipt; they discount
// trust scoring and gate credential issuance downstream.
package antigaming

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trustledger/internal/receipt/models"
	"trustledger/internal/receipt/store"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// Flag names a detected pattern. Flags are ordered: detection order is fixed,
// so two analyses of the same ledger state produce identical flag lists.
type Flag string

const (
	FlagCircularPayment   Flag = "circular_payment"
	FlagBurstDetected     Flag = "burst_detected"
	FlagLowBuyerDiversity Flag = "low_buyer_diversity"
)

// Result is the analyzer's verdict for one agent at one ledger state.
type Result struct {
	Flagged        bool    `json:"flagged"`
	Flags          []Flag  `json:"flags"`
	AdjustedWeight float64 `json:"adjusted_weight"`
}

// Tunables with their defaults. Multipliers compound; multiplication commutes,
// so flag order cannot change the weight.
const (
	DefaultBurstWindow    = 60 * time.Minute
	DefaultBurstThreshold = 10

	diversityMinReceipts = 5
	diversityMinRatio    = 0.2

	burstPenalty     = 0.5
	diversityPenalty = 0.3

	// maxScanReceipts bounds how much history one analysis reads.
	maxScanReceipts = 10_000
)

// Analyzer is a pure read over the ledger; it holds no state of its own.
type Analyzer struct {
	ledger         store.Ledger
	logger         *slog.Logger
	burstWindow    time.Duration
	burstThreshold int
	now            func() time.Time
	tracer         trace.Tracer
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithBurstWindow overrides the trailing burst window.
func WithBurstWindow(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.burstWindow = d
		}
	}
}

// WithBurstThreshold overrides the receipt count that trips the burst flag.
func WithBurstThreshold(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.burstThreshold = n
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Analyzer over the ledger.
func New(ledger store.Ledger, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if ledger == nil {
		return nil, fmt.Errorf("receipt ledger is required")
	}
	a := &Analyzer{
		ledger:         ledger,
		logger:         logger,
		burstWindow:    DefaultBurstWindow,
		burstThreshold: DefaultBurstThreshold,
		now:            time.Now,
		tracer:         otel.Tracer("trustledger/antigaming"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze computes the anti-gaming result for an agent from its receipt
// history. The walk is bounded to the newest receipts; burst detection counts
// against the ledger directly, so it stays exact past the bound.
func (a *Analyzer) Analyze(ctx context.Context, agent id.DID) (Result, error) {
	ctx, span := a.tracer.Start(ctx, "antigaming.Analyze")
	defer span.End()

	receipts, err := a.ledger.ListByAgent(ctx, agent, time.Time{}, maxScanReceipts)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeStorage, "list receipts for analysis")
	}
	recent, err := a.ledger.CountByAgentSince(ctx, agent, a.now().Add(-a.burstWindow))
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeStorage, "count recent receipts")
	}
	return a.analyze(ctx, agent, receipts, recent >= a.burstThreshold)
}

// AnalyzeReceipts runs the detections over an already-fetched history. Callers
// that need analysis and aggregation from the same ledger snapshot (credential
// issuance) fetch once and pass the receipts here.
func (a *Analyzer) AnalyzeReceipts(ctx context.Context, agent id.DID, receipts []models.Receipt) (Result, error) {
	return a.analyze(ctx, agent, receipts, a.detectBurst(receipts))
}

func (a *Analyzer) analyze(ctx context.Context, agent id.DID, receipts []models.Receipt, burst bool) (Result, error) {
	result := Result{AdjustedWeight: 1.0}

	circular, err := a.detectCircular(ctx, agent, receipts)
	if err != nil {
		return Result{}, err
	}
	if circular {
		result.Flags = append(result.Flags, FlagCircularPayment)
	}

	if burst {
		result.Flags = append(result.Flags, FlagBurstDetected)
		result.AdjustedWeight *= burstPenalty
	}

	if detectLowDiversity(receipts) {
		result.Flags = append(result.Flags, FlagLowBuyerDiversity)
		result.AdjustedWeight *= diversityPenalty
	}

	result.Flagged = len(result.Flags) > 0
	if result.Flagged && a.logger != nil {
		a.logger.InfoContext(ctx, "agent flagged",
			"agent_did", agent,
			"flags", result.Flags,
			"adjusted_weight", result.AdjustedWeight,
		)
	}
	return result, nil
}

// detectCircular checks each distinct counterparty for receipts with the
// roles reversed: the counterparty acting as agent against this agent as
// buyer.
func (a *Analyzer) detectCircular(ctx context.Context, agent id.DID, receipts []models.Receipt) (bool, error) {
	seen := make(map[id.DID]bool)
	for _, r := range receipts {
		if seen[r.BuyerDID] {
			continue
		}
		seen[r.BuyerDID] = true

		reciprocal, err := a.ledger.ExistsBetween(ctx, r.BuyerDID, agent)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeStorage, "check reciprocal receipts")
		}
		if reciprocal {
			return true, nil
		}
	}
	return false, nil
}

// detectBurst counts receipts finalized inside the trailing window.
func (a *Analyzer) detectBurst(receipts []models.Receipt) bool {
	cutoff := a.now().Add(-a.burstWindow)
	count := 0
	for _, r := range receipts {
		if !r.FinalizedAt.Before(cutoff) {
			count++
			if count >= a.burstThreshold {
				return true
			}
		}
	}
	return false
}

// detectLowDiversity computes unique counterparties over total receipts,
// restricted to economic categories so social or identity actions cannot mask
// low economic diversity.
func detectLowDiversity(receipts []models.Receipt) bool {
	total := 0
	unique := make(map[id.DID]bool)
	for _, r := range receipts {
		if !r.IsEconomic() {
			continue
		}
		total++
		unique[r.BuyerDID] = true
	}
	if total <= diversityMinReceipts {
		return false
	}
	return float64(len(unique))/float64(total) < diversityMinRatio
}
