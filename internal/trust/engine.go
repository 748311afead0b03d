// Package trust computes the seven-dimension trust vector and windowed
// reputation summaries. Everything here is a pure read over the ledger;
// concurrent computations for different agents never contend.
package trust

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"trustledger/internal/antigaming"
	"trustledger/internal/receipt/models"
	"trustledger/internal/receipt/store"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// maxScanReceipts bounds how much history one computation reads.
const maxScanReceipts = 10_000

// Engine derives trust vectors from the ledger and the anti-gaming analyzer.
type Engine struct {
	ledger   store.Ledger
	analyzer *antigaming.Analyzer
	cache    VectorCache
	logger   *slog.Logger
	now      func() time.Time
	tracer   trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithCache enables the trust vector cache.
func WithCache(cache VectorCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithClock sets the clock function for testability.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs the trust engine.
func New(ledger store.Ledger, analyzer *antigaming.Analyzer, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("receipt ledger is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("anti-gaming analyzer is required")
	}
	e := &Engine{
		ledger:   ledger,
		analyzer: analyzer,
		logger:   logger,
		now:      time.Now,
		tracer:   otel.Tracer("trustledger/trust"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compute derives the trust vector for an agent. Zero-receipt agents yield an
// all-zero vector. Results are rounded to two decimal places and cached for a
// short TTL when a cache is configured.
func (e *Engine) Compute(ctx context.Context, agent id.DID) (TrustVector, error) {
	ctx, span := e.tracer.Start(ctx, "trust.Compute")
	defer span.End()

	if e.cache != nil {
		if v, ok := e.cache.Get(ctx, agent); ok {
			return v, nil
		}
	}

	receipts, err := e.ledger.ListByAgent(ctx, agent, time.Time{}, maxScanReceipts)
	if err != nil {
		return TrustVector{}, dErrors.Wrap(err, dErrors.CodeStorage, "list receipts for trust vector")
	}
	if len(receipts) == 0 {
		return TrustVector{}, nil
	}

	// Gating and scoring read the same snapshot of the history.
	gaming, err := e.analyzer.AnalyzeReceipts(ctx, agent, receipts)
	if err != nil {
		return TrustVector{}, err
	}

	vector := e.computeFromReceipts(receipts, gaming)
	if e.cache != nil {
		e.cache.Set(ctx, agent, vector)
	}
	return vector, nil
}

func (e *Engine) computeFromReceipts(receipts []models.Receipt, gaming antigaming.Result) TrustVector {
	now := e.now()

	// Distinct (timestamp, counterparty) pairs per category drive the
	// diminishing-returns count: repeating the same category against the same
	// pair never grows the weight.
	pairsByCategory := make(map[models.ActionCategory]map[string]struct{})
	uniqueCounterparties := make(map[id.DID]bool)

	var v TrustVector
	var recencyNum, recencyDen float64
	disputed := 0

	for _, r := range receipts {
		profile := r.Category.Profile()

		pairs := pairsByCategory[r.Category]
		if pairs == nil {
			pairs = make(map[string]struct{})
			pairsByCategory[r.Category] = pairs
		}
		pairs[r.FinalizedAt.UTC().Format(time.RFC3339Nano)+"|"+r.BuyerDID.String()] = struct{}{}

		adjusted := DiminishingReturns(profile.BaseWeight, len(pairs))
		signal := adjusted
		if r.IsEconomic() && r.Amount != nil {
			signal = adjusted * EconomicScale(*r.Amount)
		}

		days := now.Sub(r.FinalizedAt).Hours() / 24
		decay := RecencyDecay(days)
		decayed := signal * decay

		switch profile.Dimension {
		case models.DimensionEconomic:
			v.Economic += decayed
		case models.DimensionProductivity:
			v.Productivity += decayed
		case models.DimensionCompliance:
			v.Compliance += decayed
		case models.DimensionRecency:
			// Identity and social receipts have no bucket of their own; they
			// only feed the recency accumulator below.
		}

		recencyNum += math.Abs(signal) * decay
		recencyDen += math.Abs(signal)

		if r.Dispute || r.Outcome == models.OutcomeDisputed {
			disputed++
		}
		uniqueCounterparties[r.BuyerDID] = true
	}

	v.Diversity = math.Log(1 + float64(len(uniqueCounterparties)))

	disputeRate := float64(disputed) / float64(len(receipts))
	v.Behavioral = (1 - disputeRate) * 10

	if recencyDen > 0 {
		v.Recency = recencyNum / recencyDen
	}

	if gaming.Flagged {
		v.Anomaly = -(1 - gaming.AdjustedWeight) * 10
	}

	return v.rounded()
}

// windowNames fixes the reputation windows the query surface exposes.
var windowNames = map[string]int{
	"30d":      30,
	"90d":      90,
	"all_time": 0,
}

// Reputation is the windowed query result: per-window summaries plus the
// agent's current anti-gaming standing and trust vector.
type Reputation struct {
	AgentDID   id.DID                   `json:"agent_did"`
	Windows    map[string]WindowSummary `json:"windows"`
	AntiGaming antigaming.Result        `json:"anti_gaming"`
	Vector     TrustVector              `json:"trust_vector"`
}

// WindowedReputation aggregates the 30-day, 90-day, and all-time windows.
// Windows are independent pure reads, so they fan out concurrently.
func (e *Engine) WindowedReputation(ctx context.Context, agent id.DID) (Reputation, error) {
	ctx, span := e.tracer.Start(ctx, "trust.WindowedReputation")
	defer span.End()

	rep := Reputation{
		AgentDID: agent,
		Windows:  make(map[string]WindowSummary, len(windowNames)),
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make(map[string]*WindowSummary, len(windowNames))
	for name, days := range windowNames {
		results[name] = &WindowSummary{}
		g.Go(func() error {
			receipts, err := e.ledger.ListByAgent(gctx, agent, WindowStart(e.now(), days), maxScanReceipts)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeStorage, "list receipts for window "+name)
			}
			*results[name] = AggregateReceipts(receipts)
			return nil
		})
	}
	g.Go(func() error {
		gaming, err := e.analyzer.Analyze(gctx, agent)
		if err != nil {
			return err
		}
		rep.AntiGaming = gaming
		return nil
	})
	g.Go(func() error {
		vector, err := e.Compute(gctx, agent)
		if err != nil {
			return err
		}
		rep.Vector = vector
		return nil
	})
	if err := g.Wait(); err != nil {
		return Reputation{}, err
	}

	for name, summary := range results {
		rep.Windows[name] = *summary
	}
	return rep, nil
}
