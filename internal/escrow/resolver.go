// Package escrow talks to the settlement system. Receipts referencing an
// escrow must resolve here before the ledger accepts them.
package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/circuit"
	"trustledger/pkg/platform/sentinel"
)

// Settlement is what the settlement system knows about a completed escrow.
type Settlement struct {
	Reference   string    `json:"reference"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Beneficiary id.DID    `json:"beneficiary"`
	SettledAt   time.Time `json:"settled_at"`
}

// Resolver looks up escrow references. Implementations return
// sentinel.ErrNotFound for unknown references and sentinel.ErrUnavailable when
// the settlement system cannot be reached.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (Settlement, error)
}

// HTTPResolver resolves references against the settlement service. The only
// timeout in the submission path lives here, at the network boundary. A
// circuit breaker sheds lookups while the settlement system is down so a
// flapping dependency cannot stall every submission for the full timeout.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: circuit.New("escrow", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, reference string) (Settlement, error) {
	if r.breaker.IsOpen() {
		// Probe with a single request; RecordSuccess below closes the
		// circuit after enough of them land.
		if settlement, err := r.lookup(ctx, reference); err == nil {
			r.breaker.RecordSuccess()
			return settlement, nil
		}
		return Settlement{}, fmt.Errorf("%w: escrow circuit open", sentinel.ErrUnavailable)
	}

	settlement, err := r.lookup(ctx, reference)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			r.breaker.RecordFailure()
		}
		return Settlement{}, err
	}
	r.breaker.RecordSuccess()
	return settlement, nil
}

func (r *HTTPResolver) lookup(ctx context.Context, reference string) (Settlement, error) {
	u := fmt.Sprintf("%s/escrows/%s", r.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Settlement{}, fmt.Errorf("build escrow request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: escrow lookup: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var s Settlement
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return Settlement{}, fmt.Errorf("decode escrow response: %w", err)
		}
		return s, nil
	case http.StatusNotFound:
		return Settlement{}, sentinel.ErrNotFound
	default:
		return Settlement{}, fmt.Errorf("%w: escrow lookup status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
}

// Static is an in-memory resolver for development and tests.
type Static struct {
	settlements map[string]Settlement
}

func NewStatic(settlements map[string]Settlement) *Static {
	if settlements == nil {
		settlements = make(map[string]Settlement)
	}
	return &Static{settlements: settlements}
}

// Add registers a settlement under its reference.
func (s *Static) Add(settlement Settlement) {
	s.settlements[settlement.Reference] = settlement
}

func (s *Static) Resolve(_ context.Context, reference string) (Settlement, error) {
	if settlement, ok := s.settlements[reference]; ok {
		return settlement, nil
	}
	return Settlement{}, sentinel.ErrNotFound
}
