// Package service implements credential issuance: anti-gaming gate,
// eligibility thresholds, window aggregation, signing, persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trustledger/internal/antigaming"
	"trustledger/internal/credential/metrics"
	"trustledger/internal/credential/models"
	credstore "trustledger/internal/credential/store"
	receiptmodels "trustledger/internal/receipt/models"
	receiptstore "trustledger/internal/receipt/store"
	"trustledger/internal/signature"
	"trustledger/internal/trust"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
)

// Eligibility thresholds, evaluated against the window summary.
const (
	minVolumeTasks     = 5
	maxDisputeRate     = 0.10
	minEconomicVolume  = 100.0
	minCategoryReceipt = 3
)

// DefaultTTL bounds how long an issued credential stays fresh before reads
// report it expired.
const DefaultTTL = 365 * 24 * time.Hour

// maxScanReceipts bounds the history read per issuance.
const maxScanReceipts = 10_000

// Service issues, reads, verifies, and revokes credentials. It is the sole
// writer of the credential store.
type Service struct {
	ledger   receiptstore.Ledger
	store    credstore.Store
	analyzer *antigaming.Analyzer
	signer   *signature.Signer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
	tracer   trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithTTL overrides the credential freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs the credential service.
func New(ledger receiptstore.Ledger, store credstore.Store, analyzer *antigaming.Analyzer,
	signer *signature.Signer, logger *slog.Logger, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("receipt ledger is required")
	}
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("anti-gaming analyzer is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}

	svc := &Service{
		ledger:   ledger,
		store:    store,
		analyzer: analyzer,
		signer:   signer,
		logger:   logger,
		ttl:      DefaultTTL,
		now:      time.Now,
		tracer:   otel.Tracer("trustledger/credential"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AggregateWindow summarizes the agent's receipts over a trailing window.
// windowDays 0 means all time.
func (s *Service) AggregateWindow(ctx context.Context, agent id.DID, windowDays int) (trust.WindowSummary, error) {
	since := trust.WindowStart(s.now(), windowDays)
	receipts, err := s.ledger.ListByAgent(ctx, agent, since, maxScanReceipts)
	if err != nil {
		return trust.WindowSummary{}, dErrors.Wrap(err, dErrors.CodeStorage, "load receipts for aggregation")
	}
	return trust.AggregateReceipts(receipts), nil
}

// Issue builds, signs, and persists a credential for the agent. Returns
// (nil, nil) when the agent is flagged by the anti-gaming analyzer or the
// credential type's eligibility gate fails; refusal is not an error.
//
// The receipt history is fetched once; the anti-gaming gate and the window
// aggregation both read from that snapshot, so the signed numbers cannot
// reflect a ledger state that changed between the two.
func (s *Service) Issue(ctx context.Context, agent id.DID, credType models.CredentialType,
	category string, windowDays int) (*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Issue")
	defer span.End()

	now := s.now().UTC()
	receipts, err := s.ledger.ListByAgent(ctx, agent, time.Time{}, maxScanReceipts)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "load receipts for issuance")
	}

	gaming, err := s.analyzer.AnalyzeReceipts(ctx, agent, receipts)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "anti-gaming analysis")
	}
	if gaming.Flagged {
		s.metrics.IncRefused("flagged")
		s.logger.WarnContext(ctx, "credential issuance refused",
			"agent_did", agent,
			"flags", gaming.Flags,
		)
		return nil, nil
	}

	windowStart := trust.WindowStart(now, windowDays)
	summary := trust.AggregateReceipts(filterSince(receipts, windowStart))
	if !eligible(credType, category, summary) {
		s.metrics.IncRefused("gate")
		return nil, nil
	}

	credential := models.Credential{
		ID:          id.CredentialID(uuid.NewString()),
		AgentDID:    agent,
		Type:        credType,
		Category:    category,
		Data:        summary,
		WindowStart: windowStart,
		WindowEnd:   now,
		IssuedAt:    now,
	}
	sig, err := s.signer.SignCredential(credential.SigningPayload())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign credential")
	}
	credential.Signature = sig

	if err := s.store.Insert(ctx, credential); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "persist credential")
	}

	s.metrics.IncIssued(credType.String())
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", credential.ID,
		"agent_did", agent,
		"type", credType,
	)
	return &credential, nil
}

// Get returns a stored credential with its read-time status.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (models.Credential, models.Status, error) {
	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Credential{}, "", dErrors.Newf(dErrors.CodeNotFound, "credential %s not found", credentialID)
		}
		return models.Credential{}, "", dErrors.Wrap(err, dErrors.CodeStorage, "find credential")
	}
	return credential, credential.StatusAt(s.now(), s.ttl), nil
}

// ListByAgent returns the agent's credentials, newest first.
func (s *Service) ListByAgent(ctx context.Context, agent id.DID) ([]models.Credential, error) {
	credentials, err := s.store.ListByAgent(ctx, agent)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list credentials")
	}
	return credentials, nil
}

// Verify checks the credential's signature against its signed fields. Always
// boolean: revoked and expired credentials with intact payloads still verify.
func (s *Service) Verify(credential models.Credential) bool {
	return s.signer.VerifyCredential(credential.SigningPayload(), credential.Signature)
}

// Revoke flips the out-of-band revocation flag. The signed payload is
// untouched.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID) error {
	if err := s.store.Revoke(ctx, credentialID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "credential %s not found", credentialID)
		}
		return dErrors.Wrap(err, dErrors.CodeStorage, "revoke credential")
	}
	s.metrics.IncRevoked()
	s.logger.InfoContext(ctx, "credential revoked", "credential_id", credentialID)
	return nil
}

// eligible evaluates the credential type's gate against the window summary.
func eligible(credType models.CredentialType, category string, summary trust.WindowSummary) bool {
	switch credType {
	case models.TypeVolume:
		return summary.TaskCount >= minVolumeTasks
	case models.TypeDisputeRate:
		return summary.TaskCount >= minVolumeTasks && summary.DisputeRate() < maxDisputeRate
	case models.TypeEconomicVolume:
		return summary.TotalVolume > minEconomicVolume
	case models.TypeCategorySpecialization:
		return summary.Categories[category].Count >= minCategoryReceipt
	default:
		return false
	}
}

// filterSince narrows an already-fetched snapshot to a trailing window
// without a second ledger read.
func filterSince(receipts []receiptmodels.Receipt, since time.Time) []receiptmodels.Receipt {
	if since.IsZero() {
		return receipts
	}
	out := make([]receiptmodels.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if !r.FinalizedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out
}
