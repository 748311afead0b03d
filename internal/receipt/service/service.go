// Package service implements the receipt validation pipeline: schema,
// signature, threshold, external reference, and duplicate checks, in that
// order, followed by the immutable append.
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

	"trustledger/internal/escrow"
	"trustledger/internal/events"
	"trustledger/internal/receipt/metrics"
	"trustledger/internal/receipt/models"
	"trustledger/internal/receipt/store"
	"trustledger/internal/signature"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
)

// DefaultMinAmount is the economic floor when none is configured.
const DefaultMinAmount = 0.01

// Service validates and persists receipts.
type Service struct {
	ledger    store.Ledger
	signer    *signature.Signer
	resolver  escrow.Resolver
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	minAmount float64
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithMinAmount overrides the economic submission floor.
func WithMinAmount(min float64) Option {
	return func(s *Service) {
		if min >= 0 {
			s.minAmount = min
		}
	}
}

// WithResolver enables escrow reference resolution. Without one, receipts
// carrying an escrow_reference are rejected.
func WithResolver(r escrow.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithPublisher enables receipt event streaming.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the receipt service.
func New(ledger store.Ledger, signer *signature.Signer, logger *slog.Logger, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("receipt ledger is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}

	svc := &Service{
		ledger:    ledger,
		signer:    signer,
		logger:    logger,
		minAmount: DefaultMinAmount,
		tracer:    otel.Tracer("trustledger/receipt"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit runs the full validation pipeline and appends the receipt. Checks run
// in a fixed order so producers get stable error codes; the duplicate check is
// the storage layer's uniqueness constraint, not an application pre-check.
func (s *Service) Submit(ctx context.Context, raw models.RawReceipt) (models.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "receipt.Submit")
	defer span.End()

	receipt, err := raw.Parse()
	if err != nil {
		return models.Receipt{}, s.reject(ctx, err)
	}

	if err := s.checkSignature(receipt); err != nil {
		return models.Receipt{}, s.reject(ctx, err)
	}

	if receipt.Amount != nil && *receipt.Amount < s.minAmount {
		return models.Receipt{}, s.reject(ctx, dErrors.Newf(dErrors.CodeThreshold,
			"amount %.4f below minimum %.4f", *receipt.Amount, s.minAmount))
	}

	if receipt.EscrowRef != "" {
		if err := s.checkEscrow(ctx, receipt.EscrowRef); err != nil {
			return models.Receipt{}, s.reject(ctx, err)
		}
	}

	if err := s.ledger.Insert(ctx, receipt); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return models.Receipt{}, s.reject(ctx, dErrors.Newf(dErrors.CodeDuplicate,
				"receipt %s already exists", receipt.ReceiptID))
		default:
			return models.Receipt{}, s.reject(ctx, dErrors.Wrap(err, dErrors.CodeStorage, "persist receipt"))
		}
	}

	s.metrics.IncAccepted(receipt.Category.String())
	if s.publisher != nil {
		s.publisher.ReceiptAccepted(ctx, receipt)
	}
	s.logger.InfoContext(ctx, "receipt accepted",
		"receipt_id", receipt.ReceiptID,
		"agent_did", receipt.AgentDID,
		"category", receipt.Category,
	)
	return receipt, nil
}

// Get returns a stored receipt.
func (s *Service) Get(ctx context.Context, receiptID id.ReceiptID) (models.Receipt, error) {
	receipt, err := s.ledger.FindByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Receipt{}, dErrors.Newf(dErrors.CodeNotFound, "receipt %s not found", receiptID)
		}
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeStorage, "find receipt")
	}
	return receipt, nil
}

// SubmitSettlement synthesizes a default receipt from a resolved settlement
// and pushes it through the normal validation path. Called when the settlement
// system reports an escrow as settled.
func (s *Service) SubmitSettlement(ctx context.Context, reference string, payer id.DID) (models.Receipt, error) {
	if s.resolver == nil {
		return models.Receipt{}, dErrors.New(dErrors.CodeReference, "no settlement resolver configured")
	}
	settlement, err := s.resolver.Resolve(ctx, reference)
	if err != nil {
		return models.Receipt{}, s.referenceError(reference, err)
	}

	receipt := models.Receipt{
		ReceiptID:   id.ReceiptID("settlement-" + reference + "-" + uuid.NewString()),
		TaskID:      "escrow:" + reference,
		AgentDID:    settlement.Beneficiary,
		BuyerDID:    payer,
		EscrowRef:   reference,
		Amount:      &settlement.Amount,
		Currency:    settlement.Currency,
		Category:    models.CategoryEconomicTransaction,
		Outcome:     models.OutcomeAccepted,
		FinalizedAt: settlement.SettledAt,
	}
	if receipt.FinalizedAt.IsZero() {
		receipt.FinalizedAt = time.Now().UTC()
	}

	payload, err := signature.Canonical(receipt.SigningPayload())
	if err != nil {
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize settlement receipt")
	}
	raw := models.RawReceipt{
		ReceiptID:   receipt.ReceiptID.String(),
		TaskID:      receipt.TaskID,
		AgentDID:    receipt.AgentDID.String(),
		BuyerDID:    receipt.BuyerDID.String(),
		EscrowRef:   receipt.EscrowRef,
		Amount:      receipt.Amount,
		Currency:    receipt.Currency,
		Category:    receipt.Category.String(),
		Outcome:     receipt.Outcome.String(),
		Signatures:  models.Signatures{Authorizing: s.signer.Sign(string(payload))},
		FinalizedAt: receipt.FinalizedAt,
	}
	return s.Submit(ctx, raw)
}

// checkSignature accepts the receipt when any signature in the bundle
// verifies against the canonical payload.
func (s *Service) checkSignature(receipt models.Receipt) error {
	if receipt.Signatures.Empty() {
		return dErrors.New(dErrors.CodeSignature, "receipt carries no signatures")
	}
	payload, err := signature.Canonical(receipt.SigningPayload())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize receipt payload")
	}
	for _, sig := range receipt.Signatures.Present() {
		if s.signer.Verify(string(payload), sig) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeSignature, "no signature verifies against the receipt payload")
}

func (s *Service) checkEscrow(ctx context.Context, reference string) error {
	if s.resolver == nil {
		return dErrors.New(dErrors.CodeReference, "no settlement resolver configured")
	}
	if _, err := s.resolver.Resolve(ctx, reference); err != nil {
		return s.referenceError(reference, err)
	}
	return nil
}

func (s *Service) referenceError(reference string, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeReference, "escrow reference %q does not resolve", reference)
	}
	return dErrors.Wrap(err, dErrors.CodeReference, "escrow lookup failed")
}

func (s *Service) reject(ctx context.Context, err error) error {
	s.metrics.IncRejected(string(dErrors.CodeOf(err)))
	s.logger.WarnContext(ctx, "receipt rejected", "code", dErrors.CodeOf(err), "error", err)
	return err
}
