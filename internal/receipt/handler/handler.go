// Package handler exposes the receipt pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustledger/internal/platform/middleware"
	"trustledger/internal/receipt/models"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
)

// Service defines the receipt operations the handler needs.
type Service interface {
	Submit(ctx context.Context, raw models.RawReceipt) (models.Receipt, error)
	Get(ctx context.Context, receiptID id.ReceiptID) (models.Receipt, error)
}

// Handler handles receipt endpoints.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

// New creates a receipt Handler.
func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the receipt routes. Submission requires a bearer token;
// reads are open.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.RequireAuth(h.validator, h.logger)).
		Post("/receipts", h.handleSubmit)
	r.Get("/receipts/{receiptID}", h.handleGet)
}

// SubmitResponse is the submission envelope.
type SubmitResponse struct {
	Success bool            `json:"success"`
	Receipt *models.Receipt `json:"receipt,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, ok := httputil.Decode[models.RawReceipt](w, r, h.logger)
	if !ok {
		return
	}

	receipt, err := h.service.Submit(ctx, raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, SubmitResponse{Success: true, Receipt: &receipt})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	receiptID, err := id.ParseReceiptID(chi.URLParam(r, "receiptID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid receipt id"))
		return
	}

	receipt, err := h.service.Get(r.Context(), receiptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SubmitResponse{Success: true, Receipt: &receipt})
}
