// Package handler exposes the credential lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustledger/internal/credential/models"
	"trustledger/internal/platform/middleware"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
)

// Service defines the credential operations the handler needs.
type Service interface {
	Issue(ctx context.Context, agent id.DID, credType models.CredentialType, category string, windowDays int) (*models.Credential, error)
	Get(ctx context.Context, credentialID id.CredentialID) (models.Credential, models.Status, error)
	ListByAgent(ctx context.Context, agent id.DID) ([]models.Credential, error)
	Verify(credential models.Credential) bool
	Revoke(ctx context.Context, credentialID id.CredentialID) error
}

// Handler handles credential endpoints.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

// New creates a credential Handler.
func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the credential routes. Issuance and revocation require a
// bearer token; reads and verification are open.
func (h *Handler) Register(r chi.Router) {
	auth := middleware.RequireAuth(h.validator, h.logger)
	r.With(auth).Post("/credentials/issue", h.handleIssue)
	r.With(auth).Post("/credentials/{credentialID}/revoke", h.handleRevoke)
	r.Get("/credentials/{credentialID}", h.handleGet)
	r.Post("/credentials/verify", h.handleVerify)
	r.Get("/agents/{did}/credentials", h.handleList)
}

// IssueRequest asks for a credential over a trailing window. WindowDays 0
// means all time.
type IssueRequest struct {
	AgentDID       string `json:"agent_did"`
	CredentialType string `json:"credential_type"`
	Category       string `json:"category,omitempty"`
	WindowDays     int    `json:"window_days,omitempty"`
}

// IssueResponse reports the issued credential, or success=false when
// issuance was refused.
type IssueResponse struct {
	Success    bool               `json:"success"`
	Credential *models.Credential `json:"credential,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}

	agent, err := id.ParseDID(req.AgentDID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid agent did"))
		return
	}
	credType, err := models.ParseCredentialType(req.CredentialType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if credType == models.TypeCategorySpecialization && req.Category == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "category is required for specialization credentials"))
		return
	}
	if req.WindowDays < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "window_days must not be negative"))
		return
	}

	credential, err := h.service.Issue(ctx, agent, credType, req.Category, req.WindowDays)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if credential == nil {
		httputil.WriteJSON(w, http.StatusOK, IssueResponse{Success: false, Reason: "not eligible"})
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, IssueResponse{Success: true, Credential: credential})
}

// GetResponse is a credential with its read-time status.
type GetResponse struct {
	Success    bool              `json:"success"`
	Credential models.Credential `json:"credential"`
	Status     models.Status     `json:"status"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	credentialID := id.CredentialID(chi.URLParam(r, "credentialID"))

	credential, status, err := h.service.Get(r.Context(), credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, GetResponse{Success: true, Credential: credential, Status: status})
}

// VerifyResponse reports signature validity.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	credential, ok := httputil.Decode[models.Credential](w, r, h.logger)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: h.service.Verify(credential)})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	credentialID := id.CredentialID(chi.URLParam(r, "credentialID"))

	if err := h.service.Revoke(r.Context(), credentialID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListResponse is an agent's credentials, newest first.
type ListResponse struct {
	Success     bool                `json:"success"`
	Credentials []models.Credential `json:"credentials"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	agent, err := id.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid agent did"))
		return
	}

	credentials, err := h.service.ListByAgent(r.Context(), agent)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if credentials == nil {
		credentials = []models.Credential{}
	}

	httputil.WriteJSON(w, http.StatusOK, ListResponse{Success: true, Credentials: credentials})
}
