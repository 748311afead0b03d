// Package handler exposes trust and reputation reads over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustledger/internal/antigaming"
	"trustledger/internal/trust"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
)

// Engine defines the scoring operations the handler needs.
type Engine interface {
	Compute(ctx context.Context, agent id.DID) (trust.TrustVector, error)
	WindowedReputation(ctx context.Context, agent id.DID) (trust.Reputation, error)
}

// Analyzer defines the anti-gaming read.
type Analyzer interface {
	Analyze(ctx context.Context, agent id.DID) (antigaming.Result, error)
}

// Handler handles per-agent trust endpoints.
type Handler struct {
	engine   Engine
	analyzer Analyzer
	logger   *slog.Logger
}

// New creates a trust Handler.
func New(engine Engine, analyzer Analyzer, logger *slog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Register mounts the agent read routes. All are open reads.
func (h *Handler) Register(r chi.Router) {
	r.Get("/agents/{did}/trust", h.handleTrust)
	r.Get("/agents/{did}/reputation", h.handleReputation)
	r.Get("/agents/{did}/antigaming", h.handleAntiGaming)
}

// TrustResponse wraps a computed vector.
type TrustResponse struct {
	AgentDID id.DID            `json:"agent_did"`
	Vector   trust.TrustVector `json:"trust_vector"`
}

func (h *Handler) handleTrust(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.agentParam(w, r)
	if !ok {
		return
	}

	vector, err := h.engine.Compute(r.Context(), agent)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "trust computation failed", "agent_did", agent, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TrustResponse{AgentDID: agent, Vector: vector})
}

func (h *Handler) handleReputation(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.agentParam(w, r)
	if !ok {
		return
	}

	reputation, err := h.engine.WindowedReputation(r.Context(), agent)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "reputation computation failed", "agent_did", agent, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reputation)
}

func (h *Handler) handleAntiGaming(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.agentParam(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), agent)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "anti-gaming analysis failed", "agent_did", agent, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) agentParam(w http.ResponseWriter, r *http.Request) (id.DID, bool) {
	agent, err := id.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid agent did"))
		return "", false
	}
	return agent, true
}
