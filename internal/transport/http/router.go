// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustledger/internal/platform/metrics"
	"trustledger/internal/platform/middleware"
	"trustledger/pkg/platform/httputil"
)

// Registrar mounts a feature's routes on the shared router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports a dependency's liveness; nil checks are skipped.
type HealthChecker func(ctx context.Context) error

// NewRouter wires the platform middleware, the operational endpoints, and
// every feature handler.
func NewRouter(m *metrics.Metrics, health map[string]HealthChecker, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/healthz", handleHealth(health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, f := range features {
		f.Register(r)
	}
	return r
}

// HealthResponse reports overall and per-dependency health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(health map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(health))}
		status := http.StatusOK
		for name, check := range health {
			if check == nil {
				continue
			}
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		if len(resp.Checks) == 0 {
			resp.Checks = nil
		}
		httputil.WriteJSON(w, status, resp)
	}
}
