// Package httptransport is the thin HTTP layer. It delegates to the resolver
// service without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Strata-Labs/bnsv2-api/internal/platform/metrics"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/httputil"
)

// HealthChecker reports backend liveness for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter assembles the middleware chain and mounts all endpoints.
// health may be nil, in which case /healthz always reports ok.
func NewRouter(h *Handler, logger *slog.Logger, m *metrics.Metrics, health HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestTime)
	r.Use(Logging(logger))
	r.Use(Instrument(m))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handleHealth(health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Register(r)
	return r
}

func handleHealth(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
