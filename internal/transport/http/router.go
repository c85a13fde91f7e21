// Package httptransport composes the HTTP surface: domain handlers, the
// shared middleware chain, health, and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	fundshandler "selns/internal/funds/handler"
	"selns/internal/platform/metrics"
	"selns/internal/platform/middleware"
	registrarhandler "selns/internal/registrar/handler"
	registrationhandler "selns/internal/registration/handler"
	registryhandler "selns/internal/registry/handler"
	resolverhandler "selns/internal/resolver/handler"
)

const requestTimeout = 30 * time.Second

// Handlers bundles the domain handlers the router mounts.
type Handlers struct {
	Registration *registrationhandler.Handler
	Registry     *registryhandler.Handler
	Registrar    *registrarhandler.Handler
	Resolver     *resolverhandler.Handler
	Funds        *fundshandler.Handler
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func() error

// NewRouter wires all endpoints behind the shared middleware chain.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, handlers Handlers, health map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Latency(m))

	handlers.Registration.Register(r)
	handlers.Registry.Register(r)
	handlers.Registrar.Register(r)
	handlers.Resolver.Register(r)
	handlers.Funds.Register(r)

	r.Get("/healthz", handleHealth(logger, health))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(logger *slog.Logger, health map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range health {
			if err := check(); err != nil {
				logger.WarnContext(r.Context(), "health check failed",
					"dependency", name, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unhealthy","dependency":"` + name + `"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
