package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/observability"
	"github.com/boddenberg/lavanderia-crm-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.CRMService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/engine", engineMetricsHandler(metrics))

		if svc == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "crm service unavailable")
			}))
			return
		}

		// =============================================
		// CRM
		// =============================================
		r.Get("/crm/profiles", listProfilesHandler(svc, logger))
		r.Get("/crm/profiles/{name}", getProfileHandler(svc, logger))
		r.Get("/crm/summary", summaryHandler(svc, logger))
		r.Get("/crm/diagnostics", diagnosticsHandler(svc, logger))
		r.Get("/crm/segments", segmentsHandler(svc, logger))
		r.Get("/crm/aliases", aliasesHandler(svc, logger))

		// =============================================
		// Orders & sync
		// =============================================
		r.Post("/orders/import", importOrdersHandler(svc, logger))
		r.Post("/orders/reconcile", reconcileHandler(svc, logger))
		r.Post("/sync", syncHandler(svc, logger))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(svc *service.CRMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		status := domain.HealthStatus{
			Status:   "healthy",
			Services: []domain.ServiceHealth{{Name: "crm-api", Status: "up", LastChecked: now}},
		}
		if svc != nil {
			stores := svc.Health(r.Context())
			status.Services = append(status.Services, stores.Services...)
			status.Status = stores.Status
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
