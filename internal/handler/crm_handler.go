package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Profiles & summary
// ============================================================

// listProfilesHandler serves GET /v1/crm/profiles?churn=&page=&page_size=
func listProfilesHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/profiles")
		defer span.End()

		report, err := svc.Report(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		profiles := report.Profiles
		if churn := domain.ChurnRisk(r.URL.Query().Get("churn")); churn != "" {
			span.SetAttributes(attribute.String("crm.churn", string(churn)))
			filtered := make([]domain.CustomerProfile, 0, len(profiles))
			for _, p := range profiles {
				if p.ChurnRisk == churn {
					filtered = append(filtered, p)
				}
			}
			profiles = filtered
		}

		page, pageSize := parsePagination(r)
		writeJSON(w, http.StatusOK, paginate(profiles, page, pageSize))
	}
}

func getProfileHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/profiles/{name}")
		defer span.End()

		name := chi.URLParam(r, "name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		p, err := svc.Profile(ctx, name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func summaryHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/summary")
		defer span.End()

		summary, err := svc.Summary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func diagnosticsHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/diagnostics")
		defer span.End()

		report, err := svc.Report(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report.Diagnostics)
	}
}

// segmentsHandler serves GET /v1/crm/segments?start=2024-05-01&end=2024-06-01
func segmentsHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/segments")
		defer span.End()

		q := r.URL.Query()
		start, err := parseTime(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339 or YYYY-MM-DD")
			return
		}
		end, err := parseTime(q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC 3339 or YYYY-MM-DD")
			return
		}

		stats, err := svc.PeriodReport(ctx, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func aliasesHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/aliases")
		defer span.End()

		maxDistance := 0
		if v := r.URL.Query().Get("max_distance"); v != "" {
			d, err := strconv.Atoi(v)
			if err != nil || d < 0 {
				writeError(w, http.StatusBadRequest, "max_distance must be a non-negative integer")
				return
			}
			maxDistance = d
		}

		aliases, err := svc.Aliases(ctx, maxDistance)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if aliases == nil {
			aliases = []domain.AliasSuggestion{}
		}
		writeJSON(w, http.StatusOK, aliases)
	}
}

// ============================================================
// Orders & sync
// ============================================================

type importOrdersRequest struct {
	Orders []domain.Order `json:"orders"`
}

func importOrdersHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders/import")
		defer span.End()

		var req importOrdersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for i := range req.Orders {
			if req.Orders[i].Source == "" {
				req.Orders[i].Source = "file"
			}
		}

		res, err := svc.ImportOrders(ctx, req.Orders)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func reconcileHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders/reconcile")
		defer span.End()

		res, err := svc.ReconcileOrders(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// syncHandler serves POST /v1/sync?since=RFC3339. Without since everything
// the point-of-sale API returns is pulled.
func syncHandler(svc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sync")
		defer span.End()

		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := parseTime(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be RFC 3339 or YYYY-MM-DD")
				return
			}
			since = t
		}

		res, err := svc.SyncFromPOS(ctx, since)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
