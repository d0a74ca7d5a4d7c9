package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the CRM service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	reconcileOrders   *prometheus.CounterVec
	mergeOrders       *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	unclassified      prometheus.Counter
	skippedRecords    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		reconcileOrders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_reconcile_orders_total",
				Help: "Orders processed by the reconciler, by outcome.",
			},
			[]string{"outcome"},
		),
		mergeOrders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_merge_orders_total",
				Help: "Incoming orders processed by the fuzzy merge, by outcome.",
			},
			[]string{"outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		unclassified: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_unclassified_cycles_total",
				Help: "Sales whose cycles matched no classification rule.",
			},
		),
		skippedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_skipped_records_total",
				Help: "Malformed records ignored, by kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordOperationDuration records the duration of a service operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordReconcile adds the outcome counts of one reconciliation run.
func (m *Metrics) RecordReconcile(res domain.ReconcileResult) {
	m.reconcileOrders.WithLabelValues("enriched").Add(float64(res.Enriched))
	m.reconcileOrders.WithLabelValues("unenriched").Add(float64(res.Unenriched))
	m.reconcileOrders.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	m.skippedRecords.WithLabelValues("order").Add(float64(res.Skipped))
}

// RecordMerge adds the outcome counts of one merge run.
func (m *Metrics) RecordMerge(res domain.MergeResult) {
	m.mergeOrders.WithLabelValues("added").Add(float64(res.Added))
	m.mergeOrders.WithLabelValues("updated").Add(float64(res.Updated))
	m.mergeOrders.WithLabelValues("unchanged").Add(float64(res.Unchanged))
	m.skippedRecords.WithLabelValues("order").Add(float64(res.Skipped))
}

// RecordDiagnostics counts unclassified cycles and skipped sales.
func (m *Metrics) RecordDiagnostics(d domain.Diagnostics) {
	m.unclassified.Add(float64(d.UnclassifiedTotal))
	m.skippedRecords.WithLabelValues("sale").Add(float64(d.SkippedRecords))
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetEngineSnapshot returns a snapshot of engine counters suitable for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	// Prometheus counters expose cumulative values.
	enriched := getCounterValue(m.reconcileOrders, "enriched")
	unenriched := getCounterValue(m.reconcileOrders, "unenriched")
	cacheHits := getCounterValue(m.cacheHits, "profiles")
	cacheMisses := getCounterValue(m.cacheMisses, "profiles")

	enrichmentRate := float64(0)
	cacheHitRate := float64(0)
	if enriched+unenriched > 0 {
		enrichmentRate = enriched / (enriched + unenriched)
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	unclassified := &dto.Metric{}
	if err := m.unclassified.Write(unclassified); err != nil {
		unclassified = &dto.Metric{}
	}

	return &domain.EngineMetrics{
		OrdersEnriched:     int64(enriched),
		OrdersUnenriched:   int64(unenriched),
		EnrichmentRate:     enrichmentRate,
		OrdersAdded:        int64(getCounterValue(m.mergeOrders, "added")),
		OrdersUpdated:      int64(getCounterValue(m.mergeOrders, "updated")),
		OrdersUnchanged:    int64(getCounterValue(m.mergeOrders, "unchanged")),
		UnclassifiedCycles: int64(unclassified.GetCounter().GetValue()),
		SkippedRecords:     int64(getCounterValue(m.skippedRecords, "sale") + getCounterValue(m.skippedRecords, "order")),
		CacheHitRate:       cacheHitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
