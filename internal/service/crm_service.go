package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/observability"
	"github.com/boddenberg/lavanderia-crm-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/crm")

const profilesCache = "profiles"

// CRMService loads sales, orders and the customer registry from the stores
// and runs the analytics engine over them.
type CRMService struct {
	sales       port.SaleStore
	orders      port.OrderStore
	registry    port.CustomerRegistry
	pos         port.POSFetcher
	cache       port.Cache[any]
	opts        engine.Options
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewCRMService creates the CRM service with all dependencies injected.
// registry and pos may be nil.
func NewCRMService(
	sales port.SaleStore,
	orders port.OrderStore,
	registry port.CustomerRegistry,
	pos port.POSFetcher,
	cache port.Cache[any],
	opts engine.Options,
	concurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CRMService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &CRMService{
		sales:       sales,
		orders:      orders,
		registry:    registry,
		pos:         pos,
		cache:       cache,
		opts:        opts,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

type snapshot struct {
	sales     []domain.Sale
	orders    []domain.Order
	customers []domain.Customer
}

// fingerprint changes whenever a store gains records or newer timestamps.
func (s snapshot) fingerprint() string {
	var lastSale, lastOrder time.Time
	items := 0
	for _, sale := range s.sales {
		if sale.Date.After(lastSale) {
			lastSale = sale.Date
		}
		items += len(sale.Items)
	}
	for _, o := range s.orders {
		if o.Date.After(lastOrder) {
			lastOrder = o.Date
		}
	}
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d",
		len(s.sales), items, len(s.orders), len(s.customers), lastSale.UnixNano(), lastOrder.UnixNano())
}

// load fetches the three stores concurrently.
func (s *CRMService) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sales, err := s.sales.ListSales(gctx)
		if err != nil {
			s.metrics.IncrExternalError("sales")
			return fmt.Errorf("sales fetch: %w", err)
		}
		snap.sales = sales
		return nil
	})
	g.Go(func() error {
		orders, err := s.orders.ListOrders(gctx)
		if err != nil {
			s.metrics.IncrExternalError("orders")
			return fmt.Errorf("orders fetch: %w", err)
		}
		snap.orders = orders
		return nil
	})
	if s.registry != nil {
		g.Go(func() error {
			customers, err := s.registry.ListCustomers(gctx)
			if err != nil {
				s.metrics.IncrExternalError("customers")
				return fmt.Errorf("customers fetch: %w", err)
			}
			snap.customers = customers
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// enriched attaches the stored orders to the stored sales in memory. Orders
// already persisted as items are recognized as duplicates.
func (s *CRMService) enriched(snap snapshot) []domain.Sale {
	if len(snap.orders) == 0 {
		return snap.sales
	}
	return engine.ReconcileOrders(snap.sales, snap.orders, s.opts).Sales
}

// Report returns every customer profile with the summary and diagnostics.
// Results are cached per dataset fingerprint.
func (s *CRMService) Report(ctx context.Context) (*engine.ProfileReport, error) {
	ctx, span := tracer.Start(ctx, "CRMService.Report")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("profiles", time.Since(start)) }()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	cacheKey := "profiles:" + snap.fingerprint()
	if cached, ok := s.cache.Get(cacheKey); ok {
		if r, ok := cached.(*engine.ProfileReport); ok {
			s.metrics.IncrCacheHit(profilesCache)
			return r, nil
		}
	}
	s.metrics.IncrCacheMiss(profilesCache)

	report, err := s.buildReport(ctx, s.enriched(snap), snap.customers)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("crm.sales", len(snap.sales)),
		attribute.Int("crm.customers", len(report.Profiles)),
	)
	s.metrics.RecordDiagnostics(report.Diagnostics)
	s.cache.Set(cacheKey, report)

	s.logger.Info("crm profiles built",
		zap.Int("sales", len(snap.sales)),
		zap.Int("orders", len(snap.orders)),
		zap.Int("profiles", len(report.Profiles)),
		zap.Int("unclassified", report.Diagnostics.UnclassifiedTotal),
		zap.Int("skipped", report.Diagnostics.SkippedRecords),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// buildReport shards the per-customer profile build across goroutines.
func (s *CRMService) buildReport(ctx context.Context, sales []domain.Sale, customers []domain.Customer) (*engine.ProfileReport, error) {
	ds := engine.NewDataset(sales, customers, s.opts)
	keys := ds.Keys()

	profiles := make([]domain.CustomerProfile, len(keys))
	diags := make([]domain.Diagnostics, len(keys))
	built := make([]bool, len(keys))

	shard := max(1, (len(keys)+s.concurrency-1)/s.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for lo := 0; lo < len(keys); lo += shard {
		lo, hi := lo, min(lo+shard, len(keys))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				profiles[i], diags[i], built[i] = ds.Profile(keys[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("profile build: %w", err)
	}

	out := make([]domain.CustomerProfile, 0, len(keys))
	for i, ok := range built {
		if ok {
			out = append(out, profiles[i])
		}
	}
	diags = append(diags, domain.Diagnostics{SkippedRecords: ds.Skipped()})

	return &engine.ProfileReport{
		Profiles:    out,
		Summary:     engine.Summarize(out, ds.Today()),
		Diagnostics: engine.MergeDiagnostics(ds.Options().DiagnosticsCap, diags...),
	}, nil
}

// Profile returns one customer profile by name. Spelling variants that
// normalize to the same identity resolve to the same profile.
func (s *CRMService) Profile(ctx context.Context, name string) (*domain.CustomerProfile, error) {
	ctx, span := tracer.Start(ctx, "CRMService.Profile")
	defer span.End()

	key := engine.NormalizeName(name)
	if key == "" || engine.IsWalkIn(key) {
		return nil, &domain.ErrValidation{Field: "name", Message: "a named customer is required"}
	}
	span.SetAttributes(attribute.String("customer.key", key))

	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	for i := range report.Profiles {
		if report.Profiles[i].Key == key {
			p := report.Profiles[i]
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: name}
}

// Summary returns only the dashboard summary of the current data.
func (s *CRMService) Summary(ctx context.Context) (*domain.CrmSummary, error) {
	ctx, span := tracer.Start(ctx, "CRMService.Summary")
	defer span.End()

	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	summary := report.Summary
	return &summary, nil
}

// PeriodReport segments the customers active in [start, end).
func (s *CRMService) PeriodReport(ctx context.Context, start, end time.Time) (*domain.PeriodStats, error) {
	ctx, span := tracer.Start(ctx, "CRMService.PeriodReport")
	defer span.End()

	if start.IsZero() || end.IsZero() {
		return nil, &domain.ErrValidation{Field: "period", Message: "start and end are required"}
	}
	if !end.After(start) {
		return nil, &domain.ErrValidation{Field: "end", Message: "must be after start"}
	}
	span.SetAttributes(
		attribute.String("period.start", start.Format(time.RFC3339)),
		attribute.String("period.end", end.Format(time.RFC3339)),
	)
	began := time.Now()
	defer func() { s.metrics.RecordOperationDuration("period_report", time.Since(began)) }()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	history := s.enriched(snap)
	period := domain.Period{Start: start, End: end}
	stats := engine.SegmentPeriod(period, engine.FilterPeriod(history, period), history, snap.customers, s.opts)
	s.metrics.RecordDiagnostics(stats.Diagnostics)

	s.logger.Info("period report built",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("active_customers", stats.ActiveCustomers),
		zap.Int("unclassified", stats.Diagnostics.UnclassifiedTotal),
	)
	return &stats, nil
}

// ReconcileOrders attaches the stored orders to the stored sales and
// persists the sales that changed.
func (s *CRMService) ReconcileOrders(ctx context.Context) (*domain.ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "CRMService.ReconcileOrders")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("reconcile", time.Since(start)) }()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	opts := s.opts
	opts.Progress = func(done, total int) {
		s.logger.Debug("reconcile progress", zap.Int("done", done), zap.Int("total", total))
	}
	res := engine.ReconcileOrders(snap.sales, snap.orders, opts)

	changed := make([]domain.Sale, 0, res.Enriched)
	for i := range res.Sales {
		if saleChanged(snap.sales[i], res.Sales[i]) {
			changed = append(changed, res.Sales[i])
		}
	}
	if len(changed) > 0 {
		if err := s.sales.SaveSales(ctx, changed); err != nil {
			s.metrics.IncrExternalError("sales")
			return nil, fmt.Errorf("sales save: %w", err)
		}
		s.purgeCache()
	}

	s.metrics.RecordReconcile(res)
	span.SetAttributes(
		attribute.Int("reconcile.enriched", res.Enriched),
		attribute.Int("reconcile.unenriched", res.Unenriched),
	)
	s.logger.Info("orders reconciled",
		zap.Int("orders", len(snap.orders)),
		zap.Int("enriched", res.Enriched),
		zap.Int("unenriched", res.Unenriched),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", res.Skipped),
		zap.Int("sales_saved", len(changed)),
	)
	return &res, nil
}

func saleChanged(before, after domain.Sale) bool {
	return len(before.Items) != len(after.Items) ||
		(before.BirthDate == nil) != (after.BirthDate == nil) ||
		(before.Age == nil) != (after.Age == nil)
}

// ImportOrders fuzzy-merges a batch of orders into the order store.
func (s *CRMService) ImportOrders(ctx context.Context, batch []domain.Order) (*domain.MergeResult, error) {
	ctx, span := tracer.Start(ctx, "CRMService.ImportOrders")
	defer span.End()

	if len(batch) == 0 {
		return nil, &domain.ErrValidation{Field: "orders", Message: "batch is empty"}
	}
	span.SetAttributes(attribute.Int("orders.incoming", len(batch)))

	existing, err := s.orders.ListOrders(ctx)
	if err != nil {
		s.metrics.IncrExternalError("orders")
		return nil, fmt.Errorf("orders fetch: %w", err)
	}
	return s.mergeOrders(ctx, existing, batch)
}

func (s *CRMService) mergeOrders(ctx context.Context, existing, incoming []domain.Order) (*domain.MergeResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("merge", time.Since(start)) }()

	res := engine.MergeOrders(existing, incoming)
	if len(res.Changed) > 0 {
		if err := s.orders.SaveOrders(ctx, res.Changed); err != nil {
			s.metrics.IncrExternalError("orders")
			return nil, fmt.Errorf("orders save: %w", err)
		}
		s.purgeCache()
	}
	s.metrics.RecordMerge(res)

	s.logger.Info("orders merged",
		zap.Int("incoming", len(incoming)),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", res.Skipped),
	)
	return &res, nil
}

// SyncFromPOS pulls sales and orders newer than since from the point-of-sale
// API, upserts the sales and merges the orders.
func (s *CRMService) SyncFromPOS(ctx context.Context, since time.Time) (*domain.SyncResult, error) {
	ctx, span := tracer.Start(ctx, "CRMService.SyncFromPOS")
	defer span.End()

	if s.pos == nil {
		return nil, &domain.ErrNotConfigured{Component: "pos api"}
	}

	var (
		sales  []domain.Sale
		orders []domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = s.pos.FetchSales(gctx, since)
		if err != nil {
			s.metrics.IncrExternalError("pos")
			return fmt.Errorf("pos sales fetch: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		orders, err = s.pos.FetchOrders(gctx, since)
		if err != nil {
			s.metrics.IncrExternalError("pos")
			return fmt.Errorf("pos orders fetch: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.SyncResult{Since: since, Sales: len(sales)}
	if len(sales) > 0 {
		if err := s.sales.SaveSales(ctx, sales); err != nil {
			s.metrics.IncrExternalError("sales")
			return nil, fmt.Errorf("sales save: %w", err)
		}
		s.purgeCache()
	}
	if len(orders) > 0 {
		existing, err := s.orders.ListOrders(ctx)
		if err != nil {
			s.metrics.IncrExternalError("orders")
			return nil, fmt.Errorf("orders fetch: %w", err)
		}
		merged, err := s.mergeOrders(ctx, existing, orders)
		if err != nil {
			return nil, err
		}
		result.Orders = *merged
	}

	span.SetAttributes(
		attribute.Int("sync.sales", len(sales)),
		attribute.Int("sync.orders", len(orders)),
	)
	s.logger.Info("pos sync finished",
		zap.Time("since", since),
		zap.Int("sales", len(sales)),
		zap.Int("orders", len(orders)),
	)
	return result, nil
}

// Aliases suggests customer names that are probably spelling variants of
// each other. A non-positive maxDistance uses the default of 2.
func (s *CRMService) Aliases(ctx context.Context, maxDistance int) ([]domain.AliasSuggestion, error) {
	ctx, span := tracer.Start(ctx, "CRMService.Aliases")
	defer span.End()

	if maxDistance <= 0 {
		maxDistance = 2
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(snap.sales)+len(snap.customers))
	for _, sale := range snap.sales {
		names = append(names, sale.CustomerName)
	}
	for _, c := range snap.customers {
		names = append(names, c.Name)
	}
	return engine.SuggestAliases(names, maxDistance), nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings every store that supports it.
func (s *CRMService) Health(ctx context.Context) domain.HealthStatus {
	ctx, span := tracer.Start(ctx, "CRMService.Health")
	defer span.End()

	status := domain.HealthStatus{Status: "healthy", Services: []domain.ServiceHealth{}}
	checked := map[any]bool{}
	for _, dep := range []struct {
		name  string
		store any
	}{
		{"sales", s.sales},
		{"orders", s.orders},
		{"customers", s.registry},
	} {
		p, ok := dep.store.(pinger)
		if !ok || checked[dep.store] {
			continue
		}
		checked[dep.store] = true

		start := time.Now()
		err := p.Ping(ctx)
		h := domain.ServiceHealth{
			Name:        dep.name,
			Status:      "up",
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: time.Now().UTC().Format(time.RFC3339),
		}
		if err != nil {
			h.Status = "down"
			status.Status = "degraded"
			s.logger.Warn("store ping failed", zap.String("store", dep.name), zap.Error(err))
		}
		status.Services = append(status.Services, h)
	}
	return status
}

type purger interface {
	Purge()
}

func (s *CRMService) purgeCache() {
	if p, ok := s.cache.(purger); ok {
		p.Purge()
	}
}
