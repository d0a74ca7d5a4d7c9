package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/cache"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/observability"
	"github.com/boddenberg/lavanderia-crm-go/internal/port"
	"github.com/boddenberg/lavanderia-crm-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockSaleStore struct {
	sales   []domain.Sale
	err     error
	saveErr error
	saved   [][]domain.Sale
	pingErr error
}

func (m *mockSaleStore) ListSales(_ context.Context) ([]domain.Sale, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Sale(nil), m.sales...), nil
}

func (m *mockSaleStore) SaveSales(_ context.Context, sales []domain.Sale) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, sales)
	for _, s := range sales {
		replaced := false
		for i := range m.sales {
			if m.sales[i].ID == s.ID {
				m.sales[i] = s
				replaced = true
			}
		}
		if !replaced {
			m.sales = append(m.sales, s)
		}
	}
	return nil
}

func (m *mockSaleStore) Ping(_ context.Context) error { return m.pingErr }

type mockOrderStore struct {
	orders []domain.Order
	err    error
	saved  [][]domain.Order
}

func (m *mockOrderStore) ListOrders(_ context.Context) ([]domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Order(nil), m.orders...), nil
}

func (m *mockOrderStore) SaveOrders(_ context.Context, orders []domain.Order) error {
	m.saved = append(m.saved, orders)
	m.orders = append(m.orders, orders...)
	return nil
}

type mockRegistry struct {
	customers []domain.Customer
}

func (m *mockRegistry) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	return m.customers, nil
}

type mockPOS struct {
	sales  []domain.Sale
	orders []domain.Order
	err    error
	since  time.Time
}

func (m *mockPOS) FetchSales(_ context.Context, since time.Time) ([]domain.Sale, error) {
	m.since = since
	if m.err != nil {
		return nil, m.err
	}
	return m.sales, nil
}

func (m *mockPOS) FetchOrders(_ context.Context, _ time.Time) ([]domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

// --- Helpers ---

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 5, day, hour, minute, 0, 0, time.UTC)
}

func newService(sales *mockSaleStore, orders *mockOrderStore, registry *mockRegistry, pos *mockPOS) *service.CRMService {
	var reg port.CustomerRegistry
	if registry != nil {
		reg = registry
	}
	var fetcher port.POSFetcher
	if pos != nil {
		fetcher = pos
	}
	return service.NewCRMService(
		sales, orders, reg, fetcher,
		cache.New[any](5*time.Minute),
		engine.Options{},
		4,
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func sampleSales() []domain.Sale {
	return []domain.Sale{
		{ID: "s1", Date: at(1, 10, 0), Store: "Loja Centro", CustomerName: "Ana Souza", Value: 20},
		{ID: "s2", Date: at(8, 10, 0), Store: "Loja Centro", CustomerName: "ana  souza", Value: 20},
		{ID: "s3", Date: at(9, 18, 0), Store: "Loja Centro", CustomerName: "Bruno Lima", Value: 35},
		{ID: "s4", Date: at(9, 19, 0), Store: "Loja Centro", CustomerName: "Consumidor Final", Value: 17},
	}
}

// --- Tests ---

func TestReport_BuildsProfilesAndCaches(t *testing.T) {
	svc := newService(&mockSaleStore{sales: sampleSales()}, &mockOrderStore{}, nil, nil)

	first, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Profiles) != 2 {
		t.Fatalf("expected 2 profiles (walk-in excluded), got %d", len(first.Profiles))
	}
	if first.Summary.TotalCustomers != 2 {
		t.Errorf("expected 2 customers in summary, got %d", first.Summary.TotalCustomers)
	}
	if !first.Summary.Today.Equal(at(9, 19, 0)) {
		t.Errorf("expected today to be the latest sale, got %v", first.Summary.Today)
	}

	second, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected second call to be served from cache")
	}
}

func TestReport_MatchesSequentialBuild(t *testing.T) {
	sales := sampleSales()
	svc := newService(&mockSaleStore{sales: sales}, &mockOrderStore{}, nil, nil)

	got, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := engine.BuildProfiles(sales, nil, engine.Options{})
	if len(got.Profiles) != len(want.Profiles) {
		t.Fatalf("expected %d profiles, got %d", len(want.Profiles), len(got.Profiles))
	}
	for i := range want.Profiles {
		if got.Profiles[i].Key != want.Profiles[i].Key || got.Profiles[i].TotalSpent != want.Profiles[i].TotalSpent {
			t.Errorf("profile %d differs: got %s/%.2f, want %s/%.2f", i,
				got.Profiles[i].Key, got.Profiles[i].TotalSpent, want.Profiles[i].Key, want.Profiles[i].TotalSpent)
		}
	}
	if got.Summary.TotalCustomers != want.Summary.TotalCustomers || got.Summary.TotalRevenue != want.Summary.TotalRevenue {
		t.Errorf("summary differs: got %+v, want %+v", got.Summary, want.Summary)
	}
	if got.Diagnostics.SkippedRecords != want.Diagnostics.SkippedRecords {
		t.Errorf("expected %d skipped, got %d", want.Diagnostics.SkippedRecords, got.Diagnostics.SkippedRecords)
	}
}

func TestReport_StoreError(t *testing.T) {
	svc := newService(&mockSaleStore{err: errors.New("boom")}, &mockOrderStore{}, nil, nil)

	_, err := svc.Report(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestProfile_ResolvesSpellingVariant(t *testing.T) {
	svc := newService(&mockSaleStore{sales: sampleSales()}, &mockOrderStore{}, nil, nil)

	p, err := svc.Profile(context.Background(), "  ANA   souza ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalVisits != 2 {
		t.Errorf("expected 2 visits, got %d", p.TotalVisits)
	}
	if p.TotalSpent != 40 {
		t.Errorf("expected 40 spent, got %.2f", p.TotalSpent)
	}
}

func TestProfile_NotFound(t *testing.T) {
	svc := newService(&mockSaleStore{sales: sampleSales()}, &mockOrderStore{}, nil, nil)

	_, err := svc.Profile(context.Background(), "Carla Dias")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfile_WalkInRejected(t *testing.T) {
	svc := newService(&mockSaleStore{sales: sampleSales()}, &mockOrderStore{}, nil, nil)

	_, err := svc.Profile(context.Background(), "Consumidor Final")
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestProfile_UsesRegistry(t *testing.T) {
	reg := &mockRegistry{customers: []domain.Customer{{ID: "c1", Name: "Ana Souza", Gender: "F", Email: "ana@example.com"}}}
	svc := newService(&mockSaleStore{sales: sampleSales()}, &mockOrderStore{}, reg, nil)

	p, err := svc.Profile(context.Background(), "Ana Souza")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Email != "ana@example.com" {
		t.Errorf("expected registry email, got %q", p.Email)
	}
}

func TestPeriodReport_Validation(t *testing.T) {
	svc := newService(&mockSaleStore{}, &mockOrderStore{}, nil, nil)

	_, err := svc.PeriodReport(context.Background(), at(10, 0, 0), at(1, 0, 0))
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	_, err = svc.PeriodReport(context.Background(), time.Time{}, at(1, 0, 0))
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation for zero start, got %v", err)
	}
}

func TestPeriodReport_SegmentsPeriod(t *testing.T) {
	svc := newService(&mockSaleStore{sales: sampleSales()}, &mockOrderStore{}, nil, nil)

	stats, err := svc.PeriodReport(context.Background(), at(8, 0, 0), at(10, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ActiveCustomers != 2 {
		t.Errorf("expected 2 active customers, got %d", stats.ActiveCustomers)
	}
	if stats.NewCustomers != 1 || stats.ReturningCustomers != 1 {
		t.Errorf("expected 1 new and 1 returning, got %d/%d", stats.NewCustomers, stats.ReturningCustomers)
	}
	if stats.Revenue != 72 {
		t.Errorf("expected revenue 72 (walk-in included), got %.2f", stats.Revenue)
	}
}

func TestReconcileOrders_PersistsOnlyChangedSales(t *testing.T) {
	sales := &mockSaleStore{sales: sampleSales()}
	orders := &mockOrderStore{orders: []domain.Order{
		{ID: "o1", Date: at(1, 10, 3), Store: "Loja Centro", CustomerName: "Ana Souza", Machine: "Lavadora 1", Service: "Lavagem", Value: 20},
	}}
	svc := newService(sales, orders, nil, nil)

	res, err := svc.ReconcileOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enriched != 1 {
		t.Fatalf("expected 1 enriched, got %+v", res)
	}
	if len(sales.saved) != 1 || len(sales.saved[0]) != 1 || sales.saved[0][0].ID != "s1" {
		t.Fatalf("expected only s1 saved, got %+v", sales.saved)
	}
	if len(sales.saved[0][0].Items) != 1 {
		t.Errorf("expected 1 item on s1, got %d", len(sales.saved[0][0].Items))
	}

	// second run sees the persisted item and writes nothing
	res, err = svc.ReconcileOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Duplicates != 1 || res.Enriched != 0 {
		t.Errorf("expected 1 duplicate on rerun, got %+v", res)
	}
	if len(sales.saved) != 1 {
		t.Errorf("expected no additional save, got %d saves", len(sales.saved))
	}
}

func TestReconcileOrders_SaveError(t *testing.T) {
	sales := &mockSaleStore{sales: sampleSales(), saveErr: errors.New("disk full")}
	orders := &mockOrderStore{orders: []domain.Order{
		{ID: "o1", Date: at(1, 10, 3), Store: "Loja Centro", CustomerName: "Ana Souza", Machine: "Lavadora 1", Value: 20},
	}}
	svc := newService(sales, orders, nil, nil)

	if _, err := svc.ReconcileOrders(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
}

func TestImportOrders_EmptyBatch(t *testing.T) {
	svc := newService(&mockSaleStore{}, &mockOrderStore{}, nil, nil)

	_, err := svc.ImportOrders(context.Background(), nil)
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestImportOrders_MergesAndIsIdempotent(t *testing.T) {
	orders := &mockOrderStore{}
	svc := newService(&mockSaleStore{}, orders, nil, nil)
	batch := []domain.Order{
		{Date: at(3, 9, 0), Store: "Loja Centro", Machine: "Máquina 04", Value: 17},
		{Date: at(3, 9, 30), Store: "Loja Centro", Machine: "Máquina 5", Value: 17},
	}

	res, err := svc.ImportOrders(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 2 {
		t.Errorf("expected 2 added, got %+v", res)
	}
	if len(orders.orders) != 2 {
		t.Fatalf("expected 2 stored orders, got %d", len(orders.orders))
	}
	if orders.orders[0].ID == "" {
		t.Error("expected a deterministic id on appended orders")
	}

	res, err = svc.ImportOrders(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 0 || res.Unchanged != 2 {
		t.Errorf("expected rerun to change nothing, got %+v", res)
	}
	if len(orders.saved) != 1 {
		t.Errorf("expected a single save, got %d", len(orders.saved))
	}
}

func TestSyncFromPOS_NotConfigured(t *testing.T) {
	svc := newService(&mockSaleStore{}, &mockOrderStore{}, nil, nil)

	_, err := svc.SyncFromPOS(context.Background(), at(1, 0, 0))
	var nc *domain.ErrNotConfigured
	if !errors.As(err, &nc) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSyncFromPOS_UpsertsSalesAndMergesOrders(t *testing.T) {
	sales := &mockSaleStore{}
	orders := &mockOrderStore{}
	pos := &mockPOS{
		sales: []domain.Sale{{ID: "p1", Date: at(5, 8, 0), Store: "Loja", CustomerName: "Davi Rocha", Value: 20}},
		orders: []domain.Order{
			{ID: "po1", Date: at(5, 8, 1), Store: "Loja", CustomerName: "Davi Rocha", Machine: "Máquina 2", Value: 20},
		},
	}
	svc := newService(sales, orders, nil, pos)

	res, err := svc.SyncFromPOS(context.Background(), at(5, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.since.Equal(at(5, 0, 0)) {
		t.Errorf("expected since to be forwarded, got %v", pos.since)
	}
	if res.Sales != 1 || res.Orders.Added != 1 {
		t.Errorf("unexpected sync result: %+v", res)
	}
	if len(sales.sales) != 1 || len(orders.orders) != 1 {
		t.Errorf("expected records stored, got %d sales / %d orders", len(sales.sales), len(orders.orders))
	}
}

func TestSyncFromPOS_FetchError(t *testing.T) {
	pos := &mockPOS{err: &domain.ErrCircuitOpen{Service: "pos"}}
	svc := newService(&mockSaleStore{}, &mockOrderStore{}, nil, pos)

	_, err := svc.SyncFromPOS(context.Background(), at(1, 0, 0))
	var co *domain.ErrCircuitOpen
	if !errors.As(err, &co) {
		t.Fatalf("expected ErrCircuitOpen to propagate, got %v", err)
	}
}

func TestAliases(t *testing.T) {
	sales := []domain.Sale{
		{ID: "a", Date: at(1, 9, 0), CustomerName: "Maria Silva", Value: 20},
		{ID: "c", Date: at(3, 9, 0), CustomerName: "Maria Sylva", Value: 20},
		{ID: "d", Date: at(4, 9, 0), CustomerName: "Joana Prado", Value: 20},
	}
	svc := newService(&mockSaleStore{sales: sales}, &mockOrderStore{}, nil, nil)

	got, err := svc.Aliases(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, a := range got {
		if a.A == "MARIA SILVA" && a.B == "MARIA SYLVA" {
			found = true
		}
		if a.A == "JOANA PRADO" || a.B == "JOANA PRADO" {
			t.Errorf("unexpected suggestion %+v", a)
		}
	}
	if !found {
		t.Errorf("expected MARIA SILVA / MARIA SYLVA, got %+v", got)
	}
}

func TestHealth(t *testing.T) {
	sales := &mockSaleStore{}
	svc := newService(sales, &mockOrderStore{}, nil, nil)

	h := svc.Health(context.Background())
	if h.Status != "healthy" || len(h.Services) != 1 {
		t.Fatalf("expected healthy with one pinged store, got %+v", h)
	}

	sales.pingErr = errors.New("down")
	h = svc.Health(context.Background())
	if h.Status != "degraded" || h.Services[0].Status != "down" {
		t.Errorf("expected degraded, got %+v", h)
	}
}
