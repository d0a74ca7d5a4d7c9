package engine_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
)

func washDrySales() []domain.Sale {
	return []domain.Sale{
		{ID: "s1", Date: at(1, 10, 0), Store: "Centro", CustomerName: "Carla Souza", Product: "Lavagem", Value: 20},
		{ID: "s2", Date: at(1, 10, 30), Store: "Centro", CustomerName: "Carla Souza", Product: "Secagem", Value: 15},
		{ID: "s3", Date: at(10, 9, 0), Store: "Centro", CustomerName: "carla souza", Product: "Lavagem", Value: 20},
	}
}

func findProfile(t *testing.T, profiles []domain.CustomerProfile, key string) domain.CustomerProfile {
	t.Helper()
	for _, p := range profiles {
		if p.Key == key {
			return p
		}
	}
	t.Fatalf("profile %q not found", key)
	return domain.CustomerProfile{}
}

func TestBuildProfiles_VisitsAndBaskets(t *testing.T) {
	report := engine.BuildProfiles(washDrySales(), nil, engine.Options{})

	if len(report.Profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(report.Profiles))
	}
	p := report.Profiles[0]
	if p.TotalVisits != 2 || p.TotalWashes != 2 || p.TotalDries != 1 {
		t.Errorf("expected 2 visits / 2 washes / 1 dry, got %d / %d / %d", p.TotalVisits, p.TotalWashes, p.TotalDries)
	}
	if p.TotalSpent != 55 || p.TotalTransactions != 3 {
		t.Errorf("unexpected totals: spent=%.2f tx=%d", p.TotalSpent, p.TotalTransactions)
	}
	if p.AverageTicket != 27.5 {
		t.Errorf("expected average ticket 27.5, got %.2f", p.AverageTicket)
	}
	if p.TotalWashes+p.TotalDries > p.TotalCycles {
		t.Errorf("washes+dries exceed cycles: %+v", p)
	}
	if p.PreferredStore != "Centro" || p.TopShift != domain.ShiftMorning {
		t.Errorf("unexpected preferences: store=%q shift=%q", p.PreferredStore, p.TopShift)
	}
	if len(p.LastVisits) != 2 || !p.LastVisits[0].Start.Equal(at(10, 9, 0)) {
		t.Errorf("expected most recent visit first, got %+v", p.LastVisits)
	}
	wantNext := at(10, 9, 0).AddDate(0, 0, 9)
	if !p.NextVisitPrediction.Equal(wantNext) {
		t.Errorf("expected next visit %v, got %v", wantNext, p.NextVisitPrediction)
	}
	if p.Gender != "F" || p.GenderSource != domain.GenderSourceInferred {
		t.Errorf("expected inferred F, got %q/%q", p.Gender, p.GenderSource)
	}
	if report.Summary.ConversionRatePct != 50 {
		t.Errorf("expected 50%% conversion, got %.2f", report.Summary.ConversionRatePct)
	}
}

func TestBuildProfiles_SingleVisitChurn(t *testing.T) {
	sales := []domain.Sale{
		{ID: "a", Date: at(1, 10, 0), CustomerName: "Pedro", Product: "Lavagem", Value: 18},
		{ID: "b", Date: at(1, 10, 0).AddDate(0, 0, 40), CustomerName: "Lucia", Product: "Lavagem", Value: 18},
	}

	report := engine.BuildProfiles(sales, nil, engine.Options{})

	p := findProfile(t, report.Profiles, "PEDRO")
	if p.RecencyDays != 40 {
		t.Errorf("expected recency 40, got %d", p.RecencyDays)
	}
	if p.AverageIntervalDays != engine.DefaultIntervalDays {
		t.Errorf("expected default interval, got %.2f", p.AverageIntervalDays)
	}
	if p.ChurnRisk != domain.ChurnMedium {
		t.Errorf("expected medium churn, got %s", p.ChurnRisk)
	}
	if report.Summary.ChurnCounts[domain.ChurnMedium] != 1 || report.Summary.ChurnCounts[domain.ChurnLow] != 1 {
		t.Errorf("unexpected churn counts: %v", report.Summary.ChurnCounts)
	}
	if !report.Summary.Today.Equal(sales[1].Date) {
		t.Errorf("expected today to be the latest sale, got %v", report.Summary.Today)
	}
}

func TestChurnTier(t *testing.T) {
	cases := []struct {
		recency  int
		interval float64
		want     domain.ChurnRisk
	}{
		{0, 20, domain.ChurnLow},
		{30, 20, domain.ChurnLow},
		{31, 20, domain.ChurnMedium},
		{40, 20, domain.ChurnMedium},
		{41, 20, domain.ChurnHigh},
		{15, 2, domain.ChurnLow},
		{16, 2, domain.ChurnMedium},
		{31, 2, domain.ChurnHigh},
		{100, 60, domain.ChurnMedium},
	}
	for _, tc := range cases {
		if got := engine.ChurnTier(tc.recency, tc.interval); got != tc.want {
			t.Errorf("ChurnTier(%d, %.0f) = %s, want %s", tc.recency, tc.interval, got, tc.want)
		}
	}
}

func TestBuildProfiles_RegistryOverrides(t *testing.T) {
	registered := at(1, 0, 0).AddDate(0, -6, 0)
	birth := time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC)
	registry := []domain.Customer{{
		ID: "c-1", Name: "Carla Souza", Phone: "+5511999990000", Gender: "F",
		RegisteredAt: &registered, BirthDate: &birth, Email: "carla@example.com",
	}}
	sales := washDrySales()
	sales[2].CustomerName = "Karla Sousa"
	for i := range sales {
		sales[i].CustomerID = "c-1"
	}

	report := engine.BuildProfiles(sales, registry, engine.Options{})

	if len(report.Profiles) != 1 {
		t.Fatalf("registry link should fold spellings, got %d profiles", len(report.Profiles))
	}
	p := report.Profiles[0]
	if p.Name != "Carla Souza" || p.Phone != "+5511999990000" || p.Email != "carla@example.com" {
		t.Errorf("registry fields not applied: %+v", p)
	}
	if p.GenderSource != domain.GenderSourceRegistry || p.RegistryID != "c-1" {
		t.Errorf("expected registry gender and id, got %q / %q", p.GenderSource, p.RegistryID)
	}
	if !p.FirstVisit.Equal(registered) {
		t.Errorf("expected registration date as first visit, got %v", p.FirstVisit)
	}
	if p.Age == nil || *p.Age != 44 {
		t.Errorf("expected age 44, got %v", p.Age)
	}
	// interval still comes from transactions, not the registration date
	if p.AverageIntervalDays > 10 {
		t.Errorf("unexpected interval %.2f", p.AverageIntervalDays)
	}
}

func TestBuildProfiles_IntervalEndsAtLastVisit(t *testing.T) {
	sales := []domain.Sale{
		{ID: "a1", Date: at(1, 10, 0), CustomerName: "Ana", Product: "Lavagem", Value: 15},
		{ID: "a2", Date: at(11, 10, 0), CustomerName: "Ana", Product: "Lavagem", Value: 15},
		{ID: "a3", Date: at(21, 10, 0), CustomerName: "Ana", Product: "Lavagem", Value: 15},
		// moves "today" well past Ana's last visit
		{ID: "b1", Date: at(31, 10, 0), CustomerName: "Beto", Product: "Lavagem", Value: 15},
	}

	report := engine.BuildProfiles(sales, nil, engine.Options{})

	var ana domain.CustomerProfile
	for _, p := range report.Profiles {
		if p.Name == "Ana" {
			ana = p
		}
	}
	if ana.AverageIntervalDays != 10 {
		t.Errorf("expected a 10 day interval, got %.2f", ana.AverageIntervalDays)
	}
	if ana.RecencyDays != 10 {
		t.Errorf("expected recency 10, got %d", ana.RecencyDays)
	}
}

func TestBuildProfiles_SkipsMalformedAndWalkIns(t *testing.T) {
	sales := append(washDrySales(),
		domain.Sale{ID: "x1", CustomerName: "Sem Data", Value: 10},
		domain.Sale{ID: "x2", Date: at(2, 10, 0), CustomerName: "Consumidor Final", Product: "Lavagem", Value: 18},
	)

	report := engine.BuildProfiles(sales, nil, engine.Options{})

	if len(report.Profiles) != 1 {
		t.Errorf("expected only the named customer, got %d", len(report.Profiles))
	}
	if report.Diagnostics.SkippedRecords != 1 {
		t.Errorf("expected 1 skipped record, got %d", report.Diagnostics.SkippedRecords)
	}
}

func TestBuildProfiles_Deterministic(t *testing.T) {
	sales := append(washDrySales(),
		domain.Sale{ID: "b1", Date: at(3, 19, 0), CustomerName: "Bruno", Product: "Máquina 4", Value: 40},
		domain.Sale{ID: "b2", Date: at(5, 2, 0), CustomerName: "Bruno", Product: "Sabão", Value: 6},
	)

	a := engine.BuildProfiles(sales, nil, engine.Options{})
	b := engine.BuildProfiles(sales, nil, engine.Options{})

	if !reflect.DeepEqual(a, b) {
		t.Error("profiles differ between identical runs")
	}
	if len(a.Profiles) != 2 || a.Profiles[0].Key != "BRUNO" {
		t.Errorf("expected profiles sorted by key, got %+v", a.Profiles)
	}
	if a.Diagnostics.UnclassifiedTotal != 1 || !a.Profiles[0].ApproximateBaskets {
		t.Errorf("expected one approximate unclassified sale, got %+v", a.Diagnostics)
	}
}

func TestBuildProfiles_Empty(t *testing.T) {
	report := engine.BuildProfiles(nil, nil, engine.Options{})

	if len(report.Profiles) != 0 || report.Summary.TotalCustomers != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if len(report.Summary.ChurnCounts) != 3 {
		t.Errorf("expected all churn tiers present, got %v", report.Summary.ChurnCounts)
	}
}

func TestShiftOf(t *testing.T) {
	cases := map[int]domain.Shift{
		0: domain.ShiftLateNight, 5: domain.ShiftLateNight, 6: domain.ShiftMorning,
		11: domain.ShiftMorning, 12: domain.ShiftAfternoon, 17: domain.ShiftAfternoon,
		18: domain.ShiftEvening, 23: domain.ShiftEvening,
	}
	for h, want := range cases {
		if got := engine.ShiftOf(at(1, h, 0)); got != want {
			t.Errorf("hour %d: got %s, want %s", h, got, want)
		}
	}
}
