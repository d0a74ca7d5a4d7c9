package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
)

func writeFixture(t *testing.T, dir, name string, v any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newCLI() (*cli, *bytes.Buffer) {
	var out bytes.Buffer
	return &cli{opts: engine.Options{}, stdout: &out, logger: zap.NewNop()}, &out
}

func fixtures(t *testing.T) (salesPath, ordersPath string) {
	t.Helper()
	dir := t.TempDir()
	day := func(d, h, m int) time.Time { return time.Date(2024, 5, d, h, m, 0, 0, time.UTC) }
	salesPath = writeFixture(t, dir, "sales.json", []domain.Sale{
		{ID: "s1", Date: day(1, 10, 0), Store: "Centro", CustomerName: "Ana Souza", Value: 20},
		{ID: "s2", Date: day(15, 10, 0), Store: "Centro", CustomerName: "Ana Souza", Value: 20},
		{ID: "s3", Date: day(16, 9, 0), Store: "Centro", CustomerName: "Ana Sousa", Value: 20},
	})
	ordersPath = writeFixture(t, dir, "orders.json", []domain.Order{
		{ID: "o1", Date: day(1, 10, 1), Store: "Centro", CustomerName: "Ana Souza", Machine: "Lavadora 1", Service: "Lavagem", Value: 20},
	})
	return salesPath, ordersPath
}

func TestRun_UnknownCommand(t *testing.T) {
	c, _ := newCLI()
	if err := c.run("explode", nil); err != errUsage {
		t.Errorf("expected errUsage, got %v", err)
	}
}

func TestReconcile_WritesEnrichedSales(t *testing.T) {
	salesPath, ordersPath := fixtures(t)
	outPath := filepath.Join(t.TempDir(), "enriched.json")
	c, out := newCLI()

	if err := c.run("reconcile", []string{"-sales", salesPath, "-orders", ordersPath, "-out", outPath}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res domain.ReconcileResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode stdout: %v", err)
	}
	if res.Enriched != 1 {
		t.Errorf("expected 1 enriched, got %+v", res)
	}

	var enriched []domain.Sale
	if err := readJSON(outPath, &enriched); err != nil {
		t.Fatalf("read out: %v", err)
	}
	if len(enriched) != 3 || len(enriched[0].Items) != 1 {
		t.Errorf("expected item on first sale, got %+v", enriched)
	}
}

func TestReconcile_MissingFlags(t *testing.T) {
	c, _ := newCLI()
	if err := c.run("reconcile", nil); err == nil {
		t.Error("expected error without -sales/-orders")
	}
}

func TestMerge_MissingExistingFile(t *testing.T) {
	_, ordersPath := fixtures(t)
	c, out := newCLI()

	err := c.run("merge", []string{"-orders", filepath.Join(t.TempDir(), "none.json"), "-incoming", ordersPath})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res domain.MergeResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("expected 1 added, got %+v", res)
	}
}

func TestProfiles(t *testing.T) {
	salesPath, ordersPath := fixtures(t)
	c, out := newCLI()

	if err := c.run("profiles", []string{"-sales", salesPath, "-orders", ordersPath}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got profilesOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Summary.TotalCustomers != 2 {
		t.Errorf("expected 2 customers (Souza and Sousa stay apart), got %d", got.Summary.TotalCustomers)
	}
}

func TestSegments_InvalidPeriod(t *testing.T) {
	salesPath, _ := fixtures(t)
	c, _ := newCLI()

	err := c.run("segments", []string{"-sales", salesPath, "-start", "2024-05-10", "-end", "2024-05-01"})
	if err == nil {
		t.Error("expected error for inverted period")
	}
}

func TestSegments(t *testing.T) {
	salesPath, _ := fixtures(t)
	c, out := newCLI()

	if err := c.run("segments", []string{"-sales", salesPath, "-start", "2024-05-10", "-end", "2024-06-01"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stats domain.PeriodStats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.ActiveCustomers != 2 || stats.ReturningCustomers != 1 {
		t.Errorf("unexpected stats: active=%d returning=%d", stats.ActiveCustomers, stats.ReturningCustomers)
	}
}

func TestAliases(t *testing.T) {
	salesPath, _ := fixtures(t)
	c, out := newCLI()

	if err := c.run("aliases", []string{"-sales", salesPath}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []domain.AliasSuggestion
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].A != "ANA SOUSA" || got[0].B != "ANA SOUZA" || got[0].Distance != 1 {
		t.Errorf("unexpected suggestions: %+v", got)
	}
}
