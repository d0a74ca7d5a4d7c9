package config_test

import (
	"testing"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/config"
	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8080 || cfg.LogLevel != "info" {
		t.Errorf("unexpected server defaults: %d %q", cfg.Port, cfg.LogLevel)
	}
	if cfg.StoreBackend != config.BackendMemory {
		t.Errorf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if cfg.VisitWindow != engine.DefaultVisitWindow || cfg.EnrichmentWindow != engine.DefaultEnrichmentWindow {
		t.Errorf("unexpected windows: %v %v", cfg.VisitWindow, cfg.EnrichmentWindow)
	}
	if cfg.MaxConcurrency != 8 || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected concurrency/cache defaults: %d %v", cfg.MaxConcurrency, cfg.CacheTTL)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VISIT_WINDOW", "90m")
	t.Setenv("PARITY_STORES", "centro, Vila Nova ,")
	t.Setenv("MULTI_STORE", "false")
	t.Setenv("CHURN_DEFAULT_INTERVAL_DAYS", "14")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 || cfg.VisitWindow != 90*time.Minute {
		t.Errorf("env not applied: %d %v", cfg.Port, cfg.VisitWindow)
	}
	if len(cfg.ParityStores) != 2 || cfg.ParityStores[1] != "Vila Nova" {
		t.Errorf("unexpected parity stores: %q", cfg.ParityStores)
	}

	opts := cfg.EngineOptions()
	if opts.MultiStore == nil || *opts.MultiStore {
		t.Errorf("expected multi-store forced off, got %v", opts.MultiStore)
	}
	if opts.DefaultIntervalDays != 14 || opts.VisitWindow != 90*time.Minute {
		t.Errorf("unexpected engine options: %+v", opts)
	}
}

func TestLoad_AutoMultiStoreLeavesDetection(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EngineOptions().MultiStore != nil {
		t.Error("auto must leave MultiStore nil")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":       {"STORE_BACKEND": "oracle"},
		"supabase without url":  {"STORE_BACKEND": "supabase"},
		"mysql without dsn":     {"STORE_BACKEND": "mysql"},
		"bad multi store value": {"MULTI_STORE": "sometimes"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := config.Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
