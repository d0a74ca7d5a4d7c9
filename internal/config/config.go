package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/boddenberg/lavanderia-crm-go/internal/engine"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSupabase = "supabase"
	BackendMySQL    = "mysql"
)

// Config holds all application configuration.
// Values are loaded from environment variables (and an optional .env file)
// with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence
	StoreBackend       string
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	MySQLDSN           string

	// Remote point of sale
	POSAPIURL   string
	POSAPIToken string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Engine heuristics
	VisitWindow              time.Duration
	EnrichmentWindow         time.Duration
	ChurnDefaultIntervalDays float64
	NewCustomerLookbackDays  int
	ParityStores             []string
	ReconcileChunkSize       int
	MultiStore               string // auto, true, false
}

// Load reads configuration. Precedence: environment, then .env in the
// working directory, then defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("store_backend", BackendMemory)
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.SetDefault("supabase_service_role_key", "")
	v.SetDefault("mysql_dsn", "")
	v.SetDefault("pos_api_url", "")
	v.SetDefault("pos_api_token", "")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("initial_backoff", 100*time.Millisecond)
	v.SetDefault("max_concurrency", 8)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.SetDefault("visit_window", engine.DefaultVisitWindow)
	v.SetDefault("enrichment_window", engine.DefaultEnrichmentWindow)
	v.SetDefault("churn_default_interval_days", engine.DefaultIntervalDays)
	v.SetDefault("new_customer_lookback_days", engine.DefaultNewCustomerLookback)
	v.SetDefault("parity_stores", "")
	v.SetDefault("reconcile_chunk_size", engine.DefaultChunkSize)
	v.SetDefault("multi_store", "auto")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := readDotEnv(v, ".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     v.GetInt("port"),
		LogLevel: v.GetString("log_level"),

		StoreBackend:       strings.ToLower(v.GetString("store_backend")),
		SupabaseURL:        v.GetString("supabase_url"),
		SupabaseAnonKey:    v.GetString("supabase_anon_key"),
		SupabaseServiceKey: v.GetString("supabase_service_role_key"),
		MySQLDSN:           v.GetString("mysql_dsn"),

		POSAPIURL:   v.GetString("pos_api_url"),
		POSAPIToken: v.GetString("pos_api_token"),

		HTTPTimeout: v.GetDuration("http_timeout"),

		MaxRetries:     v.GetInt("max_retries"),
		InitialBackoff: v.GetDuration("initial_backoff"),
		MaxConcurrency: v.GetInt("max_concurrency"),

		CacheTTL: v.GetDuration("cache_ttl"),

		OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),

		VisitWindow:              v.GetDuration("visit_window"),
		EnrichmentWindow:         v.GetDuration("enrichment_window"),
		ChurnDefaultIntervalDays: v.GetFloat64("churn_default_interval_days"),
		NewCustomerLookbackDays:  v.GetInt("new_customer_lookback_days"),
		ParityStores:             splitList(v.GetString("parity_stores")),
		ReconcileChunkSize:       v.GetInt("reconcile_chunk_size"),
		MultiStore:               strings.ToLower(v.GetString("multi_store")),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("config: STORE_BACKEND=supabase requires SUPABASE_URL")
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("config: STORE_BACKEND=mysql requires MYSQL_DSN")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.MultiStore {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("config: MULTI_STORE must be auto, true or false, got %q", c.MultiStore)
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	return nil
}

// EngineOptions maps the heuristic settings onto engine.Options.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.Options{
		VisitWindow:             c.VisitWindow,
		EnrichmentWindow:        c.EnrichmentWindow,
		DefaultIntervalDays:     c.ChurnDefaultIntervalDays,
		NewCustomerLookbackDays: c.NewCustomerLookbackDays,
		ParityStores:            c.ParityStores,
		ChunkSize:               c.ReconcileChunkSize,
	}
	switch c.MultiStore {
	case "true":
		on := true
		opts.MultiStore = &on
	case "false":
		off := false
		opts.MultiStore = &off
	}
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
