// Package engine reconciles laundromat point-of-sale exports into a customer
// behavior model: cycle classification, visit grouping, order enrichment,
// fuzzy order merge, CRM profiles and period segmentation.
//
// Everything in this package is synchronous and free of I/O. Outputs are a pure
// function of the inputs; "today" is always the latest observed timestamp.
package engine

import "time"

// Defaults used when an Options field is left at its zero value.
const (
	DefaultVisitWindow         = 180 * time.Minute
	DefaultEnrichmentWindow    = 120 * time.Minute
	DefaultIntervalDays        = 20.0
	DefaultNewCustomerLookback = 180
	DefaultPriceRangeMin       = 8.0
	DefaultPriceRangeMax       = 25.0
	DefaultFallbackUnitPrice   = 16.0
	DefaultMultiplierThreshold = 1.5
	DefaultDiagnosticsCap      = 20
	DefaultLastVisitsCount     = 5
	DefaultChunkSize           = 2000

	valueTolerance     = 0.05
	mergeTimeTolerance = 5 * time.Minute
)

// Options tunes the heuristics. The zero value is usable.
type Options struct {
	// VisitWindow groups purchases into one visit (basket counting).
	VisitWindow time.Duration
	// EnrichmentWindow is the symmetric window used to attach orders to sales.
	EnrichmentWindow time.Duration
	// DefaultIntervalDays is the assumed cadence of single-visit customers.
	DefaultIntervalDays float64
	// NewCustomerLookbackDays marks a period customer as new when the previous
	// purchase is older than this.
	NewCustomerLookbackDays int

	PriceRangeMin       float64
	PriceRangeMax       float64
	FallbackUnitPrice   float64
	MultiplierThreshold float64

	DiagnosticsCap  int
	LastVisitsCount int

	// ParityStores lists store-name markers whose machines are numbered
	// even = washer, odd = dryer.
	ParityStores []string
	// MultiStore forces store matching on or off during reconciliation.
	// nil detects it from the data.
	MultiStore *bool

	// ChunkSize bounds reconciliation batches; Progress is called after each.
	ChunkSize int
	Progress  func(done, total int)
}

func (o Options) withDefaults() Options {
	if o.VisitWindow <= 0 {
		o.VisitWindow = DefaultVisitWindow
	}
	if o.EnrichmentWindow <= 0 {
		o.EnrichmentWindow = DefaultEnrichmentWindow
	}
	if o.DefaultIntervalDays <= 0 {
		o.DefaultIntervalDays = DefaultIntervalDays
	}
	if o.NewCustomerLookbackDays <= 0 {
		o.NewCustomerLookbackDays = DefaultNewCustomerLookback
	}
	if o.PriceRangeMin <= 0 {
		o.PriceRangeMin = DefaultPriceRangeMin
	}
	if o.PriceRangeMax <= o.PriceRangeMin {
		o.PriceRangeMax = DefaultPriceRangeMax
	}
	if o.FallbackUnitPrice <= 0 {
		o.FallbackUnitPrice = DefaultFallbackUnitPrice
	}
	if o.MultiplierThreshold <= 0 {
		o.MultiplierThreshold = DefaultMultiplierThreshold
	}
	if o.DiagnosticsCap <= 0 {
		o.DiagnosticsCap = DefaultDiagnosticsCap
	}
	if o.LastVisitsCount <= 0 {
		o.LastVisitsCount = DefaultLastVisitsCount
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}
