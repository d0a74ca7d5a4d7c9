package domain

import "time"

// ============================================================
// Period segmentation
// ============================================================

// Segment is the usage pattern of a customer within a reporting period.
type Segment string

const (
	SegmentOnlyWash     Segment = "only_wash"
	SegmentOnlyDry      Segment = "only_dry"
	SegmentWashAndDry   Segment = "wash_and_dry"
	SegmentUnclassified Segment = "unclassified"
)

// Diagnostic tags attached to unclassified customers.
const (
	TagProductSale    = "product_sale"
	TagNoMachineLink  = "no_machine_link"
	TagLowValue       = "low_value"
	TagUnknownMachine = "unknown_machine"
)

// Period is a half-open reporting window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// SegmentedCustomer is a period-scoped outreach record.
type SegmentedCustomer struct {
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Washes    int       `json:"washes"`
	Dries     int       `json:"dries"`
	Spent     float64   `json:"spent"`
	Visits    int       `json:"visits"`
	LastVisit time.Time `json:"last_visit"`
	IsNew     bool      `json:"is_new"`
	Balanced  bool      `json:"balanced,omitempty"`
	DebugTag  string    `json:"debug_tag,omitempty"`
}

// SegmentGroup holds the members of one segment.
type SegmentGroup struct {
	Count     int                 `json:"count"`
	Customers []SegmentedCustomer `json:"customers"`
}

// PeriodStats is the output of the period segmentation report.
type PeriodStats struct {
	Period             Period                   `json:"period"`
	ActiveCustomers    int                      `json:"active_customers"`
	NewCustomers       int                      `json:"new_customers"`
	ReturningCustomers int                      `json:"returning_customers"`
	Segments           map[Segment]SegmentGroup `json:"segments"`
	BalancedCustomers  int                      `json:"balanced_customers"`
	Revenue            float64                  `json:"revenue"`
	Visits             int                      `json:"visits"`
	AverageTicket      float64                  `json:"average_ticket"`
	AverageLTV         float64                  `json:"average_ltv"`
	TotalWashes        int                      `json:"total_washes"`
	TotalDries         int                      `json:"total_dries"`
	Diagnostics        Diagnostics              `json:"diagnostics"`
}

// ============================================================
// Reconciliation / merge / diagnostics
// ============================================================

// ReconcileResult reports how many orders were attached to sales.
type ReconcileResult struct {
	Sales      []Sale `json:"-"`
	Enriched   int    `json:"enriched"`
	Unenriched int    `json:"unenriched"`
	Duplicates int    `json:"duplicates"` // item already attached to some sale
	Skipped    int    `json:"skipped"`
}

// MergeResult reports the outcome of a fuzzy merge of an order batch.
type MergeResult struct {
	Orders    []Order `json:"-"`
	Added     int     `json:"added"`
	Updated   int     `json:"updated"`
	Unchanged int     `json:"unchanged"`
	Skipped   int     `json:"skipped"`
	// Changed lists the orders (new or updated) a store has to persist.
	Changed []Order `json:"-"`
}

// SyncResult reports a pull from the point-of-sale API.
type SyncResult struct {
	Since  time.Time   `json:"since"`
	Sales  int         `json:"sales"`
	Orders MergeResult `json:"orders"`
}

// UnclassifiedCycle describes a sale whose cycles could not be classified.
type UnclassifiedCycle struct {
	SaleID   string    `json:"sale_id"`
	Date     time.Time `json:"date"`
	Store    string    `json:"store"`
	Customer string    `json:"customer"`
	Machine  string    `json:"machine,omitempty"`
	Service  string    `json:"service,omitempty"`
	Value    float64   `json:"value"`
}

// Diagnostics is the bounded visibility list returned with every computation.
type Diagnostics struct {
	Unclassified      []UnclassifiedCycle `json:"unclassified"`
	UnclassifiedTotal int                 `json:"unclassified_total"`
	ApproximateSales  int                 `json:"approximate_sales"`
	SkippedRecords    int                 `json:"skipped_records"`
}
