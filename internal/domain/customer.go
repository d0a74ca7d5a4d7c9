package domain

import "time"

// ============================================================
// Customer registry / CRM profile
// ============================================================

// Customer is an authoritative record from the external customer registry.
type Customer struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	Gender       string     `json:"gender,omitempty"` // F, M
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	CPF          string     `json:"cpf,omitempty"`
	Email        string     `json:"email,omitempty"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
}

// ChurnRisk is the three-tier overdue classification of a customer.
type ChurnRisk string

const (
	ChurnLow    ChurnRisk = "low"
	ChurnMedium ChurnRisk = "medium"
	ChurnHigh   ChurnRisk = "high"
)

// Shift is a coarse hour-of-day bucket.
type Shift string

const (
	ShiftMorning   Shift = "morning"    // 06:00-11:59
	ShiftAfternoon Shift = "afternoon"  // 12:00-17:59
	ShiftEvening   Shift = "evening"    // 18:00-23:59
	ShiftLateNight Shift = "late_night" // 00:00-05:59
)

// Gender sources.
const (
	GenderSourceRegistry = "registry"
	GenderSourceInferred = "inferred"
)

// SlotCount is how often a customer bought in a given weekday + shift slot.
type SlotCount struct {
	Day   time.Weekday `json:"day"`
	Shift Shift        `json:"shift"`
	Count int          `json:"count"`
}

// VisitSummary is the per-visit breakdown exposed in a profile.
type VisitSummary struct {
	Start        time.Time `json:"start"`
	Value        float64   `json:"value"`
	Washes       int       `json:"washes"`
	Dries        int       `json:"dries"`
	Transactions int       `json:"transactions"`
}

// CustomerProfile is the all-time aggregate of one customer identity.
type CustomerProfile struct {
	Key                 string         `json:"key"` // normalized name
	Name                string         `json:"name"`
	Phone               string         `json:"phone,omitempty"`
	TotalSpent          float64        `json:"total_spent"`
	TotalTransactions   int            `json:"total_transactions"`
	TotalVisits         int            `json:"total_visits"`
	TotalWashes         int            `json:"total_washes"`
	TotalDries          int            `json:"total_dries"`
	TotalCycles         int            `json:"total_cycles"`
	TotalBaskets        int            `json:"total_baskets"`
	ApproximateBaskets  bool           `json:"approximate_baskets"`
	AverageTicket       float64        `json:"average_ticket"`
	FirstVisit          time.Time      `json:"first_visit"`
	LastVisit           time.Time      `json:"last_visit"`
	RecencyDays         int            `json:"recency_days"`
	// AverageIntervalDays spans first to last transaction divided by
	// (visits - 1). The span ends at the last visit, not at the report date.
	AverageIntervalDays float64        `json:"average_interval_days"`
	ChurnRisk           ChurnRisk      `json:"churn_risk"`
	NextVisitPrediction time.Time      `json:"next_visit_prediction"`
	TopDay              *time.Weekday  `json:"top_day,omitempty"`
	TopShift            Shift          `json:"top_shift,omitempty"`
	TopSlots            []SlotCount    `json:"top_slots"`
	PreferredStore      string         `json:"preferred_store,omitempty"`
	LastVisits          []VisitSummary `json:"last_visits"`
	Gender              string         `json:"gender,omitempty"`
	GenderSource        string         `json:"gender_source,omitempty"`
	Age                 *int           `json:"age,omitempty"`
	RegisteredAt        *time.Time     `json:"registered_at,omitempty"`
	CPF                 string         `json:"cpf,omitempty"`
	Email               string         `json:"email,omitempty"`
	RegistryID          string         `json:"registry_id,omitempty"`
}

// TierCounts holds counts over the 30/60/90-day horizons.
type TierCounts struct {
	Days30 int `json:"days_30"`
	Days60 int `json:"days_60"`
	Days90 int `json:"days_90"`
}

// CrmSummary aggregates every profile of a dataset.
type CrmSummary struct {
	Today             time.Time         `json:"today"` // max observed timestamp
	TotalCustomers    int               `json:"total_customers"`
	ChurnCounts       map[ChurnRisk]int `json:"churn_counts"`
	Active            TierCounts        `json:"active"`
	New               TierCounts        `json:"new"`
	Recurring         TierCounts        `json:"recurring"`
	TotalRevenue      float64           `json:"total_revenue"`
	TotalVisits       int               `json:"total_visits"`
	AverageTicket     float64           `json:"average_ticket"`
	TotalWashes       int               `json:"total_washes"`
	TotalDries        int               `json:"total_dries"`
	ConversionRatePct float64           `json:"conversion_rate_pct"` // dries per 100 washes
}

// AliasSuggestion flags two customer identities that are likely the same person.
type AliasSuggestion struct {
	A        string `json:"a"`
	B        string `json:"b"`
	Distance int    `json:"distance"`
}
