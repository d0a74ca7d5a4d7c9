package domain

import "time"

// ============================================================
// Sales / Cycles / Orders
// ============================================================

// CycleItem is one physical machine run attached to a sale or carried by an order.
type CycleItem struct {
	ID        string    `json:"id"`
	Machine   string    `json:"machine"` // free text, e.g. "Máquina 12"
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	Value     float64   `json:"value"`
}

// Sale is a point-of-sale transaction as exported by the laundromat equipment.
// The customer name is free text and not a stable foreign key.
type Sale struct {
	ID            string      `json:"id"`
	Date          time.Time   `json:"date"`
	Store         string      `json:"store"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	CustomerID    string      `json:"customer_id,omitempty"` // registry link, when the source has one
	Product       string      `json:"product,omitempty"`     // sale-level description
	Value         float64     `json:"value"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	CardBrand     string      `json:"card_brand,omitempty"`
	Items         []CycleItem `json:"items,omitempty"`
	BirthDate     *time.Time  `json:"birth_date,omitempty"`
	Age           *int        `json:"age,omitempty"`
}

// Order is a standalone cycle event from a secondary source (file import or
// remote API). It shares no guaranteed identifier with any Sale.
type Order struct {
	ID           string     `json:"id"`
	Date         time.Time  `json:"date"`
	Store        string     `json:"store"`
	CustomerName string     `json:"customer_name"`
	Machine      string     `json:"machine"`
	Service      string     `json:"service"`
	Status       string     `json:"status"`
	Value        float64    `json:"value"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Age          *int       `json:"age,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	Source       string     `json:"source,omitempty"` // file, api
}

// Placeholder values written by importers when a field is unknown.
const (
	StatusUnknown  = "unknown"
	ServiceUnknown = "unknown"
)

// IsPlaceholder reports whether a free-text order field carries no information.
func IsPlaceholder(v string) bool {
	switch v {
	case "", StatusUnknown, "-", "N/A", "n/a", "desconhecido", "Desconhecido":
		return true
	}
	return false
}
