package supabase

import (
	"context"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// ============================================================
// Sales store, items kept in a JSON column
// ============================================================

type saleRow struct {
	ID            string             `json:"id"`
	Date          time.Time          `json:"date"`
	Store         string             `json:"store"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	CustomerID    *string            `json:"customer_id"`
	Product       string             `json:"product"`
	Value         float64            `json:"value"`
	PaymentMethod string             `json:"payment_method"`
	CardBrand     string             `json:"card_brand"`
	Items         []domain.CycleItem `json:"items"`
	BirthDate     *string            `json:"birth_date"`
	Age           *int               `json:"age"`
}

func (r saleRow) toDomain() domain.Sale {
	s := domain.Sale{
		ID:            r.ID,
		Date:          r.Date,
		Store:         r.Store,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Product:       r.Product,
		Value:         r.Value,
		PaymentMethod: r.PaymentMethod,
		CardBrand:     r.CardBrand,
		Items:         r.Items,
		BirthDate:     parseDate(r.BirthDate),
		Age:           r.Age,
	}
	if r.CustomerID != nil {
		s.CustomerID = *r.CustomerID
	}
	return s
}

func saleRowFrom(s domain.Sale) saleRow {
	r := saleRow{
		ID:            s.ID,
		Date:          s.Date,
		Store:         s.Store,
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
		Product:       s.Product,
		Value:         s.Value,
		PaymentMethod: s.PaymentMethod,
		CardBrand:     s.CardBrand,
		Items:         s.Items,
		BirthDate:     formatDate(s.BirthDate),
		Age:           s.Age,
	}
	if r.Items == nil {
		r.Items = []domain.CycleItem{}
	}
	if s.CustomerID != "" {
		id := s.CustomerID
		r.CustomerID = &id
	}
	return r
}

// ListSales returns every sale ordered by date.
func (c *Client) ListSales(ctx context.Context) ([]domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListSales")
	defer span.End()

	rows, err := listAll[saleRow](ctx, c, "sales", "date.asc")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Sale, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// SaveSales upserts sales by id.
func (c *Client) SaveSales(ctx context.Context, sales []domain.Sale) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveSales")
	defer span.End()

	rows := make([]saleRow, len(sales))
	for i, s := range sales {
		rows[i] = saleRowFrom(s)
	}
	return upsert(ctx, c, "sales", rows)
}
