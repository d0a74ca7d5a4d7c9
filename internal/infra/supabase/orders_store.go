package supabase

import (
	"context"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

type orderRow struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	Store        string    `json:"store"`
	CustomerName string    `json:"customer_name"`
	Machine      string    `json:"machine"`
	Service      string    `json:"service"`
	Status       string    `json:"status"`
	Value        float64   `json:"value"`
	BirthDate    *string   `json:"birth_date"`
	Age          *int      `json:"age"`
	Gender       string    `json:"gender"`
	Source       string    `json:"source"`
}

// ListOrders returns every order ordered by date.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrders")
	defer span.End()

	rows, err := listAll[orderRow](ctx, c, "orders", "date.asc")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, len(rows))
	for i, r := range rows {
		out[i] = domain.Order{
			ID:           r.ID,
			Date:         r.Date,
			Store:        r.Store,
			CustomerName: r.CustomerName,
			Machine:      r.Machine,
			Service:      r.Service,
			Status:       r.Status,
			Value:        r.Value,
			BirthDate:    parseDate(r.BirthDate),
			Age:          r.Age,
			Gender:       r.Gender,
			Source:       r.Source,
		}
	}
	return out, nil
}

// SaveOrders upserts orders by id.
func (c *Client) SaveOrders(ctx context.Context, orders []domain.Order) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveOrders")
	defer span.End()

	rows := make([]orderRow, len(orders))
	for i, o := range orders {
		rows[i] = orderRow{
			ID:           o.ID,
			Date:         o.Date,
			Store:        o.Store,
			CustomerName: o.CustomerName,
			Machine:      o.Machine,
			Service:      o.Service,
			Status:       o.Status,
			Value:        o.Value,
			BirthDate:    formatDate(o.BirthDate),
			Age:          o.Age,
			Gender:       o.Gender,
			Source:       o.Source,
		}
	}
	return upsert(ctx, c, "orders", rows)
}
