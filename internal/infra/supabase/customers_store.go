package supabase

import (
	"context"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

type customerRow struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Gender       string     `json:"gender"`
	RegisteredAt *time.Time `json:"registered_at"`
	CPF          string     `json:"cpf"`
	Email        string     `json:"email"`
	BirthDate    *string    `json:"birth_date"`
}

// ListCustomers returns the registry ordered by name.
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCustomers")
	defer span.End()

	rows, err := listAll[customerRow](ctx, c, "customers", "name.asc")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Customer, len(rows))
	for i, r := range rows {
		out[i] = domain.Customer{
			ID:           r.ID,
			Name:         r.Name,
			Phone:        r.Phone,
			Gender:       r.Gender,
			RegisteredAt: r.RegisteredAt,
			CPF:          r.CPF,
			Email:        r.Email,
			BirthDate:    parseDate(r.BirthDate),
		}
	}
	return out, nil
}
