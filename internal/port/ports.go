// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the engine and the
// service layer from concrete persistence and transport implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// SaleStore persists point-of-sale transactions, enriched items included.
type SaleStore interface {
	ListSales(ctx context.Context) ([]domain.Sale, error)
	// SaveSales upserts by sale ID.
	SaveSales(ctx context.Context, sales []domain.Sale) error
}

// OrderStore persists standalone cycle orders.
type OrderStore interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	// SaveOrders upserts by order ID.
	SaveOrders(ctx context.Context, orders []domain.Order) error
}

// CustomerRegistry is the optional authoritative customer list.
type CustomerRegistry interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// POSFetcher pulls new records from the remote point-of-sale API.
type POSFetcher interface {
	FetchSales(ctx context.Context, since time.Time) ([]domain.Sale, error)
	FetchOrders(ctx context.Context, since time.Time) ([]domain.Order, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
