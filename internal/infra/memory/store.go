// Package memory is an in-process store used by default and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// Store keeps sales, orders and the registry in insertion order and upserts
// by id. Safe for concurrent use; callers receive copies.
type Store struct {
	mu        sync.RWMutex
	sales     []domain.Sale
	salePos   map[string]int
	orders    []domain.Order
	orderPos  map[string]int
	customers []domain.Customer
}

// New creates an empty store.
func New() *Store {
	return &Store{
		salePos:  make(map[string]int),
		orderPos: make(map[string]int),
	}
}

// ListSales returns a copy of every sale.
func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, len(s.sales))
	for i, sale := range s.sales {
		out[i] = sale
		out[i].Items = append([]domain.CycleItem(nil), sale.Items...)
	}
	return out, nil
}

// SaveSales upserts by id. Sales without id are appended.
func (s *Store) SaveSales(_ context.Context, sales []domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sale := range sales {
		sale.Items = append([]domain.CycleItem(nil), sale.Items...)
		if i, ok := s.salePos[sale.ID]; ok && sale.ID != "" {
			s.sales[i] = sale
			continue
		}
		if sale.ID != "" {
			s.salePos[sale.ID] = len(s.sales)
		}
		s.sales = append(s.sales, sale)
	}
	return nil
}

// ListOrders returns a copy of every order.
func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Order(nil), s.orders...), nil
}

// SaveOrders upserts by id. Orders without id are appended.
func (s *Store) SaveOrders(_ context.Context, orders []domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		if i, ok := s.orderPos[o.ID]; ok && o.ID != "" {
			s.orders[i] = o
			continue
		}
		if o.ID != "" {
			s.orderPos[o.ID] = len(s.orders)
		}
		s.orders = append(s.orders, o)
	}
	return nil
}

// ListCustomers returns a copy of the registry.
func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Customer(nil), s.customers...), nil
}

// SetCustomers replaces the registry.
func (s *Store) SetCustomers(customers []domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = append([]domain.Customer(nil), customers...)
}
