package engine

import (
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// ReconcileOrders attaches each order, as a cycle item, to the sale closest in
// time within ±EnrichmentWindow that passes the store, customer and value
// filters. Sales are indexed by calendar day and sorted by time, so each order
// costs a binary search plus a short scan.
//
// The input sales are not modified; the enriched copy is returned in
// ReconcileResult.Sales in the original order.
func ReconcileOrders(sales []domain.Sale, orders []domain.Order, opts Options) domain.ReconcileResult {
	opts = opts.withDefaults()

	out := make([]domain.Sale, len(sales))
	attached := make(map[string]struct{})
	for i, s := range sales {
		out[i] = s
		if len(s.Items) > 0 {
			out[i].Items = append([]domain.CycleItem(nil), s.Items...)
		}
		for _, it := range s.Items {
			attached[it.ID] = struct{}{}
		}
	}
	res := domain.ReconcileResult{Sales: out}

	names := make([]string, len(out))
	firsts := make([]string, len(out))
	stores := make([]string, len(out))
	distinctStores := make(map[string]struct{})
	idx := newBucketIndex(func(i int) time.Time { return out[i].Date })
	for i, s := range out {
		if s.Date.IsZero() {
			continue
		}
		names[i] = NormalizeName(s.CustomerName)
		firsts[i] = FirstToken(names[i])
		stores[i] = NormalizeName(s.Store)
		distinctStores[stores[i]] = struct{}{}
		idx.add(dayKey(s.Date), i)
	}
	idx.sortAll()

	multiStore := len(distinctStores) > 1
	if opts.MultiStore != nil {
		multiStore = *opts.MultiStore
	}

	total := len(orders)
	for start := 0; start < total; start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, total)
		for _, o := range orders[start:end] {
			if o.Date.IsZero() || !validValue(o.Value) {
				res.Skipped++
				continue
			}

			// An item lives on one sale only, even when a closer sale shows up later.
			item := orderItem(o)
			if _, ok := attached[item.ID]; ok {
				res.Duplicates++
				continue
			}

			orderName := NormalizeName(o.CustomerName)
			orderFirst := FirstToken(orderName)
			requireName := !IsWalkIn(orderName)
			orderStore := NormalizeName(o.Store)

			accept := func(i int) bool {
				if multiStore && orderStore != "" && stores[i] != orderStore {
					return false
				}
				if requireName && names[i] != orderName && firsts[i] != orderFirst {
					return false
				}
				if o.Value > 0 && out[i].Value > 0 && o.Value > out[i].Value+valueTolerance {
					return false
				}
				return true
			}

			from, to := o.Date.Add(-opts.EnrichmentWindow), o.Date.Add(opts.EnrichmentWindow)
			i, ok := idx.nearest(dayKeys(from, to), o.Date, opts.EnrichmentWindow, accept)
			if !ok {
				res.Unenriched++
				continue
			}

			sale := &out[i]
			sale.Items = append(sale.Items, item)
			attached[item.ID] = struct{}{}
			res.Enriched++
			mergeDemographics(sale, o)
		}
		if opts.Progress != nil {
			opts.Progress(end, total)
		}
	}
	return res
}

func orderItem(o domain.Order) domain.CycleItem {
	return domain.CycleItem{
		ID:        ItemID(o),
		Machine:   o.Machine,
		Service:   o.Service,
		Status:    o.Status,
		StartTime: o.Date,
		Value:     o.Value,
	}
}

func mergeDemographics(s *domain.Sale, o domain.Order) {
	if s.BirthDate == nil && o.BirthDate != nil {
		bd := *o.BirthDate
		s.BirthDate = &bd
	}
	if s.Age == nil && o.Age != nil {
		age := *o.Age
		s.Age = &age
	}
}
