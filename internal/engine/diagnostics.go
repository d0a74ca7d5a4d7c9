package engine

import (
	"sort"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// diagnostics collects unclassified cycles up to a cap and counts the rest.
type diagnostics struct {
	cap int
	d   domain.Diagnostics
}

func newDiagnostics(limit int) *diagnostics {
	return &diagnostics{cap: limit, d: domain.Diagnostics{Unclassified: []domain.UnclassifiedCycle{}}}
}

func (g *diagnostics) unclassified(s domain.Sale) {
	g.d.UnclassifiedTotal++
	if len(g.d.Unclassified) >= g.cap {
		return
	}
	u := domain.UnclassifiedCycle{
		SaleID:   s.ID,
		Date:     s.Date,
		Store:    s.Store,
		Customer: s.CustomerName,
		Service:  s.Product,
		Value:    s.Value,
	}
	if len(s.Items) > 0 {
		u.Machine = s.Items[0].Machine
		u.Service = s.Items[0].Service
	}
	g.d.Unclassified = append(g.d.Unclassified, u)
}

func (g *diagnostics) result() domain.Diagnostics { return g.d }

// MergeDiagnostics combines shard diagnostics, keeping the cap and a stable
// order (by date, then sale id).
func MergeDiagnostics(limit int, parts ...domain.Diagnostics) domain.Diagnostics {
	if limit <= 0 {
		limit = DefaultDiagnosticsCap
	}
	out := domain.Diagnostics{Unclassified: []domain.UnclassifiedCycle{}}
	for _, p := range parts {
		out.UnclassifiedTotal += p.UnclassifiedTotal
		out.ApproximateSales += p.ApproximateSales
		out.SkippedRecords += p.SkippedRecords
		out.Unclassified = append(out.Unclassified, p.Unclassified...)
	}
	sort.SliceStable(out.Unclassified, func(i, j int) bool {
		a, b := out.Unclassified[i], out.Unclassified[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.SaleID < b.SaleID
	})
	if len(out.Unclassified) > limit {
		out.Unclassified = out.Unclassified[:limit]
	}
	return out
}
