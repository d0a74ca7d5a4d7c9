package engine

import (
	"math"
	"sort"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// PriceReference holds the unit cycle prices used to infer basket counts.
type PriceReference struct {
	global    float64
	byStore   map[string]float64
	threshold float64
}

// NewPriceReference derives the global unit price as the 10th percentile of
// single-cycle-range sale values, and per store the minimum in-range value.
func NewPriceReference(sales []domain.Sale, opts Options) *PriceReference {
	opts = opts.withDefaults()
	p := &PriceReference{
		global:    opts.FallbackUnitPrice,
		byStore:   make(map[string]float64),
		threshold: opts.MultiplierThreshold,
	}

	var inRange []float64
	for _, s := range sales {
		if !validValue(s.Value) || s.Value < opts.PriceRangeMin || s.Value > opts.PriceRangeMax {
			continue
		}
		inRange = append(inRange, s.Value)
		key := NormalizeName(s.Store)
		if cur, ok := p.byStore[key]; !ok || s.Value < cur {
			p.byStore[key] = s.Value
		}
	}
	if len(inRange) > 0 {
		sort.Float64s(inRange)
		idx := int(math.Ceil(0.10*float64(len(inRange)))) - 1
		if idx < 0 {
			idx = 0
		}
		if v := inRange[idx]; v > 0 {
			p.global = v
		}
	}
	return p
}

// UnitPrice prefers the store reference over the global one. Never zero.
func (p *PriceReference) UnitPrice(store string) float64 {
	if v, ok := p.byStore[NormalizeName(store)]; ok && v > 0 {
		return v
	}
	return p.global
}

// Baskets is an inferred wash/dry count.
type Baskets struct {
	Washes      int
	Dries       int
	Approximate bool
}

// Estimate infers how many baskets a sale value represents given the text
// classification. Unclassified values are split between wash (ceil) and dry
// (floor) and flagged approximate.
func (p *PriceReference) Estimate(value float64, store string, c Classification) Baskets {
	if !validValue(value) || value <= 0 {
		return Baskets{}
	}
	unit := p.UnitPrice(store)
	n := int(math.Round(value / unit))
	if n < 0 {
		n = 0
	}

	switch {
	case c.IsWash && c.IsDry:
		return Baskets{Washes: 1, Dries: 1}
	case c.IsWash:
		if value > unit*p.threshold {
			return Baskets{Washes: max(n, 1)}
		}
		return Baskets{Washes: 1}
	case c.IsDry:
		if value > unit*p.threshold {
			return Baskets{Dries: max(n, 1)}
		}
		return Baskets{Dries: 1}
	}
	if n == 0 {
		return Baskets{}
	}
	return Baskets{Washes: (n + 1) / 2, Dries: n / 2, Approximate: true}
}

// SaleCycles is the per-sale wash/dry breakdown used by profiles and segments.
type SaleCycles struct {
	Washes       int
	Dries        int
	Cycles       int
	Approximate  bool
	Unclassified bool
	Tag          string
}

// cycleCounter combines the classifier and the price reference.
type cycleCounter struct {
	classifier *Classifier
	prices     *PriceReference
}

// Count classifies every attached item; a sale without items is classified
// from its own description and sized by the basket estimator. Retail product
// items are not cycles.
func (cc cycleCounter) Count(s domain.Sale) SaleCycles {
	if len(s.Items) > 0 {
		var out SaleCycles
		products := 0
		for _, it := range s.Items {
			c := cc.classifier.Classify(CycleInput{Service: it.Service, Machine: it.Machine, Store: s.Store})
			if c.Unclassified() && (IsProduct(it.Service) || IsProduct(it.Machine)) {
				products++
				continue
			}
			out.Cycles++
			if c.IsWash {
				out.Washes++
			}
			if c.IsDry {
				out.Dries++
			}
		}
		if out.Washes+out.Dries > out.Cycles {
			// combo items count once per direction
			out.Cycles = out.Washes + out.Dries
		}
		switch {
		case out.Washes > 0 || out.Dries > 0:
		case out.Cycles == 0 && products > 0:
			out.Tag = domain.TagProductSale
		default:
			out.Unclassified = true
			out.Tag = domain.TagUnknownMachine
		}
		return out
	}

	c := cc.classifier.Classify(CycleInput{Service: s.Product, Store: s.Store})
	if c.Unclassified() && IsProduct(s.Product) {
		return SaleCycles{Tag: domain.TagProductSale}
	}
	b := cc.prices.Estimate(s.Value, s.Store, c)
	out := SaleCycles{
		Washes:       b.Washes,
		Dries:        b.Dries,
		Cycles:       b.Washes + b.Dries,
		Approximate:  b.Approximate,
		Unclassified: c.Unclassified(),
	}
	switch {
	case out.Cycles == 0 && (!validValue(s.Value) || s.Value <= 0):
		out.Tag = domain.TagNoMachineLink
	case out.Cycles == 0:
		out.Tag = domain.TagLowValue
	case b.Approximate:
		out.Tag = domain.TagNoMachineLink
	}
	return out
}

func validValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
