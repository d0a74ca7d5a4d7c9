package engine

import (
	"math"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// MergeOrders folds an incoming order batch into an existing collection when
// the two sources share no stable key.
//
// Orders are bucketed by (calendar day, machine without leading zeros). An
// incoming order is the same as an existing one when values differ by at most
// 0.05 and times by at most 5 minutes; the first such candidate wins. Matches
// only fill fields the existing record is missing; unmatched orders are
// appended and indexed at once so duplicates inside the batch are caught too.
// Existing records keep their position. Merging the same batch twice changes
// nothing the second time.
func MergeOrders(existing, incoming []domain.Order) domain.MergeResult {
	out := make([]domain.Order, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	idx := newBucketIndex(func(i int) time.Time { return out[i].Date })
	for i, o := range out {
		if o.Date.IsZero() {
			continue
		}
		idx.add(mergeKey(o), i)
	}
	idx.sortAll()

	var res domain.MergeResult
	changed := make(map[int]struct{})
	var changedOrder []int

	markChanged := func(i int) {
		if _, ok := changed[i]; ok {
			return
		}
		changed[i] = struct{}{}
		changedOrder = append(changedOrder, i)
	}

	for _, in := range incoming {
		if in.Date.IsZero() || !validValue(in.Value) {
			res.Skipped++
			continue
		}
		i, ok := idx.first(mergeKey(in), in.Date, mergeTimeTolerance, func(i int) bool {
			return math.Abs(out[i].Value-in.Value) <= valueTolerance+1e-9
		})
		if ok {
			if fillMissing(&out[i], in) {
				res.Updated++
				markChanged(i)
			} else {
				res.Unchanged++
			}
			continue
		}

		o := in
		o.ID = ItemID(in)
		out = append(out, o)
		n := len(out) - 1
		idx.insert(mergeKey(o), n)
		res.Added++
		markChanged(n)
	}

	res.Orders = out
	for _, i := range changedOrder {
		res.Changed = append(res.Changed, out[i])
	}
	return res
}

func mergeKey(o domain.Order) string {
	return dayKey(o.Date) + "|" + normalizeMachine(o.Machine)
}

// fillMissing copies fields the existing record lacks. A populated field is
// never overwritten, and a placeholder never replaces anything.
func fillMissing(dst *domain.Order, src domain.Order) bool {
	updated := false
	if domain.IsPlaceholder(dst.Status) && !domain.IsPlaceholder(src.Status) {
		dst.Status = src.Status
		updated = true
	}
	if domain.IsPlaceholder(dst.Service) && !domain.IsPlaceholder(src.Service) {
		dst.Service = src.Service
		updated = true
	}
	if IsWalkIn(dst.CustomerName) && !IsWalkIn(src.CustomerName) {
		dst.CustomerName = src.CustomerName
		updated = true
	}
	if dst.Store == "" && src.Store != "" {
		dst.Store = src.Store
		updated = true
	}
	if dst.Gender == "" && src.Gender != "" {
		dst.Gender = src.Gender
		updated = true
	}
	if dst.BirthDate == nil && src.BirthDate != nil {
		bd := *src.BirthDate
		dst.BirthDate = &bd
		updated = true
	}
	if dst.Age == nil && src.Age != nil {
		age := *src.Age
		dst.Age = &age
		updated = true
	}
	return updated
}
