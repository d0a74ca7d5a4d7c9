package engine

import (
	"sort"
	"time"
)

// Entry is one transaction as seen by the visit segmenter.
type Entry struct {
	Ref    string // sale or order id
	Time   time.Time
	Value  float64
	Washes int
	Dries  int
}

// Visit is a time-windowed cluster of one customer's purchases.
type Visit struct {
	Start   time.Time
	Value   float64
	Washes  int
	Dries   int
	Members []Entry
}

// SegmentVisits sorts the entries by time and groups them into visits.
//
// An entry joins the current visit when it falls within window of the visit's
// FIRST entry; the window is not re-armed by later purchases. Basket counting
// uses DefaultVisitWindow, cross-source matching uses DefaultEnrichmentWindow.
// The input slice is not modified.
func SegmentVisits(entries []Entry, window time.Duration) []Visit {
	if len(entries) == 0 {
		return nil
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	visits := make([]Visit, 0, len(sorted))
	for _, e := range sorted {
		if n := len(visits); n > 0 {
			cur := &visits[n-1]
			if d := e.Time.Sub(cur.Start); d >= 0 && d <= window {
				cur.add(e)
				continue
			}
		}
		v := Visit{Start: e.Time}
		v.add(e)
		visits = append(visits, v)
	}
	return visits
}

func (v *Visit) add(e Entry) {
	v.Value += e.Value
	v.Washes += e.Washes
	v.Dries += e.Dries
	v.Members = append(v.Members, e)
}
