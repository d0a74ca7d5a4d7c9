package engine

import (
	"sort"
	"time"
)

// dayKey buckets by calendar date in the timestamp's own location.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// bucketIndex is the bucketed nearest-match utility shared by the order
// reconciler and the fuzzy merge: key -> candidates sorted by time ->
// tolerance filter -> best match. Not safe for concurrent mutation.
type bucketIndex[T any] struct {
	at      func(T) time.Time
	buckets map[string][]T
}

func newBucketIndex[T any](at func(T) time.Time) *bucketIndex[T] {
	return &bucketIndex[T]{at: at, buckets: make(map[string][]T)}
}

// add appends without ordering; call sortAll before querying.
func (b *bucketIndex[T]) add(key string, v T) {
	b.buckets[key] = append(b.buckets[key], v)
}

func (b *bucketIndex[T]) sortAll() {
	for k, list := range b.buckets {
		sort.SliceStable(list, func(i, j int) bool { return b.at(list[i]).Before(b.at(list[j])) })
		b.buckets[k] = list
	}
}

// insert keeps the bucket sorted; equal timestamps keep insertion order.
func (b *bucketIndex[T]) insert(key string, v T) {
	list := b.buckets[key]
	t := b.at(v)
	i := sort.Search(len(list), func(i int) bool { return b.at(list[i]).After(t) })
	list = append(list, v)
	copy(list[i+1:], list[i:])
	list[i] = v
	b.buckets[key] = list
}

// scan visits candidates of key with from <= time <= to in ascending order
// until fn returns false.
func (b *bucketIndex[T]) scan(key string, from, to time.Time, fn func(T) bool) {
	list := b.buckets[key]
	i := sort.Search(len(list), func(i int) bool { return !b.at(list[i]).Before(from) })
	for ; i < len(list); i++ {
		if b.at(list[i]).After(to) {
			return
		}
		if !fn(list[i]) {
			return
		}
	}
}

// nearest returns the accepted candidate closest to at within ±tol across the
// given keys. Ties keep the first one encountered.
func (b *bucketIndex[T]) nearest(keys []string, at time.Time, tol time.Duration, accept func(T) bool) (T, bool) {
	var (
		best     T
		bestDist time.Duration
		found    bool
	)
	from, to := at.Add(-tol), at.Add(tol)
	for _, key := range keys {
		b.scan(key, from, to, func(v T) bool {
			if !accept(v) {
				return true
			}
			d := absDuration(b.at(v).Sub(at))
			if !found || d < bestDist {
				best, bestDist, found = v, d, true
			}
			return true
		})
	}
	return best, found
}

// first returns the earliest accepted candidate within ±tol.
func (b *bucketIndex[T]) first(key string, at time.Time, tol time.Duration, accept func(T) bool) (T, bool) {
	var (
		hit   T
		found bool
	)
	b.scan(key, at.Add(-tol), at.Add(tol), func(v T) bool {
		if accept(v) {
			hit, found = v, true
			return false
		}
		return true
	})
	return hit, found
}

// dayKeys lists the calendar days touched by [from, to].
func dayKeys(from, to time.Time) []string {
	keys := []string{dayKey(from)}
	for d := from; ; {
		d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, d.Location())
		if d.After(to) {
			break
		}
		keys = append(keys, dayKey(d))
	}
	return keys
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
