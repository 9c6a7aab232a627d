package pricing

import (
	"sort"
	"time"
)

// Timeline is a date-ordered sequence of values with last-value-carried-forward
// lookup. Dates are normalized to UTC midnights.
type Timeline[T any] struct {
	dates  []time.Time
	values []T
}

// Set records v at date, replacing any value already recorded on that date.
// Appending in date order is O(1); out-of-order inserts shift the tail.
func (tl *Timeline[T]) Set(date time.Time, v T) {
	date = Day(date)
	n := len(tl.dates)
	if n == 0 || tl.dates[n-1].Before(date) {
		tl.dates = append(tl.dates, date)
		tl.values = append(tl.values, v)
		return
	}
	i := sort.Search(n, func(i int) bool { return !tl.dates[i].Before(date) })
	if i < n && tl.dates[i].Equal(date) {
		tl.values[i] = v
		return
	}
	var zero T
	tl.dates = append(tl.dates, time.Time{})
	tl.values = append(tl.values, zero)
	copy(tl.dates[i+1:], tl.dates[i:])
	copy(tl.values[i+1:], tl.values[i:])
	tl.dates[i] = date
	tl.values[i] = v
}

// At returns the latest value recorded at or before date.
func (tl *Timeline[T]) At(date time.Time) (T, bool) {
	date = Day(date)
	i := sort.Search(len(tl.dates), func(i int) bool { return tl.dates[i].After(date) })
	if i == 0 {
		var zero T
		return zero, false
	}
	return tl.values[i-1], true
}

// Before returns the latest value recorded strictly before date.
func (tl *Timeline[T]) Before(date time.Time) (T, time.Time, bool) {
	date = Day(date)
	i := sort.Search(len(tl.dates), func(i int) bool { return !tl.dates[i].Before(date) })
	if i == 0 {
		var zero T
		return zero, time.Time{}, false
	}
	return tl.values[i-1], tl.dates[i-1], true
}

// Exact returns the value recorded on date itself.
func (tl *Timeline[T]) Exact(date time.Time) (T, bool) {
	date = Day(date)
	i := sort.Search(len(tl.dates), func(i int) bool { return !tl.dates[i].Before(date) })
	if i < len(tl.dates) && tl.dates[i].Equal(date) {
		return tl.values[i], true
	}
	var zero T
	return zero, false
}

// Last returns the most recent entry.
func (tl *Timeline[T]) Last() (time.Time, T, bool) {
	n := len(tl.dates)
	if n == 0 {
		var zero T
		return time.Time{}, zero, false
	}
	return tl.dates[n-1], tl.values[n-1], true
}

func (tl *Timeline[T]) Len() int { return len(tl.dates) }

// Each calls fn for every entry in date order.
func (tl *Timeline[T]) Each(fn func(date time.Time, v T)) {
	for i, d := range tl.dates {
		fn(d, tl.values[i])
	}
}
