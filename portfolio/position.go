package portfolio

import (
	"sort"
	"time"

	"github.com/rustyeddy/futuresim/pricing"
)

// Direction is +1 for long and -1 for short.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// DirectionOf returns the direction of a signed value; zero is long.
func DirectionOf(v float64) Direction {
	if v < 0 {
		return Short
	}
	return Long
}

// MarginSnapshot is the total margin held for a position on a date.
type MarginSnapshot struct {
	Date   time.Time `json:"date"`
	Margin float64   `json:"margin"`
}

// Position is a directional holding in one market.
type Position struct {
	ID         string    `json:"id"`
	Market     string    `json:"market"`
	Contract   string    `json:"contract"`
	Currency   string    `json:"currency"`
	Direction  Direction `json:"direction"`
	Quantity   int       `json:"quantity"`
	Forecast   float64   `json:"forecast"`
	EntryDate  time.Time `json:"entry_date"`
	EntryPrice float64   `json:"entry_price"`
	ClosedDate time.Time `json:"closed_date,omitempty"`

	margins []MarginSnapshot
	results []OrderResult
}

func (p *Position) Open() bool { return p.ClosedDate.IsZero() }

// Margin returns the latest margin snapshot.
func (p *Position) Margin() float64 {
	if len(p.margins) == 0 {
		return 0
	}
	return p.margins[len(p.margins)-1].Margin
}

// MarginAt returns the margin held at or before date.
func (p *Position) MarginAt(date time.Time) float64 {
	date = pricing.Day(date)
	i := sort.Search(len(p.margins), func(i int) bool { return p.margins[i].Date.After(date) })
	if i == 0 {
		return 0
	}
	return p.margins[i-1].Margin
}

// RecordMargin sets the margin held from date on, replacing a snapshot
// already taken that day.
func (p *Position) RecordMargin(date time.Time, margin float64) {
	date = pricing.Day(date)
	if n := len(p.margins); n > 0 && p.margins[n-1].Date.Equal(date) {
		p.margins[n-1].Margin = margin
		return
	}
	p.margins = append(p.margins, MarginSnapshot{Date: date, Margin: margin})
}

func (p *Position) Margins() []MarginSnapshot {
	return append([]MarginSnapshot(nil), p.margins...)
}

func (p *Position) Results() []OrderResult {
	return append([]OrderResult(nil), p.results...)
}

// Signed is the quantity with the direction applied.
func (p *Position) Signed() int { return p.Quantity * int(p.Direction) }

// OpenedOn returns the executed opening fills booked on date.
func (p *Position) OpenedOn(date time.Time) []OrderResult {
	var out []OrderResult
	for _, r := range p.results {
		if r.Executed() && r.Order.Type.Opening() && pricing.DayKey(r.Date) == pricing.DayKey(date) {
			out = append(out, r)
		}
	}
	return out
}

// ClosedOn returns the contracts closed on date.
func (p *Position) ClosedOn(date time.Time) int {
	n := 0
	for _, r := range p.results {
		if r.Executed() && !r.Order.Type.Opening() && pricing.DayKey(r.Date) == pricing.DayKey(date) {
			n += r.Quantity
		}
	}
	return n
}

// QuantityAtOpen returns the contracts held before the fills of date.
func (p *Position) QuantityAtOpen(date time.Time) int {
	q := p.Quantity + p.ClosedOn(date)
	for _, r := range p.OpenedOn(date) {
		q -= r.Quantity
	}
	return q
}
