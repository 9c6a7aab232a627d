// Package timer is the simulation day clock. It walks the business days of a
// date range and dispatches the daily events to registered listeners.
package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/futuresim/pricing"
)

var ErrNoBusinessDays = errors.New("no business days in range")

// Event is a point in the simulated day.
type Event string

const (
	MarketOpen  Event = "MARKET_OPEN"
	MarketClose Event = "MARKET_CLOSE"
	EODData     Event = "EOD_DATA"
	Complete    Event = "COMPLETE"
)

// daily is the fixed dispatch order within one day.
var daily = []Event{MarketOpen, MarketClose, EODData}

// Listener handles one event. prev is the previous business day, zero on the
// first day. For Complete both dates are the last day.
type Listener func(date, prev time.Time) error

// Timer holds its own listener registry, so independent runs never share
// listeners.
type Timer struct {
	log       zerolog.Logger
	listeners map[Event][]Listener
	current   time.Time
}

func New(log zerolog.Logger) *Timer {
	return &Timer{
		log:       log.With().Str("component", "timer").Logger(),
		listeners: make(map[Event][]Listener),
	}
}

// On registers l for e. Listeners run in registration order.
func (t *Timer) On(e Event, l Listener) {
	t.listeners[e] = append(t.listeners[e], l)
}

// Current is the day being dispatched, zero outside Start.
func (t *Timer) Current() time.Time { return t.current }

func (t *Timer) dispatch(e Event, date, prev time.Time) error {
	for i, l := range t.listeners[e] {
		if err := l(date, prev); err != nil {
			return fmt.Errorf("%s %s listener %d: %w", e, date.Format(pricing.DateLayout), i, err)
		}
	}
	return nil
}

// Start runs every business day from start to end inclusive, then fires
// Complete. The first listener error stops the run and is returned.
func (t *Timer) Start(start, end time.Time) error {
	days := pricing.BusinessDays(start, end)
	if len(days) == 0 {
		return fmt.Errorf("%w: %s to %s", ErrNoBusinessDays,
			pricing.Day(start).Format(pricing.DateLayout), pricing.Day(end).Format(pricing.DateLayout))
	}
	defer func() { t.current = time.Time{} }()

	var prev time.Time
	for _, d := range days {
		t.current = d
		t.log.Debug().Time("date", d).Msg("day")
		for _, e := range daily {
			if err := t.dispatch(e, d, prev); err != nil {
				return err
			}
		}
		prev = d
	}
	last := days[len(days)-1]
	return t.dispatch(Complete, last, last)
}
