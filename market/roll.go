package market

import (
	"strings"
	"time"

	"github.com/rustyeddy/futuresim/pricing"
)

// ContractBook is the raw per-contract data a roll strategy may inspect.
type ContractBook interface {
	// Contracts lists the known contract codes in delivery order.
	Contracts() []string
	// Bar returns the raw bar of contract on date.
	Bar(contract string, date time.Time) (pricing.Bar, bool)
}

// RollStrategy picks the contract a continuous series holds on a date.
type RollStrategy interface {
	Select(date time.Time, current string, book ContractBook) string
}

// RollSchedule is a calendar roll rule. A contract is held until Day of the
// month MonthOffset months from its delivery month (-1 is the month before
// delivery). Months restricts the cycle to the given month letters, e.g.
// "HMUZ"; empty means every listed contract.
type RollSchedule struct {
	Months      string `json:"months,omitempty" yaml:"months,omitempty"`
	MonthOffset int    `json:"month_offset" yaml:"month_offset"`
	Day         int    `json:"day" yaml:"day"`
}

// RollDate returns the date contract rolls out under the schedule.
func (rs RollSchedule) RollDate(contract string) (time.Time, bool) {
	delivery, err := DeliveryMonth(contract)
	if err != nil {
		return time.Time{}, false
	}
	day := rs.Day
	if day <= 0 {
		day = 1
	}
	m := delivery.AddDate(0, rs.MonthOffset, 0)
	return pricing.Date(m.Year(), m.Month(), day), true
}

func (rs RollSchedule) inCycle(contract string) bool {
	if rs.Months == "" {
		return true
	}
	return strings.IndexByte(strings.ToUpper(rs.Months), MonthLetter(contract)) >= 0
}

// CalendarRoll holds the first in-cycle contract whose roll date is after
// the current date. It never rolls back to an earlier delivery.
type CalendarRoll struct {
	Schedule RollSchedule
}

func (r CalendarRoll) Select(date time.Time, current string, book ContractBook) string {
	date = pricing.Day(date)
	next := ""
	for _, c := range book.Contracts() {
		if !r.Schedule.inCycle(c) {
			continue
		}
		rd, ok := r.Schedule.RollDate(c)
		if !ok || !rd.After(date) {
			continue
		}
		next = c
		break
	}
	if next == "" {
		return current
	}
	if current != "" && laterDelivery(current, next) {
		return current
	}
	return next
}

// OptimalRoll rolls on the calendar schedule, but into the first contract
// due after the roll window whose volume clears Threshold. When none clears
// it the highest-volume candidate is taken.
type OptimalRoll struct {
	Schedule  RollSchedule
	Threshold float64
}

func (r OptimalRoll) Select(date time.Time, current string, book ContractBook) string {
	cal := CalendarRoll{Schedule: r.Schedule}.Select(date, current, book)
	if current == "" || cal == current {
		return cal
	}

	date = pricing.Day(date)
	best, bestVol := "", -1.0
	for _, c := range book.Contracts() {
		if !r.Schedule.inCycle(c) || !laterDelivery(c, current) {
			continue
		}
		rd, ok := r.Schedule.RollDate(c)
		if !ok || !rd.After(date) {
			continue
		}
		b, ok := book.Bar(c, date)
		if !ok {
			continue
		}
		if b.Volume >= r.Threshold {
			return c
		}
		if b.Volume > bestVol {
			best, bestVol = c, b.Volume
		}
	}
	if best == "" {
		return current
	}
	return best
}

// laterDelivery reports whether a is delivered after b.
func laterDelivery(a, b string) bool {
	da, errA := DeliveryMonth(a)
	db, errB := DeliveryMonth(b)
	if errA != nil || errB != nil {
		return a > b
	}
	return da.After(db)
}
