package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/futuresim/indicators"
	"github.com/rustyeddy/futuresim/pricing"
)

// VendorSeries replays a continuous feed the data vendor has already
// back-adjusted. Rolls come from the vendor and need no local stitching.
type VendorSeries struct {
	core
	feed        map[int64]pricing.Bar
	vendorRolls []Roll
	nextRoll    int
}

// NewVendorSeries builds a series over feed. Rolls reported by the vendor are
// released as the series passes their dates; without them a roll with zero
// gap is recorded whenever the feed's contract code changes.
func NewVendorSeries(inst Instrument, feed []pricing.Bar, rolls []Roll, studies []indicators.Spec) (*VendorSeries, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	set, err := NewStudySet(studies)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inst.Code, err)
	}

	s := &VendorSeries{
		core: newCore(inst, set),
		feed: make(map[int64]pricing.Bar, len(feed)),
	}
	for _, b := range feed {
		b.Date = pricing.Day(b.Date)
		s.feed[pricing.DayKey(b.Date)] = b
	}
	s.vendorRolls = make([]Roll, len(rolls))
	copy(s.vendorRolls, rolls)
	for i := range s.vendorRolls {
		s.vendorRolls[i].Date = pricing.Day(s.vendorRolls[i].Date)
	}
	sort.SliceStable(s.vendorRolls, func(i, j int) bool {
		return s.vendorRolls[i].Date.Before(s.vendorRolls[j].Date)
	})
	return s, nil
}

func (s *VendorSeries) Data(date time.Time) (pricing.Bar, bool) {
	if b, ok := s.committed(date); ok {
		return b, true
	}
	if !s.pending(date) {
		return pricing.Bar{}, false
	}
	b, ok := s.feed[pricing.DayKey(date)]
	return b, ok
}

func (s *VendorSeries) UpdateData(date time.Time) (bool, error) {
	date = pricing.Day(date)
	if !s.pending(date) {
		return false, nil
	}

	for s.nextRoll < len(s.vendorRolls) && !s.vendorRolls[s.nextRoll].Date.After(date) {
		s.rolls = append(s.rolls, s.vendorRolls[s.nextRoll])
		s.nextRoll++
	}

	b, ok := s.feed[pricing.DayKey(date)]
	if !ok {
		return false, nil
	}
	if prev, ok := s.Last(); ok && len(s.vendorRolls) == 0 && prev.Contract != b.Contract {
		s.rolls = append(s.rolls, Roll{Date: date, Out: prev.Contract, In: b.Contract})
	}
	s.commit(b)
	delete(s.feed, pricing.DayKey(date))
	return true, nil
}

func (s *VendorSeries) Margin(date time.Time, pointValue float64) float64 {
	b, _ := s.Data(date)
	if b.Settle == 0 {
		b, _ = s.Last()
	}
	return s.margin(date, pointValue, b.Settle)
}

func (s *VendorSeries) Contract(date time.Time) (string, bool) {
	if s.pending(date) {
		if b, ok := s.feed[pricing.DayKey(date)]; ok {
			return b.Contract, true
		}
	}
	return s.contract(date)
}
