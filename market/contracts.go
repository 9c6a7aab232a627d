package market

import (
	"fmt"
	"time"

	"github.com/rustyeddy/futuresim/indicators"
	"github.com/rustyeddy/futuresim/pricing"
)

// ContractSeries stitches a continuous series from individual delivery
// contracts. Prices are forward adjusted: every bar after a roll carries the
// cumulative gap of all earlier rolls, so committed history never changes.
type ContractSeries struct {
	core
	raw       map[string]*pricing.Timeline[pricing.Bar]
	contracts []string
	strategy  RollStrategy
	active    string
	cumGap    float64
}

// NewContractSeries builds a series from raw per-contract bars. Every bar
// must carry its contract code.
func NewContractSeries(inst Instrument, bars []pricing.Bar, strategy RollStrategy, studies []indicators.Spec) (*ContractSeries, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf("%s: no roll strategy", inst.Code)
	}
	set, err := NewStudySet(studies)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inst.Code, err)
	}

	s := &ContractSeries{
		core:     newCore(inst, set),
		raw:      make(map[string]*pricing.Timeline[pricing.Bar]),
		strategy: strategy,
	}
	for _, b := range bars {
		if b.Contract == "" {
			return nil, fmt.Errorf("%s: bar on %s has no contract", inst.Code, b.Date.Format(pricing.DateLayout))
		}
		if _, err := DeliveryMonth(b.Contract); err != nil {
			return nil, fmt.Errorf("%s: %w", inst.Code, err)
		}
		tl, ok := s.raw[b.Contract]
		if !ok {
			tl = &pricing.Timeline[pricing.Bar]{}
			s.raw[b.Contract] = tl
			s.contracts = append(s.contracts, b.Contract)
		}
		tl.Set(b.Date, b)
	}
	SortContracts(s.contracts)
	return s, nil
}

// Contracts lists the contracts whose raw data is still held.
func (s *ContractSeries) Contracts() []string {
	out := make([]string, 0, len(s.contracts))
	for _, c := range s.contracts {
		if _, ok := s.raw[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Bar returns the unadjusted bar of contract on date.
func (s *ContractSeries) Bar(contract string, date time.Time) (pricing.Bar, bool) {
	tl, ok := s.raw[contract]
	if !ok {
		return pricing.Bar{}, false
	}
	return tl.Exact(date)
}

type resolved struct {
	bar    pricing.Bar
	roll   *Roll
	active string
	cumGap float64
}

// resolve computes the adjusted bar for date without changing any state.
func (s *ContractSeries) resolve(date time.Time) (resolved, bool) {
	date = pricing.Day(date)
	sel := s.strategy.Select(date, s.active, s)
	if sel == "" {
		return resolved{}, false
	}

	if s.active == "" || sel == s.active {
		active := sel
		b, ok := s.Bar(active, date)
		if !ok {
			return resolved{}, false
		}
		return resolved{bar: b.Shift(s.cumGap), active: active, cumGap: s.cumGap}, true
	}

	in, ok := s.Bar(sel, date)
	if !ok {
		// Incoming contract has not traded yet; stay in the old one.
		b, ok := s.Bar(s.active, date)
		if !ok {
			return resolved{}, false
		}
		return resolved{bar: b.Shift(s.cumGap), active: s.active, cumGap: s.cumGap}, true
	}
	out, ok := s.Bar(s.active, date)
	if !ok {
		tl := s.raw[s.active]
		if tl == nil {
			return resolved{}, false
		}
		if out, ok = tl.At(date); !ok {
			return resolved{}, false
		}
	}

	gap := out.Settle - in.Settle
	cum := s.cumGap + gap
	return resolved{
		bar:    in.Shift(cum),
		roll:   &Roll{Date: date, Gap: gap, Out: s.active, In: sel},
		active: sel,
		cumGap: cum,
	}, true
}

func (s *ContractSeries) Data(date time.Time) (pricing.Bar, bool) {
	if b, ok := s.committed(date); ok {
		return b, true
	}
	if !s.pending(date) {
		return pricing.Bar{}, false
	}
	r, ok := s.resolve(date)
	return r.bar, ok
}

func (s *ContractSeries) UpdateData(date time.Time) (bool, error) {
	date = pricing.Day(date)
	if !s.pending(date) {
		return false, nil
	}
	r, ok := s.resolve(date)
	if !ok {
		return false, nil
	}
	if r.roll != nil {
		s.rolls = append(s.rolls, *r.roll)
		s.prune(r.active)
	}
	s.active = r.active
	s.cumGap = r.cumGap
	s.commit(r.bar)
	return true, nil
}

// prune drops the raw data of every contract delivering before front,
// including contracts the roll skipped over.
func (s *ContractSeries) prune(front string) {
	for i, c := range s.contracts {
		if c == front {
			s.contracts = s.contracts[i:]
			return
		}
		delete(s.raw, c)
	}
}

func (s *ContractSeries) Margin(date time.Time, pointValue float64) float64 {
	b, _ := s.Data(date)
	if b.Settle == 0 {
		b, _ = s.Last()
	}
	return s.margin(date, pointValue, b.Settle)
}

func (s *ContractSeries) Contract(date time.Time) (string, bool) {
	if s.pending(date) {
		if r, ok := s.resolve(date); ok {
			return r.active, true
		}
	}
	return s.contract(date)
}

// CumulativeGap is the adjustment currently added to raw prices.
func (s *ContractSeries) CumulativeGap() float64 { return s.cumGap }
