package market

import (
	"sort"
	"time"

	"github.com/rustyeddy/futuresim/pricing"
)

// Roll is a realized switch from one delivery contract to the next.
// Gap is outgoing settle minus incoming settle on the roll date.
type Roll struct {
	Date time.Time
	Gap  float64
	Out  string
	In   string
}

// Series is a continuous price series for one instrument. Data answers for
// committed dates and, as a preview, for dates after the last commit; only
// UpdateData commits a date and only UpdateStudies advances the studies.
type Series interface {
	Instrument() Instrument

	Data(date time.Time) (pricing.Bar, bool)
	Last() (pricing.Bar, bool)
	Before(date time.Time) (pricing.Bar, bool)
	Bars() []pricing.Bar

	UpdateData(date time.Time) (bool, error)
	UpdateStudies(date time.Time)

	Study(name string, date time.Time) (StudyPoint, bool)
	StudySeries(name string) []StudyPoint
	StudyNames() []string
	HasStudy(name string) bool
	HasStudyData() bool

	Margin(date time.Time, pointValue float64) float64
	Contract(date time.Time) (string, bool)
	Rolls() []Roll
}

// core is the committed history and study state shared by every variant.
type core struct {
	inst    Instrument
	bars    []pricing.Bar
	index   map[int64]int
	studies *StudySet
	rolls   []Roll
}

func newCore(inst Instrument, studies *StudySet) core {
	return core{
		inst:    inst,
		index:   make(map[int64]int),
		studies: studies,
	}
}

func (c *core) Instrument() Instrument { return c.inst }

func (c *core) commit(b pricing.Bar) {
	b.Date = pricing.Day(b.Date)
	c.index[pricing.DayKey(b.Date)] = len(c.bars)
	c.bars = append(c.bars, b)
}

func (c *core) committed(date time.Time) (pricing.Bar, bool) {
	i, ok := c.index[pricing.DayKey(date)]
	if !ok {
		return pricing.Bar{}, false
	}
	return c.bars[i], true
}

// pending reports whether date is after the last committed bar.
func (c *core) pending(date time.Time) bool {
	if len(c.bars) == 0 {
		return true
	}
	return pricing.Day(date).After(c.bars[len(c.bars)-1].Date)
}

func (c *core) Last() (pricing.Bar, bool) {
	if len(c.bars) == 0 {
		return pricing.Bar{}, false
	}
	return c.bars[len(c.bars)-1], true
}

// Before returns the last committed bar strictly before date.
func (c *core) Before(date time.Time) (pricing.Bar, bool) {
	date = pricing.Day(date)
	i := sort.Search(len(c.bars), func(i int) bool { return !c.bars[i].Date.Before(date) })
	if i == 0 {
		return pricing.Bar{}, false
	}
	return c.bars[i-1], true
}

func (c *core) Bars() []pricing.Bar {
	out := make([]pricing.Bar, len(c.bars))
	copy(out, c.bars)
	return out
}

func (c *core) UpdateStudies(date time.Time) {
	if b, ok := c.committed(date); ok {
		c.studies.Update(b)
	}
}

func (c *core) Study(name string, date time.Time) (StudyPoint, bool) {
	return c.studies.At(name, date)
}

func (c *core) StudySeries(name string) []StudyPoint { return c.studies.Series(name) }

func (c *core) StudyNames() []string { return c.studies.Names() }

func (c *core) HasStudy(name string) bool { return c.studies.Has(name) }

func (c *core) HasStudyData() bool { return c.studies.Ready() }

func (c *core) Rolls() []Roll {
	out := make([]Roll, len(c.rolls))
	copy(out, c.rolls)
	return out
}

// margin is the per-contract margin at date for the settle given when the
// margin study is not available yet.
func (c *core) margin(date time.Time, pointValue, settle float64) float64 {
	if c.inst.MarginStudy != "" && c.inst.MarginMultiple > 0 {
		if p, ok := c.studies.At(c.inst.MarginStudy, date); ok {
			return p.Value * c.inst.MarginMultiple * pointValue
		}
	}
	if settle < 0 {
		settle = -settle
	}
	return settle * pointValue * DefaultMarginRatio
}

func (c *core) contract(date time.Time) (string, bool) {
	date = pricing.Day(date)
	i := sort.Search(len(c.bars), func(i int) bool { return c.bars[i].Date.After(date) })
	if i == 0 {
		return "", false
	}
	return c.bars[i-1].Contract, true
}
