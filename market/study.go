package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/futuresim/indicators"
	"github.com/rustyeddy/futuresim/pricing"
)

// StudyPoint is one computed study value.
type StudyPoint struct {
	Date   time.Time
	Value  float64
	Value2 float64
}

type studySeries struct {
	ind    indicators.Indicator
	points []StudyPoint
	index  map[int64]int
}

// StudySet holds the configured studies of one series and their history.
type StudySet struct {
	order  []string
	byName map[string]*studySeries
	last   time.Time
}

// NewStudySet builds every study in specs. Names must be unique.
func NewStudySet(specs []indicators.Spec) (*StudySet, error) {
	s := &StudySet{byName: make(map[string]*studySeries, len(specs))}
	for _, spec := range specs {
		ind, err := indicators.New(spec)
		if err != nil {
			return nil, err
		}
		name := ind.Name()
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("study %q configured twice", name)
		}
		s.order = append(s.order, name)
		s.byName[name] = &studySeries{ind: ind, index: make(map[int64]int)}
	}
	return s, nil
}

// Update feeds one committed bar to every study. A date is consumed once.
func (s *StudySet) Update(b pricing.Bar) {
	date := pricing.Day(b.Date)
	if !s.last.IsZero() && !date.After(s.last) {
		return
	}
	s.last = date

	for _, name := range s.order {
		ss := s.byName[name]
		ss.ind.Update(b)
		if !ss.ind.Ready() {
			continue
		}
		v1, v2 := ss.ind.Value()
		ss.index[pricing.DayKey(date)] = len(ss.points)
		ss.points = append(ss.points, StudyPoint{Date: date, Value: v1, Value2: v2})
	}
}

// Has reports whether a study called name is configured.
func (s *StudySet) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// At returns the value of study name on date, or the latest one before it.
func (s *StudySet) At(name string, date time.Time) (StudyPoint, bool) {
	ss, ok := s.byName[name]
	if !ok || len(ss.points) == 0 {
		return StudyPoint{}, false
	}
	if i, ok := ss.index[pricing.DayKey(date)]; ok {
		return ss.points[i], true
	}
	date = pricing.Day(date)
	i := sort.Search(len(ss.points), func(i int) bool { return ss.points[i].Date.After(date) })
	if i == 0 {
		return StudyPoint{}, false
	}
	return ss.points[i-1], true
}

// Series returns a copy of the history of study name.
func (s *StudySet) Series(name string) []StudyPoint {
	ss, ok := s.byName[name]
	if !ok {
		return nil
	}
	out := make([]StudyPoint, len(ss.points))
	copy(out, ss.points)
	return out
}

// Names lists the studies in configuration order.
func (s *StudySet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Ready reports whether every study has accumulated its full window.
func (s *StudySet) Ready() bool {
	for _, ss := range s.byName {
		if !ss.ind.Ready() {
			return false
		}
	}
	return true
}
