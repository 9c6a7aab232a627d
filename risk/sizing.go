// Package risk turns market candidates into integer contract sizes using a
// fixed-risk rule or a volatility target with equal or correlation weights.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnknownMethod = errors.New("unknown position sizing method")
	ErrUnknownFlavor = errors.New("unknown correlation flavor")
)

// Method selects the sizing algorithm.
type Method string

const (
	MethodFixedRisk         Method = "fixed-risk"
	MethodEqualWeight       Method = "equal-weight"
	MethodCorrelationWeight Method = "correlation-weight"
)

// Flavor selects how correlation weights are built.
type Flavor string

const (
	FlavorEqual Flavor = "equal"
	FlavorGroup Flavor = "group"
)

const (
	// DefaultForecastConstant is the forecast strength of an average signal.
	DefaultForecastConstant = 10.0
	// DefaultMaxDM caps the diversification multiplier.
	DefaultMaxDM = 2.5
	// tradingDaysRoot converts annual volatility to daily (sqrt of 256).
	tradingDaysRoot = 16.0
)

// Params configures a sizer. Fractions are plain ratios (0.25 is 25%).
type Params struct {
	Method Method `json:"method" yaml:"method"`

	// RiskFactor is the share of capital risked per ATR move (fixed-risk).
	RiskFactor float64 `json:"risk_factor" yaml:"risk_factor"`
	// UseCorrelation applies correlation weights to fixed-risk sizes.
	UseCorrelation bool `json:"use_correlation" yaml:"use_correlation"`

	// VolTarget is the annualized volatility target.
	VolTarget        float64 `json:"vol_target" yaml:"vol_target"`
	ForecastConstant float64 `json:"forecast_constant" yaml:"forecast_constant"`
	Flavor           Flavor  `json:"flavor" yaml:"flavor"`
	MaxDM            float64 `json:"max_dm" yaml:"max_dm"`
}

// Validate reports configuration errors. They are fatal at startup.
func (p Params) Validate() error {
	switch p.Method {
	case MethodFixedRisk:
		if p.RiskFactor <= 0 {
			return fmt.Errorf("%s: risk_factor must be positive", p.Method)
		}
	case MethodEqualWeight, MethodCorrelationWeight:
		if p.VolTarget <= 0 {
			return fmt.Errorf("%s: vol_target must be positive", p.Method)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, p.Method)
	}
	switch p.Flavor {
	case "", FlavorEqual, FlavorGroup:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFlavor, p.Flavor)
	}
	return nil
}

func (p Params) forecastConstant() float64 {
	if p.ForecastConstant > 0 {
		return p.ForecastConstant
	}
	return DefaultForecastConstant
}

func (p Params) maxDM() float64 {
	if p.MaxDM > 0 {
		return p.MaxDM
	}
	return DefaultMaxDM
}

// Candidate is one market's sizing inputs on a date.
type Candidate struct {
	Market string
	// Price is the current settle.
	Price float64
	// PointValue is the value of a one point move in the base currency.
	PointValue float64
	ATR        float64
	// Volatility is the daily standard deviation of percentage returns.
	Volatility float64
	// Volume caps the absolute size.
	Volume   float64
	Forecast float64
}

// direction is the sign of the forecast; a zero forecast sizes long.
func (c Candidate) direction() float64 {
	if c.Forecast < 0 {
		return -1
	}
	return 1
}

// Correlator answers pairwise correlations at a date.
type Correlator interface {
	Correlation(a, b string, date time.Time) (float64, bool)
}

// Inputs is one sizing request.
type Inputs struct {
	Date       time.Time
	Capital    float64
	Candidates []Candidate
}

// Result holds the final sizes and the intermediate values that produced them.
type Result struct {
	Sizes   map[string]int
	Raw     map[string]float64
	Weights map[string]float64
	DM      float64
	Dropped []string
}

// Sizer computes position sizes.
type Sizer interface {
	Size(in Inputs) Result
}

// New returns the sizer p selects. corr may be nil unless correlations are used.
func New(p Params, corr Correlator) (Sizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Method {
	case MethodFixedRisk:
		return FixedRisk{Params: p, Corr: corr}, nil
	case MethodEqualWeight:
		return EqualWeight{Params: p}, nil
	default:
		return CorrelationWeight{Params: p, Corr: corr}, nil
	}
}

// ParseMethod accepts the configured spelling of a method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodFixedRisk, MethodEqualWeight, MethodCorrelationWeight:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// fractional reports a size strictly between zero and one contract.
func fractional(v float64) bool {
	a := math.Abs(v)
	return a > 0 && a < 1
}

// reduce is the fixed-point loop shared by every sizer. compute sizes the
// current set; drop names the members to remove when the set is not clean.
// The loop stops once drop returns nothing or would empty the set, and never
// runs more rounds than there are candidates.
func reduce(cands []Candidate, compute func([]Candidate) map[string]float64, drop func([]Candidate, map[string]float64) []int) ([]Candidate, map[string]float64, []string) {
	set := append([]Candidate(nil), cands...)
	var dropped []string
	raw := compute(set)
	for round := 0; round < len(cands); round++ {
		bad := drop(set, raw)
		if len(bad) == 0 || len(bad) >= len(set) {
			break
		}
		next := make([]Candidate, 0, len(set)-len(bad))
		skip := make(map[int]bool, len(bad))
		for _, i := range bad {
			skip[i] = true
			dropped = append(dropped, set[i].Market)
		}
		for i, c := range set {
			if !skip[i] {
				next = append(next, c)
			}
		}
		set = next
		raw = compute(set)
	}
	return set, raw, dropped
}

// finalize truncates raw sizes to whole contracts and keeps |size| >= 1.
func finalize(raw map[string]float64) map[string]int {
	out := make(map[string]int, len(raw))
	for m, v := range raw {
		n := int(v)
		if n != 0 {
			out[m] = n
		}
	}
	return out
}

func markets(set []Candidate) []string {
	out := make([]string, len(set))
	for i, c := range set {
		out[i] = c.Market
	}
	return out
}

// lowest returns the index of the member with the smallest key, ties broken
// by market name so runs are deterministic.
func lowest(set []Candidate, key func(Candidate) float64) int {
	idx := make([]int, len(set))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := key(set[idx[a]]), key(set[idx[b]])
		if ka != kb {
			return ka < kb
		}
		return set[idx[a]].Market < set[idx[b]].Market
	})
	return idx[0]
}
