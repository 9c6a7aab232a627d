package market

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rustyeddy/futuresim/pricing"
)

// VolatilityRecord is one market's realized return statistics on a date.
// Volatilities are daily standard deviations of percentage returns.
type VolatilityRecord struct {
	Date         time.Time
	Market       string
	Return       float64
	Deviation    float64
	MovementVol  float64
	DeviationVol float64
	Correlations map[string]float64
}

// VolatilityTable answers point-in-time volatility and correlation lookups,
// carrying the latest record forward over missing dates.
type VolatilityTable struct {
	markets map[string]*pricing.Timeline[VolatilityRecord]
}

func NewVolatilityTable() *VolatilityTable {
	return &VolatilityTable{markets: make(map[string]*pricing.Timeline[VolatilityRecord])}
}

func (vt *VolatilityTable) Add(rec VolatilityRecord) {
	tl, ok := vt.markets[rec.Market]
	if !ok {
		tl = &pricing.Timeline[VolatilityRecord]{}
		vt.markets[rec.Market] = tl
	}
	tl.Set(rec.Date, rec)
}

// Record returns the latest record for market at or before date.
func (vt *VolatilityTable) Record(market string, date time.Time) (VolatilityRecord, bool) {
	if vt == nil {
		return VolatilityRecord{}, false
	}
	tl, ok := vt.markets[market]
	if !ok {
		return VolatilityRecord{}, false
	}
	return tl.At(date)
}

// Volatility returns the movement volatility of market at date.
func (vt *VolatilityTable) Volatility(market string, date time.Time) (float64, bool) {
	rec, ok := vt.Record(market, date)
	if !ok || rec.MovementVol <= 0 {
		return 0, false
	}
	return rec.MovementVol, true
}

// Correlation returns the correlation between a and b at date. Either side's
// record may hold the pair.
func (vt *VolatilityTable) Correlation(a, b string, date time.Time) (float64, bool) {
	if a == b {
		return 1, true
	}
	if rec, ok := vt.Record(a, date); ok {
		if c, ok := rec.Correlations[b]; ok {
			return c, true
		}
	}
	if rec, ok := vt.Record(b, date); ok {
		if c, ok := rec.Correlations[a]; ok {
			return c, true
		}
	}
	return 0, false
}

func (vt *VolatilityTable) Markets() []string {
	out := make([]string, 0, len(vt.markets))
	for m := range vt.markets {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// BuildVolatilityTable derives records from settle prices over a trailing
// window of daily returns. Correlations use the dates both markets traded.
func BuildVolatilityTable(bars map[string][]pricing.Bar, window int) *VolatilityTable {
	vt := NewVolatilityTable()
	if window < 2 {
		window = 2
	}

	returns := make(map[string]*pricing.Timeline[float64], len(bars))
	var dates []time.Time
	seen := make(map[int64]bool)
	for m, bs := range bars {
		tl := &pricing.Timeline[float64]{}
		for i := 1; i < len(bs); i++ {
			prev := bs[i-1].Settle
			if prev == 0 {
				continue
			}
			d := pricing.Day(bs[i].Date)
			tl.Set(d, (bs[i].Settle-prev)/math.Abs(prev))
			if k := pricing.DayKey(d); !seen[k] {
				seen[k] = true
				dates = append(dates, d)
			}
		}
		returns[m] = tl
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	markets := make([]string, 0, len(returns))
	for m := range returns {
		markets = append(markets, m)
	}
	sort.Strings(markets)

	for di, d := range dates {
		lo := di - window + 1
		if lo < 0 {
			continue
		}
		span := dates[lo : di+1]
		for _, m := range markets {
			r, ok := returns[m].Exact(d)
			if !ok {
				continue
			}
			xs := collect(returns[m], span)
			if len(xs) < 2 {
				continue
			}
			mean, sd := stat.MeanStdDev(xs, nil)
			devs := make([]float64, len(xs))
			for i, x := range xs {
				devs[i] = math.Abs(x - mean)
			}
			rec := VolatilityRecord{
				Date:         d,
				Market:       m,
				Return:       r,
				Deviation:    r - mean,
				MovementVol:  sd,
				DeviationVol: stat.StdDev(devs, nil),
				Correlations: make(map[string]float64),
			}
			for _, o := range markets {
				if o == m {
					continue
				}
				x, y := paired(returns[m], returns[o], span)
				if len(x) < 2 {
					continue
				}
				c := stat.Correlation(x, y, nil)
				if !math.IsNaN(c) {
					rec.Correlations[o] = c
				}
			}
			vt.Add(rec)
		}
	}
	return vt
}

func collect(tl *pricing.Timeline[float64], span []time.Time) []float64 {
	out := make([]float64, 0, len(span))
	for _, d := range span {
		if v, ok := tl.Exact(d); ok {
			out = append(out, v)
		}
	}
	return out
}

func paired(a, b *pricing.Timeline[float64], span []time.Time) ([]float64, []float64) {
	var x, y []float64
	for _, d := range span {
		va, okA := a.Exact(d)
		vb, okB := b.Exact(d)
		if okA && okB {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}
