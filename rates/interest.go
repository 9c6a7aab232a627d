package rates

import (
	"strings"
	"time"

	"github.com/rustyeddy/futuresim/pricing"
)

// Tenor selects an interest-rate series.
type Tenor string

const (
	Immediate  Tenor = "immediate"
	ThreeMonth Tenor = "three_month"
)

// Interest holds per-currency benchmark rates in percent per annum.
type Interest struct {
	series map[string]map[Tenor]*pricing.Timeline[float64]
}

func NewInterest() *Interest {
	return &Interest{series: make(map[string]map[Tenor]*pricing.Timeline[float64])}
}

// Add records a benchmark rate for currency and tenor on date.
func (in *Interest) Add(currency string, tenor Tenor, date time.Time, pct float64) {
	currency = strings.ToUpper(currency)
	byTenor, ok := in.series[currency]
	if !ok {
		byTenor = make(map[Tenor]*pricing.Timeline[float64])
		in.series[currency] = byTenor
	}
	tl, ok := byTenor[tenor]
	if !ok {
		tl = &pricing.Timeline[float64]{}
		byTenor[tenor] = tl
	}
	tl.Set(date, pct)
}

// Benchmark returns the rate for currency at date. A missing series or date
// yields zero.
func (in *Interest) Benchmark(currency string, tenor Tenor, date time.Time) float64 {
	if in == nil {
		return 0
	}
	tl, ok := in.series[strings.ToUpper(currency)][tenor]
	if !ok {
		return 0
	}
	v, _ := tl.At(date)
	return v
}

// DailyAmount is the interest accrued for one day on the part of balance
// above minimum, at rate percent per annum.
func DailyAmount(balance, minimum, ratePct float64) float64 {
	return (balance - minimum) * ratePct / 100 / 365
}
