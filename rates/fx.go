// Package rates holds the historical FX and interest-rate tables used by the
// account and the broker. Every lookup carries the latest value at or before
// the requested date forward.
package rates

import (
	"strings"
	"time"

	"github.com/rustyeddy/futuresim/pricing"
)

// FX holds FX pair rates. A pair "EURUSD" is quoted as units of USD per EUR.
type FX struct {
	pairs map[string]*pricing.Timeline[float64]
}

func NewFX() *FX {
	return &FX{pairs: make(map[string]*pricing.Timeline[float64])}
}

// Add records the rate for base/quote on date.
func (fx *FX) Add(pair string, date time.Time, rate float64) {
	pair = strings.ToUpper(pair)
	tl, ok := fx.pairs[pair]
	if !ok {
		tl = &pricing.Timeline[float64]{}
		fx.pairs[pair] = tl
	}
	tl.Set(date, rate)
}

// Rate returns how many units of to one unit of from buys at date. The direct
// pair is preferred; the inverse pair is used when only it is known.
func (fx *FX) Rate(from, to string, date time.Time) (float64, bool) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, true
	}
	if tl, ok := fx.pairs[from+to]; ok {
		if r, ok := tl.At(date); ok && r != 0 {
			return r, true
		}
	}
	if tl, ok := fx.pairs[to+from]; ok {
		if r, ok := tl.At(date); ok && r != 0 {
			return 1 / r, true
		}
	}
	return 0, false
}

// Convert converts amount from one currency into another at date. When no
// rate has been published yet the conversion defaults to 1.0.
func (fx *FX) Convert(amount float64, from, to string, date time.Time) float64 {
	if fx == nil {
		return amount
	}
	r, ok := fx.Rate(from, to, date)
	if !ok {
		return amount
	}
	return amount * r
}

// Pairs lists the loaded pair codes.
func (fx *FX) Pairs() []string {
	out := make([]string, 0, len(fx.pairs))
	for p := range fx.pairs {
		out = append(out, p)
	}
	return out
}
