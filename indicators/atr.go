package indicators

import "github.com/rustyeddy/futuresim/pricing"

// ATR is a streaming average true range: an exponential average of the
// daily true range with smoothing 2/(period+1). The first bar has no
// previous settle and contributes high-low.
type ATR struct {
	ema        *ExponentialMA
	prevSettle float64
	hasPrev    bool
}

// NewATR creates an average true range over period bars.
func NewATR(name string, period int) *ATR {
	return &ATR{ema: NewEMA(name, pricing.ColSettle, period)}
}

func (a *ATR) Name() string { return a.ema.name }

func (a *ATR) Warmup() int { return a.ema.period }

func (a *ATR) Reset() {
	a.ema.Reset()
	a.prevSettle = 0
	a.hasPrev = false
}

func (a *ATR) Update(b pricing.Bar) {
	a.ema.add(b.TrueRange(a.prevSettle, a.hasPrev))
	a.prevSettle = b.Settle
	a.hasPrev = true
}

func (a *ATR) Ready() bool { return a.ema.Ready() }

func (a *ATR) Value() (float64, float64) { return a.ema.Value() }
