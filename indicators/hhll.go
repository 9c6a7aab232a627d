package indicators

import "github.com/rustyeddy/futuresim/pricing"

// HHLL tracks the highest high and lowest low of the last period bars.
// With a column other than high/low both sides track that column instead,
// which gives a settle channel.
type HHLL struct {
	name   string
	period int
	hiCol  pricing.Column
	loCol  pricing.Column
	highs  *window
	lows   *window
}

// NewHHLL creates a highest-high/lowest-low channel.
func NewHHLL(name string, column pricing.Column, period int) *HHLL {
	hi, lo := pricing.ColHigh, pricing.ColLow
	switch column {
	case "", pricing.ColHigh, pricing.ColLow:
	default:
		hi, lo = column, column
	}
	return &HHLL{
		name:   name,
		period: period,
		hiCol:  hi,
		loCol:  lo,
		highs:  newWindow(period),
		lows:   newWindow(period),
	}
}

func (h *HHLL) Name() string { return h.name }

func (h *HHLL) Warmup() int { return h.period }

func (h *HHLL) Reset() {
	h.highs.reset()
	h.lows.reset()
}

func (h *HHLL) Update(b pricing.Bar) {
	hi, _ := b.Field(h.hiCol)
	lo, _ := b.Field(h.loCol)
	h.highs.push(hi)
	h.lows.push(lo)
}

func (h *HHLL) Ready() bool { return h.highs.full() }

// Value returns the highest high and the lowest low of the window.
func (h *HHLL) Value() (float64, float64) {
	if !h.Ready() {
		return 0, 0
	}
	return h.highs.max(), h.lows.min()
}
