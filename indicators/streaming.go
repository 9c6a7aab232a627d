package indicators

import "github.com/rustyeddy/futuresim/pricing"

// SimpleMA is a streaming simple moving average with a running sum.
type SimpleMA struct {
	name   string
	column pricing.Column
	period int
	win    *window
	sum    float64
}

// NewSMA creates a simple moving average over column with the given period.
func NewSMA(name string, column pricing.Column, period int) *SimpleMA {
	return &SimpleMA{
		name:   name,
		column: column,
		period: period,
		win:    newWindow(period),
	}
}

func (m *SimpleMA) Name() string { return m.name }

func (m *SimpleMA) Warmup() int { return m.period }

func (m *SimpleMA) Reset() {
	m.win.reset()
	m.sum = 0
}

func (m *SimpleMA) Update(b pricing.Bar) {
	v, _ := b.Field(m.column)
	if old, ok := m.win.push(v); ok {
		m.sum -= old
	}
	m.sum += v
}

func (m *SimpleMA) Ready() bool { return m.win.full() }

func (m *SimpleMA) Value() (float64, float64) {
	if !m.Ready() {
		return 0, 0
	}
	return m.sum / float64(m.period), 0
}

// ExponentialMA is a streaming exponential moving average. It is seeded with
// the simple average of the first period values and keeps only the previous
// EMA afterwards.
type ExponentialMA struct {
	name       string
	column     pricing.Column
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates an exponential moving average with smoothing 2/(period+1).
func NewEMA(name string, column pricing.Column, period int) *ExponentialMA {
	return &ExponentialMA{
		name:       name,
		column:     column,
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string { return e.name }

func (e *ExponentialMA) Warmup() int { return e.period }

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(b pricing.Bar) {
	v, _ := b.Field(e.column)
	e.add(v)
}

func (e *ExponentialMA) add(v float64) {
	if e.count < e.period {
		e.warmupSum += v
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool { return e.count >= e.period }

func (e *ExponentialMA) Value() (float64, float64) {
	if !e.Ready() {
		return 0, 0
	}
	return e.ema, 0
}
