package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/rustyeddy/futuresim/pricing"
)

// The batch functions recompute a study from scratch over a full history.
// Output slices are aligned with the input; entries before index period-1
// are zero. They are used to verify the streaming studies and to rebuild a
// study series offline.

func checkPeriod(n, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if n < period {
		return fmt.Errorf("not enough values: need %d, got %d", period, n)
	}
	return nil
}

// Column extracts one column from bars.
func Column(bars []pricing.Bar, c pricing.Column) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.Field(c)
	}
	return out
}

// TrueRanges returns the true range of every bar.
func TrueRanges(bars []pricing.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			out[i] = b.TrueRange(0, false)
			continue
		}
		out[i] = b.TrueRange(bars[i-1].Settle, true)
	}
	return out
}

// SMA is the simple moving average of values.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(len(values), period); err != nil {
		return nil, err
	}
	return talib.Sma(values, period), nil
}

// EMA is the SMA-seeded exponential moving average of values.
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(len(values), period); err != nil {
		return nil, err
	}
	return talib.Ema(values, period), nil
}

// ATRBatch is the exponential average of the true range of bars.
func ATRBatch(bars []pricing.Bar, period int) ([]float64, error) {
	return EMA(TrueRanges(bars), period)
}

// Highest is the rolling maximum of values.
func Highest(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(len(values), period); err != nil {
		return nil, err
	}
	return talib.Max(values, period), nil
}

// Lowest is the rolling minimum of values.
func Lowest(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(len(values), period); err != nil {
		return nil, err
	}
	return talib.Min(values, period), nil
}
