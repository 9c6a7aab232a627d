package pricing

import "time"

// Bar is one daily OHLC record for a futures contract or a continuous series.
type Bar struct {
	Date     time.Time
	Contract string

	Open   float64
	High   float64
	Low    float64
	Settle float64

	Volume float64
}

// Column names a price field of a Bar. Studies are configured by column.
type Column string

const (
	ColOpen   Column = "open"
	ColHigh   Column = "high"
	ColLow    Column = "low"
	ColSettle Column = "settle"
	ColVolume Column = "volume"
)

// Field returns the value of column c, and false for an unknown column.
func (b Bar) Field(c Column) (float64, bool) {
	switch c {
	case ColOpen:
		return b.Open, true
	case ColHigh:
		return b.High, true
	case ColLow:
		return b.Low, true
	case ColSettle, "close", "":
		return b.Settle, true
	case ColVolume:
		return b.Volume, true
	}
	return 0, false
}

// Shift returns a copy of b with every price field moved by delta.
// Volume is left alone.
func (b Bar) Shift(delta float64) Bar {
	b.Open += delta
	b.High += delta
	b.Low += delta
	b.Settle += delta
	return b
}

// TrueRange is the greatest of high-low, |high-prevSettle| and |low-prevSettle|.
// Without a previous settle it is high-low.
func (b Bar) TrueRange(prevSettle float64, hasPrev bool) float64 {
	tr := b.High - b.Low
	if !hasPrev {
		return tr
	}
	if v := abs(b.High - prevSettle); v > tr {
		tr = v
	}
	if v := abs(b.Low - prevSettle); v > tr {
		tr = v
	}
	return tr
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
