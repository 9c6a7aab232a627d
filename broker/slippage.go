package broker

import (
	"math"
	"sort"
)

// SlippageTier charges Multiple true ranges of slippage on orders whose size
// falls in the power-of-two bucket Bucket (percent of day volume).
type SlippageTier struct {
	Bucket   int     `json:"bucket" yaml:"bucket"`
	Multiple float64 `json:"multiple" yaml:"multiple"`
}

// SlippageTable maps relative order size to a true-range multiple.
type SlippageTable []SlippageTier

// DefaultSlippage grows with the share of the day's volume taken.
func DefaultSlippage() SlippageTable {
	return SlippageTable{
		{Bucket: 0, Multiple: 0.05},
		{Bucket: 1, Multiple: 0.1},
		{Bucket: 2, Multiple: 0.15},
		{Bucket: 4, Multiple: 0.25},
		{Bucket: 8, Multiple: 0.4},
		{Bucket: 16, Multiple: 0.6},
		{Bucket: 32, Multiple: 1.0},
	}
}

// bucket returns the largest power of two not above pct, or 0 under 1%.
func bucket(pct float64) int {
	if pct < 1 {
		return 0
	}
	return 1 << uint(math.Floor(math.Log2(pct)))
}

// Multiple returns the multiple for an order of qty against volume.
func (t SlippageTable) Multiple(qty int, volume float64) float64 {
	if len(t) == 0 || volume <= 0 {
		return 0
	}
	b := bucket(float64(qty) / volume * 100)
	tiers := append(SlippageTable(nil), t...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Bucket < tiers[j].Bucket })
	m := 0.0
	for _, tier := range tiers {
		if tier.Bucket > b {
			break
		}
		m = tier.Multiple
	}
	return m
}

// Slippage is trueRange times the tier multiple, rounded up to a whole tick.
func (t SlippageTable) Slippage(qty int, volume, trueRange, tick float64) float64 {
	slip := trueRange * t.Multiple(qty, volume)
	if tick > 0 && slip > 0 {
		slip = math.Ceil(slip/tick-1e-9) * tick
	}
	return slip
}

// Apply moves price against the trader and clamps it to the day's range.
func (t SlippageTable) Apply(price float64, buy bool, qty int, volume, trueRange, tick, low, high float64) float64 {
	slip := t.Slippage(qty, volume, trueRange, tick)
	if buy {
		price += slip
	} else {
		price -= slip
	}
	return math.Max(low, math.Min(high, price))
}
