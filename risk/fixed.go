package risk

import "math"

// FixedRisk sizes each market so one ATR move costs RiskFactor of capital.
// Sizes never exceed the market's volume. With UseCorrelation the sizes are
// scaled by handcrafted weights and markets under one contract are dropped
// until the weights are computed over the surviving set only.
type FixedRisk struct {
	Params
	Corr Correlator
}

func (f FixedRisk) Size(in Inputs) Result {
	var valid []Candidate
	for _, c := range in.Candidates {
		if c.ATR > 0 && c.PointValue > 0 {
			valid = append(valid, c)
		}
	}

	weights := map[string]float64{}
	compute := func(set []Candidate) map[string]float64 {
		if f.UseCorrelation {
			weights = HandcraftWeights(markets(set), correlationMatrix(f.Corr, set, in), f.Flavor)
		}
		raw := make(map[string]float64, len(set))
		for _, c := range set {
			size := in.Capital * f.RiskFactor / (c.ATR * c.PointValue)
			if f.UseCorrelation {
				size *= weights[c.Market] * float64(len(set))
			}
			if c.Volume > 0 {
				size = math.Min(size, c.Volume)
			}
			raw[c.Market] = size * c.direction()
		}
		return raw
	}
	drop := func(set []Candidate, raw map[string]float64) []int {
		if !f.UseCorrelation {
			return nil
		}
		var bad []int
		for i, c := range set {
			if math.Abs(raw[c.Market]) < 1 {
				bad = append(bad, i)
			}
		}
		return bad
	}

	_, raw, dropped := reduce(valid, compute, drop)
	return Result{Sizes: finalize(raw), Raw: raw, Weights: weights, DM: 1, Dropped: dropped}
}
