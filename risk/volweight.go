package risk

import "math"

// DailyCashVolTarget is the daily cash volatility a portfolio of capital
// should run at for an annual target.
func DailyCashVolTarget(capital, volTarget float64) float64 {
	return capital * volTarget / tradingDaysRoot
}

// InstrumentValueVol is the daily cash volatility of one contract.
func InstrumentValueVol(c Candidate) float64 {
	return math.Abs(c.Price) * c.PointValue * c.Volatility
}

// VolScalar is the number of contracts that alone would run at the daily
// cash volatility target.
func VolScalar(dailyCashVolTarget float64, c Candidate) float64 {
	ivv := InstrumentValueVol(c)
	if ivv <= 0 {
		return 0
	}
	return dailyCashVolTarget / ivv
}

func volCandidates(in Inputs) []Candidate {
	var out []Candidate
	for _, c := range in.Candidates {
		if InstrumentValueVol(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// unclean reports whether any member is fractional or exceeds its volume.
func unclean(set []Candidate, raw map[string]float64) bool {
	for _, c := range set {
		v := raw[c.Market]
		if fractional(v) || (c.Volume > 0 && math.Abs(v) > c.Volume) {
			return true
		}
	}
	return false
}

// EqualWeight splits the volatility target equally across markets and scales
// by forecast strength. While any size is fractional or illiquid the market
// with the lowest instrument value volatility is dropped.
type EqualWeight struct {
	Params
}

func (e EqualWeight) Size(in Inputs) Result {
	target := DailyCashVolTarget(in.Capital, e.VolTarget)
	fc := e.forecastConstant()

	weights := map[string]float64{}
	compute := func(set []Candidate) map[string]float64 {
		raw := make(map[string]float64, len(set))
		weights = make(map[string]float64, len(set))
		w := 1 / float64(len(set))
		for _, c := range set {
			weights[c.Market] = w
			raw[c.Market] = VolScalar(target, c) * w * c.Forecast / fc
		}
		return raw
	}
	drop := func(set []Candidate, raw map[string]float64) []int {
		if !unclean(set, raw) {
			return nil
		}
		return []int{lowest(set, InstrumentValueVol)}
	}

	_, raw, dropped := reduce(volCandidates(in), compute, drop)
	return Result{Sizes: finalize(raw), Raw: raw, Weights: weights, DM: 1, Dropped: dropped}
}

// CorrelationWeight weights markets with the handcrafting method and scales
// the weighted sizes by the diversification multiplier. While any size is
// fractional or illiquid the lowest-weighted market is dropped.
type CorrelationWeight struct {
	Params
	Corr Correlator
}

func (cw CorrelationWeight) Size(in Inputs) Result {
	target := DailyCashVolTarget(in.Capital, cw.VolTarget)
	fc := cw.forecastConstant()

	weights := map[string]float64{}
	dm := 1.0
	compute := func(set []Candidate) map[string]float64 {
		corr := correlationMatrix(cw.Corr, set, in)
		weights = HandcraftWeights(markets(set), corr, cw.Flavor)

		w := make([]float64, len(set))
		sigma := make([]float64, len(set))
		for i, c := range set {
			w[i] = weights[c.Market]
			sigma[i] = c.Volatility * tradingDaysRoot
		}
		dm = DiversificationMultiplier(w, sigma, corr, cw.VolTarget, cw.maxDM())

		raw := make(map[string]float64, len(set))
		for _, c := range set {
			raw[c.Market] = VolScalar(target, c) * weights[c.Market] * dm * c.Forecast / fc
		}
		return raw
	}
	drop := func(set []Candidate, raw map[string]float64) []int {
		if !unclean(set, raw) {
			return nil
		}
		return []int{lowest(set, func(c Candidate) float64 { return weights[c.Market] })}
	}

	_, raw, dropped := reduce(volCandidates(in), compute, drop)
	return Result{Sizes: finalize(raw), Raw: raw, Weights: weights, DM: dm, Dropped: dropped}
}
