package risk

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// minCorrelation keeps log weights finite for uncorrelated pairs.
	minCorrelation = 0.01
	// groupBucket is the rounding step for group-weighted correlations.
	groupBucket = 0.25
)

// correlationMatrix looks up every pair of set at the input date. Missing
// pairs count as uncorrelated.
func correlationMatrix(corr Correlator, set []Candidate, in Inputs) [][]float64 {
	n := len(set)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	if corr == nil {
		return m
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if c, ok := corr.Correlation(set[i].Market, set[j].Market, in.Date); ok {
				m[i][j], m[j][i] = c, c
			}
		}
	}
	return m
}

// logWeights weights each market by -Σ log|ρ| over its correlations with the
// others, so markets that move with the rest get less. When every score is
// zero the weights are equal.
func logWeights(corr [][]float64, round bool) []float64 {
	n := len(corr)
	w := make([]float64, n)
	if n == 0 {
		return w
	}
	total := 0.0
	for i := 0; i < n; i++ {
		score := 0.0
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			c := math.Abs(corr[i][j])
			if round {
				c = math.Round(c/groupBucket) * groupBucket
			}
			c = math.Max(minCorrelation, math.Min(1, c))
			score -= math.Log(c)
		}
		w[i] = score
		total += score
	}
	if total <= 0 {
		for i := range w {
			w[i] = 1 / float64(n)
		}
		return w
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// HandcraftWeights returns normalized weights keyed by market. The group
// flavor multiplies the plain weights with weights over bucketed
// correlations, which penalizes clusters of similar markets.
func HandcraftWeights(markets []string, corr [][]float64, flavor Flavor) map[string]float64 {
	w := logWeights(corr, false)
	if flavor == FlavorGroup {
		g := logWeights(corr, true)
		total := 0.0
		for i := range w {
			w[i] *= g[i]
			total += w[i]
		}
		for i := range w {
			if total > 0 {
				w[i] /= total
			} else {
				w[i] = 1 / float64(len(w))
			}
		}
	}
	out := make(map[string]float64, len(markets))
	for i, m := range markets {
		out[m] = w[i]
	}
	return out
}

// DiversificationMultiplier is target / sqrt(vᵀCv) with v = w∘σ and negative
// correlations floored at zero, capped at maxDM.
func DiversificationMultiplier(w, sigma []float64, corr [][]float64, target, maxDM float64) float64 {
	n := len(w)
	if n == 0 {
		return 1
	}
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, w[i]*sigma[i])
	}
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rho := corr[i][j]
			if i == j {
				rho = 1
			}
			c.SetSym(i, j, math.Max(0, rho))
		}
	}
	variance := mat.Inner(v, c, v)
	if variance <= 0 {
		return maxDM
	}
	return math.Min(maxDM, target/math.Sqrt(variance))
}
