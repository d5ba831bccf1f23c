package stats

import (
	"math"
	"math/rand/v2"
)

// ErrorSentinel is the error reported when RANSAC could not evaluate any
// candidate. Callers compare against it before trusting the value.
const ErrorSentinel = 1e6

// NewRand returns a seeded generator for RANSAC and balancing.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RANSAC estimates a single value from data contaminated by outliers.
//
// Each of nRuns runs draws nInliers distinct indices, takes their
// mode-dependent mean as the candidate and scores it by
// sqrt(Σ residual²)/m over the m held-out values. The lowest-scoring
// candidate wins.
//
// Degenerate input keeps the historical contract: with no data the result is
// (0, ErrorSentinel); with len(data) <= nInliers no subset can be held out and
// the result is (data[0], ErrorSentinel).
func RANSAC(data []float64, mode Mode, nRuns, nInliers int, rng *rand.Rand) (value, errv float64) {
	errv = ErrorSentinel
	n := len(data)
	if n == 0 {
		return 0, errv
	}
	if nInliers < 1 || n <= nInliers {
		return data[0], errv
	}
	if rng == nil {
		rng = NewRand(1)
	}

	idx := make([]int, n)
	inSubset := make([]bool, n)
	subset := make([]float64, nInliers)

	for run := 0; run < nRuns; run++ {
		// partial Fisher-Yates: the first nInliers slots become the subset
		for i := range idx {
			idx[i] = i
			inSubset[i] = false
		}
		for i := 0; i < nInliers; i++ {
			j := i + rng.IntN(n-i)
			idx[i], idx[j] = idx[j], idx[i]
			inSubset[idx[i]] = true
			subset[i] = data[idx[i]]
		}

		var candidate float64
		if mode.Circular() {
			candidate = CircularMean(subset)
		} else {
			candidate = Mean(subset)
		}

		var ss float64
		count := 0
		for i, v := range data {
			if inSubset[i] {
				continue
			}
			d := Residual(v, candidate, mode)
			ss += d * d
			count++
		}
		e := math.Sqrt(ss) / float64(count)

		if e < errv {
			errv = e
			value = candidate
		}
	}
	return value, errv
}
