package classifier

import (
	"math/rand/v2"

	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// ExtractSingle collapses list into one estimate: the circular or linear
// mean of the mode component, with its standard deviation as the error.
// An empty list yields a zero estimate and stats.ErrorSentinel.
func ExtractSingle(list []match.Estimate, mode stats.Mode) (match.Estimate, float64) {
	if len(list) == 0 {
		return match.Estimate{Mode: mode}, stats.ErrorSentinel
	}
	mean, stdev := stats.Summarize(match.Values(list, mode), mode)
	return match.Estimate{}.WithValue(mode, mean, stdev), stdev
}

// ExtractSingle collapses list in the classifier's mode.
func (c *Classifier) ExtractSingle(list []match.Estimate) (match.Estimate, float64) {
	e, errv := ExtractSingle(list, c.cfg.Mode)
	diagf("extract single: n=%d value=%.4f error=%.4f", len(list), e.Value(c.cfg.Mode), errv)
	return e, errv
}

// RobustEstimate runs RANSAC over the mode component of list with the
// configured runs and subset size. The error is stats.ErrorSentinel when
// list holds no more than RansacInliers estimates; callers check it before
// trusting the value.
func (c *Classifier) RobustEstimate(list []match.Estimate) (match.Estimate, float64) {
	v, errv := stats.RANSAC(match.Values(list, c.cfg.Mode), c.cfg.Mode, c.cfg.RansacRuns, c.cfg.RansacInliers, c.rng)
	if errv >= stats.ErrorSentinel {
		diagf("ransac degenerate: n=%d inliers=%d", len(list), c.cfg.RansacInliers)
	}
	return match.Estimate{}.WithValue(c.cfg.Mode, v, errv), errv
}

// BalanceBySensor returns list followed by random duplicates of each
// sensor's estimates, drawn with rng, until every sensor present in list
// contributes as many estimates as the best-represented one. Estimates of
// sensors outside [0, nsensors) are kept but not balanced.
func BalanceBySensor(list []match.Estimate, nsensors int, rng *rand.Rand) []match.Estimate {
	bySensor := make([][]int, nsensors)
	most := 0
	for i, e := range list {
		if e.Sensor < 0 || e.Sensor >= nsensors {
			continue
		}
		bySensor[e.Sensor] = append(bySensor[e.Sensor], i)
		most = max(most, len(bySensor[e.Sensor]))
	}
	if rng == nil {
		rng = stats.NewRand(1)
	}
	out := append(make([]match.Estimate, 0, most*nsensors), list...)
	for _, idx := range bySensor {
		if len(idx) == 0 {
			continue
		}
		for j := len(idx); j < most; j++ {
			out = append(out, list[idx[rng.IntN(len(idx))]])
		}
	}
	return out
}

// BalanceBySensor balances list over the rig's sensors with the
// classifier's generator.
func (c *Classifier) BalanceBySensor(list []match.Estimate) []match.Estimate {
	return BalanceBySensor(list, c.cfg.Sensors, c.rng)
}

// Odometry integrates a list of translation estimates into one distance:
// the mean translation of each sensor, averaged over the sensors that
// contributed. Estimates of sensors outside [0, nsensors) are ignored.
func Odometry(list []match.Estimate, nsensors int) float64 {
	sum := make([]float64, nsensors)
	n := make([]int, nsensors)
	for _, e := range list {
		if e.Sensor < 0 || e.Sensor >= nsensors {
			continue
		}
		sum[e.Sensor] += e.Trans
		n[e.Sensor]++
	}
	var means []float64
	for s := range sum {
		if n[s] > 0 {
			means = append(means, sum[s]/float64(n[s]))
		}
	}
	return stats.Mean(means)
}
