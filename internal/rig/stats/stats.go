package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// StdDev returns the population standard deviation of x around mean.
func StdDev(x []float64, mean float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)))
}

// MeanStdDev returns the mean and population standard deviation of x.
func MeanStdDev(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// CircularMean returns atan2(Σsin, Σcos) of the angles in x, or 0 for an
// empty slice.
func CircularMean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.CircularMean(x, nil)
}

// CircularStdDev returns the root mean squared angular distance between each
// wrapped angle of x and mean.
func CircularStdDev(x []float64, mean float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var ss float64
	for _, v := range x {
		d := AngleDiff(WrapAngle(v), mean)
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)))
}

// Summarize returns the mode-dependent mean and standard deviation of x.
func Summarize(x []float64, mode Mode) (mean, std float64) {
	if mode.Circular() {
		mean = CircularMean(x)
		return mean, CircularStdDev(x, mean)
	}
	return MeanStdDev(x)
}

// WrapAngle maps a onto (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDiff returns the absolute angular distance between a1 and a2, in [0, π].
func AngleDiff(a1, a2 float64) float64 {
	return math.Abs(WrapAngle(a1 - a2))
}

// Residual returns the signed mode-dependent difference v - ref.
func Residual(v, ref float64, mode Mode) float64 {
	if mode.Circular() {
		return WrapAngle(v - ref)
	}
	return v - ref
}
