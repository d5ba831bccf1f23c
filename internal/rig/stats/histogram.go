package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultHistogramBins is the resolution used by the finalize pass.
const DefaultHistogramBins = 200

// minHistogramRange is the value span below which all samples share one bin.
const minHistogramRange = 1e-6

// Histogram is a fixed-resolution histogram over [Min, Max].
type Histogram struct {
	Counts []int
	Min    float64
	Max    float64
}

// BuildHistogram bins data into n buckets spanning its own range.
// It returns a zero Histogram when data is empty or n <= 0.
func BuildHistogram(data []float64, n int) Histogram {
	if len(data) == 0 || n <= 0 {
		return Histogram{}
	}
	h := Histogram{
		Counts: make([]int, n),
		Min:    floats.Min(data),
		Max:    floats.Max(data),
	}
	for _, v := range data {
		h.Counts[h.Bin(v)]++
	}
	return h
}

// Bin returns the bucket of v: round((v-Min)·n/(Max-Min)) clamped to
// [0, n-1], rounding halves down. A degenerate range maps everything to 0.
func (h Histogram) Bin(v float64) int {
	n := len(h.Counts)
	span := h.Max - h.Min
	if n == 0 || span < minHistogramRange {
		return 0
	}
	idx := RoundHalfDown((v - h.Min) * float64(n) / span)
	return min(n-1, max(0, idx))
}

// Peak returns the index and count of the fullest bucket (first on ties).
func (h Histogram) Peak() (index, count int) {
	for i, c := range h.Counts {
		if c > count {
			index, count = i, c
		}
	}
	return index, count
}

// FilterPeakRelative keeps the samples whose bucket holds strictly more than
// fraction of the histogram peak. The result is a new slice.
func FilterPeakRelative(data []float64, bins int, fraction float64) []float64 {
	h := BuildHistogram(data, bins)
	if len(h.Counts) == 0 {
		return nil
	}
	_, peak := h.Peak()
	limit := fraction * float64(peak)
	kept := make([]float64, 0, len(data))
	for _, v := range data {
		if float64(h.Counts[h.Bin(v)]) > limit {
			kept = append(kept, v)
		}
	}
	return kept
}

// RoundHalfDown rounds a to the nearest integer, sending exact halves down.
func RoundHalfDown(a float64) int {
	f := math.Floor(a)
	if a-f > .5 {
		return int(f) + 1
	}
	return int(f)
}
