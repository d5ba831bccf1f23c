package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("rotation")
	require.NoError(t, err)
	assert.Equal(t, Rotation, m)
	m, err = ParseMode("trans")
	require.NoError(t, err)
	assert.Equal(t, Translation, m)
	_, err = ParseMode("scale")
	assert.Error(t, err)
	assert.Equal(t, "rotation", Rotation.String())
	assert.True(t, Rotation.Circular())
	assert.False(t, Translation.Circular())
}

func TestMode_Text(t *testing.T) {
	b, err := Translation.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "translation", string(b))

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("rot")))
	assert.Equal(t, Rotation, m)
	assert.Error(t, m.UnmarshalText([]byte("zoom")))

	_, err = Mode(7).MarshalText()
	assert.Error(t, err)
}

func TestMeanStdDev(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean, std := MeanStdDev(x)
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, std, 1e-12)
	assert.InDelta(t, 2.0, StdDev(x, Mean(x)), 1e-12)

	mean, std = MeanStdDev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestCircularMean_AcrossWrap(t *testing.T) {
	x := []float64{math.Pi - 0.1, -math.Pi + 0.1}
	mean := CircularMean(x)
	assert.InDelta(t, math.Pi, math.Abs(mean), 1e-9)
	assert.InDelta(t, 0.1, CircularStdDev(x, mean), 1e-9)
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4*math.Pi + 0.25, 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, WrapAngle(tt.in), 1e-9, "WrapAngle(%v)", tt.in)
	}
}

func TestAngleDiff(t *testing.T) {
	assert.InDelta(t, 0.2, AngleDiff(math.Pi-0.1, -math.Pi+0.1), 1e-9)
	assert.InDelta(t, 0.3, AngleDiff(0.1, -0.2), 1e-9)
	assert.InDelta(t, 0.3, AngleDiff(-0.2, 0.1), 1e-9)
}

func TestSummarize(t *testing.T) {
	mean, std := Summarize([]float64{1, 3}, Translation)
	assert.InDelta(t, 2.0, mean, 1e-12)
	assert.InDelta(t, 1.0, std, 1e-12)

	mean, std = Summarize([]float64{0.1, 0.3}, Rotation)
	assert.InDelta(t, 0.2, mean, 1e-9)
	assert.InDelta(t, 0.1, std, 1e-9)
}

func TestHistogram(t *testing.T) {
	h := BuildHistogram([]float64{0, 0, 0.5, 1}, 4)
	require.Len(t, h.Counts, 4)
	assert.Equal(t, 0.0, h.Min)
	assert.Equal(t, 1.0, h.Max)
	// 0.5*4 = 2 exactly; 1.0*4 = 4 clamps to 3
	assert.Equal(t, []int{2, 0, 1, 1}, h.Counts)

	idx, count := h.Peak()
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2, count)
}

func TestHistogram_HalfRoundsDown(t *testing.T) {
	h := Histogram{Counts: make([]int, 10), Min: 0, Max: 1}
	assert.Equal(t, 2, h.Bin(0.25))
	assert.Equal(t, 3, h.Bin(0.26))
}

func TestHistogram_DegenerateRange(t *testing.T) {
	h := BuildHistogram([]float64{0.3, 0.3, 0.3}, 200)
	assert.Equal(t, 3, h.Counts[0])
	assert.Equal(t, []float64{0.3, 0.3, 0.3}, FilterPeakRelative([]float64{0.3, 0.3, 0.3}, 200, 0.1))
	assert.Empty(t, BuildHistogram(nil, 10).Counts)
}

func TestFilterPeakRelative(t *testing.T) {
	data := make([]float64, 0, 101)
	for i := 0; i < 100; i++ {
		data = append(data, 0.2)
	}
	data = append(data, 3.0)
	kept := FilterPeakRelative(data, 200, 0.10)
	assert.Len(t, kept, 100)
	for _, v := range kept {
		assert.Equal(t, 0.2, v)
	}
}

func TestRANSAC_Linear(t *testing.T) {
	data := []float64{1.0, 1.01, 0.99, 1.02, 0.98, 1.0}
	v, e := RANSAC(data, Translation, 200, 3, NewRand(7))
	assert.Less(t, e, ErrorSentinel)
	assert.InDelta(t, 1.0, v, 0.02)
}

func TestRANSAC_Circular(t *testing.T) {
	data := []float64{math.Pi - 0.02, -math.Pi + 0.02, math.Pi - 0.01, -math.Pi + 0.01}
	v, e := RANSAC(data, Rotation, 100, 2, NewRand(3))
	assert.Less(t, e, ErrorSentinel)
	assert.Less(t, AngleDiff(v, math.Pi), 0.021)
}

func TestRANSAC_Degenerate(t *testing.T) {
	v, e := RANSAC(nil, Translation, 10, 3, nil)
	assert.Zero(t, v)
	assert.Equal(t, ErrorSentinel, e)

	v, e = RANSAC([]float64{4, 5}, Translation, 10, 3, nil)
	assert.Equal(t, 4.0, v)
	assert.Equal(t, ErrorSentinel, e)

	v, e = RANSAC([]float64{4, 5, 6}, Translation, 10, 3, nil)
	assert.Equal(t, 4.0, v)
	assert.Equal(t, ErrorSentinel, e)
}

func TestRANSAC_MonotoneInRuns(t *testing.T) {
	data := []float64{0.1, 0.12, 0.09, 0.11, 2.5, -1.7, 0.1, 0.13, 3.1, 0.08}
	prev := math.Inf(1)
	for _, runs := range []int{1, 2, 5, 10, 50, 200} {
		_, e := RANSAC(data, Rotation, runs, 3, NewRand(42))
		assert.LessOrEqual(t, e, prev, "runs=%d", runs)
		prev = e
	}
}
