package synth

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rigmodel/internal/rig/cells"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

var grid = cells.Grid{Width: 100, Height: 100, N: 4}

func TestPointStaysInCell(t *testing.T) {
	g := New(Config{Grid: grid, Seed: 3})
	for id := 0; id < grid.Cells(); id++ {
		for i := 0; i < 20; i++ {
			col, row := g.Point(id)
			assert.Equal(t, id, grid.Cell(col, row), "cell %d point (%.2f,%.2f)", id, col, row)
		}
	}
}

func TestValue_NoiseAndOutliers(t *testing.T) {
	g := New(Config{Grid: grid, Mode: stats.Rotation, Noise: 0.02, OutlierRate: 0.1, Seed: 11})
	var inliers []float64
	outliers := 0
	for i := 0; i < 2000; i++ {
		v := g.Value(0.2)
		assert.LessOrEqual(t, math.Abs(v), math.Pi)
		if math.Abs(v-0.2) < 0.1 {
			inliers = append(inliers, v)
		} else {
			outliers++
		}
	}
	mean, sd := stats.MeanStdDev(inliers)
	assert.InDelta(t, 0.2, mean, 0.005)
	assert.InDelta(t, 0.02, sd, 0.005)
	assert.InDelta(t, 200, outliers, 60)
}

func TestValue_WrapsRotation(t *testing.T) {
	g := New(Config{Grid: grid, Mode: stats.Rotation, Seed: 1})
	assert.InDelta(t, -math.Pi+0.1, g.Value(math.Pi+0.1), 1e-12)

	lin := New(Config{Grid: grid, Mode: stats.Translation, Seed: 1})
	assert.Equal(t, 7.5, lin.Value(7.5))
}

func TestObserve(t *testing.T) {
	g := New(Config{Grid: grid, Mode: stats.Translation, Noise: 0.5, Seed: 2})
	l := Link{SrcSensor: 0, SrcCell: 5, DstSensor: 1, DstCell: 9, Value: 3}
	o := g.Observe(l)
	require.Len(t, o.Matches, 1)
	require.Len(t, o.Matches[0].Candidates, 1)
	m := o.Matches[0]
	assert.Equal(t, 0, m.Src.Sensor)
	assert.Equal(t, 5, grid.Cell(m.Src.Col, m.Src.Row))
	assert.Equal(t, 1, m.Candidates[0].Dst.Sensor)
	assert.Equal(t, 9, grid.Cell(m.Candidates[0].Dst.Col, m.Candidates[0].Dst.Row))
	assert.Equal(t, stats.Translation, o.Estimate.Mode)
	assert.Equal(t, 0.5, o.Estimate.TransError)
	assert.Equal(t, int64(1), o.Estimate.Utime)
}

func TestGenerate_Deterministic(t *testing.T) {
	links := []Link{{SrcCell: 1, DstSensor: 1, DstCell: 2, Value: 0.3}, {SrcCell: 3, DstCell: 3}}
	a := New(Config{Grid: grid, Noise: 0.1, Seed: 42}).Generate(links, 10)
	b := New(Config{Grid: grid, Noise: 0.1, Seed: 42}).Generate(links, 10)
	assert.Len(t, a, 20)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed produced different traffic (-a +b):\n%s", diff)
	}
}

func TestRandomLinks(t *testing.T) {
	g := New(Config{Grid: grid, Seed: 9})
	links := g.RandomLinks(3, 50, 1)
	assert.Len(t, links, 50)
	for _, l := range links {
		assert.True(t, l.SrcSensor >= 0 && l.SrcSensor < 3)
		assert.True(t, l.DstCell >= 0 && l.DstCell < grid.Cells())
		assert.LessOrEqual(t, math.Abs(l.Value), 1.0)
	}
}

func TestJSONL_RoundTrip(t *testing.T) {
	g := New(Config{Grid: grid, Mode: stats.Rotation, Noise: 0.01, Seed: 4})
	obs := g.Generate([]Link{{SrcCell: 5, DstSensor: 1, DstCell: 9, Value: 0.2}}, 5)

	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, obs))
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), `"mode":"rotation"`)

	var got []Observation
	require.NoError(t, ReadJSONL(strings.NewReader(buf.String()+"\n"), func(o Observation) error {
		got = append(got, o)
		return nil
	}))
	if diff := cmp.Diff(obs, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadJSONL_Errors(t *testing.T) {
	err := ReadJSONL(strings.NewReader("{}\n{bad\n"), func(Observation) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	stop := errors.New("stop")
	err = ReadJSONL(strings.NewReader("{}\n"), func(Observation) error { return stop })
	assert.ErrorIs(t, err, stop)
}
