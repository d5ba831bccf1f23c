package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

func TestSetClone(t *testing.T) {
	s := Set{
		{Src: Feature{Sensor: 0, Col: 1, Row: 2}, Candidates: []Candidate{{Dst: Feature{Sensor: 1, Col: 3, Row: 4}, Dist: 0.5}}},
		{Src: Feature{Sensor: 1, Col: 5, Row: 6}},
	}
	c := s.Clone()
	if diff := cmp.Diff(s, c); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
	c[0].Candidates[0].Dist = 9
	assert.Equal(t, 0.5, s[0].Candidates[0].Dist)
	assert.Equal(t, 1, s.Candidates())
	assert.Nil(t, Set(nil).Clone())
}

func TestEstimateValue(t *testing.T) {
	e := Estimate{Angle: 0.3, Trans: 12, AngleError: 0.01, TransError: 2}
	assert.Equal(t, 0.3, e.Value(stats.Rotation))
	assert.Equal(t, 12.0, e.Value(stats.Translation))
	assert.Equal(t, 2.0, e.Error(stats.Translation))

	r := e.WithValue(stats.Translation, 4, 1)
	assert.Equal(t, 4.0, r.Trans)
	assert.Equal(t, 1.0, r.TransError)
	assert.Equal(t, 0.3, r.Angle)
	assert.Equal(t, stats.Translation, r.Mode)

	assert.Equal(t, []float64{0.3, 0.3}, Values([]Estimate{e, e}, stats.Rotation))
}
