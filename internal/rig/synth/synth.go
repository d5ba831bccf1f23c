// Package synth generates synthetic training traffic for a camera rig:
// correspondence sets between known cell pairs, each paired with a noisy
// displacement estimate and occasionally a gross outlier.
package synth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/rigmodel/internal/rig/cells"
	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// Link is a ground-truth correspondence between a cell of one sensor and a
// cell of another, with the transform observed across it.
type Link struct {
	SrcSensor int     `json:"src_sensor"`
	SrcCell   int     `json:"src_cell"`
	DstSensor int     `json:"dst_sensor"`
	DstCell   int     `json:"dst_cell"`
	Value     float64 `json:"value"`
}

// Config controls a Generator.
type Config struct {
	Grid        cells.Grid
	Mode        stats.Mode
	Noise       float64 // standard deviation of the value noise
	OutlierRate float64 // share of estimates replaced by a uniform draw
	// OutlierSpan bounds outliers to [-OutlierSpan, OutlierSpan]; zero means
	// π in rotation mode and 10 otherwise.
	OutlierSpan float64
	Seed        uint64
}

// Observation is one frame of training traffic: a correspondence set and the
// displacement estimate behind it. It is the line format of the rigclass
// observation logs.
type Observation struct {
	Matches  match.Set      `json:"matches"`
	Estimate match.Estimate `json:"estimate"`
}

// Generator draws observations. It is not safe for concurrent use.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	noise distuv.Normal
	frame int64
}

// New returns a Generator seeded from cfg.Seed.
func New(cfg Config) *Generator {
	rng := stats.NewRand(cfg.Seed)
	if cfg.OutlierSpan == 0 {
		cfg.OutlierSpan = 10
		if cfg.Mode.Circular() {
			cfg.OutlierSpan = math.Pi
		}
	}
	return &Generator{
		cfg:   cfg,
		rng:   rng,
		noise: distuv.Normal{Mu: 0, Sigma: cfg.Noise, Src: rng},
	}
}

// Point returns a uniformly drawn pixel inside cell id.
func (g *Generator) Point(id int) (col, row float64) {
	n := g.cfg.Grid.N
	r, c := id/n, id%n
	w := float64(g.cfg.Grid.Width) / float64(n)
	h := float64(g.cfg.Grid.Height) / float64(n)
	return (float64(c) + g.rng.Float64()) * w, (float64(r) + g.rng.Float64()) * h
}

// Value draws the transform observed across a link with true value v.
func (g *Generator) Value(v float64) float64 {
	if g.cfg.OutlierRate > 0 && g.rng.Float64() < g.cfg.OutlierRate {
		v = (2*g.rng.Float64() - 1) * g.cfg.OutlierSpan
	} else if g.cfg.Noise > 0 {
		v += g.noise.Rand()
	}
	if g.cfg.Mode.Circular() {
		v = stats.WrapAngle(v)
	}
	return v
}

// Observe draws one observation of l: a single match between random points
// of the two cells and an estimate attributed to the source sensor.
func (g *Generator) Observe(l Link) Observation {
	sc, sr := g.Point(l.SrcCell)
	dc, dr := g.Point(l.DstCell)
	g.frame++
	est := match.Estimate{Sensor: l.SrcSensor, Weight: 1, Utime: g.frame}
	return Observation{
		Matches: match.Set{{
			Src:        match.Feature{Sensor: l.SrcSensor, Col: sc, Row: sr},
			Candidates: []match.Candidate{{Dst: match.Feature{Sensor: l.DstSensor, Col: dc, Row: dr}}},
		}},
		Estimate: est.WithValue(g.cfg.Mode, g.Value(l.Value), g.cfg.Noise),
	}
}

// Generate draws n observations per link, interleaved link by link.
func (g *Generator) Generate(links []Link, n int) []Observation {
	out := make([]Observation, 0, n*len(links))
	for i := 0; i < n; i++ {
		for _, l := range links {
			out = append(out, g.Observe(l))
		}
	}
	return out
}

// RandomLinks draws count links between random cells of random sensor pairs
// with values uniform in [-span, span].
func (g *Generator) RandomLinks(nsensors, count int, span float64) []Link {
	links := make([]Link, count)
	nel := g.cfg.Grid.Cells()
	for i := range links {
		links[i] = Link{
			SrcSensor: g.rng.IntN(nsensors),
			SrcCell:   g.rng.IntN(nel),
			DstSensor: g.rng.IntN(nsensors),
			DstCell:   g.rng.IntN(nel),
			Value:     (2*g.rng.Float64() - 1) * span,
		}
	}
	return links
}

// WriteJSONL writes one JSON object per observation per line.
func WriteJSONL(w io.Writer, obs []Observation) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range obs {
		if err := enc.Encode(&obs[i]); err != nil {
			return fmt.Errorf("encode observation %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL calls fn for every observation line of r. Blank lines are
// skipped; decoding stops at the first malformed line.
func ReadJSONL(r io.Reader, fn func(Observation) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var o Observation
		if err := json.Unmarshal(b, &o); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(o); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}
