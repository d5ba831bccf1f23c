// Package classifier trains and queries the cross-sensor correspondence
// model of a camera rig.
//
// A Classifier moves through three states. Untrained and Training collect
// raw transform samples per (sensor pair, cellA, cellB); Finalize collapses
// them into a dense table with histogram outlier rejection and enters Ready.
// In Ready, Query and Filter consult the table and further observations
// update it in place.
package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/rigmodel/internal/rig/cells"
	"github.com/banshee-data/rigmodel/internal/rig/dense"
	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/rig/samples"
	"github.com/banshee-data/rigmodel/internal/rig/sparse"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// State is the training state of a Classifier.
type State int

const (
	Untrained State = iota
	Training
	Ready
)

func (s State) String() string {
	switch s {
	case Untrained:
		return "untrained"
	case Training:
		return "training"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the answer to a point query.
type Result struct {
	Value float64 // predicted transform from the first point to the second
	Count int     // votes behind Value
	Found bool    // false when the entry has no votes
}

// Classifier owns one dense table, its training samples and, when enabled,
// a sparse vote table. It is not safe for concurrent use; see Shared.
type Classifier struct {
	cfg    Config
	state  State
	table  *dense.Table
	acc    *samples.Accumulator
	// votes is the raw sparse tally. sparse is the table served to
	// FilterSparse and persistence: votes itself until NormalizeSparse,
	// a separate per-mille table after.
	votes  *sparse.Table
	sparse *sparse.Table
	rng    *rand.Rand
}

// New validates cfg and returns an Untrained classifier.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	t := dense.New(cfg.Sensors, cfg.Grid.N, cfg.Mode)
	c := &Classifier{
		cfg:   cfg,
		table: t,
		acc:   samples.New(t.Tables(), t.Cells()),
		rng:   stats.NewRand(cfg.Seed),
	}
	if cfg.SparseEnabled {
		c.votes = sparse.New()
		c.sparse = c.votes
	}
	return c, nil
}

// Config returns a copy of the configuration.
func (c *Classifier) Config() Config { return c.cfg }

// State returns the current state.
func (c *Classifier) State() State { return c.state }

// Table returns the dense table. Callers must not mutate it while the
// classifier is in use.
func (c *Classifier) Table() *dense.Table { return c.table }

// Samples returns the training sample accumulator.
func (c *Classifier) Samples() *samples.Accumulator { return c.acc }

// Pairs returns the sensor-pair index.
func (c *Classifier) Pairs() *cells.PairIndex { return c.table.Pairs() }

// Reset clears the table, the samples and the sparse votes and enters
// Training.
func (c *Classifier) Reset() {
	c.table.Reset()
	c.acc.Reset()
	if c.votes != nil {
		c.votes = sparse.New()
		c.sparse = c.votes
	}
	c.state = Training
	diagf("reset: %d sensors, %d tables of %d² cells, mode=%v", c.cfg.Sensors, c.table.Tables(), c.table.Cells(), c.cfg.Mode)
}

// orient maps an observation onto its stored (table, cellA, cellB) and the
// value in stored orientation.
func (c *Classifier) orient(src, dst match.Feature, v float64) (t, a, b int, value float64) {
	a = c.cfg.Grid.ClampedCell(src.Col, src.Row)
	b = c.cfg.Grid.ClampedCell(dst.Col, dst.Row)
	t, transpose := c.table.Pairs().Index(src.Sensor, dst.Sensor)
	if transpose {
		a, b, v = b, a, -v
	}
	if c.cfg.Mode.Circular() {
		v = stats.WrapAngle(v)
	}
	return t, a, b, v
}

// AddObservations records est as the transform behind every match of set,
// using each match's first candidate. Before Finalize the value is
// accumulated as a raw sample; once Ready the table is updated in place.
// Matches without candidates or with unknown sensor ids are skipped.
// It returns the number of observations recorded.
func (c *Classifier) AddObservations(set match.Set, est match.Estimate) int {
	if c.state == Untrained {
		c.state = Training
	}
	v := est.Value(c.cfg.Mode)
	pairs := c.table.Pairs()
	n, skipped := 0, 0
	for _, m := range set {
		if len(m.Candidates) == 0 {
			continue
		}
		dst := m.Candidates[0].Dst
		if !pairs.Valid(m.Src.Sensor) || !pairs.Valid(dst.Sensor) {
			skipped++
			continue
		}
		t, a, b, value := c.orient(m.Src, dst, v)
		if c.state == Ready {
			c.table.Update(t, a, b, value)
		} else {
			c.acc.Insert(t, a, b, value)
		}
		if c.votes != nil {
			c.votes.Add(sparse.KeyOf(m.Src, dst, c.cfg.Grid), 1)
		}
		n++
	}
	if skipped > 0 {
		opsf("skipped %d matches with unknown sensor ids (rig has %d sensors)", skipped, c.cfg.Sensors)
	}
	tracef("added %d observations value=%.5f state=%v", n, v, c.state)
	return n
}

// Query predicts the transform from (col1,row1) of sensor s1 to (col2,row2)
// of sensor s2. Coordinates are clamped into the image. Panics on an unknown
// sensor id.
func (c *Classifier) Query(s1, s2 int, col1, row1, col2, row2 float64) Result {
	return query(&c.cfg, c.table, s1, s2, col1, row1, col2, row2)
}

// QueryMatches queries every match of set against its first candidate and
// returns one estimate per answered query, weighted by its vote count and
// attributed to the source sensor.
func (c *Classifier) QueryMatches(set match.Set) []match.Estimate {
	return queryMatches(&c.cfg, c.table, set)
}

// FilterOptions controls Filter.
type FilterOptions struct {
	// MaxDeviation is the largest |predicted - Reference| kept, in radians
	// for rotation and in translation units otherwise.
	MaxDeviation float64
	// Reference is the transform candidates are compared with.
	Reference float64
	// Strict drops candidates the table has no votes for.
	Strict bool
}

// Filter returns a new set holding the candidates whose predicted transform
// lies within opts.MaxDeviation of opts.Reference. Candidates without votes
// are kept unless opts.Strict is set. Matches left without candidates are
// dropped and set is not modified.
func (c *Classifier) Filter(set match.Set, opts FilterOptions) match.Set {
	return filter(&c.cfg, c.table, set, opts)
}

func query(cfg *Config, table *dense.Table, s1, s2 int, col1, row1, col2, row2 float64) Result {
	a := cfg.Grid.ClampedCell(col1, row1)
	b := cfg.Grid.ClampedCell(col2, row2)
	v, n, ok := table.Lookup(s1, s2, a, b)
	return Result{Value: v, Count: n, Found: ok}
}

func queryMatches(cfg *Config, table *dense.Table, set match.Set) []match.Estimate {
	out := make([]match.Estimate, 0, len(set))
	pairs := table.Pairs()
	for _, m := range set {
		if len(m.Candidates) == 0 {
			continue
		}
		dst := m.Candidates[0].Dst
		if !pairs.Valid(m.Src.Sensor) || !pairs.Valid(dst.Sensor) {
			continue
		}
		r := query(cfg, table, m.Src.Sensor, dst.Sensor, m.Src.Col, m.Src.Row, dst.Col, dst.Row)
		if !r.Found {
			continue
		}
		e := match.Estimate{Sensor: m.Src.Sensor, Weight: float64(r.Count)}
		out = append(out, e.WithValue(cfg.Mode, r.Value, 0))
	}
	tracef("query: %d matches, %d answered", len(set), len(out))
	return out
}

// filter treats every candidate as unanswered when table is nil.
func filter(cfg *Config, table *dense.Table, set match.Set, opts FilterOptions) match.Set {
	out := make(match.Set, 0, len(set))
	for _, m := range set {
		var kept []match.Candidate
		for _, cand := range m.Candidates {
			dst := cand.Dst
			var r Result
			if table != nil {
				pairs := table.Pairs()
				if !pairs.Valid(m.Src.Sensor) || !pairs.Valid(dst.Sensor) {
					continue
				}
				r = query(cfg, table, m.Src.Sensor, dst.Sensor, m.Src.Col, m.Src.Row, dst.Col, dst.Row)
			}
			if !r.Found {
				if !opts.Strict {
					kept = append(kept, cand)
				}
				continue
			}
			if math.Abs(stats.Residual(r.Value, opts.Reference, cfg.Mode)) < opts.MaxDeviation {
				kept = append(kept, cand)
			}
		}
		if len(kept) > 0 {
			out = append(out, match.Match{Src: m.Src, Candidates: kept})
		}
	}
	diagf("filtered %d matches (%d candidates) -> %d matches (%d candidates)", len(set), set.Candidates(), len(out), out.Candidates())
	return out
}

// ForceDiagonal marks every same-sensor, same-cell entry as the identity
// transform with the table's best count.
func (c *Classifier) ForceDiagonal() { c.table.ForceDiagonal() }

// FillGaps completes under-observed entries through pivot cells using the
// configured MinVotes floor.
func (c *Classifier) FillGaps() []dense.Fill {
	fills := c.table.FillGaps(c.cfg.MinVotes)
	diagf("gap fill resolved %d entries (floor %d)", len(fills), c.cfg.MinVotes)
	return fills
}

// Cleanup clears every entry with fewer than minVotes votes.
func (c *Classifier) Cleanup(minVotes int) int { return c.table.Cleanup(minVotes) }

// Stat returns the mean and standard deviation of every populated value.
func (c *Classifier) Stat() (mean, stdev float64, n int) { return c.table.Stat() }

// Sparse returns the sparse table served to FilterSparse, or nil when
// disabled. It holds the raw votes until NormalizeSparse and per-mille
// shares after.
func (c *Classifier) Sparse() *sparse.Table { return c.sparse }

// SparseVotes returns the raw sparse vote tally, or nil when disabled.
func (c *Classifier) SparseVotes() *sparse.Table { return c.votes }

// NormalizeSparse replaces the served sparse table with per-mille shares of
// the raw votes. Votes recorded afterwards only reach the served table on
// the next NormalizeSparse. It is a no-op when the sparse table is disabled.
func (c *Classifier) NormalizeSparse() {
	if c.votes != nil {
		c.sparse = c.votes.Clone().Normalize()
	}
}

// adoptSparse serves s and seeds the raw tally with a copy of it.
func (c *Classifier) adoptSparse(s *sparse.Table) {
	c.sparse = s
	c.votes = s.Clone()
}

// Close releases the training samples and the sparse votes. The dense table
// stays queryable.
func (c *Classifier) Close() {
	c.acc.Destroy()
	if c.votes != nil {
		c.votes = sparse.New()
		c.sparse = c.votes
	}
	diagf("closed classifier (state=%v)", c.state)
}

// FilterSparse filters set through the sparse table with the configured
// threshold. With the sparse table disabled it returns a copy of set.
func (c *Classifier) FilterSparse(set match.Set) match.Set {
	if c.sparse == nil {
		return set.Clone()
	}
	return c.sparse.Filter(set, c.cfg.Grid, c.cfg.SparseThreshold)
}
