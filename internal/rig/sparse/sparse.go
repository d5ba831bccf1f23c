// Package sparse implements the hash-backed correspondence table: vote
// counts keyed by (sensorA, cellA, sensorB, cellB), normalised per source
// cell into a per-mille distribution over destination cells.
//
// Absence of a key means no evidence, which is distinct from a stored zero.
package sparse

import (
	"cmp"
	"slices"

	"github.com/banshee-data/rigmodel/internal/rig/cells"
	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// DefaultThreshold is the per-mille share a destination cell needs to pass
// Filter (2%).
const DefaultThreshold = 20

// PerMille is the total of a normalised source distribution.
const PerMille = 1000

// Key identifies a source cell of one sensor and a destination cell of
// another (or the same) sensor.
type Key struct {
	SensorA int32
	CellA   int32
	SensorB int32
	CellB   int32
}

// Source is the (sensor, cell) half of a key that normalisation groups by.
type Source struct {
	Sensor int32
	Cell   int32
}

// Source returns the source half of k.
func (k Key) Source() Source { return Source{Sensor: k.SensorA, Cell: k.CellA} }

func compareKeys(a, b Key) int {
	return cmp.Or(
		cmp.Compare(a.SensorA, b.SensorA),
		cmp.Compare(a.CellA, b.CellA),
		cmp.Compare(a.SensorB, b.SensorB),
		cmp.Compare(a.CellB, b.CellB),
	)
}

// Table maps keys to vote counts or, after Normalize, per-mille shares.
// It is not safe for concurrent use.
type Table struct {
	entries map[Key]int
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[Key]int)}
}

// KeyOf builds the key relating a source feature to a destination feature.
// Coordinates are clamped into the image first.
func KeyOf(src, dst match.Feature, grid cells.Grid) Key {
	return Key{
		SensorA: int32(src.Sensor),
		CellA:   int32(grid.ClampedCell(src.Col, src.Row)),
		SensorB: int32(dst.Sensor),
		CellB:   int32(grid.ClampedCell(dst.Col, dst.Row)),
	}
}

// Insert adds one vote per match of set, keyed by its source and first
// candidate. Matches without candidates are skipped. It returns the number
// of votes added.
func (s *Table) Insert(set match.Set, grid cells.Grid) int {
	n := 0
	for _, m := range set {
		if len(m.Candidates) == 0 {
			continue
		}
		s.entries[KeyOf(m.Src, m.Candidates[0].Dst, grid)]++
		n++
	}
	tracef("inserted %d votes, table size %d", n, len(s.entries))
	return n
}

// Add adds votes to k directly.
func (s *Table) Add(k Key, votes int) { s.entries[k] += votes }

// Get returns the value of k and whether it is present.
func (s *Table) Get(k Key) (int, bool) {
	v, ok := s.entries[k]
	return v, ok
}

// Len returns the number of keys.
func (s *Table) Len() int { return len(s.entries) }

// Keys returns every key in ascending (SensorA, CellA, SensorB, CellB) order.
func (s *Table) Keys() []Key {
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Sum returns the total of every value.
func (s *Table) Sum() int {
	total := 0
	for _, v := range s.entries {
		total += v
	}
	return total
}

// SumFrom returns the total of the values whose source is (sensor, cell).
// There is no secondary index, so this scans every key.
func (s *Table) SumFrom(sensor, cell int) int {
	total := 0
	for k, v := range s.entries {
		if int(k.SensorA) == sensor && int(k.CellA) == cell {
			total += v
		}
	}
	return total
}

// Normalize returns a new table in which every value is replaced by
// round(1000·value/SumFrom(source)), halves rounding down. The receiver is
// emptied. Keys of sources whose total is not positive are dropped.
func (s *Table) Normalize() *Table {
	totals := make(map[Source]int)
	for k, v := range s.entries {
		totals[k.Source()] += v
	}
	out := &Table{entries: make(map[Key]int, len(s.entries))}
	dropped := 0
	for k, v := range s.entries {
		total := totals[k.Source()]
		if total <= 0 {
			dropped++
			continue
		}
		out.entries[k] = stats.RoundHalfDown(PerMille * float64(v) / float64(total))
	}
	if dropped > 0 {
		opsf("normalize dropped %d keys with non-positive source totals", dropped)
	}
	diagf("normalized %d keys over %d sources", len(out.entries), len(totals))
	clear(s.entries)
	return out
}

// Test reports whether (col1,row1) of sensor s1 corresponding to
// (col2,row2) of sensor s2 holds at least threshold. The same cell of the
// same sensor always passes; a missing key never does.
func (s *Table) Test(col1, row1 float64, s1 int, col2, row2 float64, s2 int, grid cells.Grid, threshold int) bool {
	k := KeyOf(match.Feature{Sensor: s1, Col: col1, Row: row1}, match.Feature{Sensor: s2, Col: col2, Row: row2}, grid)
	if k.SensorA == k.SensorB && k.CellA == k.CellB {
		return true
	}
	v, ok := s.entries[k]
	return ok && v >= threshold
}

// Filter returns a new set holding only the candidates that pass Test.
// Matches left without candidates are dropped. set is not modified.
func (s *Table) Filter(set match.Set, grid cells.Grid, threshold int) match.Set {
	out := make(match.Set, 0, len(set))
	for _, m := range set {
		var kept []match.Candidate
		for _, c := range m.Candidates {
			if s.Test(m.Src.Col, m.Src.Row, m.Src.Sensor, c.Dst.Col, c.Dst.Row, c.Dst.Sensor, grid, threshold) {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, match.Match{Src: m.Src, Candidates: kept})
	}
	diagf("filtering %d matches: %d kept", len(set), len(out))
	return out
}

// Clone returns a deep copy of s.
func (s *Table) Clone() *Table {
	out := &Table{entries: make(map[Key]int, len(s.entries))}
	for k, v := range s.entries {
		out.entries[k] = v
	}
	return out
}
