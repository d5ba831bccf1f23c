// Package dense implements the array-backed correspondence table: for every
// sensor pair and every (cellA, cellB) pair of grid cells it keeps a value,
// a vote count and, in rotation mode, the cosine/sine sums behind the value.
//
// Storage is one flat slice per field with stride nel*nel per table, where
// nel = nbuckets². Entries of a table are oriented: cellA is a cell of the
// table's lower sensor id and cellB a cell of the higher one.
package dense

import (
	"fmt"
	"math"

	"github.com/banshee-data/rigmodel/internal/rig/cells"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// Entry is one (table, cellA, cellB) statistic.
type Entry struct {
	Value float64
	Count int
	Cos   float64
	Sin   float64
}

// Table is the dense statistic store. It is not safe for concurrent use.
type Table struct {
	pairs    *cells.PairIndex
	mode     stats.Mode
	nbuckets int
	nel      int

	count []int
	value []float64
	cos   []float64
	sin   []float64

	maxCount []int
	maxAbs   []float64
}

// New allocates a zeroed table for nsensors sensors on an nbuckets×nbuckets
// grid. Panics if either size is non-positive.
func New(nsensors, nbuckets int, mode stats.Mode) *Table {
	if nbuckets <= 0 {
		panic(fmt.Sprintf("dense: nbuckets must be positive, got %d", nbuckets))
	}
	pairs := cells.NewPairIndex(nsensors)
	nel := nbuckets * nbuckets
	size := pairs.Tables() * nel * nel
	return &Table{
		pairs:    pairs,
		mode:     mode,
		nbuckets: nbuckets,
		nel:      nel,
		count:    make([]int, size),
		value:    make([]float64, size),
		cos:      make([]float64, size),
		sin:      make([]float64, size),
		maxCount: make([]int, pairs.Tables()),
		maxAbs:   make([]float64, pairs.Tables()),
	}
}

// Pairs returns the sensor-pair index of the table.
func (d *Table) Pairs() *cells.PairIndex { return d.pairs }

// Mode returns the aggregation mode.
func (d *Table) Mode() stats.Mode { return d.mode }

// Sensors returns the number of sensors.
func (d *Table) Sensors() int { return d.pairs.Sensors() }

// Tables returns the number of sensor-pair tables.
func (d *Table) Tables() int { return d.pairs.Tables() }

// Buckets returns the grid resolution per side.
func (d *Table) Buckets() int { return d.nbuckets }

// Cells returns the number of cells per image, nbuckets².
func (d *Table) Cells() int { return d.nel }

func (d *Table) offset(t, a, b int) int {
	if t < 0 || t >= d.pairs.Tables() || a < 0 || a >= d.nel || b < 0 || b >= d.nel {
		panic(fmt.Sprintf("dense: entry (%d,%d,%d) out of range", t, a, b))
	}
	return (t*d.nel+a)*d.nel + b
}

// Reset zeroes every entry and maximum without reallocating.
func (d *Table) Reset() {
	clear(d.count)
	clear(d.value)
	clear(d.cos)
	clear(d.sin)
	clear(d.maxCount)
	clear(d.maxAbs)
}

// ResetTable zeroes every entry and both maxima of table t.
func (d *Table) ResetTable(t int) {
	size := d.nel * d.nel
	lo, hi := t*size, (t+1)*size
	clear(d.count[lo:hi])
	clear(d.value[lo:hi])
	clear(d.cos[lo:hi])
	clear(d.sin[lo:hi])
	d.maxCount[t] = 0
	d.maxAbs[t] = 0
}

// Entry returns the stored statistic of (t, a, b).
func (d *Table) Entry(t, a, b int) Entry {
	i := d.offset(t, a, b)
	return Entry{Value: d.value[i], Count: d.count[i], Cos: d.cos[i], Sin: d.sin[i]}
}

// Value returns the stored value of (t, a, b).
func (d *Table) Value(t, a, b int) float64 { return d.value[d.offset(t, a, b)] }

// Count returns the vote count of (t, a, b).
func (d *Table) Count(t, a, b int) int { return d.count[d.offset(t, a, b)] }

// MaxCount returns the largest count written to table t.
func (d *Table) MaxCount(t int) int { return d.maxCount[t] }

// MaxAbs returns the largest |value| written to table t.
func (d *Table) MaxAbs(t int) float64 { return d.maxAbs[t] }

func (d *Table) bump(t, i int) {
	if d.count[i] > d.maxCount[t] {
		d.maxCount[t] = d.count[i]
	}
	if v := math.Abs(d.value[i]); v > d.maxAbs[t] {
		d.maxAbs[t] = v
	}
}

// Set overwrites (t, a, b) with value and count and raises the table maxima.
// In rotation mode the cosine/sine sums are seeded as count·cos(value) and
// count·sin(value) so later Update calls blend with the set mean.
func (d *Table) Set(t, a, b int, value float64, count int) {
	i := d.offset(t, a, b)
	d.value[i] = value
	d.count[i] = count
	if d.mode.Circular() {
		d.cos[i] = float64(count) * math.Cos(value)
		d.sin[i] = float64(count) * math.Sin(value)
	} else {
		d.cos[i], d.sin[i] = 0, 0
	}
	d.bump(t, i)
}

// Clear reverts (t, a, b) to the empty entry. Maxima are left alone.
func (d *Table) Clear(t, a, b int) {
	i := d.offset(t, a, b)
	d.value[i], d.count[i], d.cos[i], d.sin[i] = 0, 0, 0, 0
}

// Update folds one observation into (t, a, b): atan2 of the running
// cosine/sine sums in rotation mode, a running mean in translation mode.
func (d *Table) Update(t, a, b int, v float64) {
	i := d.offset(t, a, b)
	n := d.count[i]
	if d.mode.Circular() {
		d.cos[i] += math.Cos(v)
		d.sin[i] += math.Sin(v)
		d.value[i] = math.Atan2(d.sin[i], d.cos[i])
	} else {
		d.value[i] = float64(n)*d.value[i]/float64(n+1) + v/float64(n+1)
	}
	d.count[i] = n + 1
	d.bump(t, i)
	tracef("update t=%d a=%d b=%d v=%.5f -> value=%.5f count=%d", t, a, b, v, d.value[i], d.count[i])
}

// Lookup returns the statistic relating cell a of sensor s1 to cell b of
// sensor s2. When s1 > s2 the stored entry (b, a) is read and its value
// negated. found is false when the entry has no votes.
// Panics on an unknown sensor id.
func (d *Table) Lookup(s1, s2, a, b int) (value float64, count int, found bool) {
	t, transpose := d.pairs.Index(s1, s2)
	if transpose {
		a, b = b, a
	}
	i := d.offset(t, a, b)
	value, count = d.value[i], d.count[i]
	if transpose {
		value = -value
	}
	return value, count, count > 0
}

// ForceDiagonal sets every diagonal entry (c, c) of every same-sensor table
// to value 0 with the table's maximum count.
func (d *Table) ForceDiagonal() {
	for t := 0; t < d.pairs.Tables(); t++ {
		if !d.pairs.SameSensor(t) {
			continue
		}
		n := d.maxCount[t]
		for c := 0; c < d.nel; c++ {
			d.Set(t, c, c, 0, n)
		}
	}
}

// Cleanup reverts every entry with fewer than minVotes votes to empty and
// returns how many populated entries were cleared.
func (d *Table) Cleanup(minVotes int) int {
	cleared := 0
	for i, n := range d.count {
		if n < minVotes {
			if n > 0 {
				cleared++
			}
			d.value[i], d.count[i], d.cos[i], d.sin[i] = 0, 0, 0, 0
		}
	}
	diagf("cleanup min_votes=%d cleared=%d", minVotes, cleared)
	return cleared
}

// Stat returns the mean and population standard deviation of the values of
// every populated entry, and how many entries were populated.
func (d *Table) Stat() (mean, stdev float64, n int) {
	vals := make([]float64, 0, len(d.count)/4)
	for i, c := range d.count {
		if c > 0 {
			vals = append(vals, d.value[i])
		}
	}
	mean, stdev = stats.MeanStdDev(vals)
	return mean, stdev, len(vals)
}

// Populated returns the number of entries with at least one vote in table t.
func (d *Table) Populated(t int) int {
	base := t * d.nel * d.nel
	n := 0
	for _, c := range d.count[base : base+d.nel*d.nel] {
		if c > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of d.
func (d *Table) Clone() *Table {
	return &Table{
		pairs:    d.pairs,
		mode:     d.mode,
		nbuckets: d.nbuckets,
		nel:      d.nel,
		count:    append([]int(nil), d.count...),
		value:    append([]float64(nil), d.value...),
		cos:      append([]float64(nil), d.cos...),
		sin:      append([]float64(nil), d.sin...),
		maxCount: append([]int(nil), d.maxCount...),
		maxAbs:   append([]float64(nil), d.maxAbs...),
	}
}
