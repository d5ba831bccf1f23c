// Package samples holds the raw transform values collected for each
// (table, cellA, cellB) triple during one training epoch.
package samples

import "fmt"

// Accumulator is a flat array of growable sample lists indexed by
// table*nel*nel + a*nel + b. Use New.
//
// Calls touching different tables may run concurrently; calls touching the
// same table may not.
type Accumulator struct {
	ntables int
	nel     int
	cells   [][]float64
}

// New allocates ntables layers of nel×nel empty lists.
// Panics if either size is non-positive.
func New(ntables, nel int) *Accumulator {
	if ntables <= 0 || nel <= 0 {
		panic(fmt.Sprintf("samples: invalid shape ntables=%d nel=%d", ntables, nel))
	}
	return &Accumulator{
		ntables: ntables,
		nel:     nel,
		cells:   make([][]float64, ntables*nel*nel),
	}
}

// Shape returns the dimensions given to New.
func (a *Accumulator) Shape() (ntables, nel int) { return a.ntables, a.nel }

func (a *Accumulator) offset(t, ca, cb int) int {
	if t < 0 || t >= a.ntables || ca < 0 || ca >= a.nel || cb < 0 || cb >= a.nel {
		panic(fmt.Sprintf("samples: index (%d,%d,%d) out of range", t, ca, cb))
	}
	return (t*a.nel+ca)*a.nel + cb
}

// Reset empties every list, keeping its backing array for the next epoch.
func (a *Accumulator) Reset() {
	for i := range a.cells {
		a.cells[i] = a.cells[i][:0]
	}
}

// Insert appends v to the list of (t, ca, cb).
func (a *Accumulator) Insert(t, ca, cb int, v float64) {
	i := a.offset(t, ca, cb)
	a.cells[i] = append(a.cells[i], v)
}

// Samples returns the list of (t, ca, cb). The slice aliases internal
// storage and is valid until the next mutation of that cell.
func (a *Accumulator) Samples(t, ca, cb int) []float64 {
	return a.cells[a.offset(t, ca, cb)]
}

// Replace swaps the list of (t, ca, cb) for a copy of vals.
func (a *Accumulator) Replace(t, ca, cb int, vals []float64) {
	i := a.offset(t, ca, cb)
	a.cells[i] = append(a.cells[i][:0], vals...)
}

// Len returns the number of samples in (t, ca, cb).
func (a *Accumulator) Len(t, ca, cb int) int {
	return len(a.cells[a.offset(t, ca, cb)])
}

// Total returns the number of samples across all cells.
func (a *Accumulator) Total() int {
	n := 0
	for _, c := range a.cells {
		n += len(c)
	}
	return n
}

// Empty reports whether no samples are held.
func (a *Accumulator) Empty() bool {
	for _, c := range a.cells {
		if len(c) > 0 {
			return false
		}
	}
	return true
}

// Destroy releases every list. Safe to call repeatedly or on a nil receiver.
func (a *Accumulator) Destroy() {
	if a == nil {
		return
	}
	for i := range a.cells {
		a.cells[i] = nil
	}
}

// Each calls fn for every non-empty list of table t, in (ca, cb) order.
func (a *Accumulator) Each(t int, fn func(ca, cb int, vals []float64)) {
	base := t * a.nel * a.nel
	for ca := 0; ca < a.nel; ca++ {
		row := base + ca*a.nel
		for cb := 0; cb < a.nel; cb++ {
			if v := a.cells[row+cb]; len(v) > 0 {
				fn(ca, cb, v)
			}
		}
	}
}
