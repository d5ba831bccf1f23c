package cells

import "fmt"

// PairIndex maps an unordered pair of sensor ids onto one of
// nsensors*(nsensors+1)/2 tables. Index(i, j) and Index(j, i) share a table;
// the lower sensor id always owns the first cell of a table entry.
type PairIndex struct {
	nsensors int
	index    []int // nsensors*nsensors, symmetric
	sensors  []int // 2 per table: lower id, higher id
}

// NewPairIndex builds the pair map. Panics if nsensors <= 0.
func NewPairIndex(nsensors int) *PairIndex {
	if nsensors <= 0 {
		panic(fmt.Sprintf("cells: nsensors must be positive, got %d", nsensors))
	}
	p := &PairIndex{
		nsensors: nsensors,
		index:    make([]int, nsensors*nsensors),
		sensors:  make([]int, 0, nsensors*(nsensors+1)),
	}
	count := 0
	for i := 0; i < nsensors; i++ {
		for j := i; j < nsensors; j++ {
			p.index[i*nsensors+j] = count
			p.index[j*nsensors+i] = count
			p.sensors = append(p.sensors, i, j)
			count++
		}
	}
	return p
}

// Sensors returns the number of sensors.
func (p *PairIndex) Sensors() int { return p.nsensors }

// Tables returns nsensors*(nsensors+1)/2.
func (p *PairIndex) Tables() int { return len(p.sensors) / 2 }

// Valid reports whether id is a known sensor.
func (p *PairIndex) Valid(id int) bool { return id >= 0 && id < p.nsensors }

// Index returns the table for (a, b). transpose is true when a > b, i.e.
// when the caller's orientation is the reverse of the stored one.
// Panics on an unknown sensor id.
func (p *PairIndex) Index(a, b int) (table int, transpose bool) {
	if !p.Valid(a) || !p.Valid(b) {
		panic(fmt.Sprintf("cells: invalid sensor pair (%d,%d) for %d sensors", a, b, p.nsensors))
	}
	return p.index[a*p.nsensors+b], a > b
}

// Pair returns the sensors owning table t, lower id first.
func (p *PairIndex) Pair(t int) (a, b int) {
	return p.sensors[2*t], p.sensors[2*t+1]
}

// SameSensor reports whether table t relates a sensor to itself.
func (p *PairIndex) SameSensor(t int) bool {
	a, b := p.Pair(t)
	return a == b
}
