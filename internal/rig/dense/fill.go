package dense

import "github.com/banshee-data/rigmodel/internal/rig/stats"

// DefaultMinVotes is the confidence floor used by FillGaps.
const DefaultMinVotes = 100

// Fill records one entry resolved by FillGaps through a pivot cell.
type Fill struct {
	Table int
	A     int
	B     int
	Pivot int
}

// FillGaps completes under-observed entries by composition through a pivot
// cell. For the table of sensors (s1, s2), s1 <= s2, each entry (j, l) with
// fewer than floor votes takes the pivot k maximising
//
//	m = min(count(s1,s2,j,k), count(s2,s2,k,l)),  m >= floor
//
// and becomes value(s1,s2,j,k) + value(s2,s2,k,l) with count m. Rotation
// values are wrapped to (-π, π]. Same-sensor tables are filled first, then
// cross-sensor tables, in one in-place pass that is not iterated.
func (d *Table) FillGaps(floor int) []Fill {
	var fills []Fill
	n := d.pairs.Sensors()
	for s := 0; s < n; s++ {
		fills = d.fillTable(s, s, floor, fills)
	}
	for s1 := 0; s1 < n; s1++ {
		for s2 := s1 + 1; s2 < n; s2++ {
			fills = d.fillTable(s1, s2, floor, fills)
		}
	}
	return fills
}

func (d *Table) fillTable(s1, s2, floor int, fills []Fill) []Fill {
	t, _ := d.pairs.Index(s1, s2)
	t2, _ := d.pairs.Index(s2, s2)
	nel := d.nel
	base, base2 := t*nel*nel, t2*nel*nel
	filled := 0

	for j := 0; j < nel; j++ {
		for l := 0; l < nel; l++ {
			if d.count[base+j*nel+l] >= floor {
				continue
			}
			best, bestVotes := -1, -1
			for k := 0; k < nel; k++ {
				if s1 == s2 && k == l {
					continue
				}
				m := min(d.count[base+j*nel+k], d.count[base2+k*nel+l])
				if m < floor {
					continue
				}
				if best == -1 || m > bestVotes {
					best, bestVotes = k, m
				}
			}
			if best == -1 {
				continue
			}
			v := d.value[base+j*nel+best] + d.value[base2+best*nel+l]
			if d.mode.Circular() {
				v = stats.WrapAngle(v)
			}
			d.Set(t, j, l, v, bestVotes)
			fills = append(fills, Fill{Table: t, A: j, B: l, Pivot: best})
			filled++
		}
	}
	diagf("filled table (%d,%d) with %d values (%.1f%%)", s1, s2, filled, 100*float64(filled)/float64(nel*nel))
	return fills
}
