// Package cells maps image coordinates onto the n×n subdivision of a camera
// image and sensor pairs onto linear table indices.
//
// Cell ids are dense, zero-based and row-major:
//
//	CellOf(col, row) = floor(row/height*n)*n + floor(col/width*n)
package cells

import "math"

// CellOf returns the cell id of (col, row) in a width×height image split into
// n×n cells. There is no error path: callers keep 0 <= col < width and
// 0 <= row < height (see Clamp). Out-of-range input yields an out-of-range id.
func CellOf(col, row float64, width, height, n int) int {
	r := int(math.Floor(row / float64(height) * float64(n)))
	c := int(math.Floor(col / float64(width) * float64(n)))
	return r*n + c
}

// CellCenter returns the image coordinate of the centroid of cell id.
// Used for diagnostics only.
func CellCenter(id, width, height, n int) (col, row float64) {
	r := id / n
	c := id - r*n
	row = (float64(r) + .5) * float64(height) / float64(n)
	col = (float64(c) + .5) * float64(width) / float64(n)
	return col, row
}

// Clamp pulls (col, row) into [0,width) × [0,height).
func Clamp(col, row float64, width, height int) (float64, float64) {
	maxCol := math.Nextafter(float64(width), 0)
	maxRow := math.Nextafter(float64(height), 0)
	return math.Min(math.Max(col, 0), maxCol), math.Min(math.Max(row, 0), maxRow)
}

// Grid bundles the image geometry shared by every sensor of a rig.
type Grid struct {
	Width  int // image width in pixels
	Height int // image height in pixels
	N      int // cells per side
}

// Cells returns the number of cells per image, N².
func (g Grid) Cells() int { return g.N * g.N }

// Cell returns the cell id of (col, row).
func (g Grid) Cell(col, row float64) int {
	return CellOf(col, row, g.Width, g.Height, g.N)
}

// ClampedCell clamps (col, row) into the image before mapping it.
func (g Grid) ClampedCell(col, row float64) int {
	col, row = Clamp(col, row, g.Width, g.Height)
	return g.Cell(col, row)
}

// Center returns the centroid of cell id.
func (g Grid) Center(id int) (col, row float64) {
	return CellCenter(id, g.Width, g.Height, g.N)
}

// Valid reports whether the geometry can be used for cell lookups.
func (g Grid) Valid() bool {
	return g.Width > 0 && g.Height > 0 && g.N > 0
}
