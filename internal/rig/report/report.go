// Package report renders dense tables for inspection: PNG heatmaps through
// gonum/plot and a self-contained HTML page through go-echarts.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"path"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rigmodel/internal/fsutil"
	"github.com/banshee-data/rigmodel/internal/rig/dense"
)

// Layer selects which statistic of a table is drawn.
type Layer int

const (
	Values Layer = iota
	Counts
)

func (l Layer) String() string {
	if l == Counts {
		return "count"
	}
	return "value"
}

// tableGrid adapts one table to plotter.GridXYZ: columns are the second
// sensor's cells, rows the first sensor's. Empty entries are NaN in the
// value layer.
type tableGrid struct {
	d     *dense.Table
	t     int
	layer Layer
}

func (g tableGrid) Dims() (c, r int) { return g.d.Cells(), g.d.Cells() }
func (g tableGrid) X(c int) float64  { return float64(c) }
func (g tableGrid) Y(r int) float64  { return float64(r) }

func (g tableGrid) Z(c, r int) float64 {
	n := g.d.Count(g.t, r, c)
	if g.layer == Counts {
		return float64(n)
	}
	if n == 0 {
		return math.NaN()
	}
	return g.d.Value(g.t, r, c)
}

// zRange fixes the colour scale: ±π for rotation values, otherwise the data
// range widened to at least one unit.
func zRange(g tableGrid) (lo, hi float64) {
	if g.layer == Values && g.d.Mode().Circular() {
		return -math.Pi, math.Pi
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	c, r := g.Dims()
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			z := g.Z(i, j)
			if math.IsNaN(z) {
				continue
			}
			lo, hi = math.Min(lo, z), math.Max(hi, z)
		}
	}
	if lo > hi {
		return 0, 1
	}
	if hi-lo < 1 {
		hi = lo + 1
	}
	return lo, hi
}

// Heatmap builds the plot of one layer of table t.
func Heatmap(d *dense.Table, t int, layer Layer) (*plot.Plot, error) {
	if t < 0 || t >= d.Tables() {
		return nil, fmt.Errorf("table %d out of range [0,%d)", t, d.Tables())
	}
	g := tableGrid{d: d, t: t, layer: layer}
	hm := plotter.NewHeatMap(g, palette.Heat(16, 1))
	hm.Min, hm.Max = zRange(g)
	hm.NaN = color.Gray{Y: 32}

	a, b := d.Pairs().Pair(t)
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Table %d (sensor %d -> sensor %d) %s %s", t, a, b, d.Mode(), layer)
	p.X.Label.Text = fmt.Sprintf("cell (sensor %d)", b)
	p.Y.Label.Text = fmt.Sprintf("cell (sensor %d)", a)
	p.Add(hm)
	return p, nil
}

// WritePNG renders one layer of table t as a PNG image.
func WritePNG(w io.Writer, d *dense.Table, t int, layer Layer) error {
	p, err := Heatmap(d, t, layer)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render table %d: %w", t, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// PNGName is the file name WritePNGs uses for one layer of table t.
func PNGName(t int, layer Layer) string {
	return fmt.Sprintf("table-%02d-%s.png", t, layer)
}

// WritePNGs writes the value and count heatmaps of every populated table
// into dir and returns the paths written.
func WritePNGs(fsys fsutil.FileSystem, dir string, d *dense.Table) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	var written []string
	for t := 0; t < d.Tables(); t++ {
		if d.Populated(t) == 0 {
			continue
		}
		for _, layer := range []Layer{Values, Counts} {
			var buf bytes.Buffer
			if err := WritePNG(&buf, d, t, layer); err != nil {
				return written, err
			}
			name := path.Join(dir, PNGName(t, layer))
			if err := fsys.WriteFile(name, buf.Bytes(), 0o644); err != nil {
				return written, fmt.Errorf("write %s: %w", name, err)
			}
			written = append(written, name)
		}
	}
	return written, nil
}
