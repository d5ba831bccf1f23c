package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rigmodel/internal/rig/dense"
)

// AssetsHost is where the rendered page loads the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// tableScatter draws table t as a coloured scatter: one point per populated
// entry at (cellB, cellA), coloured by value.
func tableScatter(d *dense.Table, t int) *charts.Scatter {
	nel := d.Cells()
	pts := make([]opts.ScatterData, 0, d.Populated(t))
	lo, hi := math.Inf(1), math.Inf(-1)
	for a := 0; a < nel; a++ {
		for b := 0; b < nel; b++ {
			n := d.Count(t, a, b)
			if n == 0 {
				continue
			}
			v := d.Value(t, a, b)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			pts = append(pts, opts.ScatterData{Value: []interface{}{b, a, v, n}})
		}
	}
	if d.Mode().Circular() {
		lo, hi = -math.Pi, math.Pi
	} else if lo > hi {
		lo, hi = 0, 1
	}

	sa, sb := d.Pairs().Pair(t)
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "700px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Table %d: sensor %d -> sensor %d", t, sa, sb),
			Subtitle: fmt.Sprintf("mode=%s populated=%d max_count=%d", d.Mode(), len(pts), d.MaxCount(t)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: nel - 1, Name: fmt.Sprintf("cell (sensor %d)", sb), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: nel - 1, Name: fmt.Sprintf("cell (sensor %d)", sa), NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("entries", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	return scatter
}

// populatedBar charts the populated entry count of every table.
func populatedBar(d *dense.Table) *charts.Bar {
	x := make([]string, d.Tables())
	y := make([]opts.BarData, d.Tables())
	for t := range x {
		a, b := d.Pairs().Pair(t)
		x[t] = fmt.Sprintf("%d-%d", a, b)
		y[t] = opts.BarData{Value: d.Populated(t)}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "400px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Populated entries per sensor pair"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("populated", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// WriteHTML renders a page with the per-pair population bar chart followed
// by a scatter heatmap of every populated table.
func WriteHTML(w io.Writer, d *dense.Table) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(populatedBar(d))
	for t := 0; t < d.Tables(); t++ {
		if d.Populated(t) > 0 {
			page.AddCharts(tableScatter(d, t))
		}
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render tables: %w", err)
	}
	return nil
}
