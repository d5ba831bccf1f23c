package report

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rigmodel/internal/fsutil"
	"github.com/banshee-data/rigmodel/internal/rig/dense"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

func sampleTable(mode stats.Mode) *dense.Table {
	d := dense.New(2, 2, mode)
	d.Set(1, 0, 3, 0.25, 40)
	d.Set(1, 2, 1, -0.5, 10)
	d.Set(0, 1, 1, 0, 40)
	return d
}

func TestTableGrid(t *testing.T) {
	d := sampleTable(stats.Rotation)
	g := tableGrid{d: d, t: 1, layer: Values}
	c, r := g.Dims()
	assert.Equal(t, 4, c)
	assert.Equal(t, 4, r)
	assert.Equal(t, 0.25, g.Z(3, 0))
	assert.True(t, math.IsNaN(g.Z(0, 3)))

	counts := tableGrid{d: d, t: 1, layer: Counts}
	assert.Equal(t, 40.0, counts.Z(3, 0))
	assert.Zero(t, counts.Z(0, 3))
}

func TestZRange(t *testing.T) {
	lo, hi := zRange(tableGrid{d: sampleTable(stats.Rotation), t: 1, layer: Values})
	assert.Equal(t, -math.Pi, lo)
	assert.Equal(t, math.Pi, hi)

	lo, hi = zRange(tableGrid{d: sampleTable(stats.Translation), t: 1, layer: Counts})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 40.0, hi)

	lo, hi = zRange(tableGrid{d: dense.New(1, 2, stats.Translation), t: 0, layer: Values})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, sampleTable(stats.Rotation), 1, Values))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	assert.Error(t, WritePNG(&buf, sampleTable(stats.Rotation), 5, Values))
}

func TestWritePNGs_SkipsEmptyTables(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	written, err := WritePNGs(fsys, "out", sampleTable(stats.Translation))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"out/table-00-value.png", "out/table-00-count.png",
		"out/table-01-value.png", "out/table-01-count.png",
	}, written)
	assert.False(t, fsys.Exists("out/"+PNGName(2, Values)))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleTable(stats.Rotation)))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "renders a full page")
	assert.Contains(t, html, "Populated entries per sensor pair")
	assert.Contains(t, html, "Table 1: sensor 0")
	assert.NotContains(t, html, "Table 2:")
}
