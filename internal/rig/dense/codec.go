package dense

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/rigmodel/internal/rig/samples"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// byteOrder is fixed so files move between hosts unchanged.
var byteOrder = binary.LittleEndian

// maxEntries bounds the allocation Decode will make from a header.
const maxEntries = 1 << 28

// ErrBadHeader is returned when a table header is not self-consistent.
var ErrBadHeader = errors.New("dense: inconsistent table header")

// Header is the fixed prefix of a table file.
type Header struct {
	Sensors  int32
	Tables   int32
	Buckets  int32
	Elements int32
}

// Header returns the file header describing d.
func (d *Table) Header() Header {
	return Header{
		Sensors:  int32(d.Sensors()),
		Tables:   int32(d.Tables()),
		Buckets:  int32(d.nbuckets),
		Elements: int32(d.nel),
	}
}

// Validate checks the header fields agree with each other.
func (h Header) Validate() error {
	if h.Sensors <= 0 || h.Buckets <= 0 {
		return fmt.Errorf("%w: sensors=%d buckets=%d", ErrBadHeader, h.Sensors, h.Buckets)
	}
	if int64(h.Tables) != int64(h.Sensors)*int64(h.Sensors+1)/2 {
		return fmt.Errorf("%w: %d tables for %d sensors", ErrBadHeader, h.Tables, h.Sensors)
	}
	if int64(h.Elements) != int64(h.Buckets)*int64(h.Buckets) {
		return fmt.Errorf("%w: %d elements for %d buckets", ErrBadHeader, h.Elements, h.Buckets)
	}
	if int64(h.Tables)*int64(h.Elements)*int64(h.Elements) > maxEntries {
		return fmt.Errorf("%w: %d tables of %d² entries is too large", ErrBadHeader, h.Tables, h.Elements)
	}
	return nil
}

func (h Header) write(w io.Writer) error {
	return binary.Write(w, byteOrder, h)
}

// Encode writes d in the table file layout: the header, counts (int32),
// values, cosine sums, sine sums (float64), per-table maximum counts (int32)
// and per-table maximum |value| (float64).
func (d *Table) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	counts := make([]int32, len(d.count))
	for i, c := range d.count {
		counts[i] = int32(c)
	}
	maxCounts := make([]int32, len(d.maxCount))
	for i, c := range d.maxCount {
		maxCounts[i] = int32(c)
	}
	if err := d.Header().write(bw); err != nil {
		return fmt.Errorf("write table header: %w", err)
	}
	for _, part := range []any{counts, d.value, d.cos, d.sin, maxCounts, d.maxAbs} {
		if err := binary.Write(bw, byteOrder, part); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// Decode reads a table written by Encode. The mode is not part of the file
// and must be supplied by the caller.
func Decode(r io.Reader, mode stats.Mode) (*Table, error) {
	br := bufio.NewReader(r)
	var h Header
	if err := binary.Read(br, byteOrder, &h); err != nil {
		return nil, fmt.Errorf("read table header: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	d := New(int(h.Sensors), int(h.Buckets), mode)

	counts := make([]int32, len(d.count))
	maxCounts := make([]int32, len(d.maxCount))
	for _, part := range []any{counts, d.value, d.cos, d.sin, maxCounts, d.maxAbs} {
		if err := binary.Read(br, byteOrder, part); err != nil {
			return nil, fmt.Errorf("read table body: %w", err)
		}
	}
	for i, c := range counts {
		d.count[i] = int(c)
	}
	for i, c := range maxCounts {
		d.maxCount[i] = int(c)
	}
	return d, nil
}

// WriteCells writes acc in the cells file layout: for every table, source
// cell and destination cell in that order, an int32 sample count followed by
// that many float64 samples.
func WriteCells(w io.Writer, acc *samples.Accumulator) error {
	bw := bufio.NewWriter(w)
	ntables, nel := acc.Shape()
	for t := 0; t < ntables; t++ {
		for a := 0; a < nel; a++ {
			for b := 0; b < nel; b++ {
				vals := acc.Samples(t, a, b)
				if err := binary.Write(bw, byteOrder, int32(len(vals))); err != nil {
					return fmt.Errorf("write cells: %w", err)
				}
				if len(vals) == 0 {
					continue
				}
				if err := binary.Write(bw, byteOrder, vals); err != nil {
					return fmt.Errorf("write cells: %w", err)
				}
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write cells: %w", err)
	}
	return nil
}

// ReadCells replaces the contents of acc with a cells file of the same
// shape. On error acc may be partially populated.
func ReadCells(r io.Reader, acc *samples.Accumulator) error {
	br := bufio.NewReader(r)
	ntables, nel := acc.Shape()
	acc.Reset()
	var buf []float64
	for t := 0; t < ntables; t++ {
		for a := 0; a < nel; a++ {
			for b := 0; b < nel; b++ {
				var n int32
				if err := binary.Read(br, byteOrder, &n); err != nil {
					return fmt.Errorf("read cells (%d,%d,%d): %w", t, a, b, err)
				}
				if n < 0 || n > maxEntries {
					return fmt.Errorf("read cells (%d,%d,%d): bad sample count %d", t, a, b, n)
				}
				if n == 0 {
					continue
				}
				if cap(buf) < int(n) {
					buf = make([]float64, n)
				}
				buf = buf[:n]
				if err := binary.Read(br, byteOrder, buf); err != nil {
					return fmt.Errorf("read cells (%d,%d,%d): %w", t, a, b, err)
				}
				acc.Replace(t, a, b, buf)
			}
		}
	}
	if _, err := br.Peek(1); err == nil {
		opsf("cells file has trailing bytes after %d tables", ntables)
	}
	return nil
}
