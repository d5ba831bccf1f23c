package classifier

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/banshee-data/rigmodel/internal/fsutil"
)

var byteOrder = binary.LittleEndian

// maxOdometry bounds the record count ReadOdometry accepts.
const maxOdometry = 1 << 24

// WriteOdometry writes an int32 count followed by one float64 distance per
// record.
func WriteOdometry(w io.Writer, dists []float64) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, byteOrder, int32(len(dists))); err != nil {
		return fmt.Errorf("write odometry: %w", err)
	}
	if err := binary.Write(bw, byteOrder, dists); err != nil {
		return fmt.Errorf("write odometry: %w", err)
	}
	return bw.Flush()
}

// ReadOdometry reads distances written by WriteOdometry.
func ReadOdometry(r io.Reader) ([]float64, error) {
	br := bufio.NewReader(r)
	var n int32
	if err := binary.Read(br, byteOrder, &n); err != nil {
		return nil, fmt.Errorf("read odometry count: %w", err)
	}
	if n < 0 || n > maxOdometry {
		return nil, fmt.Errorf("read odometry: bad count %d", n)
	}
	dists := make([]float64, n)
	if err := binary.Read(br, byteOrder, dists); err != nil {
		return nil, fmt.Errorf("read odometry: %w", err)
	}
	return dists, nil
}

// SaveOdometry writes dists to path on fsys.
func SaveOdometry(fsys fsutil.FileSystem, path string, dists []float64) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteOdometry(f, dists); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	diagf("saved %d odometry records to %s", len(dists), path)
	return nil
}

// LoadOdometry reads distances from path on fsys.
func LoadOdometry(fsys fsutil.FileSystem, path string) ([]float64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	dists, err := ReadOdometry(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	diagf("read %d odometry records from %s", len(dists), path)
	return dists, nil
}
