package classifier

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/rigmodel/internal/fsutil"
	"github.com/banshee-data/rigmodel/internal/rig/dense"
	"github.com/banshee-data/rigmodel/internal/rig/samples"
	"github.com/banshee-data/rigmodel/internal/rig/sparse"
	"github.com/banshee-data/rigmodel/internal/timeutil"
)

// ErrConfigMismatch is returned when a stored table was built for a
// different rig than the configuration it is loaded into.
var ErrConfigMismatch = errors.New("classifier: stored table does not match configuration")

// File suffixes of the companion files written next to a table file.
const (
	CellsSuffix  = ".cells"
	SparseSuffix = ".sparse"
)

// Save writes the dense table to path, the training samples to
// path+CellsSuffix and, when enabled, the sparse table to path+SparseSuffix.
func (c *Classifier) Save(fsys fsutil.FileSystem, path string) error {
	if err := writeFile(fsys, path, c.table.Encode); err != nil {
		return err
	}
	if err := writeFile(fsys, path+CellsSuffix, func(w io.Writer) error {
		return dense.WriteCells(w, c.acc)
	}); err != nil {
		return err
	}
	if c.sparse != nil {
		if err := writeFile(fsys, path+SparseSuffix, c.sparse.Save); err != nil {
			return err
		}
	}
	opsf("saved classifier to %s (%d sensors, %d buckets, state=%v)", path, c.cfg.Sensors, c.cfg.Grid.N, c.state)
	return nil
}

// Load reads a classifier saved by Save. The table header must agree with
// cfg's sensor count and grid resolution. Missing companion files leave the
// samples or sparse votes empty. The classifier is returned Ready.
func Load(fsys fsutil.FileSystem, path string, cfg Config) (*Classifier, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	t, err := dense.Decode(f, cfg.Mode)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", path, err)
	}
	if err := c.adopt(t); err != nil {
		return nil, fmt.Errorf("load table %s: %w", path, err)
	}

	if fsys.Exists(path + CellsSuffix) {
		if err := readFile(fsys, path+CellsSuffix, func(r io.Reader) error {
			return dense.ReadCells(r, c.acc)
		}); err != nil {
			return nil, err
		}
	}
	if c.sparse != nil && fsys.Exists(path+SparseSuffix) {
		s := sparse.New()
		if err := readFile(fsys, path+SparseSuffix, s.Load); err != nil {
			return nil, err
		}
		c.adoptSparse(s)
	}
	c.state = Ready
	opsf("loaded classifier from %s (%d samples)", path, c.acc.Total())
	return c, nil
}

// adopt replaces the table with t after checking it fits the configuration.
func (c *Classifier) adopt(t *dense.Table) error {
	if t.Sensors() != c.cfg.Sensors || t.Buckets() != c.cfg.Grid.N {
		return fmt.Errorf("%w: stored %d sensors x %d buckets, configured %d x %d",
			ErrConfigMismatch, t.Sensors(), t.Buckets(), c.cfg.Sensors, c.cfg.Grid.N)
	}
	c.table = t
	return nil
}

func writeFile(fsys fsutil.FileSystem, path string, encode func(io.Writer) error) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func readFile(fsys fsutil.FileSystem, path string, decode func(io.Reader) error) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := decode(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// TableSnapshot is a stored copy of a dense table and its samples.
type TableSnapshot struct {
	ID             string // assigned by the store
	TakenUnixNanos int64
	Sensors        int
	Buckets        int
	Mode           string
	ParamsJSON     string
	TableBlob      []byte // gzip-compressed table file
	CellsBlob      []byte // gzip-compressed cells file
	PopulatedCells int
	Reason         string
}

// SparseSnapshot is a stored copy of a sparse table taken with a
// TableSnapshot.
type SparseSnapshot struct {
	ID              string
	TableSnapshotID string
	TakenUnixNanos  int64
	Keys            int
	Blob            []byte // gzip-compressed sparse record file
}

// SnapshotStore persists TableSnapshot records. Implemented by store.Store.
type SnapshotStore interface {
	InsertTableSnapshot(s *TableSnapshot) (string, error)
}

// SparseStore is an optional interface for stores that also keep sparse
// tables.
type SparseStore interface {
	SnapshotStore
	InsertSparseSnapshot(s *SparseSnapshot) (string, error)
}

// compress gzips whatever encode writes.
func compress(encode func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := encode(gz); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompress feeds the gunzipped blob to decode.
func decompress(blob []byte, decode func(io.Reader) error) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	return decode(gz)
}

// TakeSnapshot encodes the classifier's table and samples into a
// TableSnapshot stamped with clock.
func (c *Classifier) TakeSnapshot(clock timeutil.Clock, reason string) (*TableSnapshot, error) {
	tableBlob, err := compress(c.table.Encode)
	if err != nil {
		return nil, fmt.Errorf("compress table: %w", err)
	}
	cellsBlob, err := compress(func(w io.Writer) error { return dense.WriteCells(w, c.acc) })
	if err != nil {
		return nil, fmt.Errorf("compress cells: %w", err)
	}
	params, err := json.Marshal(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	populated := 0
	for t := 0; t < c.table.Tables(); t++ {
		populated += c.table.Populated(t)
	}
	return &TableSnapshot{
		TakenUnixNanos: clock.Now().UnixNano(),
		Sensors:        c.cfg.Sensors,
		Buckets:        c.cfg.Grid.N,
		Mode:           c.cfg.Mode.String(),
		ParamsJSON:     string(params),
		TableBlob:      tableBlob,
		CellsBlob:      cellsBlob,
		PopulatedCells: populated,
		Reason:         reason,
	}, nil
}

// Persist writes a snapshot of the classifier through store. When store is
// also a SparseStore and the sparse table is enabled, the sparse votes are
// stored alongside. It returns the table snapshot id.
func (c *Classifier) Persist(store SnapshotStore, clock timeutil.Clock, reason string) (string, error) {
	if store == nil {
		return "", fmt.Errorf("persist: nil store")
	}
	snap, err := c.TakeSnapshot(clock, reason)
	if err != nil {
		return "", err
	}
	id, err := store.InsertTableSnapshot(snap)
	if err != nil {
		return "", fmt.Errorf("insert table snapshot: %w", err)
	}

	if ss, ok := store.(SparseStore); ok && c.sparse != nil {
		blob, err := compress(c.sparse.Save)
		if err != nil {
			return id, fmt.Errorf("compress sparse table: %w", err)
		}
		sp := &SparseSnapshot{
			TableSnapshotID: id,
			TakenUnixNanos:  snap.TakenUnixNanos,
			Keys:            c.sparse.Len(),
			Blob:            blob,
		}
		if _, err := ss.InsertSparseSnapshot(sp); err != nil {
			// the table snapshot stands on its own
			opsf("failed to persist sparse snapshot for %s: %v", id, err)
		}
	}
	opsf("persisted snapshot %s: reason=%s populated=%d table_blob=%d bytes cells_blob=%d bytes",
		id, reason, snap.PopulatedCells, len(snap.TableBlob), len(snap.CellsBlob))
	return id, nil
}

// Restore replaces the table and samples with the contents of snap and
// enters Ready. snap must match the configured sensors and buckets.
func (c *Classifier) Restore(snap *TableSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil table snapshot")
	}
	if snap.Sensors != c.cfg.Sensors || snap.Buckets != c.cfg.Grid.N {
		return fmt.Errorf("%w: snapshot %s has %d sensors x %d buckets", ErrConfigMismatch, snap.ID, snap.Sensors, snap.Buckets)
	}
	var t *dense.Table
	if err := decompress(snap.TableBlob, func(r io.Reader) error {
		var err error
		t, err = dense.Decode(r, c.cfg.Mode)
		return err
	}); err != nil {
		return fmt.Errorf("restore table %s: %w", snap.ID, err)
	}
	if err := c.adopt(t); err != nil {
		return err
	}
	acc := samples.New(t.Tables(), t.Cells())
	if len(snap.CellsBlob) > 0 {
		if err := decompress(snap.CellsBlob, func(r io.Reader) error { return dense.ReadCells(r, acc) }); err != nil {
			return fmt.Errorf("restore cells %s: %w", snap.ID, err)
		}
	}
	c.acc.Destroy()
	c.acc = acc
	c.state = Ready
	diagf("restored snapshot %s (%d samples)", snap.ID, acc.Total())
	return nil
}

// RestoreSparse serves the sparse table stored in snap and seeds the raw
// tally with it. It is an error when the sparse table is disabled.
func (c *Classifier) RestoreSparse(snap *SparseSnapshot) error {
	if c.sparse == nil {
		return fmt.Errorf("restore sparse: sparse table disabled")
	}
	if snap == nil {
		return fmt.Errorf("nil sparse snapshot")
	}
	s := sparse.New()
	if err := decompress(snap.Blob, s.Load); err != nil {
		return fmt.Errorf("restore sparse %s: %w", snap.ID, err)
	}
	c.adoptSparse(s)
	return nil
}
