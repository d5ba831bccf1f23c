// Package store persists classifier snapshots in SQLite.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary. Table and sparse snapshots are stored as gzip-compressed blobs in
// the binary file layouts of the dense and sparse packages and keyed by
// random UUIDs.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/rigmodel/internal/rig/classifier"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("store: snapshot not found")

// Store is a SQLite snapshot database. It implements
// classifier.SparseStore.
type Store struct {
	*sql.DB
}

var _ classifier.SparseStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection keeps the pragmas below in
	// force for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	opsf("opened snapshot store %s", path)
	return s, nil
}

// MigrateUp runs all pending migrations. It is a no-op at the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back every migration.
func (s *Store) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version, or 0 when none is.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger routes golang-migrate output to the diag stream.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { diagf("[migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                           { return false }

// InsertTableSnapshot stores snap, assigning it a new id when it has none,
// and returns the id.
func (s *Store) InsertTableSnapshot(snap *classifier.TableSnapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("nil table snapshot")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	params := snap.ParamsJSON
	if params == "" {
		params = "{}"
	}
	_, err := s.Exec(`INSERT INTO table_snapshots (snapshot_id, taken_unix_nanos, sensors, buckets, mode, params_json, table_blob, cells_blob, populated_cells, snapshot_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.TakenUnixNanos, snap.Sensors, snap.Buckets, snap.Mode, params,
		snap.TableBlob, snap.CellsBlob, snap.PopulatedCells, snap.Reason)
	if err != nil {
		return "", fmt.Errorf("insert table snapshot: %w", err)
	}
	tracef("inserted table snapshot %s (%d bytes)", snap.ID, len(snap.TableBlob)+len(snap.CellsBlob))
	return snap.ID, nil
}

// InsertSparseSnapshot stores snap. Its TableSnapshotID must name a stored
// table snapshot.
func (s *Store) InsertSparseSnapshot(snap *classifier.SparseSnapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("nil sparse snapshot")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	_, err := s.Exec(`INSERT INTO sparse_snapshots (snapshot_id, table_snapshot_id, taken_unix_nanos, key_count, sparse_blob)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.TableSnapshotID, snap.TakenUnixNanos, snap.Keys, snap.Blob)
	if err != nil {
		return "", fmt.Errorf("insert sparse snapshot: %w", err)
	}
	tracef("inserted sparse snapshot %s for %s", snap.ID, snap.TableSnapshotID)
	return snap.ID, nil
}

const tableColumns = `snapshot_id, taken_unix_nanos, sensors, buckets, mode, params_json, table_blob, cells_blob, populated_cells, snapshot_reason`

func scanTable(row *sql.Row) (*classifier.TableSnapshot, error) {
	var snap classifier.TableSnapshot
	err := row.Scan(&snap.ID, &snap.TakenUnixNanos, &snap.Sensors, &snap.Buckets, &snap.Mode,
		&snap.ParamsJSON, &snap.TableBlob, &snap.CellsBlob, &snap.PopulatedCells, &snap.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetTableSnapshot returns the table snapshot with the given id.
func (s *Store) GetTableSnapshot(id string) (*classifier.TableSnapshot, error) {
	snap, err := scanTable(s.QueryRow(`SELECT `+tableColumns+` FROM table_snapshots WHERE snapshot_id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get table snapshot %s: %w", id, err)
	}
	return snap, nil
}

// LatestTableSnapshot returns the most recent table snapshot of a rig with
// the given shape and mode.
func (s *Store) LatestTableSnapshot(sensors, buckets int, mode string) (*classifier.TableSnapshot, error) {
	snap, err := scanTable(s.QueryRow(`SELECT `+tableColumns+` FROM table_snapshots
		WHERE sensors = ? AND buckets = ? AND mode = ?
		ORDER BY taken_unix_nanos DESC, rowid DESC LIMIT 1`, sensors, buckets, mode))
	if err != nil {
		return nil, fmt.Errorf("latest table snapshot (%d sensors, %d buckets, %s): %w", sensors, buckets, mode, err)
	}
	return snap, nil
}

// SparseSnapshotFor returns the newest sparse snapshot taken with the table
// snapshot tableID.
func (s *Store) SparseSnapshotFor(tableID string) (*classifier.SparseSnapshot, error) {
	var snap classifier.SparseSnapshot
	err := s.QueryRow(`SELECT snapshot_id, table_snapshot_id, taken_unix_nanos, key_count, sparse_blob
		FROM sparse_snapshots WHERE table_snapshot_id = ?
		ORDER BY taken_unix_nanos DESC, rowid DESC LIMIT 1`, tableID).
		Scan(&snap.ID, &snap.TableSnapshotID, &snap.TakenUnixNanos, &snap.Keys, &snap.Blob)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sparse snapshot for %s: %w", tableID, err)
	}
	return &snap, nil
}

// Summary describes a stored table snapshot without its blobs.
type Summary struct {
	ID             string
	TakenUnixNanos int64
	Sensors        int
	Buckets        int
	Mode           string
	PopulatedCells int
	Reason         string
	BlobBytes      int64
	HasSparse      bool
}

// ListTableSnapshots returns up to limit snapshot summaries, newest first.
// A non-positive limit returns all of them.
func (s *Store) ListTableSnapshots(limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.Query(`SELECT t.snapshot_id, t.taken_unix_nanos, t.sensors, t.buckets, t.mode, t.populated_cells, t.snapshot_reason,
			length(t.table_blob) + coalesce(length(t.cells_blob), 0),
			EXISTS (SELECT 1 FROM sparse_snapshots p WHERE p.table_snapshot_id = t.snapshot_id)
		FROM table_snapshots t
		ORDER BY t.taken_unix_nanos DESC, t.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list table snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.TakenUnixNanos, &sum.Sensors, &sum.Buckets, &sum.Mode,
			&sum.PopulatedCells, &sum.Reason, &sum.BlobBytes, &sum.HasSparse); err != nil {
			return nil, fmt.Errorf("scan table snapshot: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// PruneBefore deletes table snapshots taken before unixNanos, and their
// sparse snapshots, keeping at least the newest keep of them. It returns
// the number of table snapshots deleted.
func (s *Store) PruneBefore(unixNanos int64, keep int) (int64, error) {
	res, err := s.Exec(`DELETE FROM table_snapshots
		WHERE taken_unix_nanos < ?
		AND snapshot_id NOT IN (
			SELECT snapshot_id FROM table_snapshots ORDER BY taken_unix_nanos DESC, rowid DESC LIMIT ?
		)`, unixNanos, max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("prune table snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		diagf("pruned %d table snapshots taken before %d", n, unixNanos)
	}
	return n, nil
}
