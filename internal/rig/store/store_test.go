package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rigmodel/internal/rig/classifier"
	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/timeutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trained(t *testing.T, sparse bool) *classifier.Classifier {
	t.Helper()
	cfg := classifier.DefaultConfig().WithGrid(100, 100, 4).WithSparse(sparse)
	c, err := classifier.New(*cfg)
	require.NoError(t, err)
	set := match.Set{{
		Src:        match.Feature{Sensor: 0, Col: 37.5, Row: 37.5},
		Candidates: []match.Candidate{{Dst: match.Feature{Sensor: 1, Col: 37.5, Row: 62.5}}},
	}}
	for i := 0; i < 50; i++ {
		c.AddObservations(set, match.Estimate{Angle: 0.2})
	}
	c.Finalize()
	return c
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// a second run is a no-op
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	require.NoError(t, s.MigrateUp())
}

func TestPersistAndRestore(t *testing.T) {
	s := openTestStore(t)
	c := trained(t, true)
	clock := timeutil.NewMockClock(time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC))

	id, err := c.Persist(s, clock, "finalize")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := s.GetTableSnapshot(id)
	require.NoError(t, err)
	assert.Equal(t, "finalize", snap.Reason)
	assert.Equal(t, clock.Now().UnixNano(), snap.TakenUnixNanos)
	assert.Equal(t, 1, snap.PopulatedCells)

	latest, err := s.LatestTableSnapshot(2, 4, "rotation")
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)

	sp, err := s.SparseSnapshotFor(id)
	require.NoError(t, err)
	assert.Equal(t, 1, sp.Keys)

	fresh, err := classifier.New(c.Config())
	require.NoError(t, err)
	require.NoError(t, fresh.Restore(latest))
	require.NoError(t, fresh.RestoreSparse(sp))
	assert.Equal(t, c.Query(0, 1, 37.5, 37.5, 37.5, 62.5), fresh.Query(0, 1, 37.5, 37.5, 37.5, 62.5))
	assert.Equal(t, c.Sparse().Keys(), fresh.Sparse().Keys())
}

func TestLookups_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTableSnapshot("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestTableSnapshot(2, 4, "rotation")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SparseSnapshotFor("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.InsertSparseSnapshot(&classifier.SparseSnapshot{TableSnapshotID: "nope", Blob: []byte{1}})
	assert.Error(t, err, "foreign key enforced")
	_, err = s.InsertTableSnapshot(nil)
	assert.Error(t, err)
}

func TestListAndPrune(t *testing.T) {
	s := openTestStore(t)
	c := trained(t, false)
	clock := timeutil.NewMockClock(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := c.Persist(s, clock, "periodic")
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Hour)
	}

	list, err := s.ListTableSnapshots(0)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, ids[3], list[0].ID, "newest first")
	assert.Positive(t, list[0].BlobBytes)
	assert.False(t, list[0].HasSparse)

	list, err = s.ListTableSnapshots(2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// everything is older than now, but the newest one is kept
	n, err := s.PruneBefore(clock.Now().UnixNano(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	latest, err := s.LatestTableSnapshot(2, 4, "rotation")
	require.NoError(t, err)
	assert.Equal(t, ids[3], latest.ID)
}

func TestPrune_CascadesSparse(t *testing.T) {
	s := openTestStore(t)
	c := trained(t, true)
	clock := timeutil.NewMockClock(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	id, err := c.Persist(s, clock, "manual")
	require.NoError(t, err)

	n, err := s.PruneBefore(clock.Now().Add(time.Second).UnixNano(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.SparseSnapshotFor(id)
	assert.ErrorIs(t, err, ErrNotFound)
}
