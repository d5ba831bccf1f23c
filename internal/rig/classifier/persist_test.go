package classifier

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rigmodel/internal/fsutil"
	"github.com/banshee-data/rigmodel/internal/timeutil"
)

type memStore struct {
	mu     sync.Mutex
	tables []*TableSnapshot
	sparse []*SparseSnapshot
	fail   error
}

func (m *memStore) InsertTableSnapshot(s *TableSnapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	s.ID = uuid.NewString()
	m.tables = append(m.tables, s)
	return s.ID, nil
}

func (m *memStore) InsertSparseSnapshot(s *SparseSnapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.NewString()
	m.sparse = append(m.sparse, s)
	return s.ID, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	cfg := testConfig().WithSparse(true)
	c := trainScenario(t, cfg)
	c.Finalize()

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, c.Save(fsys, "model/rot.tab"))
	assert.True(t, fsys.Exists("model/rot.tab"))
	assert.True(t, fsys.Exists("model/rot.tab"+CellsSuffix))
	assert.True(t, fsys.Exists("model/rot.tab"+SparseSuffix))

	got, err := Load(fsys, "model/rot.tab", *cfg)
	require.NoError(t, err)
	assert.Equal(t, Ready, got.State())
	assert.Equal(t, c.Query(0, 1, c5x, c5y, c9x, c9y), got.Query(0, 1, c5x, c5y, c9x, c9y))
	assert.Equal(t, c.Samples().Total(), got.Samples().Total())
	assert.Equal(t, c.Samples().Samples(1, 5, 9), got.Samples().Samples(1, 5, 9))
	assert.Equal(t, c.Sparse().Keys(), got.Sparse().Keys())

	// a loaded classifier can be finalized again from its samples
	got.Finalize()
	assert.Equal(t, c.Query(0, 1, c5x, c5y, c9x, c9y), got.Query(0, 1, c5x, c5y, c9x, c9y))
}

func TestLoad_WithoutCompanions(t *testing.T) {
	c := trainScenario(t, testConfig())
	c.Finalize()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, c.Save(fsys, "rot.tab"))
	require.NoError(t, fsys.Remove("rot.tab"+CellsSuffix))

	got, err := Load(fsys, "rot.tab", *testConfig())
	require.NoError(t, err)
	assert.Zero(t, got.Samples().Total())
	assert.True(t, got.Query(0, 1, c5x, c5y, c9x, c9y).Found)
}

func TestLoad_Errors(t *testing.T) {
	c := trainScenario(t, testConfig())
	c.Finalize()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, c.Save(fsys, "rot.tab"))

	_, err := Load(fsys, "rot.tab", *testConfig().WithSensors(3))
	assert.ErrorIs(t, err, ErrConfigMismatch)

	_, err = Load(fsys, "rot.tab", *testConfig().WithGrid(100, 100, 8))
	assert.ErrorIs(t, err, ErrConfigMismatch)

	_, err = Load(fsys, "missing.tab", *testConfig())
	assert.Error(t, err)

	data, err := fsys.ReadFile("rot.tab")
	require.NoError(t, err)
	require.NoError(t, fsys.WriteFile("short.tab", data[:len(data)/2], 0o644))
	_, err = Load(fsys, "short.tab", *testConfig())
	assert.Error(t, err)
}

func TestPersistRestore(t *testing.T) {
	cfg := testConfig().WithSparse(true)
	c := trainScenario(t, cfg)
	c.Finalize()

	clock := timeutil.NewMockClock(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	store := &memStore{}
	id, err := c.Persist(store, clock, "finalize")
	require.NoError(t, err)
	require.Len(t, store.tables, 1)
	require.Len(t, store.sparse, 1)

	snap := store.tables[0]
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, clock.Now().UnixNano(), snap.TakenUnixNanos)
	assert.Equal(t, 2, snap.Sensors)
	assert.Equal(t, 4, snap.Buckets)
	assert.Equal(t, "rotation", snap.Mode)
	assert.Equal(t, 1, snap.PopulatedCells)
	assert.Equal(t, "finalize", snap.Reason)
	assert.Contains(t, snap.ParamsJSON, `"Mode":"rotation"`)
	assert.Equal(t, id, store.sparse[0].TableSnapshotID)
	assert.Equal(t, 1, store.sparse[0].Keys)

	fresh := newClassifier(t, cfg)
	require.NoError(t, fresh.Restore(snap))
	require.NoError(t, fresh.RestoreSparse(store.sparse[0]))
	assert.Equal(t, Ready, fresh.State())
	assert.Equal(t, c.Query(0, 1, c5x, c5y, c9x, c9y), fresh.Query(0, 1, c5x, c5y, c9x, c9y))
	assert.Equal(t, c.Samples().Total(), fresh.Samples().Total())
	assert.Equal(t, c.Sparse().Keys(), fresh.Sparse().Keys())
}

func TestPersist_Errors(t *testing.T) {
	c := trainScenario(t, testConfig())
	c.Finalize()
	clock := timeutil.NewMockClock(time.Now())

	_, err := c.Persist(nil, clock, "x")
	assert.Error(t, err)

	boom := errors.New("disk full")
	_, err = c.Persist(&memStore{fail: boom}, clock, "x")
	assert.ErrorIs(t, err, boom)

	store := &memStore{}
	_, err = c.Persist(store, clock, "x")
	require.NoError(t, err)
	assert.Empty(t, store.sparse, "sparse table disabled")

	other := newClassifier(t, testConfig().WithSensors(3))
	assert.ErrorIs(t, other.Restore(store.tables[0]), ErrConfigMismatch)
	assert.Error(t, other.Restore(nil))
	assert.Error(t, other.RestoreSparse(&SparseSnapshot{}), "sparse table disabled")

	bad := *store.tables[0]
	bad.TableBlob = []byte("not gzip")
	assert.Error(t, newClassifier(t, testConfig()).Restore(&bad))
}
