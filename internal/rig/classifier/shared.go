package classifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rigmodel/internal/rig/dense"
	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/rig/sparse"
	"github.com/banshee-data/rigmodel/internal/timeutil"
)

// Snapshot is an immutable view of a finalized classifier. It is safe for
// concurrent use.
type Snapshot struct {
	cfg     Config
	table   *dense.Table
	sparse  *sparse.Table
	version uint64
	taken   time.Time
}

// Snapshot copies the current table, and the sparse table when enabled,
// into an immutable view.
func (c *Classifier) Snapshot() *Snapshot {
	s := &Snapshot{cfg: c.cfg, table: c.table.Clone()}
	if c.sparse != nil {
		s.sparse = c.sparse.Clone()
	}
	return s
}

// Config returns the configuration the snapshot was taken with.
func (s *Snapshot) Config() Config { return s.cfg }

// Version is the publication counter of the Shared that produced s, or zero.
func (s *Snapshot) Version() uint64 { return s.version }

// Taken is when s was published by a Shared.
func (s *Snapshot) Taken() time.Time { return s.taken }

// Query behaves like Classifier.Query.
func (s *Snapshot) Query(s1, s2 int, col1, row1, col2, row2 float64) Result {
	return query(&s.cfg, s.table, s1, s2, col1, row1, col2, row2)
}

// QueryMatches behaves like Classifier.QueryMatches.
func (s *Snapshot) QueryMatches(set match.Set) []match.Estimate {
	return queryMatches(&s.cfg, s.table, set)
}

// Filter behaves like Classifier.Filter.
func (s *Snapshot) Filter(set match.Set, opts FilterOptions) match.Set {
	return filter(&s.cfg, s.table, set, opts)
}

// FilterSparse behaves like Classifier.FilterSparse.
func (s *Snapshot) FilterSparse(set match.Set) match.Set {
	if s.sparse == nil {
		return set.Clone()
	}
	return s.sparse.Filter(set, s.cfg.Grid, s.cfg.SparseThreshold)
}

// Shared lets one writer train a Classifier while any number of readers
// query the last published Snapshot. Training calls serialize on a mutex;
// readers never block.
type Shared struct {
	mu      sync.Mutex
	c       *Classifier
	clock   timeutil.Clock
	version uint64
	current atomic.Pointer[Snapshot]
}

// NewShared takes ownership of c. A Ready classifier is published
// immediately. A nil clock uses the wall clock.
func NewShared(c *Classifier, clock timeutil.Clock) *Shared {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Shared{c: c, clock: clock}
	if c.State() == Ready {
		s.publishLocked()
	}
	return s
}

// AddObservations trains the owned classifier. Once Ready the in-place
// updates become visible to readers at the next Publish or Finalize.
func (s *Shared) AddObservations(set match.Set, est match.Estimate) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.AddObservations(set, est)
}

// Finalize finalizes the owned classifier and publishes the result.
func (s *Shared) Finalize() FinalizeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := s.c.Finalize()
	s.publishLocked()
	return rep
}

// Publish makes the current table visible to readers.
func (s *Shared) Publish() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked()
}

func (s *Shared) publishLocked() *Snapshot {
	snap := s.c.Snapshot()
	s.version++
	snap.version = s.version
	snap.taken = s.clock.Now()
	s.current.Store(snap)
	diagf("published snapshot v%d", snap.version)
	return snap
}

// Do runs fn with exclusive access to the owned classifier.
func (s *Shared) Do(fn func(c *Classifier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.c)
}

// Current returns the last published snapshot, or nil before the first.
func (s *Shared) Current() *Snapshot { return s.current.Load() }

// Query answers from the last published snapshot; nothing is found before
// the first publication.
func (s *Shared) Query(s1, s2 int, col1, row1, col2, row2 float64) Result {
	snap := s.current.Load()
	if snap == nil {
		return Result{}
	}
	return snap.Query(s1, s2, col1, row1, col2, row2)
}

// Filter filters against the last published snapshot. Before the first
// publication every candidate is unanswered.
func (s *Shared) Filter(set match.Set, opts FilterOptions) match.Set {
	snap := s.current.Load()
	if snap == nil {
		return filter(&s.c.cfg, nil, set, opts)
	}
	return snap.Filter(set, opts)
}

// RunSnapshots persists the owned classifier through store every interval
// until ctx is cancelled. Failed writes are logged and retried at the next
// tick.
func (s *Shared) RunSnapshots(ctx context.Context, store SnapshotStore, interval time.Duration) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.mu.Lock()
			_, err := s.c.Persist(store, s.clock, "periodic")
			s.mu.Unlock()
			if err != nil {
				opsf("periodic snapshot failed: %v", err)
			}
		}
	}
}
