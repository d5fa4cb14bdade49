package store

import (
	"sync"
	"time"

	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/positions"
)

// PositionsState is a consistent read of the position store.
type PositionsState struct {
	Positions []model.Position
	Loading   bool
	Error     string // Empty when the last load succeeded
	UpdatedAt time.Time
	Version   uint64
}

// PositionStats counts merge outcomes.
type PositionStats struct {
	Positions int
	Inserted  int64
	Replaced  int64
	Stale     int64
	Removed   int64
	Version   uint64
}

// PositionStore holds the wallet's raw positions and the state of the
// feature-level load.
type PositionStore struct {
	mu        sync.RWMutex
	positions []model.Position
	loading   bool
	err       string
	updatedAt time.Time
	version   uint64

	inserted int64
	replaced int64
	stale    int64
	removed  int64
}

// NewPositionStore creates an empty store.
func NewPositionStore() *PositionStore {
	return &PositionStore{}
}

// Set replaces every stored position.
func (s *PositionStore) Set(list []model.Position) {
	cp := make([]model.Position, len(list))
	copy(cp, list)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = cp
	s.updatedAt = time.Now()
	s.version++
}

// Merge upserts updates by account and symbol, dropping any older than
// what is stored.
func (s *PositionStore) Merge(updates []model.Position) positions.MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, res := positions.Merge(s.positions, updates)
	s.positions = merged
	s.inserted += int64(res.Inserted)
	s.replaced += int64(res.Replaced)
	s.stale += int64(res.Stale)
	if res.Inserted+res.Replaced > 0 {
		s.updatedAt = time.Now()
		s.version++
	}
	return res
}

// Reconcile applies a full REST snapshot: keys it omits are dropped, and
// held records newer than the snapshot are kept.
func (s *PositionStore) Reconcile(snapshot []model.Position) positions.MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, res := positions.Reconcile(s.positions, snapshot)
	s.positions = merged
	s.inserted += int64(res.Inserted)
	s.replaced += int64(res.Replaced)
	s.stale += int64(res.Stale)
	s.removed += int64(res.Removed)
	if res.Inserted+res.Replaced+res.Removed > 0 {
		s.updatedAt = time.Now()
		s.version++
	}
	return res
}

// SetLoading marks whether a load is in flight.
func (s *PositionStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// SetError records the feature-level error; an empty string clears it.
func (s *PositionStore) SetError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// Reset clears positions and load state.
func (s *PositionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = nil
	s.loading = false
	s.err = ""
	s.updatedAt = time.Time{}
	s.version++
}

// Snapshot returns a copy of the stored positions.
func (s *PositionStore) Snapshot() []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// State returns positions and load state read together.
func (s *PositionStore) State() PositionsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, len(s.positions))
	copy(out, s.positions)
	return PositionsState{
		Positions: out,
		Loading:   s.loading,
		Error:     s.err,
		UpdatedAt: s.updatedAt,
		Version:   s.version,
	}
}

// Version increases every time the stored positions change.
func (s *PositionStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Stats returns merge counters.
func (s *PositionStore) Stats() PositionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PositionStats{
		Positions: len(s.positions),
		Inserted:  s.inserted,
		Replaced:  s.replaced,
		Stale:     s.stale,
		Removed:   s.removed,
		Version:   s.version,
	}
}
