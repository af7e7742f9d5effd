package forecast

import (
	"context"
	"sync"
	"time"
)

// Point is one forecast bucket in minor currency units.
type Point struct {
	Period   time.Time `json:"period"`
	Estimate int64     `json:"estimate_minor"`
	Lower    int64     `json:"lower_minor"`
	Upper    int64     `json:"upper_minor"`
}

// Snapshot is the immutable output of one forecast run. Later runs
// supersede it by appending new snapshots, never by mutation.
type Snapshot struct {
	Category      string    `json:"category"`
	Horizon       []Point   `json:"horizon"`
	GeneratedAt   time.Time `json:"generated_at"`
	LedgerVersion int64     `json:"ledger_version"`
}

// SnapshotStore retains forecast history per category.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Latest(ctx context.Context, category string) (*Snapshot, error)
	History(ctx context.Context, category string) ([]Snapshot, error)
}

// MemorySnapshotStore keeps snapshot history in memory. Snapshots are
// derived data; they can always be recomputed from the ledger.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	byCat map[string][]Snapshot
}

// NewMemorySnapshotStore creates an empty store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{byCat: make(map[string][]Snapshot)}
}

func (s *MemorySnapshotStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCat[snap.Category] = append(s.byCat[snap.Category], snap)
	return nil
}

func (s *MemorySnapshotStore) Latest(_ context.Context, category string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.byCat[category]
	if len(history) == 0 {
		return nil, nil
	}
	snap := history[len(history)-1]
	return &snap, nil
}

func (s *MemorySnapshotStore) History(_ context.Context, category string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Snapshot(nil), s.byCat[category]...), nil
}

var _ SnapshotStore = (*MemorySnapshotStore)(nil)
