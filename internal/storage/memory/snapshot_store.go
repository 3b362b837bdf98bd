package memory

import (
	"context"
	"sort"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Each portfolio owns an append-only slice ordered by timestamp, so Latest
// slices from the tail and At binary-searches instead of scanning.
type SnapshotStore struct {
	mu     sync.RWMutex
	series map[string][]*domain.PortfolioSnapshot // keyed by portfolio id
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		series: make(map[string][]*domain.PortfolioSnapshot),
	}
}

// Append adds a snapshot to the portfolio's history series.
func (s *SnapshotStore) Append(_ context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil || snap.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.series[snap.PortfolioID]
	if n := len(series); n > 0 && snap.Timestamp <= series[n-1].Timestamp {
		// Appends must keep strict chronological order.
		return storage.ErrInvalidInput
	}
	s.series[snap.PortfolioID] = append(series, snap.Clone())
	return nil
}

// Latest retrieves up to n snapshots, most recent first.
func (s *SnapshotStore) Latest(_ context.Context, portfolioID string, n int) ([]*domain.PortfolioSnapshot, error) {
	if n < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[portfolioID]
	if n > len(series) {
		n = len(series)
	}

	result := make([]*domain.PortfolioSnapshot, 0, n)
	for i := len(series) - 1; i >= len(series)-n; i-- {
		result = append(result, series[i].Clone())
	}

	return result, nil
}

// At retrieves the newest snapshot with Timestamp <= ts.
// Returns ErrNotFound when the series has no point that old.
func (s *SnapshotStore) At(_ context.Context, portfolioID string, ts int64) (*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[portfolioID]

	// First index with Timestamp > ts; the answer is the element before it.
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp > ts
	})
	if idx == 0 {
		return nil, storage.ErrNotFound
	}

	return series[idx-1].Clone(), nil
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
