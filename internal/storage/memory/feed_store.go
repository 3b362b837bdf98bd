package memory

import (
	"context"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// InsightStore is an in-memory implementation of storage.InsightStore.
type InsightStore struct {
	mu      sync.RWMutex
	byID    map[string]struct{}
	ordered []*domain.MarketInsight
}

// NewInsightStore creates a new in-memory insight store.
func NewInsightStore() *InsightStore {
	return &InsightStore{byID: make(map[string]struct{})}
}

// Insert adds a new insight. Returns ErrDuplicateKey if the id exists.
func (s *InsightStore) Insert(_ context.Context, in *domain.MarketInsight) error {
	if in == nil || in.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[in.ID]; exists {
		return storage.ErrDuplicateKey
	}

	insightCopy := *in
	s.byID[in.ID] = struct{}{}
	s.ordered = append(s.ordered, &insightCopy)
	return nil
}

// Latest retrieves up to limit insights, most recent first.
func (s *InsightStore) Latest(_ context.Context, limit int) ([]*domain.MarketInsight, error) {
	if limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := limit
	if n > len(s.ordered) {
		n = len(s.ordered)
	}

	result := make([]*domain.MarketInsight, 0, n)
	for i := len(s.ordered) - 1; i >= len(s.ordered)-n; i-- {
		insightCopy := *s.ordered[i]
		result = append(result, &insightCopy)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.InsightStore = (*InsightStore)(nil)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu      sync.RWMutex
	byID    map[string]struct{}
	ordered []*domain.TradeSignal
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{byID: make(map[string]struct{})}
}

// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.TradeSignal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[sig.ID]; exists {
		return storage.ErrDuplicateKey
	}

	signalCopy := *sig
	s.byID[sig.ID] = struct{}{}
	s.ordered = append(s.ordered, &signalCopy)
	return nil
}

// Latest retrieves up to limit signals, most recent first.
func (s *SignalStore) Latest(_ context.Context, limit int) ([]*domain.TradeSignal, error) {
	if limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := limit
	if n > len(s.ordered) {
		n = len(s.ordered)
	}

	result := make([]*domain.TradeSignal, 0, n)
	for i := len(s.ordered) - 1; i >= len(s.ordered)-n; i-- {
		signalCopy := *s.ordered[i]
		result = append(result, &signalCopy)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)
