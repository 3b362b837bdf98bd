package memory

import (
	"context"
	"sort"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// holdingKey identifies a holding within a portfolio.
type holdingKey struct {
	portfolioID string
	network     domain.Network
	symbol      string
}

// HoldingStore is an in-memory implementation of storage.HoldingStore.
type HoldingStore struct {
	mu   sync.RWMutex
	data map[holdingKey]*domain.Holding
}

// NewHoldingStore creates a new in-memory holding store.
func NewHoldingStore() *HoldingStore {
	return &HoldingStore{
		data: make(map[holdingKey]*domain.Holding),
	}
}

// Upsert inserts or replaces the holding keyed by (portfolio, network, symbol).
func (s *HoldingStore) Upsert(_ context.Context, h *domain.Holding) error {
	if h == nil || h.PortfolioID == "" || h.Symbol == "" || !h.Network.IsValid() {
		return storage.ErrInvalidInput
	}
	if h.Amount.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	holdingCopy := *h
	s.data[holdingKey{h.PortfolioID, h.Network, h.Symbol}] = &holdingCopy
	return nil
}

// GetByPortfolio retrieves all holdings for a portfolio,
// ordered by network then symbol ASC.
func (s *HoldingStore) GetByPortfolio(_ context.Context, portfolioID string) ([]*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Holding
	for k, h := range s.data {
		if k.portfolioID == portfolioID {
			holdingCopy := *h
			result = append(result, &holdingCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Network != result[j].Network {
			return result[i].Network < result[j].Network
		}
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.HoldingStore = (*HoldingStore)(nil)
