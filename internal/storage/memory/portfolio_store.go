package memory

import (
	"context"
	"sort"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Portfolio // keyed by portfolio id
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		data: make(map[string]*domain.Portfolio),
	}
}

// Create adds a new portfolio. Returns ErrDuplicateKey if the id exists.
func (s *PortfolioStore) Create(_ context.Context, p *domain.Portfolio) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[p.ID] = p.Clone()
	return nil
}

// GetByID retrieves a portfolio by id. Returns ErrNotFound if not exists.
func (s *PortfolioStore) GetByID(_ context.Context, id string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// List retrieves all portfolios ordered by creation time ASC.
func (s *PortfolioStore) List(_ context.Context) ([]*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Portfolio, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdateAddresses replaces the wallet address map of a portfolio.
func (s *PortfolioStore) UpdateAddresses(_ context.Context, id string, addrs map[domain.Network]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	p.Addresses = make(map[domain.Network]string, len(addrs))
	for k, v := range addrs {
		p.Addresses[k] = v
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)
