package memory

import (
	"context"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// WhaleStore is an in-memory implementation of storage.WhaleStore.
// Records are kept in insertion order so Latest can slice from the tail
// instead of sorting the whole series.
type WhaleStore struct {
	mu      sync.RWMutex
	byHash  map[string]*domain.WhaleTransaction
	ordered []*domain.WhaleTransaction // insertion order == chronological order
}

// NewWhaleStore creates a new in-memory whale transaction store.
func NewWhaleStore() *WhaleStore {
	return &WhaleStore{
		byHash: make(map[string]*domain.WhaleTransaction),
	}
}

// Insert adds a new transaction. Returns ErrDuplicateKey if tx_hash exists.
func (s *WhaleStore) Insert(_ context.Context, tx *domain.WhaleTransaction) error {
	if tx == nil || tx.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[tx.TxHash]; exists {
		return storage.ErrDuplicateKey
	}

	txCopy := *tx
	s.byHash[tx.TxHash] = &txCopy
	s.ordered = append(s.ordered, &txCopy)
	return nil
}

// Exists reports whether tx_hash has already been admitted.
func (s *WhaleStore) Exists(_ context.Context, txHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byHash[txHash]
	return exists, nil
}

// Latest retrieves up to limit transactions, most recent first.
func (s *WhaleStore) Latest(_ context.Context, limit int) ([]*domain.WhaleTransaction, error) {
	if limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := limit
	if n > len(s.ordered) {
		n = len(s.ordered)
	}

	result := make([]*domain.WhaleTransaction, 0, n)
	for i := len(s.ordered) - 1; i >= len(s.ordered)-n; i-- {
		txCopy := *s.ordered[i]
		result = append(result, &txCopy)
	}

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.WhaleStore = (*WhaleStore)(nil)
