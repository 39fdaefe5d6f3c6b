package memory

import (
	"context"
	"sort"
	"sync"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

// ClosureReceiptStore is an in-memory implementation of storage.ClosureReceiptStore.
type ClosureReceiptStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClosureReceipt // keyed by signature
}

// NewClosureReceiptStore creates a new in-memory receipt store.
func NewClosureReceiptStore() *ClosureReceiptStore {
	return &ClosureReceiptStore{
		data: make(map[string]*domain.ClosureReceipt),
	}
}

// Compile-time interface check.
var _ storage.ClosureReceiptStore = (*ClosureReceiptStore)(nil)

// Insert adds a new receipt. Returns ErrDuplicateKey if signature exists.
func (s *ClosureReceiptStore) Insert(_ context.Context, r *domain.ClosureReceipt) error {
	if r == nil || r.Signature == "" || r.Owner == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.Signature] = copyReceipt(r)
	return nil
}

// GetBySignature retrieves a receipt by signature. Returns ErrNotFound if not exists.
func (s *ClosureReceiptStore) GetBySignature(_ context.Context, signature string) (*domain.ClosureReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReceipt(r), nil
}

// GetByOwner retrieves receipts of an owner, newest first.
func (s *ClosureReceiptStore) GetByOwner(_ context.Context, owner string, limit int) ([]*domain.ClosureReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClosureReceipt
	for _, r := range s.data {
		if r.Owner == owner {
			result = append(result, copyReceipt(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt != result[j].SubmittedAt {
			return result[i].SubmittedAt > result[j].SubmittedAt
		}
		return result[i].Signature < result[j].Signature
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyReceipt(r *domain.ClosureReceipt) *domain.ClosureReceipt {
	c := *r
	c.Accounts = append([]string(nil), r.Accounts...)
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}
