package memory

import (
	"context"
	"sort"
	"sync"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

type reclaimEventKey struct {
	signature string
	account   string
}

// ReclaimEventStore is an in-memory implementation of storage.ReclaimEventStore.
type ReclaimEventStore struct {
	mu     sync.RWMutex
	events []*domain.ReclaimEvent
	keys   map[reclaimEventKey]struct{}
}

// NewReclaimEventStore creates a new in-memory reclaim event store.
func NewReclaimEventStore() *ReclaimEventStore {
	return &ReclaimEventStore{
		keys: make(map[reclaimEventKey]struct{}),
	}
}

// Compile-time interface check.
var _ storage.ReclaimEventStore = (*ReclaimEventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on duplicate key.
func (s *ReclaimEventStore) InsertBulk(_ context.Context, events []*domain.ReclaimEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[reclaimEventKey]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Signature == "" || e.Account == "" {
			return storage.ErrInvalidInput
		}
		k := reclaimEventKey{e.Signature, e.Account}
		if _, exists := s.keys[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, e := range events {
		s.keys[reclaimEventKey{e.Signature, e.Account}] = struct{}{}
		s.events = append(s.events, copyEvent(e))
	}
	return nil
}

// GetBySignature retrieves the events of one transaction, ordered by account.
func (s *ReclaimEventStore) GetBySignature(_ context.Context, signature string) ([]*domain.ReclaimEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReclaimEvent
	for _, e := range s.events {
		if e.Signature == signature {
			result = append(result, copyEvent(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account < result[j].Account
	})
	return result, nil
}

// GetByOwner retrieves events of an owner, ordered by timestamp ASC.
func (s *ReclaimEventStore) GetByOwner(_ context.Context, owner string) ([]*domain.ReclaimEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReclaimEvent
	for _, e := range s.events {
		if e.Owner == owner {
			result = append(result, copyEvent(e))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		if result[i].Signature != result[j].Signature {
			return result[i].Signature < result[j].Signature
		}
		return result[i].Account < result[j].Account
	})
	return result, nil
}

func copyEvent(e *domain.ReclaimEvent) *domain.ReclaimEvent {
	c := *e
	if e.UnitPrice != nil {
		p := *e.UnitPrice
		c.UnitPrice = &p
	}
	return &c
}
