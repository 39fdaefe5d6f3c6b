package storage

import (
	"context"

	"solana-rent-reclaim/internal/domain"
)

// ClosureReceiptStore provides access to closure_receipts storage.
type ClosureReceiptStore interface {
	// Insert adds a new receipt. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, r *domain.ClosureReceipt) error

	// GetBySignature retrieves a receipt by its transaction signature.
	// Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.ClosureReceipt, error)

	// GetByOwner retrieves the most recent receipts of an owner, newest first.
	// limit <= 0 returns all of them.
	GetByOwner(ctx context.Context, owner string, limit int) ([]*domain.ClosureReceipt, error)
}

// ReclaimEventStore provides access to reclaim_events storage.
type ReclaimEventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on
	// duplicate (signature, account).
	InsertBulk(ctx context.Context, events []*domain.ReclaimEvent) error

	// GetBySignature retrieves the events of one closure transaction, ordered by account.
	GetBySignature(ctx context.Context, signature string) ([]*domain.ReclaimEvent, error)

	// GetByOwner retrieves all events of an owner, ordered by timestamp ASC.
	GetByOwner(ctx context.Context, owner string) ([]*domain.ReclaimEvent, error)
}
