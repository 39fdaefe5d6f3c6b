package clickhouse

import (
	"context"
	"fmt"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

// ReclaimEventStore implements storage.ReclaimEventStore using ClickHouse.
type ReclaimEventStore struct {
	conn *Conn
}

// NewReclaimEventStore creates a new ReclaimEventStore.
func NewReclaimEventStore(conn *Conn) *ReclaimEventStore {
	return &ReclaimEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ReclaimEventStore = (*ReclaimEventStore)(nil)

// InsertBulk adds multiple events. Fails entire batch on duplicate (signature, account).
// MergeTree does not enforce uniqueness, so duplicates are checked before the insert.
func (s *ReclaimEventStore) InsertBulk(ctx context.Context, events []*domain.ReclaimEvent) error {
	if len(events) == 0 {
		return nil
	}

	type key struct {
		signature string
		account   string
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Signature == "" || e.Account == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.Signature, e.Account}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for k := range seen {
		exists, err := s.exists(ctx, k.signature, k.account)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO reclaim_events (
			signature, owner, account, mint, burned_raw, decimals, unit_price, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.Signature, e.Owner, e.Account, e.Mint,
			e.BurnedRaw, e.Decimals, e.UnitPrice, uint64(e.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySignature retrieves the events of one transaction, ordered by account.
func (s *ReclaimEventStore) GetBySignature(ctx context.Context, signature string) ([]*domain.ReclaimEvent, error) {
	query := `
		SELECT signature, owner, account, mint, burned_raw, decimals, unit_price, timestamp_ms
		FROM reclaim_events
		WHERE signature = ?
		ORDER BY account ASC
	`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query by signature: %w", err)
	}
	defer rows.Close()

	return scanReclaimEvents(rows)
}

// GetByOwner retrieves events of an owner, ordered by timestamp ASC.
func (s *ReclaimEventStore) GetByOwner(ctx context.Context, owner string) ([]*domain.ReclaimEvent, error) {
	query := `
		SELECT signature, owner, account, mint, burned_raw, decimals, unit_price, timestamp_ms
		FROM reclaim_events
		WHERE owner = ?
		ORDER BY timestamp_ms ASC, signature ASC, account ASC
	`

	rows, err := s.conn.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query by owner: %w", err)
	}
	defer rows.Close()

	return scanReclaimEvents(rows)
}

func (s *ReclaimEventStore) exists(ctx context.Context, signature, account string) (bool, error) {
	query := `
		SELECT count(*) FROM reclaim_events
		WHERE signature = ? AND account = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, signature, account).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanReclaimEvents(rows chRows) ([]*domain.ReclaimEvent, error) {
	var events []*domain.ReclaimEvent

	for rows.Next() {
		var e domain.ReclaimEvent
		var timestampMs uint64

		err := rows.Scan(
			&e.Signature, &e.Owner, &e.Account, &e.Mint,
			&e.BurnedRaw, &e.Decimals, &e.UnitPrice, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reclaim event row: %w", err)
		}

		e.TimestampMs = int64(timestampMs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reclaim event rows: %w", err)
	}

	return events, nil
}
