package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

// ClosureReceiptStore implements storage.ClosureReceiptStore using PostgreSQL.
type ClosureReceiptStore struct {
	pool *Pool
}

// NewClosureReceiptStore creates a new ClosureReceiptStore.
func NewClosureReceiptStore(pool *Pool) *ClosureReceiptStore {
	return &ClosureReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClosureReceiptStore = (*ClosureReceiptStore)(nil)

const receiptColumns = `
	signature, owner, accounts, burn_count, fee_lamports, fee_collector,
	status, error, submitted_at, confirmed_at, created_at
`

// Insert adds a new receipt. Returns ErrDuplicateKey if signature exists.
// CreatedAt is set to the current time when zero.
func (s *ClosureReceiptStore) Insert(ctx context.Context, r *domain.ClosureReceipt) error {
	if r == nil || r.Signature == "" || r.Owner == "" {
		return storage.ErrInvalidInput
	}

	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}
	accounts := r.Accounts
	if accounts == nil {
		accounts = []string{}
	}

	query := `
		INSERT INTO closure_receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Signature, r.Owner, accounts, r.BurnCount, int64(r.FeeLamports), r.FeeCollector,
		string(r.Status), r.Error, r.SubmittedAt, r.ConfirmedAt, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert closure receipt: %w", err)
	}
	return nil
}

// GetBySignature retrieves a receipt by signature. Returns ErrNotFound if not exists.
func (s *ClosureReceiptStore) GetBySignature(ctx context.Context, signature string) (*domain.ClosureReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM closure_receipts WHERE signature = $1`

	r, err := scanClosureReceipt(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get closure receipt by signature: %w", err)
	}
	return r, nil
}

// GetByOwner retrieves receipts of an owner, newest first.
func (s *ClosureReceiptStore) GetByOwner(ctx context.Context, owner string, limit int) ([]*domain.ClosureReceipt, error) {
	query := `
		SELECT ` + receiptColumns + `
		FROM closure_receipts
		WHERE owner = $1
		ORDER BY submitted_at DESC, signature ASC
	`
	args := []any{owner}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get closure receipts by owner: %w", err)
	}
	defer rows.Close()

	var result []*domain.ClosureReceipt
	for rows.Next() {
		r, err := scanClosureReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure receipt: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closure receipts: %w", err)
	}
	return result, nil
}

// scanClosureReceipt scans a single row into a ClosureReceipt.
func scanClosureReceipt(row pgx.Row) (*domain.ClosureReceipt, error) {
	var r domain.ClosureReceipt
	var feeLamports int64
	var status string

	err := row.Scan(
		&r.Signature, &r.Owner, &r.Accounts, &r.BurnCount, &feeLamports, &r.FeeCollector,
		&status, &r.Error, &r.SubmittedAt, &r.ConfirmedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.FeeLamports = uint64(feeLamports)
	r.Status = domain.ClosureStatus(status)
	return &r, nil
}
