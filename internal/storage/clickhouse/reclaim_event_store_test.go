package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

func TestReclaimEventStore_InsertBulk(t *testing.T) {
	conn := newTestConn(t)

	store := NewReclaimEventStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, nil))

	price := 0.98
	events := []*domain.ReclaimEvent{
		{Signature: "sig-1", Owner: "owner-1", Account: "acct-b", Mint: "mint-1", BurnedRaw: 1_000_000, Decimals: 6, UnitPrice: &price, TimestampMs: 2000},
		{Signature: "sig-1", Owner: "owner-1", Account: "acct-a", Mint: "mint-2", TimestampMs: 2000},
		{Signature: "sig-0", Owner: "owner-1", Account: "acct-c", Mint: "mint-1", TimestampMs: 1000},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetBySignature(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acct-a", got[0].Account)
	assert.Nil(t, got[0].UnitPrice)
	assert.Equal(t, "acct-b", got[1].Account)
	assert.Equal(t, uint64(1_000_000), got[1].BurnedRaw)
	assert.Equal(t, uint8(6), got[1].Decimals)
	require.NotNil(t, got[1].UnitPrice)
	assert.Equal(t, 0.98, *got[1].UnitPrice)

	byOwner, err := store.GetByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, byOwner, 3)
	assert.Equal(t, "acct-c", byOwner[0].Account)
	assert.Equal(t, int64(1000), byOwner[0].TimestampMs)
}

func TestReclaimEventStore_InsertBulk_DuplicateKey(t *testing.T) {
	conn := newTestConn(t)

	store := NewReclaimEventStore(conn)
	ctx := context.Background()

	events := []*domain.ReclaimEvent{{Signature: "sig-1", Owner: "o", Account: "a", TimestampMs: 1}}
	require.NoError(t, store.InsertBulk(ctx, events))

	err := store.InsertBulk(ctx, events)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.ReclaimEvent{
		{Signature: "sig-2", Owner: "o", Account: "x"},
		{Signature: "sig-2", Owner: "o", Account: "x"},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByOwner(ctx, "o")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
