package memory

import (
	"context"
	"errors"
	"testing"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

func TestReclaimEventStore_InsertBulkAndQuery(t *testing.T) {
	store := NewReclaimEventStore()
	ctx := context.Background()

	price := 1.5
	events := []*domain.ReclaimEvent{
		{Signature: "sig1", Owner: "owner1", Account: "b", Mint: "m1", BurnedRaw: 10, Decimals: 6, UnitPrice: &price, TimestampMs: 2000},
		{Signature: "sig1", Owner: "owner1", Account: "a", Mint: "m2", TimestampMs: 2000},
		{Signature: "sig0", Owner: "owner1", Account: "c", Mint: "m1", TimestampMs: 1000},
		{Signature: "sig2", Owner: "owner2", Account: "d", Mint: "m1", TimestampMs: 500},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	bySig, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if len(bySig) != 2 || bySig[0].Account != "a" || bySig[1].Account != "b" {
		t.Errorf("unexpected events for sig1: %+v", bySig)
	}
	if bySig[1].UnitPrice == nil || *bySig[1].UnitPrice != 1.5 {
		t.Errorf("unit price not preserved")
	}

	byOwner, err := store.GetByOwner(ctx, "owner1")
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	if len(byOwner) != 3 {
		t.Fatalf("expected 3 events, got %d", len(byOwner))
	}
	if byOwner[0].Account != "c" {
		t.Errorf("expected oldest event first, got %s", byOwner[0].Account)
	}
}

func TestReclaimEventStore_InsertBulk_Empty(t *testing.T) {
	store := NewReclaimEventStore()
	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Errorf("empty insert should succeed: %v", err)
	}
}

func TestReclaimEventStore_InsertBulk_DuplicateRejectsBatch(t *testing.T) {
	store := NewReclaimEventStore()
	ctx := context.Background()

	first := []*domain.ReclaimEvent{{Signature: "sig1", Owner: "o", Account: "a"}}
	if err := store.InsertBulk(ctx, first); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Existing key
	err := store.InsertBulk(ctx, []*domain.ReclaimEvent{
		{Signature: "sig1", Owner: "o", Account: "b"},
		{Signature: "sig1", Owner: "o", Account: "a"},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate
	err = store.InsertBulk(ctx, []*domain.ReclaimEvent{
		{Signature: "sig2", Owner: "o", Account: "x"},
		{Signature: "sig2", Owner: "o", Account: "x"},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByOwner(ctx, "o")
	if len(got) != 1 {
		t.Errorf("failed batches must not be partially applied, got %d events", len(got))
	}
}
