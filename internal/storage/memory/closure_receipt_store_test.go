package memory

import (
	"context"
	"errors"
	"testing"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/storage"
)

func testReceipt(sig, owner string, submittedAt int64) *domain.ClosureReceipt {
	return &domain.ClosureReceipt{
		Signature:    sig,
		Owner:        owner,
		Accounts:     []string{"acct-a", "acct-b"},
		BurnCount:    1,
		FeeLamports:  20000,
		FeeCollector: "collector",
		Status:       domain.ClosureStatusSucceeded,
		SubmittedAt:  submittedAt,
		CreatedAt:    submittedAt,
	}
}

func TestClosureReceiptStore_InsertAndGet(t *testing.T) {
	store := NewClosureReceiptStore()
	ctx := context.Background()

	r := testReceipt("sig1", "owner1", 1000)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if got.Owner != "owner1" {
		t.Errorf("Owner mismatch: got %s, want owner1", got.Owner)
	}
	if len(got.Accounts) != 2 {
		t.Errorf("Accounts length: got %d, want 2", len(got.Accounts))
	}

	// Returned copy is detached from the stored receipt
	got.Accounts[0] = "mutated"
	again, _ := store.GetBySignature(ctx, "sig1")
	if again.Accounts[0] != "acct-a" {
		t.Errorf("stored receipt was mutated: %s", again.Accounts[0])
	}
}

func TestClosureReceiptStore_Duplicate(t *testing.T) {
	store := NewClosureReceiptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testReceipt("sig1", "owner1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := store.Insert(ctx, testReceipt("sig1", "owner1", 2000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestClosureReceiptStore_InvalidInput(t *testing.T) {
	store := NewClosureReceiptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil receipt: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(ctx, testReceipt("", "owner1", 1)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty signature: expected ErrInvalidInput, got %v", err)
	}
}

func TestClosureReceiptStore_NotFound(t *testing.T) {
	store := NewClosureReceiptStore()
	_, err := store.GetBySignature(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClosureReceiptStore_GetByOwner(t *testing.T) {
	store := NewClosureReceiptStore()
	ctx := context.Background()

	for _, r := range []*domain.ClosureReceipt{
		testReceipt("sig1", "owner1", 1000),
		testReceipt("sig2", "owner1", 3000),
		testReceipt("sig3", "owner2", 2000),
		testReceipt("sig4", "owner1", 2000),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByOwner(ctx, "owner1", 0)
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	want := []string{"sig2", "sig4", "sig1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d receipts, got %d", len(want), len(got))
	}
	for i, sig := range want {
		if got[i].Signature != sig {
			t.Errorf("position %d: got %s, want %s", i, got[i].Signature, sig)
		}
	}

	limited, _ := store.GetByOwner(ctx, "owner1", 2)
	if len(limited) != 2 {
		t.Errorf("limit: expected 2, got %d", len(limited))
	}
}
