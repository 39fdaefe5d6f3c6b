package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/solana"
	"solana-rent-reclaim/internal/solana/stub"
)

const (
	testOwner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	usdcMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	wsolMint  = "So11111111111111111111111111111111111111112"
)

func TestAdapter_ListTokenAccounts(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTokenAccounts(testOwner,
		solana.TokenAccount{Pubkey: "DXuAFMUoRRQCXndGymaszyLeWBh4Z8769JNqAJ9SwPok", Mint: usdcMint, Owner: testOwner, Amount: 1_500_000, Decimals: 6},
		solana.TokenAccount{Pubkey: "GBavENXeBCULvXPg2z6JcTAsKyzdAwPyjydbN8C7RL3s", Mint: wsolMint, Owner: testOwner, Amount: 0, Decimals: 9},
	)

	adapter := NewAdapter(Options{RPC: rpc})
	accounts, err := adapter.ListTokenAccounts(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, domain.RawTokenAccount{
		AccountAddress: "DXuAFMUoRRQCXndGymaszyLeWBh4Z8769JNqAJ9SwPok",
		MintAddress:    usdcMint,
		RawAmount:      1_500_000,
		Decimals:       6,
	}, accounts[0])
	assert.Equal(t, wsolMint, accounts[1].MintAddress)
	assert.Equal(t, uint64(0), accounts[1].RawAmount)
}

func TestAdapter_ListTokenAccounts_Empty(t *testing.T) {
	adapter := NewAdapter(Options{RPC: stub.NewRPCClient()})

	accounts, err := adapter.ListTokenAccounts(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestAdapter_ListTokenAccounts_InvalidOwner(t *testing.T) {
	rpc := stub.NewRPCClient()
	adapter := NewAdapter(Options{RPC: rpc})

	for _, owner := range []string{"", "not-base58-0OIl", "abc"} {
		_, err := adapter.ListTokenAccounts(context.Background(), owner)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "owner %q", owner)
	}
	assert.Equal(t, 0, rpc.Calls("getTokenAccountsByOwner"), "invalid owners must not reach the ledger")
}

func TestAdapter_ListTokenAccounts_TransportError(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetError(errors.New("connection refused"))
	adapter := NewAdapter(Options{RPC: rpc})

	accounts, err := adapter.ListTokenAccounts(context.Background(), testOwner)
	assert.Nil(t, accounts)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestAdapter_GetSOLBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Balances[testOwner] = 1_239_999_999
	adapter := NewAdapter(Options{RPC: rpc})

	bal, err := adapter.GetSOLBalance(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_239_999_999), bal.Lamports)
	// Truncated, never rounded up
	assert.Equal(t, "1.23", bal.Display())
}

func TestAdapter_GetSOLBalance_TransportError(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetError(errors.New("timeout"))
	adapter := NewAdapter(Options{RPC: rpc})

	_, err := adapter.GetSOLBalance(context.Background(), testOwner)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestSOLBalance_Display(t *testing.T) {
	tests := []struct {
		lamports uint64
		want     string
	}{
		{0, "0.00"},
		{1, "0.00"},
		{9_999_999, "0.00"},
		{10_000_000, "0.01"},
		{LamportsPerSOL, "1.00"},
		{2_999_999_999, "2.99"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NewSOLBalance(tt.lamports).Display(), "lamports=%d", tt.lamports)
	}
}

// accountFeed is a WSClient whose account watch is fed by the test.
type accountFeed struct {
	updates chan solana.AccountNotification

	mu           sync.Mutex
	subscribed   []string
	unsubscribed int
}

func (f *accountFeed) SubscribeSignature(context.Context, string, string) (<-chan solana.SignatureNotification, error) {
	return nil, errors.New("not supported")
}

func (f *accountFeed) UnsubscribeSignature(<-chan solana.SignatureNotification) {}

func (f *accountFeed) SubscribeAccount(_ context.Context, account, _ string) (<-chan solana.AccountNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, account)
	return f.updates, nil
}

func (f *accountFeed) UnsubscribeAccount(<-chan solana.AccountNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
}

func (f *accountFeed) Close() error { return nil }

func (f *accountFeed) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

func TestAdapter_WatchSOLBalance(t *testing.T) {
	feed := &accountFeed{updates: make(chan solana.AccountNotification, 1)}
	adapter := NewAdapter(Options{RPC: stub.NewRPCClient(), WS: feed})

	ctx, cancel := context.WithCancel(context.Background())
	balances, err := adapter.WatchSOLBalance(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, []string{testOwner}, feed.subscribed)

	feed.updates <- solana.AccountNotification{Account: testOwner, Lamports: 3_456_000_000}
	select {
	case b := <-balances:
		assert.Equal(t, uint64(3_456_000_000), b.Lamports)
		assert.Equal(t, "3.45", b.Display())
	case <-time.After(2 * time.Second):
		t.Fatal("balance update not delivered")
	}

	cancel()
	select {
	case _, ok := <-balances:
		assert.False(t, ok, "channel closes after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Eventually(t, func() bool { return feed.unsubscribeCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestAdapter_WatchSOLBalance_NoFeed(t *testing.T) {
	adapter := NewAdapter(Options{RPC: stub.NewRPCClient()})

	_, err := adapter.WatchSOLBalance(context.Background(), testOwner)
	assert.ErrorIs(t, err, ErrNoBalanceFeed)

	_, err = NewAdapter(Options{WS: &accountFeed{}}).WatchSOLBalance(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
