// Package ledger lists the token accounts and SOL balance of a wallet.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/observability"
	"solana-rent-reclaim/internal/solana"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Querier lists token accounts by owner.
type Querier interface {
	ListTokenAccounts(ctx context.Context, owner string) ([]domain.RawTokenAccount, error)
	GetSOLBalance(ctx context.Context, owner string) (*SOLBalance, error)
}

// BalanceWatcher streams native balance changes of an owner.
type BalanceWatcher interface {
	// WatchSOLBalance delivers the newest balance until ctx is done, then
	// closes the channel.
	WatchSOLBalance(ctx context.Context, owner string) (<-chan *SOLBalance, error)
}

// ErrNoBalanceFeed is returned by WatchSOLBalance when no WebSocket is configured.
var ErrNoBalanceFeed = errors.New("no balance feed configured")

// Adapter implements Querier on top of the Solana JSON-RPC client.
type Adapter struct {
	rpc        solana.RPCClient
	ws         solana.WSClient
	commitment string
	programID  string
	logger     *zap.Logger
}

// Options contains configuration for creating an Adapter.
type Options struct {
	RPC        solana.RPCClient
	WS         solana.WSClient // optional; enables WatchSOLBalance
	Commitment string          // for balance subscriptions, defaults to confirmed
	ProgramID  string          // defaults to the SPL Token program
	Logger     *zap.Logger
}

// NewAdapter creates a new ledger query adapter.
func NewAdapter(opts Options) *Adapter {
	programID := opts.ProgramID
	if programID == "" {
		programID = solana.TokenProgramID
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	commitment := opts.Commitment
	if commitment == "" {
		commitment = solana.CommitmentConfirmed
	}

	return &Adapter{
		rpc:        opts.RPC,
		ws:         opts.WS,
		commitment: commitment,
		programID:  programID,
		logger:     logger,
	}
}

// ListTokenAccounts returns every token account owned by owner, in ledger order.
// Returns domain.ErrInvalidInput for a malformed owner and wraps domain.ErrTransport
// when the ledger cannot be reached.
func (a *Adapter) ListTokenAccounts(ctx context.Context, owner string) ([]domain.RawTokenAccount, error) {
	if !solana.ValidPublicKey(owner) {
		return nil, fmt.Errorf("%w: owner %q is not a public key", domain.ErrInvalidInput, owner)
	}

	accounts, err := a.rpc.GetTokenAccountsByOwner(ctx, owner, a.programID)
	if err != nil {
		observability.RecordAccountsListed(0, err)
		a.logger.Warn("list token accounts failed", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("%w: list token accounts: %v", domain.ErrTransport, err)
	}

	result := make([]domain.RawTokenAccount, 0, len(accounts))
	for _, acc := range accounts {
		result = append(result, domain.RawTokenAccount{
			AccountAddress: acc.Pubkey,
			MintAddress:    acc.Mint,
			RawAmount:      acc.Amount,
			Decimals:       acc.Decimals,
		})
	}

	observability.RecordAccountsListed(len(result), nil)
	a.logger.Debug("listed token accounts", zap.String("owner", owner), zap.Int("count", len(result)))
	return result, nil
}

// SOLBalance is a wallet's native balance.
type SOLBalance struct {
	Lamports uint64
	SOL      decimal.Decimal
}

// Display renders the balance truncated (not rounded) to two decimals.
func (b SOLBalance) Display() string {
	return b.SOL.Truncate(2).StringFixed(2)
}

// GetSOLBalance returns the native balance of owner.
func (a *Adapter) GetSOLBalance(ctx context.Context, owner string) (*SOLBalance, error) {
	if !solana.ValidPublicKey(owner) {
		return nil, fmt.Errorf("%w: owner %q is not a public key", domain.ErrInvalidInput, owner)
	}

	lamports, err := a.rpc.GetBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: get balance: %v", domain.ErrTransport, err)
	}

	return NewSOLBalance(lamports), nil
}

// WatchSOLBalance follows owner's lamports over an accountSubscribe watch.
func (a *Adapter) WatchSOLBalance(ctx context.Context, owner string) (<-chan *SOLBalance, error) {
	if !solana.ValidPublicKey(owner) {
		return nil, fmt.Errorf("%w: owner %q is not a public key", domain.ErrInvalidInput, owner)
	}
	if a.ws == nil {
		return nil, ErrNoBalanceFeed
	}

	updates, err := a.ws.SubscribeAccount(ctx, owner, a.commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe balance: %v", domain.ErrTransport, err)
	}

	out := make(chan *SOLBalance, 1)
	go func() {
		defer close(out)
		defer a.ws.UnsubscribeAccount(updates)

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-updates:
				if !ok {
					a.logger.Debug("balance feed ended", zap.String("owner", owner))
					return
				}
				select {
				case out <- NewSOLBalance(n.Lamports):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NewSOLBalance converts lamports to SOL.
func NewSOLBalance(lamports uint64) *SOLBalance {
	return &SOLBalance{
		Lamports: lamports,
		SOL:      decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9),
	}
}

var (
	_ Querier        = (*Adapter)(nil)
	_ BalanceWatcher = (*Adapter)(nil)
)
