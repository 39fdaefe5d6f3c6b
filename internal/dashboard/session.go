// Package dashboard turns the token accounts of a wallet into a progressively
// enriched, sortable and filterable view.
//
// All state of a Session is owned by a single reducer. Ledger and resolver
// results are delivered as events tagged with the generation (epoch) that
// requested them, so results of an abandoned load are dropped on arrival.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/ledger"
	"solana-rent-reclaim/internal/metadata"
	"solana-rent-reclaim/internal/observability"
	"solana-rent-reclaim/internal/price"
	"solana-rent-reclaim/internal/solana"
)

// Session is the dashboard of one connected wallet.
type Session struct {
	ID string

	ledger      ledger.Querier
	metadata    metadata.Resolver
	prices      price.Resolver
	concurrency int
	logger      *zap.Logger

	// base is the lifetime context of the session; loads derive from it.
	base context.Context

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{} // closed when the current load finished
}

// SessionOptions contains configuration for creating a Session.
type SessionOptions struct {
	ID          string
	Ledger      ledger.Querier
	Metadata    metadata.Resolver
	Prices      price.Resolver
	Concurrency int
	Logger      *zap.Logger
}

// NewSession creates a disconnected session. ctx bounds every load it starts.
func NewSession(ctx context.Context, opts SessionOptions) *Session {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	done := make(chan struct{})
	close(done)

	return &Session{
		ID:          opts.ID,
		ledger:      opts.Ledger,
		metadata:    opts.Metadata,
		prices:      opts.Prices,
		concurrency: concurrency,
		logger:      logger.With(zap.String("session", opts.ID)),
		base:        ctx,
		state:       State{Closure: ClosureStatus{State: domain.ClosureIdle}},
		done:        done,
	}
}

// Connect resets the session to owner and starts loading its accounts.
// It is also used for owner changes: the previous load is cancelled and its
// late results are discarded.
func (s *Session) Connect(owner string) error {
	if !solana.ValidPublicKey(owner) {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.state = Reduce(s.state, OwnerChanged{Owner: owner})
	epoch := s.state.Epoch

	ctx, cancel := context.WithCancel(s.base)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("loading wallet", zap.String("owner", owner), zap.Uint64("epoch", epoch))

	// ctx outlives the load so the balance watch keeps running; the next
	// Connect or Disconnect cancels both.
	go func() {
		defer close(done)
		s.load(ctx, epoch, owner)
	}()
	go s.watchBalance(ctx, epoch, owner)
	return nil
}

// Disconnect cancels any load and clears every record and the selection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = Reduce(s.state, Disconnected{})
}

// load queries the ledger, publishes placeholder records, then enriches them.
func (s *Session) load(ctx context.Context, epoch uint64, owner string) {
	start := time.Now()

	accounts, err := s.ledger.ListTokenAccounts(ctx, owner)
	if err != nil {
		s.logger.Warn("no accounts loaded", zap.String("owner", owner), zap.Error(err))
		s.dispatch(LoadFailed{Epoch: epoch, Err: err})
		return
	}
	s.dispatch(AccountsLoaded{Epoch: epoch, Accounts: accounts})

	if bal, err := s.ledger.GetSOLBalance(ctx, owner); err == nil {
		s.dispatch(BalanceLoaded{Epoch: epoch, Lamports: bal.Lamports})
	}

	if len(accounts) > 0 {
		s.enrich(ctx, epoch, accounts)
	}

	s.dispatch(EnrichmentSettled{Epoch: epoch})
	if ctx.Err() == nil {
		observability.RecordEnrichmentSettled(time.Since(start).Seconds())
	}
	s.logger.Debug("enrichment settled", zap.Uint64("epoch", epoch), zap.Int("accounts", len(accounts)))
}

// watchBalance keeps the SOL balance live when the ledger offers a feed.
func (s *Session) watchBalance(ctx context.Context, epoch uint64, owner string) {
	watcher, ok := s.ledger.(ledger.BalanceWatcher)
	if !ok {
		return
	}

	balances, err := watcher.WatchSOLBalance(ctx, owner)
	if err != nil {
		if !errors.Is(err, ledger.ErrNoBalanceFeed) && ctx.Err() == nil {
			s.logger.Warn("balance feed unavailable", zap.String("owner", owner), zap.Error(err))
		}
		return
	}
	for bal := range balances {
		s.dispatch(BalanceLoaded{Epoch: epoch, Lamports: bal.Lamports})
	}
}

// dispatch applies ev under the session lock.
func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Stale(s.state, ev) {
		observability.RecordStaleResult()
		return
	}
	s.state = Reduce(s.state, ev)
}

// Dispatch applies an externally produced event, such as closure progress.
func (s *Session) Dispatch(ev Event) {
	s.dispatch(ev)
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View renders the current state.
func (s *Session) View(opts ViewOptions) View {
	return BuildView(s.State(), opts)
}

// Toggle flips the selection of account.
func (s *Session) Toggle(account string) error {
	return s.applySelection(account, SelectionToggled{Account: account})
}

// Select adds account to the selection. Selecting twice is a no-op.
func (s *Session) Select(account string) error {
	return s.applySelection(account, SelectionSet{Account: account, Selected: true})
}

// Deselect removes account from the selection. Deselecting an unselected account is a no-op.
func (s *Session) Deselect(account string) error {
	return s.applySelection(account, SelectionSet{Account: account, Selected: false})
}

func (s *Session) applySelection(account string, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Record(account); !ok {
		return domain.ErrNotFound
	}
	s.state = Reduce(s.state, ev)
	return nil
}

// WaitSettled blocks until the current load has finished.
func (s *Session) WaitSettled(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any load. The session must not be used afterwards.
func (s *Session) Close() {
	s.Disconnect()
}
