package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/ledger"
	"solana-rent-reclaim/internal/metadata"
	"solana-rent-reclaim/internal/observability"
	"solana-rent-reclaim/internal/price"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the open sessions of the service.
type Manager struct {
	ctx         context.Context
	ledger      ledger.Querier
	metadata    metadata.Resolver
	prices      price.Resolver
	concurrency int
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Options contains configuration for creating a Manager.
type Options struct {
	Ledger      ledger.Querier
	Metadata    metadata.Resolver
	Prices      price.Resolver
	Concurrency int
	Logger      *zap.Logger
}

// NewManager creates a session manager. Loads run until ctx is cancelled.
func NewManager(ctx context.Context, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		ctx:         ctx,
		ledger:      opts.Ledger,
		metadata:    opts.Metadata,
		prices:      opts.Prices,
		concurrency: opts.Concurrency,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Open creates a session and connects it to owner.
func (m *Manager) Open(owner string) (*Session, error) {
	s := NewSession(m.ctx, SessionOptions{
		ID:          uuid.NewString(),
		Ledger:      m.ledger,
		Metadata:    m.metadata,
		Prices:      m.prices,
		Concurrency: m.concurrency,
		Logger:      m.logger,
	})

	if err := s.Connect(owner); err != nil {
		return nil, fmt.Errorf("connect %q: %w", owner, err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	observability.SessionOpened()
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close disconnects and forgets the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	observability.SessionClosed()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
