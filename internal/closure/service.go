package closure

import (
	"context"
	"sync"
)

// Service keeps one Workflow per dashboard session.
type Service struct {
	ctx  context.Context
	opts Options

	mu        sync.Mutex
	workflows map[string]*Workflow
}

// NewService creates a service whose workflows share opts.
func NewService(ctx context.Context, opts Options) *Service {
	return &Service{
		ctx:       ctx,
		opts:      opts.withDefaults(),
		workflows: make(map[string]*Workflow),
	}
}

// For returns the workflow of session id, creating it on first use.
func (s *Service) For(id string, session Session) *Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workflows[id]
	if !ok {
		w = NewWorkflow(s.ctx, session, s.opts)
		s.workflows[id] = w
	}
	return w
}

// Get returns the workflow of session id if one was created.
func (s *Service) Get(id string) (*Workflow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	return w, ok
}

// Remove forgets the workflow of session id. A run in flight continues to
// completion but no longer reports to anyone.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	delete(s.workflows, id)
	s.mu.Unlock()
}

// Fee returns the configured service fee.
func (s *Service) Fee() FeeConfig {
	return s.opts.Builder.Fee()
}
