package closure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/dashboard"
	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/observability"
	"solana-rent-reclaim/internal/solana"
	"solana-rent-reclaim/internal/storage"
)

// Session is the part of a dashboard session the workflow reads and drives.
type Session interface {
	State() dashboard.State
	Dispatch(ev dashboard.Event)
}

// WalletSigner is a Signer the wallet answers through the API.
type WalletSigner interface {
	Signer
	Pending() (string, bool)
	Provide(signature string) error
	Reject() error
}

// Options configures a Workflow.
type Options struct {
	RPC       solana.RPCClient
	Builder   *Builder
	Confirmer Confirmer

	// Receipts and Events are optional; nil skips persistence.
	Receipts storage.ClosureReceiptStore
	Events   storage.ReclaimEventStore

	ConfirmTimeout time.Duration
	SigningTimeout time.Duration

	// NewSigner creates the signer for one run. Defaults to NewRemoteSigner.
	NewSigner func(owner string, timeout time.Duration) (Signer, error)

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = DefaultConfirmTimeout
	}
	if o.SigningTimeout <= 0 {
		o.SigningTimeout = DefaultSigningTimeout
	}
	if o.NewSigner == nil {
		o.NewSigner = func(owner string, timeout time.Duration) (Signer, error) {
			return NewRemoteSigner(owner, timeout)
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Status is a snapshot of the workflow.
type Status struct {
	State       domain.ClosureState
	Owner       string
	Accounts    []string
	BurnCount   int
	FeeLamports uint64
	Signature   string

	// Message is the base64 transaction message while awaiting a signature.
	Message string
	Err     error
}

// Workflow runs batch closures for one dashboard session, one at a time.
type Workflow struct {
	ctx     context.Context
	session Session
	opts    Options
	logger  *zap.Logger

	mu     sync.Mutex
	status Status
	epoch  uint64
	signer Signer
	done   chan struct{}
}

// NewWorkflow creates an idle workflow. Runs are cancelled with ctx.
func NewWorkflow(ctx context.Context, session Session, opts Options) *Workflow {
	opts = opts.withDefaults()
	done := make(chan struct{})
	close(done)
	return &Workflow{
		ctx:     ctx,
		session: session,
		opts:    opts,
		logger:  opts.Logger.Named("closure"),
		status:  Status{State: domain.ClosureIdle},
		done:    done,
	}
}

// Start begins closing accounts, or the current selection when accounts is
// empty. It returns once the run is underway; progress is reported through
// Status and the session.
func (w *Workflow) Start(accounts []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status.State.Active() {
		return domain.ErrClosureInProgress
	}

	st := w.session.State()
	if st.Owner == "" {
		return fmt.Errorf("%w: no wallet connected", domain.ErrInvalidInput)
	}

	records, err := pick(st, accounts)
	if err != nil {
		return err
	}

	w.epoch = st.Epoch
	w.signer = nil
	w.done = make(chan struct{})
	w.setLocked(Status{State: domain.ClosureBuilding, Owner: st.Owner, Accounts: accountsOf(records)})

	go w.run(st.Owner, records, w.done)
	return nil
}

func pick(st dashboard.State, accounts []string) ([]domain.TokenAccountRecord, error) {
	if len(accounts) == 0 {
		records := st.SelectedRecords()
		if len(records) == 0 {
			return nil, domain.ErrEmptySelection
		}
		return records, nil
	}

	records := make([]domain.TokenAccountRecord, 0, len(accounts))
	for _, a := range accounts {
		r, ok := st.Record(a)
		if !ok {
			return nil, fmt.Errorf("%w: account %s not in view", domain.ErrInvalidInput, a)
		}
		records = append(records, r)
	}
	return records, nil
}

func accountsOf(records []domain.TokenAccountRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.AccountAddress
	}
	return out
}

func (w *Workflow) run(owner string, records []domain.TokenAccountRecord, done chan struct{}) {
	defer close(done)

	ctx := w.ctx
	log := w.logger.With(zap.String("owner", owner), zap.Int("accounts", len(records)))

	plan, tx, err := w.build(ctx, owner, records)
	if err != nil {
		w.fail(err, nil, log)
		return
	}

	w.update(func(s *Status) {
		s.BurnCount = plan.BurnCount
		s.FeeLamports = plan.FeeLamports
	})

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		w.fail(fmt.Errorf("serialize message: %w", err), nil, log)
		return
	}

	signer, err := w.opts.NewSigner(owner, w.opts.SigningTimeout)
	if err != nil {
		w.fail(err, nil, log)
		return
	}
	w.mu.Lock()
	w.signer = signer
	w.mu.Unlock()

	w.transition(domain.ClosureAwaitingSignature, "")
	sigBytes, err := signer.Sign(ctx, message)
	if err != nil {
		w.fail(err, nil, log)
		return
	}
	if len(sigBytes) != len(solanago.Signature{}) {
		w.fail(fmt.Errorf("%w: signature has %d bytes", domain.ErrInvalidInput, len(sigBytes)), nil, log)
		return
	}

	var sig solanago.Signature
	copy(sig[:], sigBytes)
	tx.Signatures = []solanago.Signature{sig}

	raw, err := tx.MarshalBinary()
	if err != nil {
		w.fail(fmt.Errorf("serialize transaction: %w", err), nil, log)
		return
	}

	w.transition(domain.ClosureSubmitted, sig.String())
	submittedAt := time.Now()
	signature, err := w.opts.RPC.SendTransaction(ctx, raw)
	if err != nil {
		w.fail(fmt.Errorf("%w: %v", domain.ErrSubmission, err), nil, log)
		return
	}
	if signature == "" {
		signature = sig.String()
	}
	log = log.With(zap.String("signature", signature))
	log.Info("closure transaction submitted")

	w.transition(domain.ClosureConfirming, signature)
	cctx, cancel := context.WithTimeout(ctx, w.opts.ConfirmTimeout)
	err = w.opts.Confirmer.Confirm(cctx, signature)
	cancel()

	receipt := &domain.ClosureReceipt{
		Signature:    signature,
		Owner:        owner,
		Accounts:     plan.Accounts,
		BurnCount:    plan.BurnCount,
		FeeLamports:  plan.FeeLamports,
		FeeCollector: w.opts.Builder.Fee().Collector,
		SubmittedAt:  submittedAt.UnixMilli(),
	}

	if err != nil {
		msg := err.Error()
		receipt.Status = domain.ClosureStatusFailed
		receipt.Error = &msg
		w.fail(err, receipt, log)
		return
	}

	confirmedAt := time.Now()
	receipt.Status = domain.ClosureStatusSucceeded
	receipt.ConfirmedAt = ptrInt64(confirmedAt.UnixMilli())
	w.persist(receipt, reclaimEvents(signature, owner, records, confirmedAt), log)

	w.mu.Lock()
	w.status.State = domain.ClosureSucceeded
	w.status.Signature = signature
	w.status.Message = ""
	epoch := w.epoch
	w.mu.Unlock()

	w.session.Dispatch(dashboard.ClosureStateChanged{
		Epoch:     epoch,
		State:     domain.ClosureSucceeded,
		Signature: signature,
		Closed:    plan.Accounts,
	})

	observability.RecordClosure(string(domain.ClosureSucceeded), len(plan.Accounts), plan.BurnCount,
		plan.FeeLamports, confirmedAt.Sub(submittedAt).Seconds(), confirmedAt.Unix())
	log.Info("closure confirmed", zap.Int("burns", plan.BurnCount), zap.Uint64("fee_lamports", plan.FeeLamports))
}

func (w *Workflow) build(ctx context.Context, owner string, records []domain.TokenAccountRecord) (*Plan, *solanago.Transaction, error) {
	plan, err := w.opts.Builder.Plan(owner, records)
	if err != nil {
		return nil, nil, err
	}

	bh, err := w.opts.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: latest blockhash: %v", domain.ErrTransport, err)
	}

	tx, err := plan.Transaction(bh.Blockhash)
	if err != nil {
		return nil, nil, err
	}
	return plan, tx, nil
}

// fail moves to Failed. The dashboard keeps its records and selection.
func (w *Workflow) fail(err error, receipt *domain.ClosureReceipt, log *zap.Logger) {
	if receipt != nil {
		w.persist(receipt, nil, log)
	}

	w.mu.Lock()
	w.status.State = domain.ClosureFailed
	w.status.Message = ""
	w.status.Err = err
	status := w.status
	epoch := w.epoch
	w.mu.Unlock()

	w.session.Dispatch(dashboard.ClosureStateChanged{
		Epoch:     epoch,
		State:     domain.ClosureFailed,
		Signature: status.Signature,
		Err:       err,
	})

	observability.RecordClosure(string(domain.ClosureFailed), len(status.Accounts), status.BurnCount, 0, 0, time.Now().Unix())
	log.Warn("closure failed", zap.String("signature", status.Signature), zap.Error(err))
}

func (w *Workflow) persist(receipt *domain.ClosureReceipt, events []*domain.ReclaimEvent, log *zap.Logger) {
	// Persistence is best effort; the transaction outcome is already final.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), 10*time.Second)
	defer cancel()

	if w.opts.Receipts != nil {
		start := time.Now()
		err := w.opts.Receipts.Insert(ctx, receipt)
		observability.RecordDBQuery("postgres", "insert_closure_receipt", time.Since(start).Seconds(), err)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			log.Error("store closure receipt", zap.Error(err))
		}
	}

	if w.opts.Events != nil && len(events) > 0 {
		start := time.Now()
		err := w.opts.Events.InsertBulk(ctx, events)
		observability.RecordDBQuery("clickhouse", "insert_reclaim_events", time.Since(start).Seconds(), err)
		if err != nil {
			log.Error("store reclaim events", zap.Error(err))
		}
	}
}

func reclaimEvents(signature, owner string, records []domain.TokenAccountRecord, at time.Time) []*domain.ReclaimEvent {
	events := make([]*domain.ReclaimEvent, len(records))
	for i, r := range records {
		events[i] = &domain.ReclaimEvent{
			Signature:   signature,
			Owner:       owner,
			Account:     r.AccountAddress,
			Mint:        r.MintAddress,
			BurnedRaw:   r.BurnAmount(),
			Decimals:    r.Decimals,
			UnitPrice:   r.UnitPrice,
			TimestampMs: at.UnixMilli(),
		}
	}
	return events
}

func (w *Workflow) transition(state domain.ClosureState, signature string) {
	w.mu.Lock()
	w.status.State = state
	if signature != "" {
		w.status.Signature = signature
	}
	status := w.status
	epoch := w.epoch
	w.mu.Unlock()

	w.session.Dispatch(dashboard.ClosureStateChanged{
		Epoch:     epoch,
		State:     status.State,
		Signature: status.Signature,
	})
}

func (w *Workflow) update(fn func(*Status)) {
	w.mu.Lock()
	fn(&w.status)
	w.mu.Unlock()
}

func (w *Workflow) setLocked(s Status) {
	w.status = s
	w.session.Dispatch(dashboard.ClosureStateChanged{Epoch: w.epoch, State: s.State})
}

// Status returns a snapshot, including the message to sign while one is pending.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.status
	s.Accounts = append([]string(nil), w.status.Accounts...)
	if s.State == domain.ClosureAwaitingSignature {
		if ws, ok := w.signer.(WalletSigner); ok {
			s.Message, _ = ws.Pending()
		}
	}
	return s
}

// Provide delivers the wallet's signature for the pending transaction.
func (w *Workflow) Provide(signature string) error {
	ws, err := w.walletSigner()
	if err != nil {
		return err
	}
	return ws.Provide(signature)
}

// Reject records that the wallet declined to sign.
func (w *Workflow) Reject() error {
	ws, err := w.walletSigner()
	if err != nil {
		return err
	}
	return ws.Reject()
}

func (w *Workflow) walletSigner() (WalletSigner, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status.State != domain.ClosureAwaitingSignature {
		return nil, ErrNoPendingSignature
	}
	ws, ok := w.signer.(WalletSigner)
	if !ok {
		return nil, ErrNoPendingSignature
	}
	return ws, nil
}

// Dismiss returns a finished workflow to Idle. It is a no-op when idle.
func (w *Workflow) Dismiss() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.status.State.Active():
		return domain.ErrClosureInProgress
	case w.status.State == domain.ClosureIdle:
		return nil
	}

	w.setLocked(Status{State: domain.ClosureIdle})
	return nil
}

// Wait blocks until the current run, if any, has finished.
func (w *Workflow) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MessageBytes decodes a base64 message returned by Status.
func MessageBytes(message string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, fmt.Errorf("%w: message: %v", domain.ErrInvalidInput, err)
	}
	return b, nil
}

func ptrInt64(v int64) *int64 {
	return &v
}
