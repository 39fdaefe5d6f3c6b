package domain

// ClosureStatus is the terminal outcome of a batch closure.
type ClosureStatus string

const (
	ClosureStatusSucceeded ClosureStatus = "succeeded"
	ClosureStatusFailed    ClosureStatus = "failed"
)

// ClosureReceipt records one submitted batch closure transaction.
// Corresponds to closure_receipts table in PostgreSQL.
type ClosureReceipt struct {
	Signature    string        // PK, transaction signature (base58)
	Owner        string        // wallet that signed and paid
	Accounts     []string      // closed token accounts
	BurnCount    int           // number of burn instructions
	FeeLamports  uint64        // service fee transferred
	FeeCollector string        // service fee recipient
	Status       ClosureStatus // terminal status
	Error        *string       // failure reason (nullable)
	SubmittedAt  int64         // submission timestamp (ms)
	ConfirmedAt  *int64        // confirmation timestamp (ms, nullable)
	CreatedAt    int64         // record creation timestamp (ms)
}

// ReclaimEvent is one closed token account, stored for analytics.
// Corresponds to reclaim_events table in ClickHouse.
type ReclaimEvent struct {
	Signature   string
	Owner       string
	Account     string
	Mint        string
	BurnedRaw   uint64
	Decimals    uint8
	UnitPrice   *float64
	TimestampMs int64
}

// ClosureState is a step of the batch closure workflow.
type ClosureState string

const (
	ClosureIdle              ClosureState = "idle"
	ClosureBuilding          ClosureState = "building"
	ClosureAwaitingSignature ClosureState = "awaiting_signature"
	ClosureSubmitted         ClosureState = "submitted"
	ClosureConfirming        ClosureState = "confirming"
	ClosureSucceeded         ClosureState = "succeeded"
	ClosureFailed            ClosureState = "failed"
)

// Terminal reports whether the workflow has finished and awaits dismissal.
func (s ClosureState) Terminal() bool {
	return s == ClosureSucceeded || s == ClosureFailed
}

// Active reports whether a closure is in flight.
func (s ClosureState) Active() bool {
	switch s {
	case ClosureBuilding, ClosureAwaitingSignature, ClosureSubmitted, ClosureConfirming:
		return true
	}
	return false
}
