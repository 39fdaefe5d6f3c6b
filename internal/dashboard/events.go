package dashboard

import "solana-rent-reclaim/internal/domain"

// Event is an input to Reduce.
type Event interface {
	// epoch returns the load generation the event belongs to, or 0 for events
	// that apply to whatever generation is current.
	epoch() uint64
}

// OwnerChanged starts a new generation for owner and clears every record.
type OwnerChanged struct {
	Owner string
}

// Disconnected starts a new, ownerless generation and clears every record.
type Disconnected struct{}

// AccountsLoaded publishes the ledger accounts as unenriched records.
type AccountsLoaded struct {
	Epoch    uint64
	Accounts []domain.RawTokenAccount
}

// LoadFailed reports that the ledger could not be queried.
type LoadFailed struct {
	Epoch uint64
	Err   error
}

// BalanceLoaded reports the owner's native balance in lamports.
type BalanceLoaded struct {
	Epoch    uint64
	Lamports uint64
}

// MetadataResolved fills in the metadata of the record at Index.
// Account guards against the record set having shifted since dispatch.
type MetadataResolved struct {
	Epoch    uint64
	Index    int
	Account  string
	Metadata domain.TokenMetadata
}

// PriceResolved fills in the unit price of the record at Index. A nil Price
// marks the price as unresolvable.
type PriceResolved struct {
	Epoch   uint64
	Index   int
	Account string
	Price   *float64
}

// EnrichmentSettled opens the sort gate once every enrichment task finished.
type EnrichmentSettled struct {
	Epoch uint64
}

// SelectionToggled flips the selection of an account.
type SelectionToggled struct {
	Account string
}

// SelectionSet selects or deselects an account. Repeating it is a no-op.
type SelectionSet struct {
	Account  string
	Selected bool
}

// ClosureStateChanged reports progress of the closure workflow. On
// domain.ClosureSucceeded the Closed accounts are removed from the records
// and the selection.
type ClosureStateChanged struct {
	Epoch     uint64
	State     domain.ClosureState
	Signature string
	Closed    []string
	Err       error
}

func (OwnerChanged) epoch() uint64          { return 0 }
func (Disconnected) epoch() uint64          { return 0 }
func (e AccountsLoaded) epoch() uint64      { return e.Epoch }
func (e LoadFailed) epoch() uint64          { return e.Epoch }
func (e BalanceLoaded) epoch() uint64       { return e.Epoch }
func (e MetadataResolved) epoch() uint64    { return e.Epoch }
func (e PriceResolved) epoch() uint64       { return e.Epoch }
func (e EnrichmentSettled) epoch() uint64   { return e.Epoch }
func (SelectionToggled) epoch() uint64      { return 0 }
func (SelectionSet) epoch() uint64          { return 0 }
func (e ClosureStateChanged) epoch() uint64 { return e.Epoch }
