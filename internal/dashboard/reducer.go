package dashboard

import (
	"solana-rent-reclaim/internal/domain"
)

// ClosureStatus is the closure workflow as seen by the dashboard.
type ClosureStatus struct {
	State     domain.ClosureState
	Signature string
	Err       error
}

// State is the full dashboard state of one session.
// Values returned by Reduce share no mutable memory with their input.
type State struct {
	Epoch   uint64
	Owner   string
	Records []domain.TokenAccountRecord

	// Selection is keyed by token account address.
	Selection map[string]struct{}

	Loading  bool // ledger query in flight
	Settled  bool // every enrichment task finished
	LoadErr  error
	Lamports *uint64
	Closure  ClosureStatus
	pending  int // enrichment results still expected
}

// Stale reports whether ev belongs to a previous generation.
func Stale(s State, ev Event) bool {
	e := ev.epoch()
	return e != 0 && e != s.Epoch
}

// Reduce applies ev to s and returns the new state. Events from another
// generation are ignored.
func Reduce(s State, ev Event) State {
	if Stale(s, ev) {
		return s
	}

	switch e := ev.(type) {
	case OwnerChanged:
		return State{
			Epoch:   s.Epoch + 1,
			Owner:   e.Owner,
			Loading: e.Owner != "",
			Closure: ClosureStatus{State: domain.ClosureIdle},
		}

	case Disconnected:
		return State{
			Epoch:   s.Epoch + 1,
			Closure: ClosureStatus{State: domain.ClosureIdle},
		}

	case AccountsLoaded:
		records := make([]domain.TokenAccountRecord, 0, len(e.Accounts))
		seen := make(map[string]struct{}, len(e.Accounts))
		for _, acc := range e.Accounts {
			if _, dup := seen[acc.AccountAddress]; dup {
				continue
			}
			seen[acc.AccountAddress] = struct{}{}
			records = append(records, domain.NewTokenAccountRecord(acc))
		}
		s.Records = records
		s.Selection = nil
		s.Loading = false
		s.LoadErr = nil
		s.Settled = false
		s.pending = 2 * len(records)
		return s

	case LoadFailed:
		s.Records = nil
		s.Selection = nil
		s.Loading = false
		s.LoadErr = e.Err
		s.Settled = true
		return s

	case BalanceLoaded:
		lamports := e.Lamports
		s.Lamports = &lamports
		return s

	case MetadataResolved:
		i := locate(s.Records, e.Index, e.Account)
		if i < 0 {
			return s
		}
		meta := e.Metadata
		s.Records = cloneRecords(s.Records)
		s.Records[i].Metadata = &meta
		s.pending--
		return s

	case PriceResolved:
		i := locate(s.Records, e.Index, e.Account)
		if i < 0 {
			return s
		}
		s.Records = cloneRecords(s.Records)
		if e.Price != nil {
			p := *e.Price
			s.Records[i].UnitPrice = &p
		} else {
			s.Records[i].UnitPrice = nil
		}
		s.pending--
		return s

	case EnrichmentSettled:
		s.Settled = true
		s.pending = 0
		return s

	case SelectionToggled:
		if locate(s.Records, -1, e.Account) < 0 {
			return s
		}
		_, selected := s.Selection[e.Account]
		s.Selection = setSelected(s.Selection, e.Account, !selected)
		return s

	case SelectionSet:
		if e.Selected && locate(s.Records, -1, e.Account) < 0 {
			return s
		}
		if _, selected := s.Selection[e.Account]; selected == e.Selected {
			return s
		}
		s.Selection = setSelected(s.Selection, e.Account, e.Selected)
		return s

	case ClosureStateChanged:
		s.Closure = ClosureStatus{State: e.State, Signature: e.Signature, Err: e.Err}
		if e.State != domain.ClosureSucceeded || len(e.Closed) == 0 {
			return s
		}
		closed := make(map[string]struct{}, len(e.Closed))
		for _, a := range e.Closed {
			closed[a] = struct{}{}
		}
		kept := make([]domain.TokenAccountRecord, 0, len(s.Records))
		for _, r := range s.Records {
			if _, ok := closed[r.AccountAddress]; !ok {
				kept = append(kept, r)
			}
		}
		s.Records = kept
		selection := make(map[string]struct{}, len(s.Selection))
		for a := range s.Selection {
			if _, ok := closed[a]; !ok {
				selection[a] = struct{}{}
			}
		}
		s.Selection = selection
		return s
	}

	return s
}

// Pending returns the number of enrichment results not yet applied.
func (s State) Pending() int {
	return s.pending
}

// Selected reports whether account is selected.
func (s State) Selected(account string) bool {
	_, ok := s.Selection[account]
	return ok
}

// SelectedRecords returns the selected records in record order.
func (s State) SelectedRecords() []domain.TokenAccountRecord {
	var out []domain.TokenAccountRecord
	for _, r := range s.Records {
		if _, ok := s.Selection[r.AccountAddress]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Record returns the record of account.
func (s State) Record(account string) (domain.TokenAccountRecord, bool) {
	i := locate(s.Records, -1, account)
	if i < 0 {
		return domain.TokenAccountRecord{}, false
	}
	return s.Records[i], true
}

// locate finds account, trying the hinted index first.
func locate(records []domain.TokenAccountRecord, hint int, account string) int {
	if hint >= 0 && hint < len(records) && records[hint].AccountAddress == account {
		return hint
	}
	for i := range records {
		if records[i].AccountAddress == account {
			return i
		}
	}
	return -1
}

func cloneRecords(in []domain.TokenAccountRecord) []domain.TokenAccountRecord {
	out := make([]domain.TokenAccountRecord, len(in))
	copy(out, in)
	return out
}

func setSelected(in map[string]struct{}, account string, selected bool) map[string]struct{} {
	out := make(map[string]struct{}, len(in)+1)
	for k := range in {
		out[k] = struct{}{}
	}
	if selected {
		out[account] = struct{}{}
	} else {
		delete(out, account)
	}
	return out
}
