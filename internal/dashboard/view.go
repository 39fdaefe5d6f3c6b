package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/ledger"
)

// SortKey selects the column rows are ranked by.
type SortKey string

const (
	SortByTotal  SortKey = "total"
	SortByAmount SortKey = "amount"
)

// SortOrder is the ranking direction.
type SortOrder string

const (
	Descending SortOrder = "desc"
	Ascending  SortOrder = "asc"
)

// ZeroValuePolicy decides how the hide-zero-value filter treats rows whose
// price could not be resolved.
type ZeroValuePolicy string

const (
	// UnresolvedIsUnknown keeps rows with an unresolved price visible.
	UnresolvedIsUnknown ZeroValuePolicy = "unresolved-is-unknown"
	// UnresolvedIsZero hides rows with an unresolved price, as if worth nothing.
	UnresolvedIsZero ZeroValuePolicy = "unresolved-is-zero"
)

// ParseZeroValuePolicy validates a policy name. Empty selects UnresolvedIsUnknown.
func ParseZeroValuePolicy(s string) (ZeroValuePolicy, error) {
	switch ZeroValuePolicy(s) {
	case "", UnresolvedIsUnknown:
		return UnresolvedIsUnknown, nil
	case UnresolvedIsZero:
		return UnresolvedIsZero, nil
	}
	return "", fmt.Errorf("%w: zero value policy %q", domain.ErrInvalidInput, s)
}

// Messages shown instead of rows.
const (
	MessageLoading       = "Loading tokens..."
	MessageNoTokens      = "No tokens found"
	MessageNotLoaded     = "No accounts loaded"
	MessageAllFiltered   = "All tokens are hidden by the zero-value filter"
	MessageNotConnected  = "Connect a wallet to list its tokens"
	UnresolvedTotalLabel = "unresolved"
)

// ViewOptions controls sorting, filtering and row links.
type ViewOptions struct {
	SortKey          SortKey
	Order            SortOrder
	HideZeroValue    bool
	ZeroValuePolicy  ZeroValuePolicy
	ExplorerBaseURL  string // e.g. https://solscan.io
	SwapBaseURL      string // e.g. https://jup.ag
	PlaceholderImage string
}

// Row is one displayed token account.
type Row struct {
	Account      string   `json:"account"`
	Mint         string   `json:"mint"`
	Name         string   `json:"name"`
	Symbol       string   `json:"symbol"`
	ImageURL     string   `json:"imageUrl"`
	RawAmount    uint64   `json:"rawAmount"`
	UIAmount     float64  `json:"uiAmount"`
	Decimals     uint8    `json:"decimals"`
	UnitPrice    *float64 `json:"unitPrice"`
	Total        *float64 `json:"total"`
	TotalDisplay string   `json:"totalDisplay"`
	Enriched     bool     `json:"enriched"`
	Selected     bool     `json:"selected"`
	ExplorerURL  string   `json:"explorerUrl,omitempty"`
	SwapURL      string   `json:"swapUrl,omitempty"`
}

// ClosureView is the closure workflow as rendered.
type ClosureView struct {
	State       domain.ClosureState `json:"state"`
	Signature   string              `json:"signature,omitempty"`
	ExplorerURL string              `json:"explorerUrl,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// View is the rendered dashboard.
type View struct {
	Owner         string      `json:"owner"`
	Rows          []Row       `json:"rows"`
	Loading       bool        `json:"loading"`
	Settled       bool        `json:"settled"`
	Message       string      `json:"message,omitempty"`
	SOLBalance    string      `json:"solBalance,omitempty"`
	SelectedCount int         `json:"selectedCount"`
	Closure       ClosureView `json:"closure"`
}

// BuildView renders s. Rows keep discovery order until enrichment has settled.
func BuildView(s State, opts ViewOptions) View {
	v := View{
		Owner:         s.Owner,
		Loading:       s.Loading,
		Settled:       s.Settled,
		SelectedCount: len(s.Selection),
		Rows:          []Row{},
		Closure: ClosureView{
			State:     s.Closure.State,
			Signature: s.Closure.Signature,
		},
	}
	if v.Closure.State == "" {
		v.Closure.State = domain.ClosureIdle
	}
	if s.Closure.Signature != "" && opts.ExplorerBaseURL != "" {
		v.Closure.ExplorerURL = strings.TrimRight(opts.ExplorerBaseURL, "/") + "/tx/" + s.Closure.Signature
	}
	if s.Closure.Err != nil {
		v.Closure.Error = s.Closure.Err.Error()
	}
	if s.Lamports != nil {
		v.SOLBalance = ledger.NewSOLBalance(*s.Lamports).Display()
	}

	switch {
	case s.Owner == "":
		v.Message = MessageNotConnected
		return v
	case s.Loading:
		v.Message = MessageLoading
		return v
	case s.LoadErr != nil:
		v.Message = MessageNotLoaded
		return v
	case len(s.Records) == 0:
		v.Message = MessageNoTokens
		return v
	}

	records := s.Records
	if s.Settled {
		records = SortRecords(records, opts.SortKey, opts.Order)
	}

	for _, r := range records {
		if opts.HideZeroValue && IsZeroValue(r, opts.ZeroValuePolicy) {
			continue
		}
		v.Rows = append(v.Rows, buildRow(r, s.Selected(r.AccountAddress), opts))
	}
	if len(v.Rows) == 0 {
		v.Message = MessageAllFiltered
	}

	return v
}

// IsZeroValue reports whether the hide-zero-value filter removes r.
func IsZeroValue(r domain.TokenAccountRecord, policy ZeroValuePolicy) bool {
	total, ok := r.TotalValue()
	if !ok {
		return policy == UnresolvedIsZero
	}
	return total == 0
}

// TotalDisplay renders the total value of r. An unresolved price is never shown as $0.00.
func TotalDisplay(r domain.TokenAccountRecord) string {
	total, ok := r.TotalValue()
	if !ok {
		return UnresolvedTotalLabel
	}
	return fmt.Sprintf("$%.2f", total)
}

// SortRecords returns a sorted copy of records. Unresolved prices rank as zero;
// ties are broken by UIAmount.
func SortRecords(records []domain.TokenAccountRecord, key SortKey, order SortOrder) []domain.TokenAccountRecord {
	out := make([]domain.TokenAccountRecord, len(records))
	copy(out, records)

	rank := func(r domain.TokenAccountRecord) (float64, float64) {
		total, _ := r.TotalValue()
		if key == SortByAmount {
			return r.UIAmount, total
		}
		return total, r.UIAmount
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, si := rank(out[i])
		pj, sj := rank(out[j])
		if pi == pj {
			if order == Ascending {
				return si < sj
			}
			return si > sj
		}
		if order == Ascending {
			return pi < pj
		}
		return pi > pj
	})
	return out
}

func buildRow(r domain.TokenAccountRecord, selected bool, opts ViewOptions) Row {
	row := Row{
		Account:      r.AccountAddress,
		Mint:         r.MintAddress,
		Name:         ShortAddress(r.MintAddress),
		ImageURL:     opts.PlaceholderImage,
		RawAmount:    r.RawAmount,
		UIAmount:     r.UIAmount,
		Decimals:     r.Decimals,
		UnitPrice:    r.UnitPrice,
		TotalDisplay: TotalDisplay(r),
		Selected:     selected,
	}
	if total, ok := r.TotalValue(); ok {
		row.Total = &total
	}
	if r.Metadata != nil {
		row.Enriched = true
		if r.Metadata.Name != "" {
			row.Name = r.Metadata.Name
		}
		row.Symbol = r.Metadata.Symbol
		if r.Metadata.ImageURL != "" {
			row.ImageURL = r.Metadata.ImageURL
		}
	}
	if opts.ExplorerBaseURL != "" {
		row.ExplorerURL = strings.TrimRight(opts.ExplorerBaseURL, "/") + "/account/" + r.AccountAddress
	}
	if opts.SwapBaseURL != "" {
		row.SwapURL = strings.TrimRight(opts.SwapBaseURL, "/") + "/swap/" + r.MintAddress + "-SOL"
	}
	return row
}

// ShortAddress abbreviates an address to its first and last four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
