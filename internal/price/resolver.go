// Package price resolves a USD unit price for a mint from a market-data endpoint.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.dexscreener.com/latest/dex"
	DefaultTimeout = 10 * time.Second
)

// Resolver resolves a unit price for a mint. A nil result means unknown, never zero.
type Resolver interface {
	Resolve(ctx context.Context, mint string) *float64
}

// Client queries GET {base}/tokens/{mint}.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new market-data client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pair is one trading-pair quote.
type Pair struct {
	BaseToken  Token  `json:"baseToken"`
	QuoteToken Token  `json:"quoteToken"`
	PriceUSD   string `json:"priceUsd"`
}

// Token identifies one side of a pair.
type Token struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol,omitempty"`
}

type tokensResponse struct {
	Pairs []Pair `json:"pairs"`
}

// Resolve returns the mean USD price of the pairs where mint is the base token.
// Network, status and parse failures, and an empty pair set, all yield nil.
func (c *Client) Resolve(ctx context.Context, mint string) *float64 {
	pairs, err := c.Pairs(ctx, mint)
	if err != nil {
		c.logger.Debug("price lookup failed", zap.String("mint", mint), zap.Error(err))
		observability.RecordPriceLookup(false)
		return nil
	}

	p := MeanBasePrice(mint, pairs)
	observability.RecordPriceLookup(p != nil)
	return p
}

// Pairs fetches every pair quote listed for mint.
func (c *Client) Pairs(ctx context.Context, mint string) ([]Pair, error) {
	endpoint := c.baseURL + "/tokens/" + url.PathEscape(mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTransport, resp.StatusCode, string(body))
	}

	var out tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Pairs, nil
}

// MeanBasePrice averages priceUsd over pairs whose base token is mint.
// Pairs quoting mint only as the quote token are ignored, as are unparseable prices.
func MeanBasePrice(mint string, pairs []Pair) *float64 {
	sum := decimal.Zero
	n := 0
	for _, p := range pairs {
		if p.BaseToken.Address != mint {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(p.PriceUSD))
		if err != nil {
			continue
		}
		sum = sum.Add(d)
		n++
	}
	if n == 0 {
		return nil
	}

	mean, _ := sum.Div(decimal.NewFromInt(int64(n))).Float64()
	return &mean
}

var _ Resolver = (*Client)(nil)
