package stub

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/mr-tron/base58"

	"solana-rent-reclaim/internal/solana"
)

// ErrNotFound is returned when an account is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	TokenAccounts map[string][]solana.TokenAccount
	Accounts      map[string]*solana.AccountInfo
	Balances      map[string]uint64
	Statuses      map[string]*solana.SignatureStatus
	Blockhash     solana.Blockhash

	// Sent holds every transaction passed to SendTransaction.
	Sent [][]byte

	// Err, when set, is returned by every call.
	Err error
	// SendErr, when set, is returned by SendTransaction only.
	SendErr error

	calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		TokenAccounts: make(map[string][]solana.TokenAccount),
		Accounts:      make(map[string]*solana.AccountInfo),
		Balances:      make(map[string]uint64),
		Statuses:      make(map[string]*solana.SignatureStatus),
		Blockhash: solana.Blockhash{
			Blockhash:            "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM",
			LastValidBlockHeight: 1000,
		},
		calls: make(map[string]int),
	}
}

func (c *RPCClient) record(method string) error {
	c.calls[method]++
	return c.Err
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// GetTokenAccountsByOwner returns the stored token accounts of owner.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner, _ string) ([]solana.TokenAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getTokenAccountsByOwner"); err != nil {
		return nil, err
	}
	accounts := c.TokenAccounts[owner]
	out := make([]solana.TokenAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[pubkey], nil
}

// GetBalance returns the stored lamport balance.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getBalance"); err != nil {
		return 0, err
	}
	return c.Balances[pubkey], nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getLatestBlockhash"); err != nil {
		return nil, err
	}
	bh := c.Blockhash
	return &bh, nil
}

// SendTransaction stores tx and returns a signature derived from its bytes.
func (c *RPCClient) SendTransaction(_ context.Context, tx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("sendTransaction"); err != nil {
		return "", err
	}
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, tx)
	sum := sha256.Sum256(tx)
	return base58.Encode(append(sum[:], sum[:]...)), nil
}

// GetSignatureStatuses returns stored statuses; unknown signatures yield nil.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getSignatureStatuses"); err != nil {
		return nil, err
	}
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.Statuses[sig]
	}
	return out, nil
}

// SetStatus stores the status reported for signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// AddTokenAccounts adds token accounts for owner.
func (c *RPCClient) AddTokenAccounts(owner string, accounts ...solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenAccounts[owner] = append(c.TokenAccounts[owner], accounts...)
}

// AddAccount stores raw account info under pubkey.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SetError makes every subsequent call fail with err.
func (c *RPCClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

var _ solana.RPCClient = (*RPCClient)(nil)
