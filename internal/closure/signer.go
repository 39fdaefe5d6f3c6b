package closure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"solana-rent-reclaim/internal/domain"
)

// DefaultSigningTimeout bounds the wait for the wallet.
const DefaultSigningTimeout = 2 * time.Minute

// ErrNoPendingSignature is returned when a signature is provided while
// nothing is waiting for one.
var ErrNoPendingSignature = errors.New("no transaction awaiting signature")

// Signer signs a serialized transaction message on behalf of the owner.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// RemoteSigner hands the message to the wallet through the API and waits for
// the wallet to post back a signature or a rejection.
type RemoteSigner struct {
	owner   solanago.PublicKey
	timeout time.Duration

	mu      sync.Mutex
	message []byte
	reply   chan signReply
}

type signReply struct {
	sig []byte
	err error
}

// NewRemoteSigner creates a signer expecting signatures from owner.
func NewRemoteSigner(owner string, timeout time.Duration) (*RemoteSigner, error) {
	key, err := solanago.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner %q: %v", domain.ErrInvalidInput, owner, err)
	}
	if timeout <= 0 {
		timeout = DefaultSigningTimeout
	}
	return &RemoteSigner{owner: key, timeout: timeout}, nil
}

// Sign publishes message and blocks until the wallet answers, the signing
// timeout expires or ctx is done. Timeouts count as a rejection.
func (s *RemoteSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	reply := make(chan signReply, 1)

	s.mu.Lock()
	if s.reply != nil {
		s.mu.Unlock()
		return nil, domain.ErrClosureInProgress
	}
	s.message = message
	s.reply = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.message = nil
		s.reply = nil
		s.mu.Unlock()
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r.sig, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w: no answer within %v", domain.ErrSigningRejected, s.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrSigningRejected, ctx.Err())
	}
}

// Pending returns the base64 message awaiting a signature.
func (s *RemoteSigner) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reply == nil {
		return "", false
	}
	return base64.StdEncoding.EncodeToString(s.message), true
}

// Provide delivers the wallet's base58 signature of the pending message.
// A signature that does not verify against the owner key is refused and the
// signer keeps waiting.
func (s *RemoteSigner) Provide(signature string) error {
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %v", domain.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reply == nil {
		return ErrNoPendingSignature
	}
	if !sig.Verify(s.owner, s.message) {
		return fmt.Errorf("%w: signature does not match owner %s", domain.ErrInvalidInput, s.owner)
	}

	s.reply <- signReply{sig: sig[:]}
	s.reply = nil
	return nil
}

// Reject records that the wallet declined to sign.
func (s *RemoteSigner) Reject() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reply == nil {
		return ErrNoPendingSignature
	}
	s.reply <- signReply{err: domain.ErrSigningRejected}
	s.reply = nil
	return nil
}

var _ Signer = (*RemoteSigner)(nil)
