package closure

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-rent-reclaim/internal/domain"
)

func newWallet(t *testing.T) solanago.PrivateKey {
	t.Helper()
	pk, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk
}

// awaitPending polls until the signer publishes a message.
func awaitPending(t *testing.T, pending func() (string, bool)) []byte {
	t.Helper()
	var msg string
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = pending()
		return ok
	}, 5*time.Second, 5*time.Millisecond)

	b, err := base64.StdEncoding.DecodeString(msg)
	require.NoError(t, err)
	return b
}

type signResult struct {
	sig []byte
	err error
}

func signAsync(s Signer, message []byte) <-chan signResult {
	ch := make(chan signResult, 1)
	go func() {
		sig, err := s.Sign(context.Background(), message)
		ch <- signResult{sig, err}
	}()
	return ch
}

func TestRemoteSigner_Provide(t *testing.T) {
	wallet := newWallet(t)
	s, err := NewRemoteSigner(wallet.PublicKey().String(), time.Minute)
	require.NoError(t, err)

	message := []byte("closure message")
	res := signAsync(s, message)

	got := awaitPending(t, s.Pending)
	assert.Equal(t, message, got)

	sig, err := wallet.Sign(got)
	require.NoError(t, err)
	require.NoError(t, s.Provide(sig.String()))

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, sig[:], r.sig)

	_, pending := s.Pending()
	assert.False(t, pending)
}

func TestRemoteSigner_WrongKeyKeepsWaiting(t *testing.T) {
	wallet := newWallet(t)
	intruder := newWallet(t)
	s, err := NewRemoteSigner(wallet.PublicKey().String(), time.Minute)
	require.NoError(t, err)

	res := signAsync(s, []byte("msg"))
	msg := awaitPending(t, s.Pending)

	bad, err := intruder.Sign(msg)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Provide(bad.String()), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.Provide("garbage"), domain.ErrInvalidInput)

	_, pending := s.Pending()
	assert.True(t, pending, "still awaiting the owner's signature")

	require.NoError(t, s.Reject())
	assert.ErrorIs(t, (<-res).err, domain.ErrSigningRejected)
}

func TestRemoteSigner_Timeout(t *testing.T) {
	wallet := newWallet(t)
	s, err := NewRemoteSigner(wallet.PublicKey().String(), 20*time.Millisecond)
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), []byte("msg"))
	assert.ErrorIs(t, err, domain.ErrSigningRejected)
}

func TestRemoteSigner_ContextCancelled(t *testing.T) {
	wallet := newWallet(t)
	s, err := NewRemoteSigner(wallet.PublicKey().String(), time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Sign(ctx, []byte("msg"))
	assert.ErrorIs(t, err, domain.ErrSigningRejected)
}

func TestRemoteSigner_NothingPending(t *testing.T) {
	wallet := newWallet(t)
	s, err := NewRemoteSigner(wallet.PublicKey().String(), 0)
	require.NoError(t, err)

	sig, err := wallet.Sign([]byte("x"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Provide(sig.String()), ErrNoPendingSignature)
	assert.ErrorIs(t, s.Reject(), ErrNoPendingSignature)

	_, err = NewRemoteSigner("bad", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
