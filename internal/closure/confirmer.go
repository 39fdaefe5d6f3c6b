package closure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/solana"
)

// Default confirmation settings.
const (
	DefaultConfirmTimeout = 90 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// ErrTransactionFailed is returned when the ledger executed the transaction
// and reported an error.
var ErrTransactionFailed = fmt.Errorf("%w: transaction failed on-chain", domain.ErrConfirmation)

// Confirmer waits until a submitted signature reaches the required commitment.
// Implementations return an error wrapping domain.ErrConfirmation when the
// transaction failed and domain.ErrConfirmationTimeout when ctx expires first.
type Confirmer interface {
	Confirm(ctx context.Context, signature string) error
}

// PollingConfirmer polls getSignatureStatuses.
type PollingConfirmer struct {
	rpc        solana.RPCClient
	commitment string
	interval   time.Duration
	logger     *zap.Logger
}

// NewPollingConfirmer creates a confirmer that polls every interval.
func NewPollingConfirmer(rpc solana.RPCClient, commitment string, interval time.Duration, logger *zap.Logger) *PollingConfirmer {
	if commitment == "" {
		commitment = solana.CommitmentConfirmed
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingConfirmer{rpc: rpc, commitment: commitment, interval: interval, logger: logger}
}

// Confirm polls until the signature is confirmed, failed, or ctx is done.
// Transport errors while polling are retried on the next tick.
func (c *PollingConfirmer) Confirm(ctx context.Context, signature string) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return timeoutError(ctx)
			}
			c.logger.Debug("signature status poll failed", zap.String("signature", signature), zap.Error(err))
		case len(statuses) > 0 && statuses[0] != nil:
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, st.Err)
			}
			if st.Reached(c.commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return timeoutError(ctx)
		case <-ticker.C:
		}
	}
}

// WSConfirmer waits for a signatureSubscribe notification.
type WSConfirmer struct {
	ws         solana.WSClient
	commitment string
}

// NewWSConfirmer creates a confirmer over an open WebSocket client.
func NewWSConfirmer(ws solana.WSClient, commitment string) *WSConfirmer {
	if commitment == "" {
		commitment = solana.CommitmentConfirmed
	}
	return &WSConfirmer{ws: ws, commitment: commitment}
}

// Confirm subscribes to signature and waits for its notification.
func (c *WSConfirmer) Confirm(ctx context.Context, signature string) error {
	ch, err := c.ws.SubscribeSignature(ctx, signature, c.commitment)
	if err != nil {
		if ctx.Err() != nil {
			return timeoutError(ctx)
		}
		return fmt.Errorf("%w: subscribe: %v", domain.ErrConfirmation, err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: subscription closed before notification", domain.ErrConfirmation)
		}
		if n.Err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, n.Err)
		}
		return nil
	case <-ctx.Done():
		c.ws.UnsubscribeSignature(ch)
		return timeoutError(ctx)
	}
}

// FallbackConfirmer tries primary and falls back to secondary when primary
// cannot be used, such as a dropped WebSocket. On-chain failures and timeouts
// are final.
type FallbackConfirmer struct {
	primary   Confirmer
	secondary Confirmer
}

// NewFallbackConfirmer chains two confirmers.
func NewFallbackConfirmer(primary, secondary Confirmer) *FallbackConfirmer {
	return &FallbackConfirmer{primary: primary, secondary: secondary}
}

// Confirm implements Confirmer.
func (c *FallbackConfirmer) Confirm(ctx context.Context, signature string) error {
	err := c.primary.Confirm(ctx, signature)
	if err == nil || errors.Is(err, domain.ErrConfirmationTimeout) || errors.Is(err, ErrTransactionFailed) {
		return err
	}
	return c.secondary.Confirm(ctx, signature)
}

func timeoutError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrConfirmationTimeout
	}
	return fmt.Errorf("%w: %v", domain.ErrConfirmation, ctx.Err())
}

var (
	_ Confirmer = (*PollingConfirmer)(nil)
	_ Confirmer = (*WSConfirmer)(nil)
	_ Confirmer = (*FallbackConfirmer)(nil)
)
