package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature waits for a transaction signature to reach commitment.
	// The returned channel yields at most one notification and is then closed.
	SubscribeSignature(ctx context.Context, signature, commitment string) (<-chan SignatureNotification, error)

	// UnsubscribeSignature abandons a signature watch and closes its channel.
	UnsubscribeSignature(ch <-chan SignatureNotification)

	// SubscribeAccount streams lamport changes of account. Only the latest
	// unread notification is kept.
	SubscribeAccount(ctx context.Context, account, commitment string) (<-chan AccountNotification, error)

	// UnsubscribeAccount ends an account watch and closes its channel.
	UnsubscribeAccount(ch <-chan AccountNotification)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureSubscribe message.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{} // non-nil when the transaction failed on-chain
}

// AccountNotification represents an accountSubscribe message.
type AccountNotification struct {
	Account  string
	Slot     int64
	Lamports uint64
}
