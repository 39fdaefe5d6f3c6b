package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the ledger, resolvers and the closure workflow.
var (
	// ErrTransport is returned when the ledger or an HTTP service is unreachable.
	ErrTransport = errors.New("transport unavailable")

	// ErrNotFound is returned on metadata or registry misses. It is an expected outcome.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when an address or request fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSigningRejected is returned when the wallet declines to sign.
	ErrSigningRejected = errors.New("signing rejected by wallet")

	// ErrSubmission is returned when the ledger refuses a signed transaction.
	ErrSubmission = errors.New("transaction submission failed")

	// ErrConfirmation is returned when a submitted transaction fails or cannot be confirmed.
	ErrConfirmation = errors.New("transaction confirmation failed")

	// ErrConfirmationTimeout is returned when confirmation does not arrive in time.
	// It wraps ErrConfirmation.
	ErrConfirmationTimeout = fmt.Errorf("%w: timed out, outcome unknown", ErrConfirmation)

	// ErrClosureInProgress is returned when a closure is started while another is active.
	ErrClosureInProgress = errors.New("closure already in progress")

	// ErrEmptySelection is returned when a closure is requested with nothing selected.
	ErrEmptySelection = errors.New("no accounts selected")
)
