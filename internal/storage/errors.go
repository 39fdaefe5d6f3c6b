package storage

import "errors"

// Closure receipts and reclaim events are append-only: a closure is written
// once, when its outcome is known, and never updated.
var (
	// ErrNotFound is returned when no receipt or event matches the lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a receipt signature, or an event's
	// signature and account pair, is already stored.
	ErrDuplicateKey = errors.New("duplicate key: record already stored")

	// ErrInvalidInput is returned for records missing their key fields.
	ErrInvalidInput = errors.New("invalid input")
)
