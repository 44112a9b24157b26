package storage

import "errors"

// Storage errors. Stores surface these immediately; nothing here is
// retried internally.
var (
	// ErrNotFound is returned when a requested symbol was never loaded.
	ErrNotFound = errors.New("not found")

	// ErrDataUnavailable is returned when no bars exist for the requested
	// symbol and time range.
	ErrDataUnavailable = errors.New("data unavailable for requested range")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Bar and trade stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSeriesGap is returned by Load when consecutive bars are further
	// apart than the configured gap tolerance.
	ErrSeriesGap = errors.New("series gap exceeds tolerance")
)
