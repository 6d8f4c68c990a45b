package errors

import "errors"

var (
	// ErrTimeout is returned when an operation against a backing store
	// exceeds its configured bound.
	ErrTimeout = errors.New("timeout")
	// ErrVersionStoreTimeout is returned when the version bump transaction
	// cannot complete within its statement timeout. No lease exists for the
	// attempt; the claim must be treated as failed.
	ErrVersionStoreTimeout = errors.New("version store timeout")
	// ErrConnectionClosed is returned when the lease store connection has
	// been closed.
	ErrConnectionClosed = errors.New("connection closed")
)
