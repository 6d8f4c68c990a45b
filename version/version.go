// Package version implements the durable per-resource version counter.
// Every claim attempt bumps the counter, whether or not a lease is created
// afterwards; version numbers disambiguate stale ownership tokens and are
// not a count of successful claims.
package version

import "context"

// Store abstracts the durable version counter.
type Store interface {
	// Bump increments the counter for resourceID and returns the new value.
	// The row is created lazily at version 0 on first use. Concurrent bumps
	// for the same resource observe strictly increasing, non-duplicated
	// values.
	Bump(ctx context.Context, resourceID string) (int64, error)
}
