// Package lease implements the ephemeral lease store: at most one
// time-bounded exclusive claim per resource, created by a conditional create
// and destroyed by an ownership-checked release, natural expiry, or the
// compensator. Lease values are immutable for their lifetime.
package lease

import (
	"context"
	"fmt"
	"time"
)

// DefaultNamespace prefixes lease keys when no namespace is configured.
const DefaultNamespace = "seatlock"

// Status is the outcome of an ownership-checked operation. Missing and
// NotOwner are expected results, not errors: releasing an already-expired
// lease is idempotent, and NotOwner only means another session now holds
// the resource.
type Status int

const (
	StatusOK Status = iota
	StatusMissing
	StatusNotOwner
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMissing:
		return "MISSING"
	case StatusNotOwner:
		return "NOT_OWNER"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Keys derives lease store keys from resource identifiers. The same
// derivation is used by claim, release, extend and the compensator's scan.
type Keys struct {
	Namespace string
}

// Key returns the lease key for a resource.
func (k Keys) Key(resourceID string) string {
	return k.namespace() + ":lock:seat:" + resourceID
}

// Pattern returns the scan glob covering every lease key in the namespace.
func (k Keys) Pattern() string {
	return k.namespace() + ":lock:seat:*"
}

func (k Keys) namespace() string {
	if k.Namespace == "" {
		return DefaultNamespace
	}
	return k.Namespace
}

// RollbackEntry names one lease to revert and the token expected to hold it.
type RollbackEntry struct {
	ResourceID string
	Expected   string
}

// RollbackResult reports the outcome for a single rollback entry.
type RollbackResult struct {
	ResourceID string
	Status     Status
	Err        error
}

// Store abstracts the ephemeral lease store.
type Store interface {
	// Acquire conditionally creates the lease for resourceID with the given
	// value and TTL. It returns false without error when a lease already
	// exists. It never waits or retries.
	Acquire(ctx context.Context, resourceID, value string, ttl time.Duration) (bool, error)
	// Release deletes the lease only if its value equals expected.
	Release(ctx context.Context, resourceID, expected string) (Status, error)
	// Extend refreshes the lease TTL only if its value equals expected. The
	// value itself is never changed.
	Extend(ctx context.Context, resourceID, expected string, ttl time.Duration) (Status, error)
	// Rollback releases a batch of leases, each under the same
	// compare-then-delete contract, and reports per-entry outcomes.
	Rollback(ctx context.Context, entries []RollbackEntry) ([]RollbackResult, error)
}
