// Package seatlock coordinates exclusive, time-bounded claims on seats
// across concurrent sessions. A claim bumps the durable per-seat version
// counter, then conditionally creates a lease whose value embeds the version
// and the session identifier; the same token must be presented to release or
// extend the lease. Two sessions can never simultaneously believe they hold
// the same seat: the lease store's conditional create linearizes racing
// claims, and releases are ownership-checked server-side.
package seatlock

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openvenue/seatlock/lease"
	"github.com/openvenue/seatlock/metrics"
	"github.com/openvenue/seatlock/notify"
	"github.com/openvenue/seatlock/token"
	"github.com/openvenue/seatlock/version"
)

var tracer = otel.Tracer("github.com/openvenue/seatlock")

// DefaultTTL is the selection-phase lease duration.
const DefaultTTL = 30 * time.Second

// ClaimResult reports the outcome of a claim attempt. OK is false when the
// seat is already held; that is ordinary control flow, not an error.
type ClaimResult struct {
	OK        bool
	Version   int64
	Token     string
	ExpiresAt time.Time
}

// Manager orchestrates the version store and the lease store.
type Manager struct {
	versions version.Store
	leases   lease.Store
	bus      notify.Bus
	ttl      time.Duration

	traceEnabled bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the lease duration for new claims.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		m.ttl = d
	}
}

// WithBus publishes a notification per resource when a lease is explicitly
// released, so waiting callers can retry promptly.
func WithBus(b notify.Bus) Option {
	return func(m *Manager) {
		m.bus = b
	}
}

// WithTracing enables otel spans on claim, release and extend.
func WithTracing() Option {
	return func(m *Manager) {
		m.traceEnabled = true
	}
}

// New creates a new Manager.
func New(v version.Store, l lease.Store, opts ...Option) *Manager {
	m := &Manager{versions: v, leases: l, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the lease duration applied to new claims.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Claim attempts to take the seat for the session. It bumps the version
// counter first; if the subsequent conditional create finds the lease held,
// the bump is not undone — version numbers disambiguate stale tokens, they
// do not count successful claims. Claim is single-shot: it never waits or
// retries.
func (m *Manager) Claim(ctx context.Context, resourceID, session string) (ClaimResult, error) {
	if m.traceEnabled {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Manager.Claim",
			trace.WithAttributes(attribute.String("seatlock.resource", resourceID)))
		defer span.End()
	}
	metrics.ClaimCounter.Inc()

	v, err := m.versions.Bump(ctx, resourceID)
	if err != nil {
		return ClaimResult{}, err
	}
	value := token.Encode(v, session)
	ok, err := m.leases.Acquire(ctx, resourceID, value, m.ttl)
	if err != nil {
		return ClaimResult{}, err
	}
	if !ok {
		metrics.ClaimConflictCounter.Inc()
		return ClaimResult{Version: v}, nil
	}
	return ClaimResult{
		OK:        true,
		Version:   v,
		Token:     value,
		ExpiresAt: time.Now().Add(m.ttl),
	}, nil
}

// Release frees the seat if tok still matches the live lease. Missing and
// NotOwner outcomes are expected results: the former makes release
// idempotent, the latter means another session reclaimed the seat after
// expiry.
func (m *Manager) Release(ctx context.Context, resourceID, tok string) (lease.Status, error) {
	if m.traceEnabled {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Manager.Release",
			trace.WithAttributes(attribute.String("seatlock.resource", resourceID)))
		defer span.End()
	}

	status, err := m.leases.Release(ctx, resourceID, tok)
	if err != nil {
		return status, err
	}
	metrics.ReleaseCounter.WithLabelValues(status.String()).Inc()
	if status == lease.StatusOK && m.bus != nil {
		_ = m.bus.Publish(ctx, resourceID)
	}
	return status, nil
}

// Extend refreshes the lease window for a seat the session still owns,
// leaving the lease value untouched.
func (m *Manager) Extend(ctx context.Context, resourceID, tok string) (lease.Status, error) {
	if m.traceEnabled {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Manager.Extend",
			trace.WithAttributes(attribute.String("seatlock.resource", resourceID)))
		defer span.End()
	}

	status, err := m.leases.Extend(ctx, resourceID, tok, m.ttl)
	if err != nil {
		return status, err
	}
	metrics.ExtendCounter.WithLabelValues(status.String()).Inc()
	return status, nil
}

// Rollback releases a batch of seats, for example when a multi-seat
// transaction partially fails. Each entry follows the same ownership-checked
// contract as Release; the per-entry outcomes identify which seats failed to
// roll back.
func (m *Manager) Rollback(ctx context.Context, entries []lease.RollbackEntry) ([]lease.RollbackResult, error) {
	results, err := m.leases.Rollback(ctx, entries)
	if err != nil {
		return results, err
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		metrics.ReleaseCounter.WithLabelValues(r.Status.String()).Inc()
		if r.Status == lease.StatusOK && m.bus != nil {
			_ = m.bus.Publish(ctx, r.ResourceID)
		}
	}
	return results, nil
}

// AwaitRelease blocks until the seat is explicitly released or ctx ends.
// It is a hint, not a guarantee: the caller must still claim, and may still
// lose the race to another session.
func (m *Manager) AwaitRelease(ctx context.Context, resourceID string) error {
	if m.bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	ch, err := m.bus.Subscribe(ctx, resourceID)
	if err != nil {
		return err
	}
	defer func() { _ = m.bus.Unsubscribe(context.Background(), resourceID, ch) }()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
