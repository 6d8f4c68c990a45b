package lease

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time
	timer     *time.Timer
}

// InMemory implements Store using local memory, mainly for testing and
// single-process deployments. Expiry uses timers plus a lazy deadline check
// so an expired lease is never observable even before its timer fires.
type InMemory struct {
	mu     sync.Mutex
	leases map[string]*memEntry
}

// NewInMemory returns a new in-memory lease store.
func NewInMemory() *InMemory {
	return &InMemory{leases: make(map[string]*memEntry)}
}

// live returns the entry for resourceID if present and unexpired, removing
// it otherwise. Callers must hold the mutex.
func (l *InMemory) live(resourceID string, now time.Time) *memEntry {
	e, ok := l.leases[resourceID]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(l.leases, resourceID)
		return nil
	}
	return e
}

// Acquire implements Store.Acquire.
func (l *InMemory) Acquire(ctx context.Context, resourceID, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.live(resourceID, now) != nil {
		return false, nil
	}
	e := &memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
		e.timer = time.AfterFunc(ttl, func() {
			l.mu.Lock()
			if cur, ok := l.leases[resourceID]; ok && cur == e {
				delete(l.leases, resourceID)
			}
			l.mu.Unlock()
		})
	}
	l.leases[resourceID] = e
	return true, nil
}

// Release implements Store.Release.
func (l *InMemory) Release(ctx context.Context, resourceID, expected string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusMissing, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.live(resourceID, time.Now())
	if e == nil {
		return StatusMissing, nil
	}
	if e.value != expected {
		return StatusNotOwner, nil
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(l.leases, resourceID)
	return StatusOK, nil
}

// Extend implements Store.Extend.
func (l *InMemory) Extend(ctx context.Context, resourceID, expected string, ttl time.Duration) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusMissing, err
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.live(resourceID, now)
	if e == nil {
		return StatusMissing, nil
	}
	if e.value != expected {
		return StatusNotOwner, nil
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.expiresAt = now.Add(ttl)
	e.timer = time.AfterFunc(ttl, func() {
		l.mu.Lock()
		if cur, ok := l.leases[resourceID]; ok && cur == e {
			delete(l.leases, resourceID)
		}
		l.mu.Unlock()
	})
	return StatusOK, nil
}

// Rollback implements Store.Rollback.
func (l *InMemory) Rollback(ctx context.Context, entries []RollbackEntry) ([]RollbackResult, error) {
	results := make([]RollbackResult, len(entries))
	for i, e := range entries {
		results[i].ResourceID = e.ResourceID
		results[i].Status, results[i].Err = l.Release(ctx, e.ResourceID, e.Expected)
	}
	return results, nil
}
