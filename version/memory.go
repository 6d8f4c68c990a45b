package version

import (
	"context"
	"sync"
	"time"
)

// InMemory is a Store implementation backed by a map, mainly for testing and
// single-process deployments.
type InMemory struct {
	mu       sync.Mutex
	versions map[string]int64
	updated  map[string]time.Time
}

// NewInMemory returns a new InMemory version store.
func NewInMemory() *InMemory {
	return &InMemory{
		versions: make(map[string]int64),
		updated:  make(map[string]time.Time),
	}
}

// Bump implements Store.Bump.
func (s *InMemory) Bump(ctx context.Context, resourceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.versions[resourceID]++
	v := s.versions[resourceID]
	s.updated[resourceID] = time.Now()
	s.mu.Unlock()
	return v, nil
}

// Current returns the last bumped version for resourceID, or 0 if the
// resource has never been claimed.
func (s *InMemory) Current(resourceID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[resourceID]
}
