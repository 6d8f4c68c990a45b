// Package compensator reclaims leases left behind by sessions that crashed
// without releasing. It periodically scans the lease namespace and deletes
// keys whose TTL has lapsed or that carry no TTL at all. The compensator is
// live-safe: it only removes keys that are already logically dead, so it can
// run at any time next to claim/release traffic.
package compensator

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/openvenue/seatlock/lease"
	"github.com/openvenue/seatlock/metrics"
)

const (
	// DefaultBatchSize bounds the number of keys examined per scan page.
	DefaultBatchSize = 200
	// DefaultRatePerSecond caps deletion throughput across a pass.
	DefaultRatePerSecond = 200
	// DefaultInterval is the pause between scheduled passes.
	DefaultInterval = 5 * time.Minute
)

// Compensator sweeps the lease keyspace for expired entries.
type Compensator struct {
	client    *redis.Client
	keys      lease.Keys
	batchSize int64
	rate      int
	interval  time.Duration
	logger    *slog.Logger
}

// Option configures a Compensator.
type Option func(*Compensator)

// WithBatchSize sets the scan page size.
func WithBatchSize(n int64) Option {
	return func(c *Compensator) {
		c.batchSize = n
	}
}

// WithRate caps deletions per second across a pass. Zero disables pacing.
func WithRate(perSecond int) Option {
	return func(c *Compensator) {
		c.rate = perSecond
	}
}

// WithInterval sets the pause between scheduled passes.
func WithInterval(d time.Duration) Option {
	return func(c *Compensator) {
		c.interval = d
	}
}

// WithLogger sets the logger used for pass outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compensator) {
		c.logger = l
	}
}

// New returns a Compensator scanning the namespace described by keys.
func New(client *redis.Client, keys lease.Keys, opts ...Option) *Compensator {
	c := &Compensator{
		client:    client,
		keys:      keys,
		batchSize: DefaultBatchSize,
		rate:      DefaultRatePerSecond,
		interval:  DefaultInterval,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interval returns the configured pause between scheduled passes.
func (c *Compensator) Interval() time.Duration {
	return c.interval
}

// Sweep performs one full pass and returns the number of keys deleted. The
// scan is cursor-resumable and ends when the cursor returns to its initial
// position. Any error aborts the pass; partial progress stands, since an
// undeleted expired key is already invisible to the claim path.
func (c *Compensator) Sweep(ctx context.Context) (int, error) {
	pattern := c.keys.Pattern()
	var cursor uint64
	deleted := 0
	for {
		page, next, err := c.client.Scan(ctx, cursor, pattern, c.batchSize).Result()
		if err != nil {
			return deleted, err
		}
		if len(page) > 0 {
			n, err := c.sweepPage(ctx, page)
			deleted += n
			if err != nil {
				return deleted, err
			}
			if n > 0 {
				c.pace(n)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// sweepPage fetches every key's remaining TTL in one pipelined round trip,
// then deletes the dead ones in a single batched DEL.
func (c *Compensator) sweepPage(ctx context.Context, keys []string) (int, error) {
	pipe := c.client.Pipeline()
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, k := range keys {
		ttls[i] = pipe.PTTL(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	doomed := make([]string, 0, len(keys))
	for i, k := range keys {
		ttl, err := ttls[i].Result()
		// Non-positive covers expired keys, keys that vanished since the
		// scan, and keys that never got a TTL.
		if err != nil || ttl <= 0 {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	if err := c.client.Del(ctx, doomed...).Err(); err != nil {
		return 0, err
	}
	metrics.CompensatorDeletedCounter.Add(float64(len(doomed)))
	return len(doomed), nil
}

// pace sleeps long enough that a large cleanup cannot exceed the configured
// deletions-per-second budget.
func (c *Compensator) pace(deleted int) {
	if c.rate <= 0 {
		return
	}
	time.Sleep(time.Duration(float64(deleted) / float64(c.rate) * float64(time.Second)))
}
