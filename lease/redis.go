package lease

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	seatlockerrors "github.com/openvenue/seatlock/errors"
	"github.com/openvenue/seatlock/script"
)

const defaultRedisOpTimeout = 5 * time.Second

// Redis implements Store using a Redis backend. Mutual exclusion relies on
// the store's own primitives: SET NX for creation and server-side scripts
// for the compare-then-mutate paths.
type Redis struct {
	client  *redis.Client
	keys    Keys
	scripts *script.Registry
	timeout time.Duration
}

// RedisOption configures a Redis lease store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	keys    Keys
	timeout time.Duration
}

// WithKeys sets the key derivation, including the namespace.
func WithKeys(k Keys) RedisOption {
	return func(o *redisOptions) {
		o.keys = k
	}
}

// WithTimeout sets the operation timeout for Redis calls.
func WithTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.timeout = d
	}
}

// NewRedis returns a new Redis lease store using the provided client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	o := redisOptions{timeout: defaultRedisOpTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis{
		client:  client,
		keys:    o.keys,
		scripts: script.NewRegistry(client),
		timeout: o.timeout,
	}
}

// Keys returns the key derivation in use, shared with the compensator.
func (r *Redis) Keys() Keys {
	return r.keys
}

// Acquire implements Store.Acquire.
func (r *Redis) Acquire(ctx context.Context, resourceID, value string, ttl time.Duration) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ok, err := r.client.SetNX(cctx, r.keys.Key(resourceID), value, ttl).Result()
	if err != nil {
		return false, r.mapErr(err)
	}
	return ok, nil
}

// Release implements Store.Release.
func (r *Redis) Release(ctx context.Context, resourceID, expected string) (Status, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.scripts.Run(cctx, script.Release, []string{r.keys.Key(resourceID)}, expected)
	if err != nil {
		return StatusMissing, r.mapErr(err)
	}
	return statusFromReply(res)
}

// Extend implements Store.Extend.
func (r *Redis) Extend(ctx context.Context, resourceID, expected string, ttl time.Duration) (Status, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.scripts.Run(cctx, script.Extend, []string{r.keys.Key(resourceID)}, expected, ttl.Milliseconds())
	if err != nil {
		return StatusMissing, r.mapErr(err)
	}
	return statusFromReply(res)
}

// Rollback implements Store.Rollback. Every release runs the same scripted
// compare-then-delete; the batch shares one pipelined round trip.
func (r *Redis) Rollback(ctx context.Context, entries []RollbackEntry) ([]RollbackResult, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sha, err := r.scripts.Load(cctx, script.Release)
	if err != nil {
		return nil, r.mapErr(err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.Cmd, len(entries))
	for i, e := range entries {
		cmds[i] = pipe.EvalSha(cctx, sha, []string{r.keys.Key(e.ResourceID)}, e.Expected)
	}
	if _, err := pipe.Exec(cctx); err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, redis.ErrClosed) {
			return nil, r.mapErr(err)
		}
		// Command-level errors surface in the per-entry results below.
	}

	results := make([]RollbackResult, len(entries))
	var stale []int
	for i, e := range entries {
		results[i].ResourceID = e.ResourceID
		res, err := cmds[i].Result()
		if err != nil {
			if redis.HasErrorPrefix(err, "NOSCRIPT") {
				stale = append(stale, i)
				continue
			}
			results[i].Err = r.mapErr(err)
			continue
		}
		results[i].Status, results[i].Err = statusFromReply(res)
	}

	// The store dropped the script (restart, SCRIPT FLUSH): retry only the
	// affected entries with a plain EVAL, which re-caches it server-side.
	if len(stale) > 0 {
		src, _ := script.Source(script.Release)
		retry := r.client.Pipeline()
		rcmds := make([]*redis.Cmd, len(stale))
		for j, i := range stale {
			rcmds[j] = retry.Eval(cctx, src, []string{r.keys.Key(entries[i].ResourceID)}, entries[i].Expected)
		}
		if _, err := retry.Exec(cctx); err != nil {
			if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, redis.ErrClosed) {
				return nil, r.mapErr(err)
			}
		}
		for j, i := range stale {
			res, err := rcmds[j].Result()
			if err != nil {
				results[i].Err = r.mapErr(err)
				continue
			}
			results[i].Status, results[i].Err = statusFromReply(res)
		}
	}
	return results, nil
}

func (r *Redis) mapErr(err error) error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return seatlockerrors.ErrTimeout
	}
	if stdErrors.Is(err, redis.ErrClosed) {
		return seatlockerrors.ErrConnectionClosed
	}
	return err
}

// statusFromReply decodes the two-element {flag, reason} script reply.
func statusFromReply(res any) (Status, error) {
	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return StatusMissing, fmt.Errorf("lease: unexpected script reply %#v", res)
	}
	reason, _ := arr[1].(string)
	switch reason {
	case "OK":
		return StatusOK, nil
	case "MISSING":
		return StatusMissing, nil
	case "NOT_OWNER":
		return StatusNotOwner, nil
	default:
		return StatusMissing, fmt.Errorf("lease: unexpected script reason %q", reason)
	}
}
