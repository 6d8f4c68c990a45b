// Package script holds the server-side atomic operations executed against
// the lease store. Each script performs a read-compare-mutate sequence in a
// single indivisible step so ownership checks cannot race with a concurrent
// claim or expiry.
//
// Script SHA1s are memoized once per process: the first caller loads the
// script, concurrent callers share that load through singleflight, and the
// cache is never invalidated during the process lifetime.
package script

import (
	"context"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Script names accepted by Registry.Run.
const (
	Release = "release"
	Extend  = "extend"
)

// Release: compare the lease value against the expected token and delete on
// match. Reply is {flag, reason} per the release contract.
const releaseSource = `
local current = redis.call("GET", KEYS[1])
if current == false then
    return {0, "MISSING"}
end
if current ~= ARGV[1] then
    return {0, "NOT_OWNER"}
end
redis.call("DEL", KEYS[1])
return {1, "OK"}
`

// Extend: same ownership check, but refresh the TTL (ARGV[2], milliseconds)
// instead of deleting. The lease value is never modified.
const extendSource = `
local current = redis.call("GET", KEYS[1])
if current == false then
    return {0, "MISSING"}
end
if current ~= ARGV[1] then
    return {0, "NOT_OWNER"}
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return {1, "OK"}
`

var sources = map[string]string{
	Release: releaseSource,
	Extend:  extendSource,
}

// Source returns the body of the named script, for callers that pipeline
// script executions themselves and need a plain EVAL fallback.
func Source(name string) (string, bool) {
	src, ok := sources[name]
	return src, ok
}

// Registry loads scripts into the lease store on first use and memoizes
// their SHA1s for the lifetime of the process.
type Registry struct {
	client redis.Scripter
	group  singleflight.Group

	mu   sync.RWMutex
	shas map[string]string
}

// NewRegistry returns a Registry bound to the provided client.
func NewRegistry(client redis.Scripter) *Registry {
	return &Registry{client: client, shas: make(map[string]string)}
}

// Load returns the SHA1 of the named script, loading it into the store the
// first time it is requested. Concurrent first loads are collapsed into a
// single SCRIPT LOAD round trip.
func (r *Registry) Load(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	sha, ok := r.shas[name]
	r.mu.RUnlock()
	if ok {
		return sha, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		sha, ok := r.shas[name]
		r.mu.RUnlock()
		if ok {
			return sha, nil
		}
		src, ok := sources[name]
		if !ok {
			return "", fmt.Errorf("script: unknown script %q", name)
		}
		loaded, err := r.client.ScriptLoad(ctx, src).Result()
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.shas[name] = loaded
		r.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Run executes the named script. If the store has dropped the script (for
// example after a restart) the call falls back to a plain EVAL, which
// re-caches it server-side.
func (r *Registry) Run(ctx context.Context, name string, keys []string, args ...any) (any, error) {
	sha, err := r.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	res, err := r.client.EvalSha(ctx, sha, keys, args...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		res, err = r.client.Eval(ctx, sources[name], keys, args...).Result()
	}
	return res, err
}
