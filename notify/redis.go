package notify

import (
	"context"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "seatlock:released:"

type redisSubscription struct {
	pubsub *redis.PubSub
	chans  []chan struct{}
}

// RedisBus implements Bus using Redis pub/sub, letting release events reach
// sessions on other nodes.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[string]*redisSubscription
}

// RedisBusOptions configures the RedisBus.
type RedisBusOptions struct {
	Client *redis.Client
	// Prefix namespaces the pub/sub channels. Defaults to
	// "seatlock:released:".
	Prefix string
}

// NewRedisBus returns a new RedisBus using the provided client.
func NewRedisBus(opts RedisBusOptions) *RedisBus {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisBus{
		client: opts.Client,
		prefix: prefix,
		subs:   make(map[string]*redisSubscription),
	}
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, key string) error {
	return b.client.Publish(ctx, b.prefix+key, "").Err()
}

// Subscribe implements Bus.Subscribe. The first subscriber for a key opens
// the underlying Redis subscription; later ones share it.
func (b *RedisBus) Subscribe(ctx context.Context, key string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	sub, ok := b.subs[key]
	if ok {
		sub.chans = append(sub.chans, ch)
		b.mu.Unlock()
		return ch, nil
	}
	pubsub := b.client.Subscribe(ctx, b.prefix+key)
	sub = &redisSubscription{pubsub: pubsub, chans: []chan struct{}{ch}}
	b.subs[key] = sub
	b.mu.Unlock()

	go func() {
		for range pubsub.Channel() {
			// Fan out under the mutex so a racing Unsubscribe cannot close
			// a channel mid-send; sends are non-blocking.
			b.mu.Lock()
			for _, c := range sub.chans {
				select {
				case c <- struct{}{}:
				default:
				}
			}
			b.mu.Unlock()
		}
	}()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe. The underlying Redis subscription
// is closed when the last channel for a key goes away.
func (b *RedisBus) Unsubscribe(ctx context.Context, key string, ch chan struct{}) error {
	b.mu.Lock()
	sub, ok := b.subs[key]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	for i, c := range sub.chans {
		if c == ch {
			sub.chans[i] = sub.chans[len(sub.chans)-1]
			sub.chans = sub.chans[:len(sub.chans)-1]
			close(c)
			break
		}
	}
	var toClose *redis.PubSub
	if len(sub.chans) == 0 {
		toClose = sub.pubsub
		delete(b.subs, key)
	}
	b.mu.Unlock()
	if toClose != nil {
		return toClose.Close()
	}
	return nil
}
