package compensator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/openvenue/seatlock/lease"
)

func newCompensator(t *testing.T, opts ...Option) (*Compensator, *miniredis.Miniredis, lease.Keys) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	keys := lease.Keys{Namespace: "test"}
	return New(client, keys, opts...), mr, keys
}

func TestSweepDeletesOnlyDeadKeys(t *testing.T) {
	c, mr, keys := newCompensator(t, WithRate(0))
	ctx := context.Background()

	// Live leases with remaining TTL.
	for _, id := range []string{"A1", "A2", "A3"} {
		if err := mr.Set(keys.Key(id), "1:S1"); err != nil {
			t.Fatalf("set: %v", err)
		}
		mr.SetTTL(keys.Key(id), time.Minute)
	}
	// Dead leases: no TTL at all.
	for _, id := range []string{"B1", "B2", "B3", "B4"} {
		if err := mr.Set(keys.Key(id), "1:S1"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	// Keys outside the lease namespace are never touched.
	if err := mr.Set("unrelated:key", "x"); err != nil {
		t.Fatalf("set: %v", err)
	}

	deleted, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deletions, got %d", deleted)
	}
	for _, id := range []string{"A1", "A2", "A3"} {
		if !mr.Exists(keys.Key(id)) {
			t.Fatalf("live lease %s was deleted", id)
		}
	}
	for _, id := range []string{"B1", "B2", "B3", "B4"} {
		if mr.Exists(keys.Key(id)) {
			t.Fatalf("dead lease %s survived", id)
		}
	}
	if !mr.Exists("unrelated:key") {
		t.Fatal("key outside the namespace was deleted")
	}
}

func TestSweepEmptyNamespace(t *testing.T) {
	c, _, _ := newCompensator(t)
	deleted, err := c.Sweep(context.Background())
	if err != nil || deleted != 0 {
		t.Fatalf("expected clean no-op, got %d err %v", deleted, err)
	}
}

func TestSweepResumableCursorAcrossPages(t *testing.T) {
	c, mr, keys := newCompensator(t, WithBatchSize(25), WithRate(0))
	ctx := context.Background()

	const n = 120
	for i := 0; i < n; i++ {
		if err := mr.Set(keys.Key(fmt.Sprintf("seat-%03d", i)), "1:S1"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	deleted, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != n {
		t.Fatalf("expected %d deletions, got %d", n, deleted)
	}
	for i := 0; i < n; i++ {
		if mr.Exists(keys.Key(fmt.Sprintf("seat-%03d", i))) {
			t.Fatal("expected every dead lease deleted")
		}
	}
}

func TestSweepPacesDeletions(t *testing.T) {
	c, mr, keys := newCompensator(t, WithRate(20))
	ctx := context.Background()

	// 30 deletions at 20/s exceed one second's quota; the pass must spend
	// at least ~1.5s pacing.
	for i := 0; i < 30; i++ {
		if err := mr.Set(keys.Key(fmt.Sprintf("seat-%02d", i)), "1:S1"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	start := time.Now()
	deleted, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 30 {
		t.Fatalf("expected 30 deletions, got %d", deleted)
	}
	if elapsed := time.Since(start); elapsed < 1200*time.Millisecond {
		t.Fatalf("sweep finished in %v, pacing not applied", elapsed)
	}
}

func TestRunnerSweepsOnSchedule(t *testing.T) {
	c, mr, keys := newCompensator(t, WithRate(0), WithInterval(time.Second))
	if err := mr.Set(keys.Key("A1"), "1:S1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	r := NewRunner(c)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !mr.Exists(keys.Key("A1")) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("scheduled pass never reclaimed the dead lease")
}
