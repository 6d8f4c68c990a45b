package lease

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryAcquireReleaseCycle(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if ok, err := l.Acquire(ctx, "A1", "1:S1", time.Second); err != nil || !ok {
		t.Fatalf("acquire: ok %v err %v", ok, err)
	}
	if ok, err := l.Acquire(ctx, "A1", "2:S2", time.Second); err != nil || ok {
		t.Fatalf("expected conflict, ok %v err %v", ok, err)
	}
	if st, err := l.Release(ctx, "A1", "2:S2"); err != nil || st != StatusNotOwner {
		t.Fatalf("expected NOT_OWNER, got %v err %v", st, err)
	}
	if st, err := l.Release(ctx, "A1", "1:S1"); err != nil || st != StatusOK {
		t.Fatalf("expected OK, got %v err %v", st, err)
	}
	if st, err := l.Release(ctx, "A1", "1:S1"); err != nil || st != StatusMissing {
		t.Fatalf("expected MISSING, got %v err %v", st, err)
	}
}

func TestInMemoryExpiry(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if ok, _ := l.Acquire(ctx, "A1", "1:S1", 10*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, err := l.Acquire(ctx, "A1", "2:S2", time.Second); err != nil || !ok {
		t.Fatalf("lease should expire, ok %v err %v", ok, err)
	}
}

func TestInMemoryExtend(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if ok, _ := l.Acquire(ctx, "A1", "1:S1", 40*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(25 * time.Millisecond)
	if st, err := l.Extend(ctx, "A1", "1:S1", 60*time.Millisecond); err != nil || st != StatusOK {
		t.Fatalf("extend: %v err %v", st, err)
	}
	time.Sleep(30 * time.Millisecond)
	// Original window has lapsed but the extension keeps the lease alive.
	if ok, _ := l.Acquire(ctx, "A1", "2:S2", time.Second); ok {
		t.Fatal("extended lease should still be held")
	}
}

func TestInMemoryConcurrentSingleWinner(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, "A1", "1:S1", time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestInMemoryRollback(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	_, _ = l.Acquire(ctx, "A1", "1:S1", time.Second)
	_, _ = l.Acquire(ctx, "B2", "2:S2", time.Second)

	results, err := l.Rollback(ctx, []RollbackEntry{
		{ResourceID: "A1", Expected: "1:S1"},
		{ResourceID: "B2", Expected: "9:S9"},
		{ResourceID: "C3", Expected: "3:S3"},
	})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	want := []Status{StatusOK, StatusNotOwner, StatusMissing}
	for i, r := range results {
		if r.Status != want[i] {
			t.Fatalf("entry %s: expected %v, got %v", r.ResourceID, want[i], r.Status)
		}
	}
}
