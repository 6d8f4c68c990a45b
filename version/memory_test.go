package version

import (
	"context"
	"sort"
	"sync"
	"testing"
)

func TestInMemoryBumpMonotonic(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	for want := int64(1); want <= 10; want++ {
		v, err := s.Bump(ctx, "A1")
		if err != nil {
			t.Fatalf("bump: %v", err)
		}
		if v != want {
			t.Fatalf("expected %d, got %d", want, v)
		}
	}
	if s.Current("A1") != 10 {
		t.Fatalf("current: expected 10, got %d", s.Current("A1"))
	}
	if s.Current("unclaimed") != 0 {
		t.Fatal("unclaimed resource should report version 0")
	}
}

func TestInMemoryConcurrentBumpsDistinct(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	const n = 100
	out := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Bump(ctx, "A1")
			if err != nil {
				t.Errorf("bump: %v", err)
				return
			}
			out[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	for i, v := range out {
		if v != int64(i+1) {
			t.Fatalf("expected dense distinct versions 1..%d, got %v", n, out)
		}
	}
}
