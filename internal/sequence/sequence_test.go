package sequence

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"
)

func TestLocalSequenceStrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	s := NewLocal()
	s.now = func() time.Time { return fixed }

	first, _ := s.Next(context.Background())
	second, _ := s.Next(context.Background())
	if first != fixed.UnixMilli() {
		t.Fatalf("expected first value to equal clock, got %d", first)
	}
	if second != first+1 {
		t.Fatalf("expected %d, got %d", first+1, second)
	}
}

func TestLocalSequenceFollowsClockForward(t *testing.T) {
	clock := time.UnixMilli(1_700_000_000_000)
	s := NewLocal()
	s.now = func() time.Time { return clock }

	_, _ = s.Next(context.Background())
	clock = clock.Add(time.Hour)
	n, _ := s.Next(context.Background())
	if n != clock.UnixMilli() {
		t.Fatalf("expected value to jump to clock, got %d", n)
	}
}

func TestLocalSequenceConcurrentUnique(t *testing.T) {
	s := NewLocal()
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _ := s.Next(context.Background())
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 200 {
		t.Fatalf("expected 200 unique values, got %d", len(seen))
	}
}

func TestFormatBillNumber(t *testing.T) {
	if got := FormatBillNumber(1710000000000); got != "BILL-1710000000000" {
		t.Fatalf("unexpected bill number %q", got)
	}
}

func TestRedisSequenceMonotonic(t *testing.T) {
	addr := os.Getenv("BILLING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set BILLING_TEST_REDIS_ADDR to run redis sequence test")
	}

	key := fmt.Sprintf("billing:test:%d", time.Now().UnixNano())
	s := NewRedisSequence(addr, "", 0, key)
	t.Cleanup(func() {
		_ = s.client.Del(context.Background(), key).Err()
		_ = s.Close()
	})
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	floor := time.Now().UnixMilli()
	first, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first < floor {
		t.Fatalf("expected value >= %d, got %d", floor, first)
	}
	second, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if second <= first {
		t.Fatalf("expected %d > %d", second, first)
	}
}
