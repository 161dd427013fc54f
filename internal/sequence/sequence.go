package sequence

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Sequence hands out strictly increasing bill numbers. Values are never
// lower than the current Unix time in milliseconds.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
	Name() string
	Ping(ctx context.Context) error
}

func FormatBillNumber(n int64) string {
	return "BILL-" + strconv.FormatInt(n, 10)
}

// LocalSequence is safe for a single process only.
type LocalSequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewLocal() *LocalSequence {
	return &LocalSequence{now: time.Now}
}

func (s *LocalSequence) Name() string {
	return "local"
}

func (s *LocalSequence) Ping(_ context.Context) error {
	return nil
}

func (s *LocalSequence) Next(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.now().UnixMilli()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n, nil
}
