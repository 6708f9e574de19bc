package supervisor

import "sync"

// slotLimiter is a dynamically-resizable concurrency limiter with
// reject-on-full semantics: callers that cannot get a slot are refused
// immediately instead of queued, keeping backpressure visible.
//
// A limit of 0 means unlimited. Safe for concurrent use.
type slotLimiter struct {
	mu       sync.Mutex
	limit    int // 0 = unlimited
	acquired int
}

func newSlotLimiter(limit int) *slotLimiter {
	if limit < 0 {
		limit = 0
	}
	return &slotLimiter{limit: limit}
}

// TryAcquire claims a slot if one is free. It never blocks.
func (s *slotLimiter) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.acquired >= s.limit {
		return false
	}
	s.acquired++
	return true
}

// Release frees a previously acquired slot.
func (s *slotLimiter) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquired > 0 {
		s.acquired--
	}
}

// SetLimit adjusts capacity at runtime. Negative values are clamped to 0
// (unlimited). Shrinking below the acquired count does not evict holders;
// new acquisitions are refused until enough slots drain.
func (s *slotLimiter) SetLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 {
		n = 0
	}
	s.limit = n
}

// Limit returns the current limit (0 = unlimited).
func (s *slotLimiter) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// Acquired returns the number of currently held slots.
func (s *slotLimiter) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}
