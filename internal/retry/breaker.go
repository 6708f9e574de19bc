package retry

import (
	"sync"
	"time"
)

// Default breaker values.
const (
	DefaultBreakerWindow    = 5 * time.Minute
	DefaultBreakerThreshold = 0.8

	// breakerMinSamples is the minimum number of recorded outcomes inside
	// the window before the failure rate is considered meaningful. Below
	// this the breaker never trips.
	breakerMinSamples = 5
)

// Breaker is a circuit breaker over a trailing outcome window. Once the
// rolling failure rate meets the threshold, Allow reports false until
// enough outcomes age out of the window (or successes arrive) for the
// rate to recover.
//
// It is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	window    time.Duration
	threshold float64
	open      bool
	outcomes  []outcome

	// onOpen and onClose are invoked (outside any useful transaction, but
	// under the breaker lock) when the breaker transitions state.
	onOpen  func(failureRate float64, window time.Duration)
	onClose func(failureRate float64)

	now func() time.Time // test hook
}

type outcome struct {
	at      time.Time
	success bool
}

// NewBreaker creates a Breaker with the given trailing window and failure
// rate threshold in (0, 1]. Zero values select the defaults.
func NewBreaker(window time.Duration, threshold float64) *Breaker {
	if window <= 0 {
		window = DefaultBreakerWindow
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultBreakerThreshold
	}
	return &Breaker{
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
}

// OnTransition registers callbacks for open and close transitions.
// Either callback may be nil.
func (b *Breaker) OnTransition(onOpen func(rate float64, window time.Duration), onClose func(rate float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOpen = onOpen
	b.onClose = onClose
}

// Record adds one operation outcome to the trailing window and
// re-evaluates the breaker state.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes = append(b.outcomes, outcome{at: b.now(), success: success})
	b.evaluate()
}

// Allow reports whether a new retry operation may begin. It prunes the
// window first, so an open breaker closes on its own once failures age
// out.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evaluate()
	return !b.open
}

// FailureRate returns the current rolling failure rate in [0, 1].
func (b *Breaker) FailureRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()
	return b.rate()
}

// evaluate prunes the window and flips the breaker state if warranted.
// Caller must hold b.mu.
func (b *Breaker) evaluate() {
	b.prune()
	rate := b.rate()

	switch {
	case !b.open && len(b.outcomes) >= breakerMinSamples && rate >= b.threshold:
		b.open = true
		if b.onOpen != nil {
			b.onOpen(rate, b.window)
		}
	case b.open && (len(b.outcomes) < breakerMinSamples || rate < b.threshold):
		b.open = false
		if b.onClose != nil {
			b.onClose(rate)
		}
	}
}

// prune drops outcomes older than the trailing window.
// Caller must hold b.mu.
func (b *Breaker) prune() {
	cutoff := b.now().Add(-b.window)
	keep := 0
	for keep < len(b.outcomes) && b.outcomes[keep].at.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		b.outcomes = append(b.outcomes[:0], b.outcomes[keep:]...)
	}
}

// rate computes the failure fraction of the current window.
// Caller must hold b.mu.
func (b *Breaker) rate() float64 {
	if len(b.outcomes) == 0 {
		return 0
	}
	failures := 0
	for _, o := range b.outcomes {
		if !o.success {
			failures++
		}
	}
	return float64(failures) / float64(len(b.outcomes))
}
