package retry

import (
	"testing"
	"time"
)

func TestBreakerStaysClosedBelowMinSamples(t *testing.T) {
	b := NewBreaker(time.Minute, 0.5)

	for i := 0; i < breakerMinSamples-1; i++ {
		b.Record(false)
	}
	if !b.Allow() {
		t.Error("breaker opened below the minimum sample count")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(time.Minute, 0.8)

	opened := false
	b.OnTransition(func(rate float64, window time.Duration) { opened = true }, nil)

	// 4 failures, 1 success: rate 0.8 at 5 samples.
	for i := 0; i < 4; i++ {
		b.Record(false)
	}
	b.Record(true)

	if b.Allow() {
		t.Error("Allow() = true with failure rate at threshold, want false")
	}
	if !opened {
		t.Error("onOpen transition callback was not invoked")
	}
}

func TestBreakerClosesOnRecovery(t *testing.T) {
	b := NewBreaker(time.Minute, 0.8)

	closedRate := -1.0
	b.OnTransition(nil, func(rate float64) { closedRate = rate })

	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	if b.Allow() {
		t.Fatal("breaker should be open after 5 failures")
	}

	// Successes dilute the failure rate below the threshold.
	for i := 0; i < 5; i++ {
		b.Record(true)
	}
	if !b.Allow() {
		t.Error("Allow() = false after recovery, want true")
	}
	if closedRate < 0 {
		t.Error("onClose transition callback was not invoked")
	}
}

func TestBreakerWindowPruning(t *testing.T) {
	b := NewBreaker(time.Minute, 0.8)

	current := time.Now()
	b.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	if b.Allow() {
		t.Fatal("breaker should be open")
	}

	// Outcomes age out of the trailing window; the breaker self-closes.
	current = current.Add(2 * time.Minute)
	if !b.Allow() {
		t.Error("Allow() = false after window expired, want true")
	}
	if got := b.FailureRate(); got != 0 {
		t.Errorf("FailureRate() after prune = %v, want 0", got)
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(0, 0)
	if b.window != DefaultBreakerWindow {
		t.Errorf("window = %v, want %v", b.window, DefaultBreakerWindow)
	}
	if b.threshold != DefaultBreakerThreshold {
		t.Errorf("threshold = %v, want %v", b.threshold, DefaultBreakerThreshold)
	}
}
