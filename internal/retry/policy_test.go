package retry

import (
	"testing"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
)

func TestDelayForFirstAttemptIsZero(t *testing.T) {
	for _, kind := range []BackoffKind{BackoffExponential, BackoffLinear, BackoffFixed} {
		p := Policy{MaxAttempts: 5, Backoff: kind, BaseDelay: time.Second, MaxDelay: time.Minute, BackoffBase: 2}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got := p.DelayFor(1); got != 0 {
			t.Errorf("DelayFor(1) with %s backoff = %v, want 0", kind, got)
		}
	}
}

func TestDelayForExponential(t *testing.T) {
	p := Policy{MaxAttempts: 10, Backoff: BackoffExponential, BaseDelay: time.Second, MaxDelay: time.Hour, BackoffBase: 2}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := p.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayForLinear(t *testing.T) {
	p := Policy{MaxAttempts: 10, Backoff: BackoffLinear, BaseDelay: time.Second, MaxDelay: time.Hour}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got := p.DelayFor(2); got != 2*time.Second {
		t.Errorf("DelayFor(2) = %v, want 2s", got)
	}
	if got := p.DelayFor(5); got != 5*time.Second {
		t.Errorf("DelayFor(5) = %v, want 5s", got)
	}
}

func TestDelayForFixed(t *testing.T) {
	p := Policy{MaxAttempts: 10, Backoff: BackoffFixed, BaseDelay: 3 * time.Second, MaxDelay: time.Hour}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	for attempt := 2; attempt <= 6; attempt++ {
		if got := p.DelayFor(attempt); got != 3*time.Second {
			t.Errorf("DelayFor(%d) = %v, want 3s", attempt, got)
		}
	}
}

// Pre-jitter delays must be non-decreasing for exponential and linear
// backoff, and must never exceed MaxDelay for any kind.
func TestBackoffMonotonicityAndCap(t *testing.T) {
	for _, kind := range []BackoffKind{BackoffExponential, BackoffLinear, BackoffFixed} {
		p := Policy{MaxAttempts: 50, Backoff: kind, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, BackoffBase: 2}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}

		prev := time.Duration(0)
		for attempt := 2; attempt <= 50; attempt++ {
			d := p.DelayFor(attempt)
			if d > p.MaxDelay {
				t.Fatalf("%s DelayFor(%d) = %v exceeds MaxDelay %v", kind, attempt, d, p.MaxDelay)
			}
			if kind != BackoffFixed && d < prev {
				t.Fatalf("%s DelayFor(%d) = %v < previous %v", kind, attempt, d, prev)
			}
			prev = d
		}
	}
}

func TestJitterBounds(t *testing.T) {
	p := Policy{MaxAttempts: 5, Backoff: BackoffFixed, BaseDelay: time.Second, MaxDelay: time.Minute, Jitter: true}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	for i := 0; i < 200; i++ {
		d := p.jittered(time.Second)
		if d < 850*time.Millisecond || d > 1150*time.Millisecond {
			t.Fatalf("jittered(1s) = %v, outside ±10%% window (plus slack)", d)
		}
	}
}

func TestJitterDisabled(t *testing.T) {
	p := Policy{MaxAttempts: 5, Backoff: BackoffFixed, BaseDelay: time.Second, MaxDelay: time.Minute}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := p.jittered(time.Second); got != time.Second {
		t.Errorf("jittered(1s) with jitter off = %v, want 1s", got)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"zero attempts", Policy{MaxAttempts: 0}},
		{"negative base delay", Policy{MaxAttempts: 1, BaseDelay: -time.Second}},
		{"unknown backoff", Policy{MaxAttempts: 1, Backoff: "quadratic"}},
		{"backoff base below one", Policy{MaxAttempts: 1, BackoffBase: 0.5}},
		{"bad pattern", Policy{MaxAttempts: 1, RetryablePatterns: []string{"("}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.IsValidation(err) {
				t.Errorf("Validate() error is not a validation error: %v", err)
			}
		})
	}
}

func TestShouldRetryEmptyPatternsFailOpen(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	err := errors.NewProcessError("worker exited", nil).WithExitCode(1)
	if !p.ShouldRetry(err) {
		t.Error("empty pattern list should retry any retryable-class error")
	}
}

func TestShouldRetryMatchesStructuredCode(t *testing.T) {
	p := DefaultPolicy()
	p.RetryablePatterns = []string{"timeout", "exit_\\d+"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !p.ShouldRetry(errors.NewTimeoutError("worker", time.Minute)) {
		t.Error("timeout code should match pattern list")
	}
	if !p.ShouldRetry(errors.NewProcessError("exited", nil).WithExitCode(137)) {
		t.Error("exit_137 should match exit_\\d+")
	}
	if p.ShouldRetry(errors.NewProcessError("killed", nil).WithSignal("KILL")) {
		t.Error("signal_kill should not match any pattern")
	}
}

func TestShouldRetryNeverClassesTakePrecedence(t *testing.T) {
	p := DefaultPolicy()
	p.RetryablePatterns = []string{".*"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if p.ShouldRetry(errors.NewValidationError("bad input")) {
		t.Error("validation errors must never retry")
	}
	if p.ShouldRetry(errors.NewCapacityError("retry_slots", 10)) {
		t.Error("capacity errors must never retry")
	}
	if p.ShouldRetry(errors.Wrap(errors.ErrCanceled, "op")) {
		t.Error("cancellation must never retry")
	}
	if p.ShouldRetry(nil) {
		t.Error("nil error must never retry")
	}
}
