package retry

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
)

// BackoffKind selects the delay strategy applied between attempts.
type BackoffKind string

const (
	// BackoffExponential grows the delay as baseDelay * backoffBase^(n-1)
	// for attempt n.
	BackoffExponential BackoffKind = "exponential"
	// BackoffLinear grows the delay as baseDelay * n for attempt n.
	BackoffLinear BackoffKind = "linear"
	// BackoffFixed applies baseDelay before every retry.
	BackoffFixed BackoffKind = "fixed"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultBackoffBase = 2.0

	// jitterFraction bounds the random perturbation applied to a computed
	// delay when jitter is enabled (±10%).
	jitterFraction = 0.1
)

// Policy is the immutable configuration for retrying one class of
// operation. Attempts are 1-indexed; attempt 1 is never delayed.
//
// RetryablePatterns is an ordered list of anchored regular expressions
// matched against structured error codes (see errors.Code), never against
// free-text output. An empty list means every retryable-class error is
// retried: an explicit fail-open default, so that operators who configure
// nothing still get retries for transient process failures.
type Policy struct {
	MaxAttempts       int
	Backoff           BackoffKind
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffBase       float64
	Jitter            bool
	RetryablePatterns []string

	compiled []*regexp.Regexp
}

// DefaultPolicy returns a Policy with conservative defaults: three
// attempts, exponential backoff, jitter enabled, all error codes
// retryable.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     BackoffExponential,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		BackoffBase: DefaultBackoffBase,
		Jitter:      true,
	}
}

// Validate checks the policy for out-of-range values and compiles the
// retryable patterns. It must be called (directly or via Engine.Execute)
// before DelayFor or ShouldRetry.
func (p *Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.NewValidationError("maxAttempts must be >= 1").
			WithField("maxAttempts").WithValue(p.MaxAttempts)
	}
	switch p.Backoff {
	case BackoffExponential, BackoffLinear, BackoffFixed:
	case "":
		p.Backoff = BackoffExponential
	default:
		return errors.NewValidationError("unknown backoff kind").
			WithField("backoff").WithValue(string(p.Backoff))
	}
	if p.BaseDelay < 0 {
		return errors.NewValidationError("baseDelay must not be negative").
			WithField("baseDelay").WithValue(p.BaseDelay)
	}
	if p.MaxDelay < 0 {
		return errors.NewValidationError("maxDelay must not be negative").
			WithField("maxDelay").WithValue(p.MaxDelay)
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.BackoffBase == 0 {
		p.BackoffBase = DefaultBackoffBase
	}
	if p.BackoffBase < 1 {
		return errors.NewValidationError("backoffBase must be >= 1").
			WithField("backoffBase").WithValue(p.BackoffBase)
	}

	p.compiled = p.compiled[:0]
	for _, pattern := range p.RetryablePatterns {
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return errors.NewValidationError("invalid retryable pattern").
				WithField("retryablePatterns").WithValue(pattern).WithCause(err)
		}
		p.compiled = append(p.compiled, re)
	}
	return nil
}

// DelayFor computes the pre-jitter backoff delay before attempt n.
// Attempt 1 always returns zero. The result is capped at MaxDelay.
func (p *Policy) DelayFor(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay == 0 {
		return 0
	}

	var delay time.Duration
	switch p.Backoff {
	case BackoffLinear:
		delay = time.Duration(attempt) * p.BaseDelay
	case BackoffFixed:
		delay = p.BaseDelay
	default: // exponential
		scaled := float64(p.BaseDelay)
		for i := 1; i < attempt; i++ {
			scaled *= p.BackoffBase
			if time.Duration(scaled) >= p.MaxDelay {
				return p.MaxDelay
			}
		}
		delay = time.Duration(scaled)
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// jittered perturbs a delay by up to ±10% using a non-deterministically
// seeded source. The result is clamped to [0, MaxDelay].
func (p *Policy) jittered(delay time.Duration) time.Duration {
	if !p.Jitter || delay == 0 {
		return delay
	}

	factor := 1 - jitterFraction + 2*jitterFraction*rand.Float64()
	out := time.Duration(float64(delay) * factor)
	if out < 0 {
		out = 0
	}
	if out > p.MaxDelay {
		out = p.MaxDelay
	}
	return out
}

// ShouldRetry reports whether the given error is eligible for another
// attempt under this policy. Validation, capacity, and cancellation
// outcomes are never retried. For everything else the decision is made
// on the error's structured code: it must match one of the configured
// patterns, or the pattern list must be empty (fail-open).
//
// The error's message text is deliberately never consulted, so a worker
// cannot steer retry behavior through its own output.
func (p *Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsValidation(err) || errors.IsCapacity(err) || errors.IsCanceled(err) {
		return false
	}
	if !errors.IsRetryable(err) {
		return false
	}
	if len(p.compiled) == 0 {
		return true
	}

	code := errors.Code(err)
	for _, re := range p.compiled {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}

// String returns a compact description of the policy for logging.
func (p Policy) String() string {
	return fmt.Sprintf("retry{attempts=%d backoff=%s base=%s max=%s jitter=%v patterns=%d}",
		p.MaxAttempts, p.Backoff, p.BaseDelay, p.MaxDelay, p.Jitter, len(p.RetryablePatterns))
}
