package retry

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// DefaultMaxActive is the default ceiling on concurrently tracked retry
// operations system-wide. Requests beyond it are rejected immediately
// rather than queued, so retry amplification cannot compound a failure
// into resource exhaustion.
const DefaultMaxActive = 10

// Work is one retryable unit of work. It either succeeds or fails with a
// structured error (see errors.Code); the engine never parses message
// text. Callers capture any produced value in the closure.
type Work func(ctx context.Context) error

// State is a read-only snapshot of one in-flight retryable operation.
type State struct {
	OperationID  string
	Attempt      int
	LastError    string
	TotalBackoff time.Duration
	StartedAt    time.Time
}

// opState is the live, engine-owned record behind a State snapshot.
// It is never shared across operations or handed to callers.
type opState struct {
	id           string
	attempt      int
	lastErr      error
	totalBackoff time.Duration
	startedAt    time.Time
	cancel       chan struct{}
	canceled     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus sets the event bus retry lifecycle events are published to.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMaxActive sets the ceiling on concurrently tracked operations.
// Values below 1 select the default.
func WithMaxActive(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxActive = n
		}
	}
}

// WithBreaker sets the circuit breaker consulted before admitting a new
// operation.
func WithBreaker(b *Breaker) Option {
	return func(e *Engine) { e.breaker = b }
}

// Engine executes units of work under retry policies. It owns all live
// retry state: callers only ever see snapshots.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	ops       map[string]*opState
	maxActive int
	breaker   *Breaker
	bus       *event.Bus
	logger    *logging.Logger

	// sleep waits for the backoff delay, the operation's cancel signal, or
	// context cancellation. Replaceable in tests.
	sleep func(ctx context.Context, cancel <-chan struct{}, d time.Duration) error
}

// NewEngine creates a retry Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ops:       make(map[string]*opState),
		maxActive: DefaultMaxActive,
		logger:    logging.NopLogger(),
		sleep:     sleepWait,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = NewBreaker(DefaultBreakerWindow, DefaultBreakerThreshold)
	}
	e.breaker.OnTransition(
		func(rate float64, window time.Duration) {
			e.logger.Warn("circuit breaker opened", "failure_rate", rate)
			e.publish(event.NewBreakerOpenedEvent(rate, window))
		},
		func(rate float64) {
			e.logger.Info("circuit breaker closed", "failure_rate", rate)
			e.publish(event.NewBreakerClosedEvent(rate))
		},
	)
	return e
}

// Execute runs work under the given policy, identified by operationID.
//
// The first attempt runs immediately. After a retryable failure the
// engine waits out the policy's backoff delay (with jitter if enabled),
// then tries again, up to MaxAttempts total invocations. The returned
// error is nil on success, the unmodified work error when it is not
// retryable, a join of ErrRetriesExhausted and the last error when the
// budget is consumed, or a wrap of ErrCanceled when the operation was
// cancelled.
//
// At most one operation may be live per operationID; a duplicate is
// rejected with ErrOperationActive. Admission is also refused, with a
// CapacityError, when the active ceiling is reached or the circuit
// breaker is open. State is removed from live tracking immediately on
// any terminal outcome.
func (e *Engine) Execute(ctx context.Context, operationID string, policy Policy, work Work) error {
	if operationID == "" {
		return errors.NewValidationError("operationID must not be empty").
			WithField("operationID")
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	state, err := e.admit(operationID)
	if err != nil {
		return err
	}
	defer e.remove(operationID)

	log := e.logger.WithOperation(operationID)

	for {
		if canceled, attempts := e.checkCanceled(ctx, state); canceled {
			e.publish(event.NewRetryCanceledEvent(operationID, attempts))
			log.Info("operation canceled", "attempts", attempts)
			return errors.Wrapf(errors.ErrCanceled, "operation %s", operationID)
		}

		attempt := e.beginAttempt(state)
		workErr := work(ctx)
		e.breaker.Record(workErr == nil)

		if workErr == nil {
			if attempt > 1 {
				e.publish(event.NewRetrySucceededEvent(operationID, attempt))
				log.Info("operation succeeded after retries", "attempts", attempt)
			}
			return nil
		}

		e.recordFailure(state, workErr)
		code := errors.Code(workErr)

		if canceled, attempts := e.checkCanceled(ctx, state); canceled {
			e.publish(event.NewRetryCanceledEvent(operationID, attempts))
			log.Info("operation canceled", "attempts", attempts)
			return errors.Wrapf(errors.ErrCanceled, "operation %s", operationID)
		}

		// Classification first: a non-retryable error surfaces unmodified
		// no matter which attempt produced it. Only retryable failures can
		// exhaust the budget.
		if !policy.ShouldRetry(workErr) {
			log.Debug("error not retryable", "error_code", code)
			return workErr
		}

		if attempt >= policy.MaxAttempts {
			e.publish(event.NewRetryExhaustedEvent(operationID, attempt, code, errors.Sanitize(workErr.Error())))
			log.Warn("retry attempts exhausted", "attempts", attempt, "error_code", code)
			return errors.Join(errors.ErrRetriesExhausted, workErr)
		}

		delay := policy.jittered(policy.DelayFor(attempt + 1))
		e.publish(event.NewRetryAttemptEvent(operationID, attempt+1, delay, code))
		log.Debug("scheduling retry", "attempt", attempt+1, "delay", delay, "error_code", code)

		if err := e.sleep(ctx, state.cancel, delay); err != nil {
			e.publish(event.NewRetryCanceledEvent(operationID, attempt))
			log.Info("operation canceled during backoff", "attempts", attempt)
			return errors.Wrapf(errors.ErrCanceled, "operation %s", operationID)
		}
		e.addBackoff(state, delay)
	}
}

// Cancel requests cooperative cancellation of a live operation before its
// next attempt begins. It returns true if an active operation was
// signalled. Cancelling an already-cancelled or unknown operation is a
// no-op returning false.
func (e *Engine) Cancel(operationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.ops[operationID]
	if !ok || state.canceled {
		return false
	}
	state.canceled = true
	close(state.cancel)
	return true
}

// ActiveOperations returns snapshots of all live retry operations.
func (e *Engine) ActiveOperations() []State {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]State, 0, len(e.ops))
	for _, s := range e.ops {
		snap := State{
			OperationID:  s.id,
			Attempt:      s.attempt,
			TotalBackoff: s.totalBackoff,
			StartedAt:    s.startedAt,
		}
		if s.lastErr != nil {
			snap.LastError = s.lastErr.Error()
		}
		out = append(out, snap)
	}
	return out
}

// ActiveCount returns the number of live retry operations.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ops)
}

// admit registers live state for an operation, enforcing uniqueness, the
// active ceiling, and the circuit breaker.
func (e *Engine) admit(operationID string) (*opState, error) {
	if !e.breaker.Allow() {
		return nil, errors.NewCapacityError("circuit_breaker", 0).
			WithCause(errors.ErrBreakerOpen)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.ops[operationID]; exists {
		return nil, errors.Wrapf(errors.ErrOperationActive, "operation %s", operationID)
	}
	if len(e.ops) >= e.maxActive {
		return nil, errors.NewCapacityError("retry_slots", e.maxActive)
	}

	state := &opState{
		id:        operationID,
		startedAt: time.Now(),
		cancel:    make(chan struct{}),
	}
	e.ops[operationID] = state
	return state, nil
}

// remove drops an operation from live tracking.
func (e *Engine) remove(operationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ops, operationID)
}

// beginAttempt increments and returns the operation's attempt counter.
func (e *Engine) beginAttempt(state *opState) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	state.attempt++
	return state.attempt
}

// recordFailure stores the last error on the operation state.
func (e *Engine) recordFailure(state *opState, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state.lastErr = err
}

// addBackoff accumulates elapsed backoff on the operation state.
func (e *Engine) addBackoff(state *opState, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state.totalBackoff += d
}

// checkCanceled reports whether the operation or its context has been
// cancelled, along with the attempts consumed so far.
func (e *Engine) checkCanceled(ctx context.Context, state *opState) (bool, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.canceled || ctx.Err() != nil, state.attempt
}

// publish sends an event to the bus if one is configured.
func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// sleepWait blocks for d, returning early with an error if the operation
// is cancelled or the context expires. A zero delay returns immediately
// unless cancellation is already pending.
func sleepWait(ctx context.Context, cancel <-chan struct{}, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cancel:
		return errors.ErrCanceled
	default:
	}
	if d == 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cancel:
		return errors.ErrCanceled
	case <-timer.C:
		return nil
	}
}
