package retry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
)

// fastPolicy returns a policy with no real delays so tests run instantly.
func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     BackoffFixed,
		BaseDelay:   0,
		MaxDelay:    time.Second,
	}
}

func TestExecuteFirstAttemptSuccess(t *testing.T) {
	bus := event.NewBus()
	eng := NewEngine(WithBus(bus))

	succeeded := 0
	bus.Subscribe("retry.succeeded", func(event.Event) { succeeded++ })

	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("work invoked %d times, want 1", calls)
	}
	// No retry occurred, so no success-after-retry event.
	if succeeded != 0 {
		t.Errorf("retry.succeeded published %d times for first-attempt success, want 0", succeeded)
	}
	if eng.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after terminal outcome, want 0", eng.ActiveCount())
	}
}

func TestExecuteSuccessAfterRetry(t *testing.T) {
	bus := event.NewBus()
	eng := NewEngine(WithBus(bus))

	var succeeded *event.RetrySucceededEvent
	bus.Subscribe("retry.succeeded", func(e event.Event) {
		ev := e.(event.RetrySucceededEvent)
		succeeded = &ev
	})

	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.NewProcessError("transient", nil).WithExitCode(1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("work invoked %d times, want 3", calls)
	}
	if succeeded == nil {
		t.Fatal("retry.succeeded event was not published")
	}
	if succeeded.Attempts != 3 {
		t.Errorf("succeeded event attempts = %d, want 3", succeeded.Attempts)
	}
}

// Retry budget: a permanently failing unit of work with maxAttempts = k is
// invoked exactly k times, never k+1.
func TestExecuteRetryBudgetExact(t *testing.T) {
	bus := event.NewBus()
	eng := NewEngine(WithBus(bus))

	var exhausted *event.RetryExhaustedEvent
	bus.Subscribe("retry.exhausted", func(e event.Event) {
		ev := e.(event.RetryExhaustedEvent)
		exhausted = &ev
	})

	const k = 4
	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(k), func(context.Context) error {
		calls++
		return errors.NewProcessError("always fails", nil).WithExitCode(1)
	})

	if calls != k {
		t.Errorf("work invoked %d times, want exactly %d", calls, k)
	}
	if !errors.Is(err, errors.ErrRetriesExhausted) {
		t.Errorf("Execute() error = %v, want ErrRetriesExhausted", err)
	}
	if exhausted == nil {
		t.Fatal("retry.exhausted event was not published")
	}
	if exhausted.Attempts != k {
		t.Errorf("exhausted event attempts = %d, want %d", exhausted.Attempts, k)
	}
	if exhausted.ErrorCode != "exit_1" {
		t.Errorf("exhausted event code = %q, want %q", exhausted.ErrorCode, "exit_1")
	}
}

// Classification purity: an error whose structured code is not in the
// pattern list causes zero retries, even when its message text matches a
// pattern.
func TestExecuteClassificationIgnoresMessageText(t *testing.T) {
	eng := NewEngine()

	policy := fastPolicy(5)
	policy.RetryablePatterns = []string{"timeout"}

	calls := 0
	workErr := errors.NewProcessError("the worker printed: timeout timeout timeout", nil).
		WithExitCode(2)
	err := eng.Execute(context.Background(), "op-1", policy, func(context.Context) error {
		calls++
		return workErr
	})

	if calls != 1 {
		t.Errorf("work invoked %d times, want 1 (no retries)", calls)
	}
	if !errors.Is(err, workErr) {
		t.Errorf("Execute() should return the work error unchanged, got %v", err)
	}
}

func TestExecuteValidationErrorNotRetried(t *testing.T) {
	eng := NewEngine()

	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(5), func(context.Context) error {
		calls++
		return errors.NewValidationError("bad input")
	})

	if calls != 1 {
		t.Errorf("work invoked %d times, want 1", calls)
	}
	if !errors.IsValidation(err) {
		t.Errorf("Execute() error = %v, want validation error", err)
	}
}

func TestExecuteValidationErrorOnFinalAttempt(t *testing.T) {
	// A non-retryable error must surface unmodified even when the attempt
	// budget is already spent, and must not report exhaustion.
	bus := event.NewBus()
	var exhausted int
	bus.Subscribe("retry.exhausted", func(event.Event) { exhausted++ })

	eng := NewEngine(WithBus(bus))
	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(1), func(context.Context) error {
		calls++
		return errors.NewValidationError("bad input")
	})

	if calls != 1 {
		t.Errorf("work invoked %d times, want 1", calls)
	}
	if !errors.IsValidation(err) {
		t.Errorf("Execute() error = %v, want validation error", err)
	}
	if errors.Is(err, errors.ErrRetriesExhausted) {
		t.Errorf("Execute() error = %v, must not wrap exhaustion", err)
	}
	if exhausted != 0 {
		t.Errorf("retry.exhausted published %d times, want 0", exhausted)
	}
}

func TestExecuteRejectsDuplicateOperationID(t *testing.T) {
	eng := NewEngine()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- eng.Execute(context.Background(), "op-1", fastPolicy(1), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := eng.Execute(context.Background(), "op-1", fastPolicy(1), func(context.Context) error {
		return nil
	})
	if !errors.Is(err, errors.ErrOperationActive) {
		t.Errorf("duplicate Execute() error = %v, want ErrOperationActive", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Execute() error = %v", err)
	}
}

func TestExecuteRetrySlotCeiling(t *testing.T) {
	eng := NewEngine(WithMaxActive(2))

	release := make(chan struct{})
	var wg sync.WaitGroup
	var startedWG sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		startedWG.Add(1)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			_ = eng.Execute(context.Background(), "op-"+id, fastPolicy(1), func(context.Context) error {
				startedWG.Done()
				<-release
				return nil
			})
		}()
	}
	startedWG.Wait()

	err := eng.Execute(context.Background(), "op-overflow", fastPolicy(1), func(context.Context) error {
		return nil
	})
	if !errors.IsCapacity(err) {
		t.Errorf("over-ceiling Execute() error = %v, want capacity error", err)
	}

	close(release)
	wg.Wait()
}

func TestExecuteRefusedWhenBreakerOpen(t *testing.T) {
	breaker := NewBreaker(time.Minute, 0.5)
	eng := NewEngine(WithBreaker(breaker))

	for i := 0; i < 5; i++ {
		breaker.Record(false)
	}

	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(1), func(context.Context) error {
		calls++
		return nil
	})

	if calls != 0 {
		t.Errorf("work invoked %d times with breaker open, want 0", calls)
	}
	if !errors.IsCapacity(err) {
		t.Errorf("Execute() error = %v, want capacity classification", err)
	}
	if !errors.Is(err, errors.ErrBreakerOpen) {
		t.Errorf("Execute() error = %v, want ErrBreakerOpen in chain", err)
	}
}

func TestCancelDuringWorkIdempotent(t *testing.T) {
	bus := event.NewBus()
	eng := NewEngine(WithBus(bus))

	canceledEvents := 0
	bus.Subscribe("retry.canceled", func(event.Event) { canceledEvents++ })

	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(5), func(context.Context) error {
		calls++
		if first := eng.Cancel("op-1"); !first {
			t.Error("first Cancel() = false, want true")
		}
		if second := eng.Cancel("op-1"); second {
			t.Error("second Cancel() = true, want false (no-op)")
		}
		return errors.NewProcessError("failing", nil).WithExitCode(1)
	})

	if calls != 1 {
		t.Errorf("work invoked %d times after cancel, want 1", calls)
	}
	if !errors.IsCanceled(err) {
		t.Errorf("Execute() error = %v, want cancelled outcome", err)
	}
	if canceledEvents != 1 {
		t.Errorf("retry.canceled published %d times, want 1", canceledEvents)
	}
}

func TestCancelUnknownOperation(t *testing.T) {
	eng := NewEngine()
	if eng.Cancel("never-existed") {
		t.Error("Cancel() on unknown operation = true, want false")
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	eng := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := eng.Execute(ctx, "op-1", fastPolicy(5), func(context.Context) error {
		calls++
		cancel()
		return errors.NewProcessError("failing", nil).WithExitCode(1)
	})

	if calls != 1 {
		t.Errorf("work invoked %d times after context cancel, want 1", calls)
	}
	if !errors.IsCanceled(err) {
		t.Errorf("Execute() error = %v, want cancelled outcome", err)
	}
}

func TestExecuteEmptyOperationID(t *testing.T) {
	eng := NewEngine()
	err := eng.Execute(context.Background(), "", fastPolicy(1), func(context.Context) error {
		return nil
	})
	if !errors.IsValidation(err) {
		t.Errorf("Execute(\"\") error = %v, want validation error", err)
	}
}

func TestRetryAttemptEvents(t *testing.T) {
	bus := event.NewBus()
	eng := NewEngine(WithBus(bus))

	var events []event.RetryAttemptEvent
	bus.Subscribe("retry.attempt", func(e event.Event) {
		events = append(events, e.(event.RetryAttemptEvent))
	})

	calls := 0
	err := eng.Execute(context.Background(), "op-1", fastPolicy(3), func(context.Context) error {
		calls++
		return errors.NewProcessError("failing", nil).WithExitCode(7)
	})
	if !errors.Is(err, errors.ErrRetriesExhausted) {
		t.Fatalf("Execute() error = %v, want exhausted", err)
	}

	// Attempts 2 and 3 are scheduled retries.
	if len(events) != 2 {
		t.Fatalf("retry.attempt published %d times, want 2", len(events))
	}
	if events[0].Attempt != 2 || events[1].Attempt != 3 {
		t.Errorf("attempt numbers = [%d %d], want [2 3]", events[0].Attempt, events[1].Attempt)
	}
	for _, ev := range events {
		if ev.ErrorCode != "exit_7" {
			t.Errorf("attempt event code = %q, want %q", ev.ErrorCode, "exit_7")
		}
		if ev.OperationID != "op-1" {
			t.Errorf("attempt event operation = %q, want %q", ev.OperationID, "op-1")
		}
	}
}

func TestActiveOperationsSnapshot(t *testing.T) {
	eng := NewEngine()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- eng.Execute(context.Background(), "op-live", fastPolicy(1), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ops := eng.ActiveOperations()
	if len(ops) != 1 {
		t.Fatalf("ActiveOperations() length = %d, want 1", len(ops))
	}
	if ops[0].OperationID != "op-live" {
		t.Errorf("OperationID = %q, want %q", ops[0].OperationID, "op-live")
	}
	if ops[0].Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", ops[0].Attempt)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if len(eng.ActiveOperations()) != 0 {
		t.Error("ActiveOperations() should be empty after terminal outcome")
	}
}
