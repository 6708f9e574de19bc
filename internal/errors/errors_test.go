package errors

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("confidence must be in [0, 1]").
		WithField("confidence").
		WithValue(1.2)

	if got := err.Error(); !strings.Contains(got, "field=confidence") {
		t.Errorf("Error() = %q, want it to contain %q", got, "field=confidence")
	}
	if IsRetryable(err) {
		t.Error("validation errors must never be retryable")
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false, want true")
	}
	if got := Code(err); got != "validation" {
		t.Errorf("Code() = %q, want %q", got, "validation")
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestProcessErrorKindFromExitCode(t *testing.T) {
	err := NewProcessError("worker exited", nil).
		WithTaskID("task-1").
		WithRole("coder").
		WithExitCode(137)

	if got := Code(err); got != "exit_137" {
		t.Errorf("Code() = %q, want %q", got, "exit_137")
	}
	if !IsRetryable(err) {
		t.Error("process errors should default to retryable")
	}

	msg := err.Error()
	for _, want := range []string{"task=task-1", "role=coder", "exit=137"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func TestProcessErrorKindFromSignal(t *testing.T) {
	err := NewProcessError("worker killed", nil).WithSignal("KILL")
	if got := Code(err); got != "signal_kill" {
		t.Errorf("Code() = %q, want %q", got, "signal_kill")
	}
}

func TestProcessErrorExplicitKindWins(t *testing.T) {
	err := NewProcessError("worker exited", nil).
		WithKind("oom").
		WithExitCode(137)
	if got := Code(err); got != "oom" {
		t.Errorf("Code() = %q, want %q", got, "oom")
	}
}

func TestCapacityError(t *testing.T) {
	err := NewCapacityError("process_slots", 20)

	if !IsCapacity(err) {
		t.Error("IsCapacity() = false, want true")
	}
	if IsRetryable(err) {
		t.Error("capacity errors must not be retryable")
	}
	if got := Code(err); got != "capacity_process_slots" {
		t.Errorf("Code() = %q, want %q", got, "capacity_process_slots")
	}
	if !strings.Contains(err.Error(), "limit 20") {
		t.Errorf("Error() = %q, want it to contain %q", err.Error(), "limit 20")
	}
}

func TestBreakerOpenIsCapacity(t *testing.T) {
	err := Wrap(ErrBreakerOpen, "refusing retry")
	if !IsCapacity(err) {
		t.Error("wrapped ErrBreakerOpen should classify as capacity")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for worker exit", 5*time.Minute)

	if !IsRetryable(err) {
		t.Error("timeout errors should be retryable by default")
	}
	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if got := Code(err); got != "timeout" {
		t.Errorf("Code() = %q, want %q", got, "timeout")
	}
}

func TestCanceledNeverRetryable(t *testing.T) {
	err := Wrapf(ErrCanceled, "invocation for task %s", "task-1")

	if IsRetryable(err) {
		t.Error("cancellation must never be retryable")
	}
	if !IsCanceled(err) {
		t.Error("IsCanceled() = false, want true")
	}
	if got := Code(err); got != "canceled" {
		t.Errorf("Code() = %q, want %q", got, "canceled")
	}
}

func TestCodeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout sentinel", ErrTimeout, "timeout"},
		{"buffer sentinel", Wrap(ErrBufferExceeded, "10MB cap"), "buffer_exceeded"},
		{"start failed", ErrWorkerStartFailed, "start_failed"},
		{"plain error", New("something else"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(NewValidationError("bad")); got != SeverityWarning {
		t.Errorf("GetSeverity(validation) = %v, want %v", got, SeverityWarning)
	}
	if got := GetSeverity(NewProcessError("boom", nil)); got != SeverityError {
		t.Errorf("GetSeverity(process) = %v, want %v", got, SeverityError)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", got, SeverityError)
	}
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityDebug)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}
