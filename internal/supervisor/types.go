package supervisor

import (
	"strings"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
)

const (
	// DefaultTimeout bounds the wall-clock runtime of a single attempt.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxOutputBytes caps the worker output buffered per attempt.
	DefaultMaxOutputBytes = 10 << 20 // 10MB

	// DefaultMaxConcurrent bounds simultaneously active invocations.
	DefaultMaxConcurrent = 20

	// DefaultGracePeriod is how long a worker gets to exit after the
	// graceful termination signal before it is forcibly killed.
	DefaultGracePeriod = 5 * time.Second
)

// Request describes one agent invocation: which worker to run, for which
// task and role, and the bounds it must respect. The working directory is a
// precondition: it must already be resolved and validated by the caller.
type Request struct {
	TaskID string
	Role   string
	Model  string
	Prompt string

	// Command is the worker argument vector. It is executed directly,
	// never through a shell.
	Command []string

	// Dir is the already-validated working directory for the worker.
	Dir string

	// ExtraEnv holds additional KEY=VALUE pairs merged after the
	// supervisor's allowlist filter.
	ExtraEnv []string

	// Timeout bounds the wall clock per attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxOutputBytes caps buffered worker output per attempt.
	// Zero means DefaultMaxOutputBytes.
	MaxOutputBytes int64

	// OnDelta, if set, receives each assistant text fragment as it is
	// read from the worker's stdout.
	OnDelta func(delta string)
}

// Validate checks the request shape and applies defaults in place.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return errors.NewValidationError("task ID is required").WithField("taskID")
	}
	if len(r.Command) == 0 || strings.TrimSpace(r.Command[0]) == "" {
		return errors.NewValidationError("worker command is required").WithField("command")
	}
	for _, kv := range r.ExtraEnv {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return errors.NewValidationError("environment entry must be KEY=VALUE").
				WithField("extraEnv").
				WithValue(kv)
		}
	}
	if r.Timeout < 0 {
		return errors.NewValidationError("timeout cannot be negative").WithField("timeout")
	}
	if r.Timeout == 0 {
		r.Timeout = DefaultTimeout
	}
	if r.MaxOutputBytes < 0 {
		return errors.NewValidationError("output cap cannot be negative").WithField("maxOutputBytes")
	}
	if r.MaxOutputBytes == 0 {
		r.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return nil
}

// Result is the single terminal outcome of an invocation. Exactly one
// Result is produced per Run call regardless of how many attempts ran.
type Result struct {
	TaskID string
	Role   string

	// Success reflects the worker's terminal record, or a clean exit
	// when the worker never reported one.
	Success bool
	Reason  string

	// ExitCode is the worker's exit code, -1 when it never ran or was
	// killed before exiting. Signal names the terminating signal when
	// the worker died to one.
	ExitCode int
	Signal   string

	// Output is the accumulated assistant-visible text, Truncated
	// reports whether the output cap cut it short.
	Output    string
	Truncated bool

	Attempts  int
	Stopped   bool
	TimedOut  bool
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

// ActiveInvocation is a read-only snapshot row of the invocation table.
type ActiveInvocation struct {
	TaskID    string
	Role      string
	Attempt   int
	StartedAt time.Time
}
