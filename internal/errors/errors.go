// Package errors provides centralized error definitions and error handling
// utilities for the Quorum codebase. It defines domain-specific errors,
// error constructors with context wrapping, and classification helpers.
//
// # Error Taxonomy
//
// Errors fall into four behavioral categories:
//
//   - ValidationError: bad input shape or range. Rejected immediately,
//     never retried.
//   - ProcessError: a worker process failed with a structured exit
//     condition (exit code, signal, or classified kind). Eligible for
//     retry policy evaluation.
//   - CapacityError: a concurrency ceiling, retry budget, or open circuit
//     breaker rejected the request. Distinct from failure so callers can
//     tell "try later" from "this will never work."
//   - Terminal sentinels: cancellation (ErrCanceled) and debate
//     escalation (ErrDebateEscalated) are reportable terminal states, not
//     generic failures.
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewProcessError("worker exited", cause).WithExitCode(137)
//	err := errors.NewValidationError("confidence out of range").WithField("confidence")
//	err := errors.NewCapacityError("process_slots", 20)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrCanceled) { ... }
//	if errors.IsRetryable(err) { ... }
//	if errors.IsCapacity(err) { ... }
//	code := errors.Code(err) // structured class for retry matching
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Retry-related sentinel errors
var (
	// ErrCanceled indicates an operation was cooperatively cancelled.
	ErrCanceled = New("operation canceled")
	// ErrRetriesExhausted indicates all retry attempts were consumed.
	ErrRetriesExhausted = New("retry attempts exhausted")
	// ErrOperationActive indicates an operation ID already has live retry state.
	ErrOperationActive = New("operation already active")
	// ErrBreakerOpen indicates the circuit breaker is refusing new retries.
	ErrBreakerOpen = New("circuit breaker open")
)

// Supervisor-related sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrBufferExceeded indicates a worker exceeded its output cap.
	ErrBufferExceeded = New("output buffer exceeded")
	// ErrTaskNotFound indicates no active invocation exists for a task ID.
	ErrTaskNotFound = New("task not found")
	// ErrWorkerStartFailed indicates the worker process failed to start.
	ErrWorkerStartFailed = New("worker failed to start")
)

// Debate-related sentinel errors
var (
	// ErrDebateNotFound indicates a debate ID is unknown.
	ErrDebateNotFound = New("debate not found")
	// ErrDebateEscalated indicates a debate ended without consensus and
	// requires an external decision. A terminal state, not a failure.
	ErrDebateEscalated = New("debate escalated")
	// ErrUnknownParticipant indicates a submission from an agent outside
	// the debate roster.
	ErrUnknownParticipant = New("unknown participant")
	// ErrWrongPhase indicates a submission arrived outside its phase.
	ErrWrongPhase = New("submission out of phase")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// QuorumError is the base interface for all Quorum errors.
// It extends the standard error interface with methods for
// classification and retry decisions.
type QuorumError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// Code returns a stable machine-readable error class. Retry
	// classification matches against this code, never against message text.
	Code() string
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	code      string
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// Code returns the machine-readable error class.
func (e *baseError) Code() string {
	return e.code
}

// -----------------------------------------------------------------------------
// Validation Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input shape or range. Validation
// errors are rejected at the boundary and never retried.
//
// Example:
//
//	err := errors.NewValidationError("confidence must be in [0, 1]")
//	err = err.WithField("confidence").WithValue(1.2)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			code:      "validation",
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Process Errors
// -----------------------------------------------------------------------------

// ProcessError represents a worker process failure with a structured exit
// condition. The Kind field is the machine-readable class the retry engine
// matches against; it is derived from exit codes and signals, never from
// the worker's text output.
//
// Example:
//
//	err := errors.NewProcessError("worker exited", cause).
//	    WithTaskID("task-1").WithExitCode(137).WithKind("exit_137")
type ProcessError struct {
	baseError
	TaskID   string
	Role     string
	ExitCode int
	Signal   string
}

// NewProcessError creates a new ProcessError. The default kind is
// "process_failure" until a more specific one is set via WithKind.
func NewProcessError(message string, cause error) *ProcessError {
	return &ProcessError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			code:      "process_failure",
			severity:  SeverityError,
			retryable: true,
		},
		ExitCode: -1,
	}
}

// WithTaskID adds a task ID to the error context.
func (e *ProcessError) WithTaskID(id string) *ProcessError {
	e.TaskID = id
	return e
}

// WithRole adds an agent role to the error context.
func (e *ProcessError) WithRole(role string) *ProcessError {
	e.Role = role
	return e
}

// WithExitCode records the process exit code and derives the error kind
// ("exit_<code>") unless a kind was already set explicitly.
func (e *ProcessError) WithExitCode(code int) *ProcessError {
	e.ExitCode = code
	if e.code == "process_failure" {
		e.code = fmt.Sprintf("exit_%d", code)
	}
	return e
}

// WithSignal records the terminating signal and derives the error kind
// ("signal_<name>") unless a kind was already set explicitly.
func (e *ProcessError) WithSignal(signal string) *ProcessError {
	e.Signal = signal
	if e.code == "process_failure" {
		e.code = fmt.Sprintf("signal_%s", strings.ToLower(signal))
	}
	return e
}

// WithKind sets the machine-readable error class explicitly.
func (e *ProcessError) WithKind(kind string) *ProcessError {
	e.code = kind
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ProcessError) WithRetryable(r bool) *ProcessError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Role != "" {
		parts = append(parts, fmt.Sprintf("role=%s", e.Role))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	if e.Signal != "" {
		parts = append(parts, fmt.Sprintf("signal=%s", e.Signal))
	}

	prefix := "process error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("process error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProcessError) Is(target error) bool {
	if _, ok := target.(*ProcessError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Capacity Errors
// -----------------------------------------------------------------------------

// CapacityError represents an immediate rejection for resource reasons:
// a full concurrency ceiling, an exhausted retry budget, or an open
// circuit breaker. It is never retryable by the engine itself; the caller
// decides whether to try again later.
//
// Example:
//
//	err := errors.NewCapacityError("process_slots", 20)
//	fmt.Println(err) // "capacity error: process_slots limit 20 reached"
type CapacityError struct {
	baseError
	Resource string
	Limit    int
}

// NewCapacityError creates a new CapacityError for the named resource.
func NewCapacityError(resource string, limit int) *CapacityError {
	return &CapacityError{
		baseError: baseError{
			message:   fmt.Sprintf("%s limit %d reached", resource, limit),
			code:      "capacity_" + resource,
			severity:  SeverityWarning,
			retryable: false,
		},
		Resource: resource,
		Limit:    limit,
	}
}

// WithCause adds a cause to the error.
func (e *CapacityError) WithCause(cause error) *CapacityError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *CapacityError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("capacity error: %s: %v", e.message, e.cause)
	}
	return fmt.Sprintf("capacity error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *CapacityError) Is(target error) bool {
	if _, ok := target.(*CapacityError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Timeout Errors
// -----------------------------------------------------------------------------

// TimeoutError represents an operation that exceeded its wall-clock bound.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for worker exit", 5*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for worker exit (timeout: 5m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			code:      "timeout",
			severity:  SeverityWarning,
			retryable: true, // Timeouts are generally retryable
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Validation, capacity, and cancellation errors
// are never retryable.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrCanceled) {
		return false
	}

	var qErr QuorumError
	if As(err, &qErr) {
		return qErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}
	return false
}

// IsCapacity returns true if the error is an immediate capacity rejection
// ("try later") rather than an operational failure.
func IsCapacity(err error) bool {
	if err == nil {
		return false
	}
	var capErr *CapacityError
	if As(err, &capErr) {
		return true
	}
	return Is(err, ErrBreakerOpen)
}

// IsValidation returns true if the error is an input validation rejection.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var valErr *ValidationError
	return As(err, &valErr) || Is(err, ErrInvalidInput)
}

// IsCanceled returns true if the error represents cooperative cancellation.
func IsCanceled(err error) bool {
	return err != nil && Is(err, ErrCanceled)
}

// Code returns the structured machine-readable class of the error. Errors
// that don't implement QuorumError fall back to well-known sentinel codes,
// then to "unknown". Retry classification must use this, never Error() text.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var qErr QuorumError
	if As(err, &qErr) {
		return qErr.Code()
	}

	switch {
	case Is(err, ErrTimeout):
		return "timeout"
	case Is(err, ErrCanceled):
		return "canceled"
	case Is(err, ErrBufferExceeded):
		return "buffer_exceeded"
	case Is(err, ErrBreakerOpen):
		return "breaker_open"
	case Is(err, ErrWorkerStartFailed):
		return "start_failed"
	default:
		return "unknown"
	}
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement QuorumError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var qErr QuorumError
	if As(err, &qErr) {
		return qErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to launch worker")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to launch worker for task %s", taskID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
