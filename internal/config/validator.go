package config

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "supervisor.max_concurrent")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackoffKinds returns the list of valid backoff strategies
func ValidBackoffKinds() []string {
	return []string{"exponential", "linear", "fixed"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSupervisor()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateBreaker()...)
	errors = append(errors, c.validateDebate()...)
	errors = append(errors, c.validateTracker()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSupervisor validates the SupervisorConfig
func (c *Config) validateSupervisor() []ValidationError {
	var errors []ValidationError

	if len(c.Supervisor.WorkerCommand) == 0 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.worker_command",
			Value:   c.Supervisor.WorkerCommand,
			Message: "must name an executable",
		})
	}

	const maxConcurrentLimit = 500
	if c.Supervisor.MaxConcurrent < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_concurrent",
			Value:   c.Supervisor.MaxConcurrent,
			Message: "must be at least 1",
		})
	}
	if c.Supervisor.MaxConcurrent > maxConcurrentLimit {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_concurrent",
			Value:   c.Supervisor.MaxConcurrent,
			Message: fmt.Sprintf("exceeds maximum of %d", maxConcurrentLimit),
		})
	}

	if c.Supervisor.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.timeout_seconds",
			Value:   c.Supervisor.TimeoutSeconds,
			Message: "must be at least 1 second",
		})
	}

	const minOutputBytes = 1024        // 1KB minimum
	const maxOutputBytes = 100_000_000 // 100MB maximum
	if c.Supervisor.MaxOutputBytes < minOutputBytes {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_output_bytes",
			Value:   c.Supervisor.MaxOutputBytes,
			Message: fmt.Sprintf("must be at least %d bytes (1KB)", minOutputBytes),
		})
	}
	if c.Supervisor.MaxOutputBytes > maxOutputBytes {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_output_bytes",
			Value:   c.Supervisor.MaxOutputBytes,
			Message: fmt.Sprintf("exceeds maximum of %d bytes (100MB)", maxOutputBytes),
		})
	}

	if c.Supervisor.GracePeriodSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.grace_period_seconds",
			Value:   c.Supervisor.GracePeriodSeconds,
			Message: "must be non-negative",
		})
	}

	for _, name := range c.Supervisor.EnvAllowlist {
		if name == "" || strings.Contains(name, "=") {
			errors = append(errors, ValidationError{
				Field:   "supervisor.env_allowlist",
				Value:   name,
				Message: "must be a variable name without '='",
			})
		}
	}

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxActive < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_active",
			Value:   c.Retry.MaxActive,
			Message: "must be at least 1",
		})
	}

	errors = append(errors, validatePolicy("retry.default", c.Retry.Default)...)
	for role, pc := range c.Retry.Roles {
		errors = append(errors, validatePolicy("retry.roles."+role, pc)...)
	}

	return errors
}

// validatePolicy validates a single PolicyConfig under the given field prefix
func validatePolicy(prefix string, pc PolicyConfig) []ValidationError {
	var errors []ValidationError

	const maxAttemptsLimit = 100
	if pc.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_attempts",
			Value:   pc.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if pc.MaxAttempts > maxAttemptsLimit {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_attempts",
			Value:   pc.MaxAttempts,
			Message: fmt.Sprintf("exceeds maximum of %d", maxAttemptsLimit),
		})
	}

	if pc.Backoff != "" && !isValidBackoffKind(pc.Backoff) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".backoff",
			Value:   pc.Backoff,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackoffKinds(), ", ")),
		})
	}

	if pc.BaseDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".base_delay_ms",
			Value:   pc.BaseDelayMs,
			Message: "must be non-negative",
		})
	}
	if pc.MaxDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_delay_ms",
			Value:   pc.MaxDelayMs,
			Message: "must be non-negative",
		})
	}
	if pc.MaxDelayMs > 0 && pc.MaxDelayMs < pc.BaseDelayMs {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_delay_ms",
			Value:   pc.MaxDelayMs,
			Message: "must not be less than base_delay_ms",
		})
	}

	if pc.BackoffBase != 0 && pc.BackoffBase < 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".backoff_base",
			Value:   pc.BackoffBase,
			Message: "must be at least 1",
		})
	}

	for _, pattern := range pc.RetryablePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   prefix + ".retryable_patterns",
				Value:   pattern,
				Message: "must be a valid regular expression",
			})
		}
	}

	return errors
}

// validateBreaker validates the BreakerConfig
func (c *Config) validateBreaker() []ValidationError {
	var errors []ValidationError

	if c.Breaker.WindowSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "breaker.window_seconds",
			Value:   c.Breaker.WindowSeconds,
			Message: "must be at least 1 second",
		})
	}

	if c.Breaker.FailureThreshold <= 0 || c.Breaker.FailureThreshold > 1 || math.IsNaN(c.Breaker.FailureThreshold) {
		errors = append(errors, ValidationError{
			Field:   "breaker.failure_threshold",
			Value:   c.Breaker.FailureThreshold,
			Message: "must be in (0, 1]",
		})
	}

	return errors
}

// validateDebate validates the DebateConfig
func (c *Config) validateDebate() []ValidationError {
	var errors []ValidationError

	if c.Debate.ConsensusThreshold <= 0 || c.Debate.ConsensusThreshold > 1 || math.IsNaN(c.Debate.ConsensusThreshold) {
		errors = append(errors, ValidationError{
			Field:   "debate.consensus_threshold",
			Value:   c.Debate.ConsensusThreshold,
			Message: "must be in (0, 1]",
		})
	}

	const maxRoundsLimit = 20
	if c.Debate.MaxRounds < 1 {
		errors = append(errors, ValidationError{
			Field:   "debate.max_rounds",
			Value:   c.Debate.MaxRounds,
			Message: "must be at least 1",
		})
	}
	if c.Debate.MaxRounds > maxRoundsLimit {
		errors = append(errors, ValidationError{
			Field:   "debate.max_rounds",
			Value:   c.Debate.MaxRounds,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRoundsLimit),
		})
	}

	if c.Debate.MinParticipants < 2 {
		errors = append(errors, ValidationError{
			Field:   "debate.min_participants",
			Value:   c.Debate.MinParticipants,
			Message: "must be at least 2",
		})
	}

	if c.Debate.RoundTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "debate.round_timeout_seconds",
			Value:   c.Debate.RoundTimeoutSeconds,
			Message: "must be at least 1 second",
		})
	}

	return errors
}

// validateTracker validates the TrackerConfig
func (c *Config) validateTracker() []ValidationError {
	var errors []ValidationError

	const maxHistoryLimit = 1_000_000
	if c.Tracker.HistoryCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "tracker.history_capacity",
			Value:   c.Tracker.HistoryCapacity,
			Message: "must be at least 1",
		})
	}
	if c.Tracker.HistoryCapacity > maxHistoryLimit {
		errors = append(errors, ValidationError{
			Field:   "tracker.history_capacity",
			Value:   c.Tracker.HistoryCapacity,
			Message: fmt.Sprintf("exceeds maximum of %d", maxHistoryLimit),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !isValidLogLevel(c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func isValidLogLevel(level string) bool {
	for _, valid := range ValidLogLevels() {
		if level == valid {
			return true
		}
	}
	return false
}

func isValidBackoffKind(kind string) bool {
	for _, valid := range ValidBackoffKinds() {
		if kind == valid {
			return true
		}
	}
	return false
}
