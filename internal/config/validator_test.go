package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "supervisor.max_concurrent",
		Value:   0,
		Message: "must be at least 1",
	}

	got := err.Error()
	if !strings.Contains(got, "supervisor.max_concurrent") || !strings.Contains(got, "must be at least 1") {
		t.Errorf("Error() = %q, missing field or message", got)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "" {
		t.Errorf("empty ValidationErrors.Error() = %q, want empty", got)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got := single.Error(); strings.Contains(got, "validation errors") {
		t.Errorf("single error should not use the multi-error header, got %q", got)
	}

	multi := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error header missing, got %q", got)
	}
}

func TestConfig_Validate_Supervisor(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty worker command",
			mutate: func(c *Config) { c.Supervisor.WorkerCommand = nil },
			field:  "supervisor.worker_command",
		},
		{
			name:   "zero max concurrent",
			mutate: func(c *Config) { c.Supervisor.MaxConcurrent = 0 },
			field:  "supervisor.max_concurrent",
		},
		{
			name:   "excessive max concurrent",
			mutate: func(c *Config) { c.Supervisor.MaxConcurrent = 10000 },
			field:  "supervisor.max_concurrent",
		},
		{
			name:   "tiny output cap",
			mutate: func(c *Config) { c.Supervisor.MaxOutputBytes = 10 },
			field:  "supervisor.max_output_bytes",
		},
		{
			name:   "env allowlist entry with equals",
			mutate: func(c *Config) { c.Supervisor.EnvAllowlist = []string{"FOO=bar"} },
			field:  "supervisor.env_allowlist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assertFieldError(t, cfg.Validate(), tt.field)
		})
	}
}

func TestConfig_Validate_Retry(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxActive = 0
	assertFieldError(t, cfg.Validate(), "retry.max_active")

	cfg = Default()
	cfg.Retry.Default.Backoff = "quadratic"
	assertFieldError(t, cfg.Validate(), "retry.default.backoff")

	cfg = Default()
	cfg.Retry.Default.RetryablePatterns = []string{"exit_[0-9"}
	assertFieldError(t, cfg.Validate(), "retry.default.retryable_patterns")

	cfg = Default()
	cfg.Retry.Roles = map[string]PolicyConfig{
		"critic": {MaxAttempts: 0, Backoff: "fixed"},
	}
	assertFieldError(t, cfg.Validate(), "retry.roles.critic.max_attempts")
}

func TestConfig_Validate_Breaker(t *testing.T) {
	cfg := Default()
	cfg.Breaker.FailureThreshold = 1.5
	assertFieldError(t, cfg.Validate(), "breaker.failure_threshold")

	cfg = Default()
	cfg.Breaker.FailureThreshold = 0
	assertFieldError(t, cfg.Validate(), "breaker.failure_threshold")

	cfg = Default()
	cfg.Breaker.WindowSeconds = 0
	assertFieldError(t, cfg.Validate(), "breaker.window_seconds")
}

func TestConfig_Validate_Debate(t *testing.T) {
	cfg := Default()
	cfg.Debate.ConsensusThreshold = 0
	assertFieldError(t, cfg.Validate(), "debate.consensus_threshold")

	cfg = Default()
	cfg.Debate.MinParticipants = 1
	assertFieldError(t, cfg.Validate(), "debate.min_participants")

	cfg = Default()
	cfg.Debate.MaxRounds = 0
	assertFieldError(t, cfg.Validate(), "debate.max_rounds")
}

func TestConfig_Validate_Logging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	assertFieldError(t, cfg.Validate(), "logging.level")

	cfg = Default()
	cfg.Logging.Level = ""
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("empty log level should be valid, got %v", ValidationErrors(errs))
	}
}

func assertFieldError(t *testing.T, errs []ValidationError, field string) {
	t.Helper()
	for _, err := range errs {
		if err.Field == field {
			return
		}
	}
	t.Errorf("expected a validation error on %q, got %v", field, ValidationErrors(errs))
}
