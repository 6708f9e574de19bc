package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/quorum/internal/retry"
)

// Config represents the complete Quorum configuration
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Debate     DebateConfig     `mapstructure:"debate"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SupervisorConfig controls worker process invocation
type SupervisorConfig struct {
	// WorkerCommand is the argv vector used to launch a worker process.
	// The first element is the executable; no shell is involved.
	WorkerCommand []string `mapstructure:"worker_command"`
	// MaxConcurrent is the ceiling on simultaneously active workers.
	// Launches beyond the ceiling are rejected, not queued.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// TimeoutSeconds bounds the wall-clock runtime of a single attempt
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MaxOutputBytes caps the worker output buffered per attempt
	MaxOutputBytes int `mapstructure:"max_output_bytes"`
	// GracePeriodSeconds is how long a worker gets between SIGTERM and SIGKILL
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
	// EnvAllowlist lists the environment variable names passed through to
	// workers. Empty means the built-in allowlist (HOME, PATH, and so on).
	EnvAllowlist []string `mapstructure:"env_allowlist"`
}

// Timeout returns the per-attempt timeout as a time.Duration
func (c *SupervisorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GracePeriod returns the termination grace period as a time.Duration
func (c *SupervisorConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// PolicyConfig describes one retry policy. Delays are in milliseconds so
// sub-second backoff can be expressed in config files.
type PolicyConfig struct {
	// MaxAttempts is the total attempt budget including the first attempt
	MaxAttempts int `mapstructure:"max_attempts"`
	// Backoff selects the delay strategy: "exponential", "linear", "fixed"
	Backoff string `mapstructure:"backoff"`
	// BaseDelayMs is the delay before the first retry
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	// MaxDelayMs caps the computed delay
	MaxDelayMs int `mapstructure:"max_delay_ms"`
	// BackoffBase is the exponential growth factor (default: 2.0)
	BackoffBase float64 `mapstructure:"backoff_base"`
	// Jitter enables a random perturbation of the computed delay
	Jitter bool `mapstructure:"jitter"`
	// RetryablePatterns is an ordered list of anchored regular expressions
	// matched against structured error codes (e.g. "exit_1", "timeout").
	// Empty means every retryable-class error is retried.
	RetryablePatterns []string `mapstructure:"retryable_patterns"`
}

// Policy converts the config shape into a retry.Policy
func (c PolicyConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       c.MaxAttempts,
		Backoff:           retry.BackoffKind(c.Backoff),
		BaseDelay:         time.Duration(c.BaseDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(c.MaxDelayMs) * time.Millisecond,
		BackoffBase:       c.BackoffBase,
		Jitter:            c.Jitter,
		RetryablePatterns: append([]string(nil), c.RetryablePatterns...),
	}
}

// RetryConfig controls the retry engine
type RetryConfig struct {
	// MaxActive is the ceiling on concurrently tracked retry operations
	MaxActive int `mapstructure:"max_active"`
	// Default is the policy applied to roles without an explicit entry
	Default PolicyConfig `mapstructure:"default"`
	// Roles maps an agent role to its retry policy
	Roles map[string]PolicyConfig `mapstructure:"roles"`
}

// BreakerConfig controls the shared circuit breaker
type BreakerConfig struct {
	// WindowSeconds is the sliding window over which outcomes are counted
	WindowSeconds int `mapstructure:"window_seconds"`
	// FailureThreshold is the failure rate at which the breaker opens
	FailureThreshold float64 `mapstructure:"failure_threshold"`
}

// Window returns the breaker window as a time.Duration
func (c *BreakerConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// DebateConfig controls multi-agent debates
type DebateConfig struct {
	// ConsensusThreshold is the fraction of total vote weight a proposal
	// needs to win (default: 2/3)
	ConsensusThreshold float64 `mapstructure:"consensus_threshold"`
	// MaxRounds is the round budget before escalation
	MaxRounds int `mapstructure:"max_rounds"`
	// MinParticipants is the minimum number of debating agents
	MinParticipants int `mapstructure:"min_participants"`
	// RoundTimeoutSeconds bounds a single debate round
	RoundTimeoutSeconds int `mapstructure:"round_timeout_seconds"`
}

// RoundTimeout returns the round timeout as a time.Duration
func (c *DebateConfig) RoundTimeout() time.Duration {
	return time.Duration(c.RoundTimeoutSeconds) * time.Second
}

// TrackerConfig controls the tool activity tracker
type TrackerConfig struct {
	// HistoryCapacity bounds retained completed tool events
	HistoryCapacity int `mapstructure:"history_capacity"`
}

// StoreConfig controls the audit event store
type StoreConfig struct {
	// Enabled turns event persistence on
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite database file. Empty means <config dir>/audit.db.
	Path string `mapstructure:"path"`
}

// DatabasePath resolves the audit database location
func (c *StoreConfig) DatabasePath() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(ConfigDir(), "audit.db")
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is the directory log files are written to. Empty means stderr only.
	Dir string `mapstructure:"dir"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			WorkerCommand:      []string{"claude", "--output-format", "stream-json"},
			MaxConcurrent:      20,
			TimeoutSeconds:     300, // 5 minutes per attempt
			MaxOutputBytes:     10 << 20,
			GracePeriodSeconds: 5,
			EnvAllowlist:       []string{},
		},
		Retry: RetryConfig{
			MaxActive: 10,
			Default: PolicyConfig{
				MaxAttempts: 3,
				Backoff:     "exponential",
				BaseDelayMs: 1000,
				MaxDelayMs:  30000,
				BackoffBase: 2.0,
				Jitter:      true,
				// Empty patterns: every retryable-class error retries
				RetryablePatterns: []string{},
			},
			Roles: map[string]PolicyConfig{},
		},
		Breaker: BreakerConfig{
			WindowSeconds:    300, // 5 minute sliding window
			FailureThreshold: 0.8,
		},
		Debate: DebateConfig{
			ConsensusThreshold:  2.0 / 3.0,
			MaxRounds:           3,
			MinParticipants:     2,
			RoundTimeoutSeconds: 300,
		},
		Tracker: TrackerConfig{
			HistoryCapacity: 1000,
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    "",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// PolicyFor returns the retry policy for a role, falling back to the
// default policy when the role has no entry
func (c *Config) PolicyFor(role string) retry.Policy {
	if pc, ok := c.Retry.Roles[role]; ok {
		return pc.Policy()
	}
	return c.Retry.Default.Policy()
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Supervisor defaults
	viper.SetDefault("supervisor.worker_command", defaults.Supervisor.WorkerCommand)
	viper.SetDefault("supervisor.max_concurrent", defaults.Supervisor.MaxConcurrent)
	viper.SetDefault("supervisor.timeout_seconds", defaults.Supervisor.TimeoutSeconds)
	viper.SetDefault("supervisor.max_output_bytes", defaults.Supervisor.MaxOutputBytes)
	viper.SetDefault("supervisor.grace_period_seconds", defaults.Supervisor.GracePeriodSeconds)
	viper.SetDefault("supervisor.env_allowlist", defaults.Supervisor.EnvAllowlist)

	// Retry defaults
	viper.SetDefault("retry.max_active", defaults.Retry.MaxActive)
	viper.SetDefault("retry.default.max_attempts", defaults.Retry.Default.MaxAttempts)
	viper.SetDefault("retry.default.backoff", defaults.Retry.Default.Backoff)
	viper.SetDefault("retry.default.base_delay_ms", defaults.Retry.Default.BaseDelayMs)
	viper.SetDefault("retry.default.max_delay_ms", defaults.Retry.Default.MaxDelayMs)
	viper.SetDefault("retry.default.backoff_base", defaults.Retry.Default.BackoffBase)
	viper.SetDefault("retry.default.jitter", defaults.Retry.Default.Jitter)
	viper.SetDefault("retry.default.retryable_patterns", defaults.Retry.Default.RetryablePatterns)
	viper.SetDefault("retry.roles", defaults.Retry.Roles)

	// Breaker defaults
	viper.SetDefault("breaker.window_seconds", defaults.Breaker.WindowSeconds)
	viper.SetDefault("breaker.failure_threshold", defaults.Breaker.FailureThreshold)

	// Debate defaults
	viper.SetDefault("debate.consensus_threshold", defaults.Debate.ConsensusThreshold)
	viper.SetDefault("debate.max_rounds", defaults.Debate.MaxRounds)
	viper.SetDefault("debate.min_participants", defaults.Debate.MinParticipants)
	viper.SetDefault("debate.round_timeout_seconds", defaults.Debate.RoundTimeoutSeconds)

	// Tracker defaults
	viper.SetDefault("tracker.history_capacity", defaults.Tracker.HistoryCapacity)

	// Store defaults
	viper.SetDefault("store.enabled", defaults.Store.Enabled)
	viper.SetDefault("store.path", defaults.Store.Path)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quorum")
	}
	// Fall back to ~/.config/quorum
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quorum"
	}
	return filepath.Join(home, ".config", "quorum")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
