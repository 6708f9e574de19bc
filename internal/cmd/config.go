package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/quorum/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Quorum configuration",
	Long: `View or modify Quorum configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/quorum/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("supervisor:")
	fmt.Printf("  worker_command: %s\n", strings.Join(cfg.Supervisor.WorkerCommand, " "))
	fmt.Printf("  max_concurrent: %d\n", cfg.Supervisor.MaxConcurrent)
	fmt.Printf("  timeout_seconds: %d\n", cfg.Supervisor.TimeoutSeconds)
	fmt.Printf("  max_output_bytes: %d\n", cfg.Supervisor.MaxOutputBytes)
	fmt.Printf("  grace_period_seconds: %d\n", cfg.Supervisor.GracePeriodSeconds)
	if len(cfg.Supervisor.EnvAllowlist) > 0 {
		fmt.Printf("  env_allowlist: %s\n", strings.Join(cfg.Supervisor.EnvAllowlist, ", "))
	}

	fmt.Println("retry:")
	fmt.Printf("  max_active: %d\n", cfg.Retry.MaxActive)
	printPolicy("  default", cfg.Retry.Default)
	for role, pc := range cfg.Retry.Roles {
		printPolicy("  roles."+role, pc)
	}

	fmt.Println("breaker:")
	fmt.Printf("  window_seconds: %d\n", cfg.Breaker.WindowSeconds)
	fmt.Printf("  failure_threshold: %.2f\n", cfg.Breaker.FailureThreshold)

	fmt.Println("debate:")
	fmt.Printf("  consensus_threshold: %.3f\n", cfg.Debate.ConsensusThreshold)
	fmt.Printf("  max_rounds: %d\n", cfg.Debate.MaxRounds)
	fmt.Printf("  min_participants: %d\n", cfg.Debate.MinParticipants)
	fmt.Printf("  round_timeout_seconds: %d\n", cfg.Debate.RoundTimeoutSeconds)

	fmt.Println("tracker:")
	fmt.Printf("  history_capacity: %d\n", cfg.Tracker.HistoryCapacity)

	fmt.Println("store:")
	fmt.Printf("  enabled: %v\n", cfg.Store.Enabled)
	fmt.Printf("  path: %s\n", cfg.Store.DatabasePath())

	fmt.Println("logging:")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	if cfg.Logging.Dir != "" {
		fmt.Printf("  dir: %s\n", cfg.Logging.Dir)
	}

	return nil
}

func printPolicy(prefix string, pc config.PolicyConfig) {
	fmt.Printf("%s: %d attempts, %s backoff, base %dms, max %dms",
		prefix, pc.MaxAttempts, pc.Backoff, pc.BaseDelayMs, pc.MaxDelayMs)
	if len(pc.RetryablePatterns) > 0 {
		fmt.Printf(", patterns [%s]", strings.Join(pc.RetryablePatterns, " "))
	}
	fmt.Println()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}

// defaultConfigYAML mirrors config.Default(). Kept as literal text so the
// generated file carries the comments.
const defaultConfigYAML = `# Quorum configuration

supervisor:
  # Argv vector used to launch a worker. No shell is involved.
  worker_command: ["claude", "--output-format", "stream-json"]
  # Launches beyond this ceiling are rejected, not queued.
  max_concurrent: 20
  timeout_seconds: 300
  max_output_bytes: 10485760
  grace_period_seconds: 5
  # Environment variable names passed through to workers.
  # Empty means the built-in allowlist.
  env_allowlist: []

retry:
  max_active: 10
  default:
    max_attempts: 3
    backoff: exponential   # exponential, linear, fixed
    base_delay_ms: 1000
    max_delay_ms: 30000
    backoff_base: 2.0
    jitter: true
    # Anchored regular expressions matched against structured error codes
    # such as exit_1, signal_kill, timeout. Empty retries every
    # retryable-class error.
    retryable_patterns: []
  roles: {}

breaker:
  window_seconds: 300
  failure_threshold: 0.8

debate:
  consensus_threshold: 0.6667
  max_rounds: 3
  min_participants: 2
  round_timeout_seconds: 300

tracker:
  history_capacity: 1000

store:
  enabled: false
  path: ""

logging:
  level: info
  dir: ""
`
