package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single supervised worker",
	Long: `Run one agent worker as a supervised subprocess.

The prompt is delivered on the worker's stdin. The worker's NDJSON output
is parsed as it streams: assistant text deltas are printed as they arrive,
tool activity is tracked, and failures are retried according to the
configured policy for the worker's role.

The prompt may be given as an argument or piped on stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runTaskID string
	runRole   string
	runModel  string
	runDir    string
	runQuiet  bool
)

func init() {
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "task identifier (default: generated)")
	runCmd.Flags().StringVar(&runRole, "role", "worker", "agent role, selects the retry policy")
	runCmd.Flags().StringVar(&runModel, "model", "", "model identifier passed to the worker")
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory for the worker")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress streamed output, print only the summary")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt, err := resolvePrompt(args)
	if err != nil {
		return err
	}

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	taskID := runTaskID
	if taskID == "" {
		taskID = fmt.Sprintf("run-%d", os.Getpid())
	}

	req := workerRequest(rt.cfg, taskID, runRole, runModel, prompt, runDir)
	if !runQuiet {
		req.OnDelta = func(delta string) {
			fmt.Print(delta)
		}
	}

	result, runErr := rt.supervisor.Run(ctx, req)
	if !runQuiet {
		fmt.Println()
	}

	if result != nil {
		printResult(result)
		printToolStats(rt)
	}
	if runErr != nil {
		return fmt.Errorf("worker failed: %w", runErr)
	}
	return nil
}

// workerRequest fills a supervisor request from the supervisor config
// section. The output cap is an int in config for viper's sake and an
// int64 on the request.
func workerRequest(cfg *config.Config, taskID, role, model, prompt, dir string) supervisor.Request {
	return supervisor.Request{
		TaskID:         taskID,
		Role:           role,
		Model:          model,
		Prompt:         prompt,
		Command:        cfg.Supervisor.WorkerCommand,
		Dir:            dir,
		Timeout:        cfg.Supervisor.Timeout(),
		MaxOutputBytes: int64(cfg.Supervisor.MaxOutputBytes),
	}
}

func resolvePrompt(args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		if prompt := strings.TrimSpace(string(data)); prompt != "" {
			return prompt, nil
		}
	}

	return "", fmt.Errorf("no prompt given: pass it as an argument or pipe it on stdin")
}

func printResult(result *supervisor.Result) {
	status := "success"
	if !result.Success {
		status = "failure"
	}
	fmt.Printf("task %s: %s (attempts: %d, duration: %s)\n",
		result.TaskID, status, result.Attempts, result.Duration.Round(time.Millisecond))
	if result.Reason != "" {
		fmt.Printf("  reason: %s\n", result.Reason)
	}
	if result.Truncated {
		fmt.Println("  output truncated at the configured cap")
	}
}

func printToolStats(rt *runtime) {
	stats := rt.tracker.Statistics()
	if stats.TotalInvocations == 0 {
		return
	}
	fmt.Printf("tools: %d invoked, %d succeeded, %d failed",
		stats.TotalInvocations, stats.SuccessCount, stats.ErrorCount)
	if stats.TopTool != "" {
		fmt.Printf(", most used: %s", stats.TopTool)
	}
	fmt.Println()
}
