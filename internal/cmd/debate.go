package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/debate"
)

var debateCmd = &cobra.Command{
	Use:   "debate <topic>",
	Short: "Run a structured multi-agent debate",
	Long: `Run a debate over the given topic.

Each agent is invoked as a supervised worker once per phase per round:
first to propose a solution, then to vote on the submitted proposals.
A proposal wins when its vote weight reaches the consensus threshold;
otherwise a new round starts with the prior proposals folded into the
prompts, up to the configured round budget.

Agents are given as a comma-separated list of id:role or id:role:model:

  quorum debate "choose a cache eviction policy" --agents alice:proposer,bob:critic,carol:reviewer`,
	Args: cobra.ExactArgs(1),
	RunE: runDebate,
}

var debateAgents string

func init() {
	debateCmd.Flags().StringVar(&debateAgents, "agents", "", "participants as id:role[:model],... (required)")
	_ = debateCmd.MarkFlagRequired("agents")
	rootCmd.AddCommand(debateCmd)
}

func runDebate(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(args[0])

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	participants, err := parseAgents(debateAgents, rt.cfg.Supervisor.WorkerCommand)
	if err != nil {
		return err
	}

	coord := debate.NewCoordinator(
		debate.WithLogger(rt.logger),
		debate.WithBus(rt.bus),
		debate.WithConsensusThreshold(rt.cfg.Debate.ConsensusThreshold),
		debate.WithMaxRounds(rt.cfg.Debate.MaxRounds),
		debate.WithMinParticipants(rt.cfg.Debate.MinParticipants),
		debate.WithRoundTimeout(rt.cfg.Debate.RoundTimeout()),
	)
	driver := debate.NewDriver(coord, rt.supervisor, rt.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	outcome, err := driver.RunDebate(ctx, topic, participants)
	if err != nil {
		return fmt.Errorf("debate failed: %w", err)
	}

	printOutcome(outcome, time.Since(started))
	return nil
}

// parseAgents expands "id:role[:model],..." into driver participants. All
// participants share the configured worker command.
func parseAgents(spec string, command []string) ([]debate.Participant, error) {
	var participants []debate.Participant
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid agent %q: want id:role or id:role:model", entry)
		}

		p := debate.Participant{
			AgentID: parts[0],
			Role:    parts[1],
			Command: command,
		}
		if len(parts) == 3 {
			p.Model = parts[2]
		}
		participants = append(participants, p)
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("no agents given")
	}
	return participants, nil
}

func printOutcome(outcome *debate.Outcome, elapsed time.Duration) {
	switch outcome.Phase {
	case debate.PhaseResolved:
		fmt.Printf("resolved after %d round(s) in %s\n", outcome.Rounds, elapsed.Round(time.Millisecond))
		fmt.Printf("  winner: %s (vote weight %.2f)\n", outcome.Winner, outcome.Weight)
		fmt.Printf("  solution:\n%s\n", indent(outcome.Solution, "    "))
	case debate.PhaseEscalated:
		fmt.Printf("escalated after %d round(s) in %s\n", outcome.Rounds, elapsed.Round(time.Millisecond))
		fmt.Printf("  reason: %s\n", outcome.Reason)
	default:
		fmt.Printf("debate ended in phase %s after %d round(s)\n", outcome.Phase, outcome.Rounds)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
