package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/logging"
	"github.com/Iron-Ham/quorum/internal/supervisor"
)

// AgentRunner executes one supervised worker invocation. Satisfied by
// *supervisor.Supervisor.
type AgentRunner interface {
	Run(ctx context.Context, req supervisor.Request) (*supervisor.Result, error)
}

// Participant binds a debate agent ID to the worker configuration used to
// invoke it.
type Participant struct {
	AgentID string
	Role    string
	Model   string
	Command []string
	Dir     string
}

// Driver runs whole debates by spawning one worker per participant per
// phase and feeding the outputs back into the coordinator. The worker is a
// pure function of its prompt: prior-round context crosses the process
// boundary encoded in the next prompt, never by shared state.
type Driver struct {
	coord  *Coordinator
	runner AgentRunner
	logger *logging.Logger
}

// NewDriver creates a Driver on top of a coordinator and a runner.
func NewDriver(coord *Coordinator, runner AgentRunner, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Driver{coord: coord, runner: runner, logger: logger}
}

// proposalPayload is what a worker is expected to print as its final
// assistant text during the proposing phase.
type proposalPayload struct {
	Solution   string  `json:"solution"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// votePayload is the expected final assistant text during voting.
type votePayload struct {
	Vote   string  `json:"vote"`
	Weight float64 `json:"weight"`
}

// RunDebate drives a debate to a terminal outcome: for each round it
// collects proposals and votes from worker invocations, advancing through
// the critique and defense phases, until the coordinator resolves,
// escalates, or the context is cancelled.
func (dr *Driver) RunDebate(ctx context.Context, topic string, participants []Participant) (*Outcome, error) {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.AgentID
	}

	debateID, err := dr.coord.StartDebate(topic, ids)
	if err != nil {
		return nil, err
	}
	log := dr.logger.WithDebate(debateID)

	var prior []Proposal
	for {
		if err := ctx.Err(); err != nil {
			_ = dr.coord.CancelDebate(debateID)
			return nil, errors.Wrapf(errors.ErrCanceled, "debate %s cancelled", debateID)
		}

		snap, err := dr.coord.Get(debateID)
		if err != nil {
			return nil, err
		}
		round := snap.CurrentRound

		if err := dr.collectProposals(ctx, debateID, topic, round, participants, prior); err != nil {
			_ = dr.coord.CancelDebate(debateID)
			return nil, err
		}
		// Proposing auto-advances once everyone has submitted; the
		// critique and defense phases are advanced explicitly since
		// critiques are optional.
		if err := dr.coord.AdvancePhase(debateID); err != nil { // -> defending
			return nil, err
		}
		if err := dr.coord.AdvancePhase(debateID); err != nil { // -> voting
			return nil, err
		}
		if err := dr.collectVotes(ctx, debateID, round, participants); err != nil {
			_ = dr.coord.CancelDebate(debateID)
			return nil, err
		}

		outcome, err := dr.coord.ResolveDebate(debateID)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}

		// Next round: carry this round's proposals into the prompts.
		snap, err = dr.coord.Get(debateID)
		if err != nil {
			return nil, err
		}
		finished := snap.Rounds[len(snap.Rounds)-2]
		prior = prior[:0]
		for _, proposal := range finished.Proposals {
			prior = append(prior, proposal)
		}
		log.Info("driving next round", "round", snap.CurrentRound)
	}
}

func (dr *Driver) collectProposals(ctx context.Context, debateID, topic string, round int, participants []Participant, prior []Proposal) error {
	outputs, err := dr.invokeAll(ctx, debateID, round, "propose", participants, func(p Participant) string {
		return proposalPrompt(topic, round, p.AgentID, prior)
	})
	if err != nil {
		return err
	}

	for _, p := range participants {
		payload := parseProposal(outputs[p.AgentID])
		if err := dr.coord.SubmitProposal(debateID, p.AgentID, payload.Solution, payload.Reasoning, payload.Confidence); err != nil {
			return err
		}
	}
	return nil
}

func (dr *Driver) collectVotes(ctx context.Context, debateID string, round int, participants []Participant) error {
	snap, err := dr.coord.Get(debateID)
	if err != nil {
		return err
	}
	current := snap.Rounds[len(snap.Rounds)-1]

	outputs, err := dr.invokeAll(ctx, debateID, round, "vote", participants, func(p Participant) string {
		return votePrompt(p.AgentID, current)
	})
	if err != nil {
		return err
	}

	for _, p := range participants {
		payload := parseVote(outputs[p.AgentID], p.AgentID, participants)
		if err := dr.coord.CastVote(debateID, p.AgentID, payload.Vote, payload.Weight); err != nil {
			// A worker voting for a blocked or missing proposal is its
			// own failure, not the debate's: log and move on, the tally
			// simply misses that weight.
			dr.logger.WithDebate(debateID).Warn("vote rejected",
				"agent", p.AgentID, "target", payload.Vote, "error", err.Error())
		}
	}
	return nil
}

// invokeAll runs one worker per participant concurrently and returns the
// accumulated assistant text keyed by agent ID. The first invocation error
// fails the phase.
func (dr *Driver) invokeAll(ctx context.Context, debateID string, round int, phase string, participants []Participant, prompt func(Participant) string) (map[string]string, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outputs  = make(map[string]string, len(participants))
		firstErr error
	)

	for _, p := range participants {
		wg.Add(1)
		go func(p Participant) {
			defer wg.Done()

			result, err := dr.runner.Run(ctx, supervisor.Request{
				TaskID:  fmt.Sprintf("%s-r%d-%s-%s", debateID, round, phase, p.AgentID),
				Role:    p.Role,
				Model:   p.Model,
				Command: p.Command,
				Dir:     p.Dir,
				Prompt:  prompt(p),
				ExtraEnv: []string{
					"DEBATE_ID=" + debateID,
					fmt.Sprintf("DEBATE_ROUND=%d", round),
					"DEBATE_PHASE=" + phase,
				},
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "%s invocation for %s failed", phase, p.AgentID)
				}
				return
			}
			outputs[p.AgentID] = result.Output
		}(p)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return outputs, nil
}

// proposalPrompt encodes the topic and all prior-round proposals into the
// worker's input payload.
func proposalPrompt(topic string, round int, agentID string, prior []Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s in round %d of a debate.\n", agentID, round)
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if len(prior) > 0 {
		b.WriteString("Previous round proposals:\n")
		for _, p := range prior {
			fmt.Fprintf(&b, "- %s (confidence %.2f): %s\n", p.AgentID, p.Confidence, p.Solution)
		}
	}
	b.WriteString(`Respond with a single JSON object: {"solution": ..., "reasoning": ..., "confidence": 0..1}`)
	return b.String()
}

func votePrompt(agentID string, round Round) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Vote for the strongest proposal of round %d.\n", agentID, round.Number)
	for _, p := range round.Proposals {
		fmt.Fprintf(&b, "- %s: %s\n", p.AgentID, p.Solution)
	}
	b.WriteString(`Respond with a single JSON object: {"vote": "<agent id>", "weight": 1.0}`)
	return b.String()
}

// parseProposal reads the worker's final text as a proposal payload.
// Workers are not trusted to emit clean JSON: unparseable output falls back
// to the raw text with a low confidence instead of failing the round.
func parseProposal(output string) proposalPayload {
	var payload proposalPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &payload); err == nil && payload.Solution != "" {
		if payload.Confidence < 0 || payload.Confidence > 1 {
			payload.Confidence = 0.5
		}
		return payload
	}
	solution := strings.TrimSpace(output)
	if solution == "" {
		solution = "no proposal provided"
	}
	return proposalPayload{
		Solution:   solution,
		Reasoning:  "unstructured worker output",
		Confidence: 0.5,
	}
}

// parseVote reads the worker's final text as a vote payload, falling back
// to a zero-weight self-vote when unparseable.
func parseVote(output, agentID string, participants []Participant) votePayload {
	var payload votePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &payload); err == nil && payload.Vote != "" {
		if payload.Weight < 0 {
			payload.Weight = 0
		}
		for _, p := range participants {
			if p.AgentID == payload.Vote {
				return payload
			}
		}
	}
	return votePayload{Vote: agentID, Weight: 0}
}
