package debate

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// Escalation reasons carried on the escalated outcome.
const (
	EscalationMaxRounds    = "max_rounds"
	EscalationAllBlocked   = "all_blocked"
	EscalationRoundTimeout = "round_timeout"
)

// Coordinator runs multi-round debates between agent participants.
// Safe for concurrent use.
type Coordinator struct {
	mu      sync.Mutex
	debates map[string]*debateState

	threshold       float64
	maxRounds       int
	minParticipants int
	roundTimeout    time.Duration

	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time
}

type debateState struct {
	id           string
	topic        string
	participants []string
	phase        Phase
	rounds       []*Round
	outcome      *Outcome
}

func (d *debateState) currentRound() *Round {
	return d.rounds[len(d.rounds)-1]
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBus sets the event bus debate events are published to.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithConsensusThreshold sets the fraction of total cast weight a proposal
// needs to win. Values outside (0, 1] keep the default.
func WithConsensusThreshold(fraction float64) Option {
	return func(c *Coordinator) {
		if fraction > 0 && fraction <= 1 {
			c.threshold = fraction
		}
	}
}

// WithMaxRounds sets the round cap before escalation.
func WithMaxRounds(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

// WithMinParticipants sets the minimum roster size.
func WithMinParticipants(n int) Option {
	return func(c *Coordinator) {
		if n >= 2 {
			c.minParticipants = n
		}
	}
}

// WithRoundTimeout sets the wall-clock bound per round.
func WithRoundTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.roundTimeout = d
		}
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		debates:         make(map[string]*debateState),
		threshold:       DefaultConsensusThreshold,
		maxRounds:       DefaultMaxRounds,
		minParticipants: DefaultMinParticipants,
		roundTimeout:    DefaultRoundTimeout,
		logger:          logging.NopLogger(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartDebate opens a debate on topic between the given participants and
// returns its ID. The first round starts in the proposing phase.
func (c *Coordinator) StartDebate(topic string, participants []string) (string, error) {
	if topic == "" {
		return "", errors.NewValidationError("debate topic is required").WithField("topic")
	}
	if len(participants) < c.minParticipants {
		return "", errors.NewValidationError("not enough participants").
			WithField("participants").
			WithValue(len(participants))
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p == "" {
			return "", errors.NewValidationError("participant ID cannot be empty").WithField("participants")
		}
		if seen[p] {
			return "", errors.NewValidationError("duplicate participant").
				WithField("participants").
				WithValue(p)
		}
		seen[p] = true
	}

	d := &debateState{
		id:           "debate-" + uuid.NewString(),
		topic:        topic,
		participants: append([]string(nil), participants...),
		phase:        PhaseProposing,
	}
	d.rounds = append(d.rounds, c.newRound(1))

	c.mu.Lock()
	c.debates[d.id] = d
	c.mu.Unlock()

	c.publish(event.NewDebateStartedEvent(d.id, topic, d.participants))
	c.logger.WithDebate(d.id).Info("debate started",
		"topic", topic, "participants", len(participants))
	return d.id, nil
}

func (c *Coordinator) newRound(number int) *Round {
	return &Round{
		Number:    number,
		Proposals: make(map[string]Proposal),
		Votes:     make(map[string]Vote),
		StartedAt: c.now(),
	}
}

// SubmitProposal records a participant's candidate solution for the
// current round. Confidence must be within [0, 1]. When every participant
// has proposed, the round advances to critiquing.
func (c *Coordinator) SubmitProposal(debateID, agentID, solution, reasoning string, confidence float64) error {
	if confidence < 0 || confidence > 1 || math.IsNaN(confidence) {
		return errors.NewValidationError("confidence must be within [0, 1]").
			WithField("confidence").
			WithValue(confidence)
	}
	if solution == "" {
		return errors.NewValidationError("proposal solution is required").WithField("solution")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return err
	}
	if err := c.checkPhase(d, PhaseProposing); err != nil {
		return err
	}
	if err := c.checkParticipant(d, agentID); err != nil {
		return err
	}

	round := d.currentRound()
	if _, exists := round.Proposals[agentID]; exists {
		return errors.NewValidationError("participant already proposed this round").
			WithField("agentID").
			WithValue(agentID)
	}

	round.Proposals[agentID] = Proposal{
		AgentID:     agentID,
		Solution:    solution,
		Reasoning:   reasoning,
		Confidence:  confidence,
		SubmittedAt: c.now(),
	}
	c.publish(event.NewProposalSubmittedEvent(debateID, round.Number, agentID, confidence))

	if len(round.Proposals) == len(d.participants) {
		c.transition(d, PhaseCritiquing)
	}
	return nil
}

// SubmitCritique records a critique of another participant's proposal.
// Blocking critiques make the target proposal ineligible for votes until
// resolved by the author's defense.
func (c *Coordinator) SubmitCritique(debateID, fromAgent, toAgent string, severity Severity, comment, suggestedFix string) error {
	if !severity.valid() {
		return errors.NewValidationError("unknown critique severity").
			WithField("severity").
			WithValue(string(severity))
	}
	if fromAgent == toAgent {
		return errors.NewValidationError("cannot critique own proposal").WithField("toAgent")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return err
	}
	if err := c.checkPhase(d, PhaseCritiquing); err != nil {
		return err
	}
	if err := c.checkParticipant(d, fromAgent); err != nil {
		return err
	}
	if err := c.checkParticipant(d, toAgent); err != nil {
		return err
	}

	round := d.currentRound()
	if _, ok := round.Proposals[toAgent]; !ok {
		return errors.NewValidationError("target participant has no proposal this round").
			WithField("toAgent").
			WithValue(toAgent)
	}

	round.Critiques = append(round.Critiques, Critique{
		ID:           uuid.NewString(),
		FromAgent:    fromAgent,
		ToAgent:      toAgent,
		Severity:     severity,
		Comment:      comment,
		SuggestedFix: suggestedFix,
	})
	c.publish(event.NewCritiqueSubmittedEvent(debateID, round.Number, fromAgent, toAgent, string(severity)))
	return nil
}

// SubmitDefense records a rebuttal by a proposal's author. Critique IDs in
// addressedCritiques that target the author's proposal are marked resolved.
func (c *Coordinator) SubmitDefense(debateID, agentID, rebuttal string, addressedCritiques []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return err
	}
	if err := c.checkPhase(d, PhaseDefending); err != nil {
		return err
	}
	if err := c.checkParticipant(d, agentID); err != nil {
		return err
	}

	round := d.currentRound()
	if _, ok := round.Proposals[agentID]; !ok {
		return errors.NewValidationError("defense requires an own proposal this round").
			WithField("agentID").
			WithValue(agentID)
	}

	addressed := make(map[string]bool, len(addressedCritiques))
	for _, id := range addressedCritiques {
		addressed[id] = true
	}
	for i := range round.Critiques {
		crit := &round.Critiques[i]
		if addressed[crit.ID] && crit.ToAgent == agentID {
			crit.Resolved = true
		}
	}

	round.Defenses = append(round.Defenses, Defense{
		AgentID:            agentID,
		Rebuttal:           rebuttal,
		AddressedCritiques: append([]string(nil), addressedCritiques...),
	})
	c.publish(event.NewDefenseSubmittedEvent(debateID, round.Number, agentID))
	return nil
}

// CastVote records a participant's vote for a proposal, identified by its
// author. Weight must be non-negative; proposals with unresolved blocking
// critiques cannot receive votes; one vote per agent per round.
func (c *Coordinator) CastVote(debateID, agentID, proposalOwner string, weight float64) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return errors.NewValidationError("vote weight must be non-negative and finite").
			WithField("weight").
			WithValue(weight)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return err
	}
	if err := c.checkPhase(d, PhaseVoting); err != nil {
		return err
	}
	if err := c.checkParticipant(d, agentID); err != nil {
		return err
	}

	round := d.currentRound()
	if _, ok := round.Proposals[proposalOwner]; !ok {
		return errors.NewValidationError("vote targets a participant without a proposal").
			WithField("proposal").
			WithValue(proposalOwner)
	}
	if blockedProposal(round, proposalOwner) {
		return errors.NewValidationError("proposal has unresolved blocking critiques").
			WithField("proposal").
			WithValue(proposalOwner)
	}
	if _, voted := round.Votes[agentID]; voted {
		return errors.NewValidationError("participant already voted this round").
			WithField("agentID").
			WithValue(agentID)
	}

	round.Votes[agentID] = Vote{AgentID: agentID, Proposal: proposalOwner, Weight: weight}
	c.publish(event.NewVoteCastEvent(debateID, round.Number, agentID, proposalOwner, weight))
	return nil
}

// AdvancePhase moves the current round to its next phase explicitly:
// proposing → critiquing → defending → voting. Evaluation past voting goes
// through ResolveDebate.
func (c *Coordinator) AdvancePhase(debateID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return err
	}

	switch d.phase {
	case PhaseProposing:
		c.transition(d, PhaseCritiquing)
	case PhaseCritiquing:
		c.transition(d, PhaseDefending)
	case PhaseDefending:
		c.transition(d, PhaseVoting)
	case PhaseVoting:
		return errors.Wrapf(errors.ErrWrongPhase, "voting concludes via resolution, not phase advance")
	default:
		return errors.Wrapf(errors.ErrWrongPhase, "debate is %s", d.phase)
	}
	return nil
}

// ResolveDebate evaluates the current round. It returns a terminal Outcome
// when the debate resolves or escalates; a nil Outcome means no consensus
// yet and a new round has started. Rounds past the configured cap, rounds
// where every proposal is blocked, and expired rounds all escalate instead
// of looping.
func (c *Coordinator) ResolveDebate(debateID string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return nil, err
	}
	if d.phase.Terminal() {
		return nil, errors.Wrapf(errors.ErrWrongPhase, "debate is %s", d.phase)
	}

	round := d.currentRound()
	timedOut := c.roundExpired(round)
	if d.phase != PhaseVoting && !timedOut {
		return nil, errors.Wrapf(errors.ErrWrongPhase, "cannot resolve during %s", d.phase)
	}

	// Tally votes; blocked proposals cannot hold votes by construction.
	var totalWeight float64
	weights := make(map[string]float64)
	for _, vote := range round.Votes {
		totalWeight += vote.Weight
		weights[vote.Proposal] += vote.Weight
	}

	winner, winnerWeight := "", 0.0
	for owner, weight := range weights {
		if weight > winnerWeight || (weight == winnerWeight && winner != "" && owner < winner) {
			winner, winnerWeight = owner, weight
		}
	}

	if totalWeight > 0 && winnerWeight >= c.threshold*totalWeight {
		d.outcome = &Outcome{
			DebateID: debateID,
			Phase:    PhaseResolved,
			Winner:   winner,
			Solution: round.Proposals[winner].Solution,
			Rounds:   round.Number,
			Weight:   winnerWeight,
		}
		c.transition(d, PhaseResolved)
		c.publish(event.NewDebateResolvedEvent(debateID, winner, round.Number, winnerWeight))
		c.logger.WithDebate(debateID).Info("debate resolved",
			"winner", winner, "weight", winnerWeight, "rounds", round.Number)
		return c.copyOutcome(d.outcome), nil
	}

	allBlocked := len(round.Proposals) > 0 && eligibleCount(round) == 0
	switch {
	case allBlocked:
		return c.escalate(d, round, EscalationAllBlocked), nil
	case round.Number >= c.maxRounds && timedOut:
		return c.escalate(d, round, EscalationRoundTimeout), nil
	case round.Number >= c.maxRounds:
		return c.escalate(d, round, EscalationMaxRounds), nil
	}

	// No consensus, rounds remain: open the next round.
	d.rounds = append(d.rounds, c.newRound(round.Number+1))
	c.transition(d, PhaseProposing)
	c.logger.WithDebate(debateID).Info("no consensus, next round", "round", round.Number+1)
	return nil, nil
}

// CancelDebate terminates a debate without resolution.
func (c *Coordinator) CancelDebate(debateID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return err
	}
	if d.phase.Terminal() {
		return errors.Wrapf(errors.ErrWrongPhase, "debate is %s", d.phase)
	}

	d.outcome = &Outcome{DebateID: debateID, Phase: PhaseCancelled, Rounds: d.currentRound().Number}
	c.transition(d, PhaseCancelled)
	c.logger.WithDebate(debateID).Info("debate cancelled")
	return nil
}

// Get returns a defensive snapshot of a debate.
func (c *Coordinator) Get(debateID string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		DebateID:     d.id,
		Topic:        d.topic,
		Participants: append([]string(nil), d.participants...),
		Phase:        d.phase,
		CurrentRound: d.currentRound().Number,
	}
	for _, round := range d.rounds {
		snap.Rounds = append(snap.Rounds, copyRound(round))
	}
	return snap, nil
}

// Outcome returns the terminal outcome of a debate, or nil while it is
// still in progress.
func (c *Coordinator) Outcome(debateID string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return nil, err
	}
	return c.copyOutcome(d.outcome), nil
}

// RoundDeadline returns when the current round expires.
func (c *Coordinator) RoundDeadline(debateID string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.lookup(debateID)
	if err != nil {
		return time.Time{}, err
	}
	return d.currentRound().StartedAt.Add(c.roundTimeout), nil
}

func (c *Coordinator) escalate(d *debateState, round *Round, reason string) *Outcome {
	d.outcome = &Outcome{
		DebateID: d.id,
		Phase:    PhaseEscalated,
		Rounds:   round.Number,
		Reason:   reason,
	}
	c.transition(d, PhaseEscalated)
	c.publish(event.NewDebateEscalatedEvent(d.id, round.Number, reason))
	c.logger.WithDebate(d.id).Warn("debate escalated", "reason", reason, "rounds", round.Number)
	return c.copyOutcome(d.outcome)
}

func (c *Coordinator) transition(d *debateState, next Phase) {
	previous := d.phase
	d.phase = next
	c.publish(event.NewDebatePhaseChangedEvent(d.id, d.currentRound().Number, string(previous), string(next)))
}

func (c *Coordinator) lookup(debateID string) (*debateState, error) {
	d, ok := c.debates[debateID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrDebateNotFound, "debate %s", debateID)
	}
	return d, nil
}

func (c *Coordinator) checkPhase(d *debateState, want Phase) error {
	if d.phase != want {
		return errors.Wrapf(errors.ErrWrongPhase, "debate is %s, submission requires %s", d.phase, want)
	}
	return nil
}

func (c *Coordinator) checkParticipant(d *debateState, agentID string) error {
	for _, p := range d.participants {
		if p == agentID {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrUnknownParticipant, "agent %s", agentID)
}

func (c *Coordinator) roundExpired(round *Round) bool {
	return c.now().After(round.StartedAt.Add(c.roundTimeout))
}

func (c *Coordinator) copyOutcome(outcome *Outcome) *Outcome {
	if outcome == nil {
		return nil
	}
	clone := *outcome
	return &clone
}

func (c *Coordinator) publish(ev event.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// blockedProposal reports whether the proposal authored by owner has an
// unresolved blocking critique in the round.
func blockedProposal(round *Round, owner string) bool {
	for _, crit := range round.Critiques {
		if crit.ToAgent == owner && crit.Severity == SeverityBlocking && !crit.Resolved {
			return true
		}
	}
	return false
}

func eligibleCount(round *Round) int {
	count := 0
	for owner := range round.Proposals {
		if !blockedProposal(round, owner) {
			count++
		}
	}
	return count
}

func copyRound(round *Round) Round {
	clone := Round{
		Number:    round.Number,
		Proposals: make(map[string]Proposal, len(round.Proposals)),
		Critiques: append([]Critique(nil), round.Critiques...),
		Defenses:  append([]Defense(nil), round.Defenses...),
		Votes:     make(map[string]Vote, len(round.Votes)),
		StartedAt: round.StartedAt,
	}
	for id, proposal := range round.Proposals {
		clone.Proposals[id] = proposal
	}
	for id, vote := range round.Votes {
		clone.Votes[id] = vote
	}
	return clone
}
