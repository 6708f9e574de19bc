package debate

import "time"

// Defaults for debate configuration. All of these are configuration, not
// constants of the protocol; callers override them per coordinator.
const (
	DefaultConsensusThreshold = 2.0 / 3.0
	DefaultMaxRounds          = 3
	DefaultMinParticipants    = 2
	DefaultRoundTimeout       = 5 * time.Minute
)

// Phase is a debate's position in the per-round state machine.
type Phase string

const (
	PhaseProposing  Phase = "proposing"
	PhaseCritiquing Phase = "critiquing"
	PhaseDefending  Phase = "defending"
	PhaseVoting     Phase = "voting"
	PhaseResolved   Phase = "resolved"
	PhaseEscalated  Phase = "escalated"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether the debate accepts no further submissions.
func (p Phase) Terminal() bool {
	return p == PhaseResolved || p == PhaseEscalated || p == PhaseCancelled
}

// Severity grades a critique.
type Severity string

const (
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
	// SeverityBlocking disqualifies the target proposal from receiving
	// votes until the critique is resolved.
	SeverityBlocking Severity = "blocking"
)

func (s Severity) valid() bool {
	return s == SeverityMinor || s == SeverityMajor || s == SeverityBlocking
}

// Proposal is one participant's candidate solution for a round.
type Proposal struct {
	AgentID     string
	Solution    string
	Reasoning   string
	Confidence  float64
	SubmittedAt time.Time
}

// Critique challenges another participant's proposal.
type Critique struct {
	ID           string
	FromAgent    string
	ToAgent      string
	Severity     Severity
	Comment      string
	SuggestedFix string
	Resolved     bool
}

// Defense is a rebuttal or modification by a proposal's author. It may
// name critique IDs it resolves; only the author's defense can resolve
// critiques against their own proposal.
type Defense struct {
	AgentID            string
	Rebuttal           string
	AddressedCritiques []string
}

// Vote assigns weight to another participant's proposal. One vote per
// agent per round.
type Vote struct {
	AgentID  string
	Proposal string // agent ID of the proposal's author
	Weight   float64
}

// Round holds everything submitted during one debate round.
type Round struct {
	Number    int
	Proposals map[string]Proposal // keyed by author agent ID
	Critiques []Critique
	Defenses  []Defense
	Votes     map[string]Vote // keyed by voter agent ID
	StartedAt time.Time
}

// Outcome is the terminal result of a debate.
type Outcome struct {
	DebateID string
	Phase    Phase
	Winner   string // proposal author when resolved
	Solution string
	Rounds   int
	Weight   float64 // winning vote weight when resolved
	Reason   string  // escalation reason when escalated
}

// Snapshot is a defensive copy of a debate's observable state.
type Snapshot struct {
	DebateID     string
	Topic        string
	Participants []string
	Phase        Phase
	CurrentRound int
	Rounds       []Round
}
