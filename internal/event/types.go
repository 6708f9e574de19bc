// Package event defines event types for decoupling components in Quorum.
// These events let an observing layer (UI, log collector, audit store)
// follow retry attempts, agent invocations, tool activity, and debate
// progress without participating in them.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "agent.started", "retry.exhausted")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Retry Events
// -----------------------------------------------------------------------------

// RetryAttemptEvent is emitted before each retry attempt (attempt >= 2),
// carrying the delay that was applied and the structured code of the error
// that triggered the retry.
type RetryAttemptEvent struct {
	baseEvent
	OperationID string        // Retryable operation identifier
	Attempt     int           // 1-indexed attempt number about to run
	Delay       time.Duration // Backoff delay applied before this attempt
	ErrorCode   string        // Structured code of the triggering error
}

// NewRetryAttemptEvent creates a RetryAttemptEvent.
func NewRetryAttemptEvent(operationID string, attempt int, delay time.Duration, errorCode string) RetryAttemptEvent {
	return RetryAttemptEvent{
		baseEvent:   newBaseEvent("retry.attempt"),
		OperationID: operationID,
		Attempt:     attempt,
		Delay:       delay,
		ErrorCode:   errorCode,
	}
}

// RetrySucceededEvent is emitted when an operation succeeds after at least
// one retry. It is not emitted for first-attempt successes.
type RetrySucceededEvent struct {
	baseEvent
	OperationID string // Retryable operation identifier
	Attempts    int    // Total attempts consumed, including the successful one
}

// NewRetrySucceededEvent creates a RetrySucceededEvent.
func NewRetrySucceededEvent(operationID string, attempts int) RetrySucceededEvent {
	return RetrySucceededEvent{
		baseEvent:   newBaseEvent("retry.succeeded"),
		OperationID: operationID,
		Attempts:    attempts,
	}
}

// RetryExhaustedEvent is emitted when an operation consumes every allowed
// attempt without succeeding, carrying the last error's structured code.
type RetryExhaustedEvent struct {
	baseEvent
	OperationID string // Retryable operation identifier
	Attempts    int    // Attempts consumed
	ErrorCode   string // Structured code of the final error
	LastError   string // Final error message (already sanitized by the caller)
}

// NewRetryExhaustedEvent creates a RetryExhaustedEvent.
func NewRetryExhaustedEvent(operationID string, attempts int, errorCode, lastError string) RetryExhaustedEvent {
	return RetryExhaustedEvent{
		baseEvent:   newBaseEvent("retry.exhausted"),
		OperationID: operationID,
		Attempts:    attempts,
		ErrorCode:   errorCode,
		LastError:   lastError,
	}
}

// RetryCanceledEvent is emitted when an operation is cooperatively
// cancelled between attempts.
type RetryCanceledEvent struct {
	baseEvent
	OperationID string // Retryable operation identifier
	Attempts    int    // Attempts consumed before cancellation
}

// NewRetryCanceledEvent creates a RetryCanceledEvent.
func NewRetryCanceledEvent(operationID string, attempts int) RetryCanceledEvent {
	return RetryCanceledEvent{
		baseEvent:   newBaseEvent("retry.canceled"),
		OperationID: operationID,
		Attempts:    attempts,
	}
}

// BreakerOpenedEvent is emitted when the circuit breaker trips and begins
// refusing new retries.
type BreakerOpenedEvent struct {
	baseEvent
	FailureRate float64 // Rolling failure rate that tripped the breaker
	Window      time.Duration
}

// NewBreakerOpenedEvent creates a BreakerOpenedEvent.
func NewBreakerOpenedEvent(failureRate float64, window time.Duration) BreakerOpenedEvent {
	return BreakerOpenedEvent{
		baseEvent:   newBaseEvent("breaker.opened"),
		FailureRate: failureRate,
		Window:      window,
	}
}

// BreakerClosedEvent is emitted when the rolling failure rate recovers and
// new retries are admitted again.
type BreakerClosedEvent struct {
	baseEvent
	FailureRate float64 // Rolling failure rate at recovery
}

// NewBreakerClosedEvent creates a BreakerClosedEvent.
func NewBreakerClosedEvent(failureRate float64) BreakerClosedEvent {
	return BreakerClosedEvent{
		baseEvent:   newBaseEvent("breaker.closed"),
		FailureRate: failureRate,
	}
}

// -----------------------------------------------------------------------------
// Agent Invocation Events
// -----------------------------------------------------------------------------

// AgentStartedEvent is emitted when a worker process begins an invocation.
type AgentStartedEvent struct {
	baseEvent
	TaskID  string // Invocation task identifier
	Role    string // Caller-defined role tag (planner, coder, verifier, ...)
	Model   string // Model requested for the worker
	Attempt int    // 1-indexed attempt number under the retry policy
}

// NewAgentStartedEvent creates an AgentStartedEvent.
func NewAgentStartedEvent(taskID, role, model string, attempt int) AgentStartedEvent {
	return AgentStartedEvent{
		baseEvent: newBaseEvent("agent.started"),
		TaskID:    taskID,
		Role:      role,
		Model:     model,
		Attempt:   attempt,
	}
}

// AgentOutputEvent carries one assistant-visible text delta, forwarded
// immediately as it is decoded from the worker stream. Raw structured
// records are never emitted.
type AgentOutputEvent struct {
	baseEvent
	TaskID string // Invocation task identifier
	Delta  string // Incremental assistant-visible text
}

// NewAgentOutputEvent creates an AgentOutputEvent.
func NewAgentOutputEvent(taskID, delta string) AgentOutputEvent {
	return AgentOutputEvent{
		baseEvent: newBaseEvent("agent.output"),
		TaskID:    taskID,
		Delta:     delta,
	}
}

// AgentCompletedEvent is emitted exactly once per invocation with its
// terminal outcome, including timeout and forced termination.
type AgentCompletedEvent struct {
	baseEvent
	TaskID  string // Invocation task identifier
	Role    string // Caller-defined role tag
	Success bool   // Whether the invocation succeeded
	Reason  string // Terminal classification ("completed", "timeout", "canceled", ...)
}

// NewAgentCompletedEvent creates an AgentCompletedEvent.
func NewAgentCompletedEvent(taskID, role string, success bool, reason string) AgentCompletedEvent {
	return AgentCompletedEvent{
		baseEvent: newBaseEvent("agent.completed"),
		TaskID:    taskID,
		Role:      role,
		Success:   success,
		Reason:    reason,
	}
}

// AgentStoppedEvent is emitted when an invocation is terminated out of
// band via Stop and its process has been confirmed gone.
type AgentStoppedEvent struct {
	baseEvent
	TaskID string // Invocation task identifier
}

// NewAgentStoppedEvent creates an AgentStoppedEvent.
func NewAgentStoppedEvent(taskID string) AgentStoppedEvent {
	return AgentStoppedEvent{
		baseEvent: newBaseEvent("agent.stopped"),
		TaskID:    taskID,
	}
}

// -----------------------------------------------------------------------------
// Tool Activity Events
// -----------------------------------------------------------------------------

// ToolInvokedEvent is emitted when a tool invocation first appears in the
// assistant content stream.
type ToolInvokedEvent struct {
	baseEvent
	ToolID   string // Tool use identifier, unique per invocation
	ToolName string // Name of the invoked tool
}

// NewToolInvokedEvent creates a ToolInvokedEvent.
func NewToolInvokedEvent(toolID, toolName string) ToolInvokedEvent {
	return ToolInvokedEvent{
		baseEvent: newBaseEvent("tool.invoked"),
		ToolID:    toolID,
		ToolName:  toolName,
	}
}

// ToolRunningEvent is emitted when a pending tool transitions to running.
type ToolRunningEvent struct {
	baseEvent
	ToolID string // Tool use identifier
}

// NewToolRunningEvent creates a ToolRunningEvent.
func NewToolRunningEvent(toolID string) ToolRunningEvent {
	return ToolRunningEvent{
		baseEvent: newBaseEvent("tool.running"),
		ToolID:    toolID,
	}
}

// ToolCompletedEvent is emitted when a tool result arrives, terminal in
// either success or error.
type ToolCompletedEvent struct {
	baseEvent
	ToolID   string // Tool use identifier
	ToolName string // Name of the tool
	IsError  bool   // True when the result reported an error
	Duration time.Duration
}

// NewToolCompletedEvent creates a ToolCompletedEvent.
func NewToolCompletedEvent(toolID, toolName string, isError bool, duration time.Duration) ToolCompletedEvent {
	return ToolCompletedEvent{
		baseEvent: newBaseEvent("tool.completed"),
		ToolID:    toolID,
		ToolName:  toolName,
		IsError:   isError,
		Duration:  duration,
	}
}

// ToolStatsEvent carries a refreshed statistics snapshot after each tool
// completion.
type ToolStatsEvent struct {
	baseEvent
	TotalInvocations int
	SuccessCount     int
	ErrorCount       int
	ActiveCount      int
	AverageDuration  time.Duration
	TopTool          string // Most frequently invoked tool name
}

// NewToolStatsEvent creates a ToolStatsEvent.
func NewToolStatsEvent(total, success, errors, active int, avg time.Duration, topTool string) ToolStatsEvent {
	return ToolStatsEvent{
		baseEvent:        newBaseEvent("tool.stats"),
		TotalInvocations: total,
		SuccessCount:     success,
		ErrorCount:       errors,
		ActiveCount:      active,
		AverageDuration:  avg,
		TopTool:          topTool,
	}
}

// -----------------------------------------------------------------------------
// Debate Events
// -----------------------------------------------------------------------------

// DebateStartedEvent is emitted when a debate is opened.
type DebateStartedEvent struct {
	baseEvent
	DebateID     string   // Unique debate identifier
	Topic        string   // Disagreement under debate
	Participants []string // Agent IDs on the roster
}

// NewDebateStartedEvent creates a DebateStartedEvent.
func NewDebateStartedEvent(debateID, topic string, participants []string) DebateStartedEvent {
	return DebateStartedEvent{
		baseEvent:    newBaseEvent("debate.started"),
		DebateID:     debateID,
		Topic:        topic,
		Participants: participants,
	}
}

// DebatePhaseChangedEvent is emitted on every phase transition, including
// the rollover into a new round.
type DebatePhaseChangedEvent struct {
	baseEvent
	DebateID      string // Unique debate identifier
	Round         int    // 1-indexed round number
	PreviousPhase string
	CurrentPhase  string
}

// NewDebatePhaseChangedEvent creates a DebatePhaseChangedEvent.
func NewDebatePhaseChangedEvent(debateID string, round int, previous, current string) DebatePhaseChangedEvent {
	return DebatePhaseChangedEvent{
		baseEvent:     newBaseEvent("debate.phase_changed"),
		DebateID:      debateID,
		Round:         round,
		PreviousPhase: previous,
		CurrentPhase:  current,
	}
}

// ProposalSubmittedEvent is emitted when a participant's proposal is accepted.
type ProposalSubmittedEvent struct {
	baseEvent
	DebateID   string  // Unique debate identifier
	Round      int     // 1-indexed round number
	AgentID    string  // Proposing participant
	Confidence float64 // Proposer's confidence in [0, 1]
}

// NewProposalSubmittedEvent creates a ProposalSubmittedEvent.
func NewProposalSubmittedEvent(debateID string, round int, agentID string, confidence float64) ProposalSubmittedEvent {
	return ProposalSubmittedEvent{
		baseEvent:  newBaseEvent("debate.proposal"),
		DebateID:   debateID,
		Round:      round,
		AgentID:    agentID,
		Confidence: confidence,
	}
}

// CritiqueSubmittedEvent is emitted when a critique is accepted.
type CritiqueSubmittedEvent struct {
	baseEvent
	DebateID string // Unique debate identifier
	Round    int    // 1-indexed round number
	FromID   string // Critiquing participant
	ToID     string // Participant whose proposal is critiqued
	Severity string // minor, major, or blocking
}

// NewCritiqueSubmittedEvent creates a CritiqueSubmittedEvent.
func NewCritiqueSubmittedEvent(debateID string, round int, fromID, toID, severity string) CritiqueSubmittedEvent {
	return CritiqueSubmittedEvent{
		baseEvent: newBaseEvent("debate.critique"),
		DebateID:  debateID,
		Round:     round,
		FromID:    fromID,
		ToID:      toID,
		Severity:  severity,
	}
}

// DefenseSubmittedEvent is emitted when a defense is accepted.
type DefenseSubmittedEvent struct {
	baseEvent
	DebateID string // Unique debate identifier
	Round    int    // 1-indexed round number
	AgentID  string // Defending participant
}

// NewDefenseSubmittedEvent creates a DefenseSubmittedEvent.
func NewDefenseSubmittedEvent(debateID string, round int, agentID string) DefenseSubmittedEvent {
	return DefenseSubmittedEvent{
		baseEvent: newBaseEvent("debate.defense"),
		DebateID:  debateID,
		Round:     round,
		AgentID:   agentID,
	}
}

// VoteCastEvent is emitted when a vote is accepted.
type VoteCastEvent struct {
	baseEvent
	DebateID string  // Unique debate identifier
	Round    int     // 1-indexed round number
	AgentID  string  // Voting participant
	Target   string  // Participant whose proposal receives the vote
	Weight   float64 // Vote weight, >= 0
}

// NewVoteCastEvent creates a VoteCastEvent.
func NewVoteCastEvent(debateID string, round int, agentID, target string, weight float64) VoteCastEvent {
	return VoteCastEvent{
		baseEvent: newBaseEvent("debate.vote"),
		DebateID:  debateID,
		Round:     round,
		AgentID:   agentID,
		Target:    target,
		Weight:    weight,
	}
}

// DebateResolvedEvent is emitted when one proposal reaches the consensus
// threshold.
type DebateResolvedEvent struct {
	baseEvent
	DebateID string  // Unique debate identifier
	Winner   string  // Participant whose proposal won
	Rounds   int     // Rounds consumed
	Weight   float64 // Winning vote weight
}

// NewDebateResolvedEvent creates a DebateResolvedEvent.
func NewDebateResolvedEvent(debateID, winner string, rounds int, weight float64) DebateResolvedEvent {
	return DebateResolvedEvent{
		baseEvent: newBaseEvent("debate.resolved"),
		DebateID:  debateID,
		Winner:    winner,
		Rounds:    rounds,
		Weight:    weight,
	}
}

// DebateEscalatedEvent is emitted when a debate ends without consensus:
// round cap reached, every proposal blocked, or round timeout.
type DebateEscalatedEvent struct {
	baseEvent
	DebateID string // Unique debate identifier
	Rounds   int    // Rounds consumed
	Reason   string // "max_rounds", "all_blocked", or "round_timeout"
}

// NewDebateEscalatedEvent creates a DebateEscalatedEvent.
func NewDebateEscalatedEvent(debateID string, rounds int, reason string) DebateEscalatedEvent {
	return DebateEscalatedEvent{
		baseEvent: newBaseEvent("debate.escalated"),
		DebateID:  debateID,
		Rounds:    rounds,
		Reason:    reason,
	}
}
