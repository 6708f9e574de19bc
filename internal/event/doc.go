// Package event provides a pub-sub event bus for decoupled observation of
// Quorum's components.
//
// The retry engine, process supervisor, tool tracker, and debate
// coordinator each publish a fixed, enumerated set of typed events to a
// shared [Bus]. Observers (a UI, a log collector, the audit store)
// subscribe without participating in the operations they watch; the bus is
// the only channel these components expose outward.
//
// # Main Types
//
//   - [Event]: Interface all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Retry lifecycle:
//   - [RetryAttemptEvent], [RetrySucceededEvent], [RetryExhaustedEvent],
//     [RetryCanceledEvent], [BreakerOpenedEvent], [BreakerClosedEvent]
//
// Agent invocations:
//   - [AgentStartedEvent], [AgentOutputEvent], [AgentCompletedEvent],
//     [AgentStoppedEvent]
//
// Tool activity:
//   - [ToolInvokedEvent], [ToolRunningEvent], [ToolCompletedEvent],
//     [ToolStatsEvent]
//
// Debate progress:
//   - [DebateStartedEvent], [DebatePhaseChangedEvent],
//     [ProposalSubmittedEvent], [CritiqueSubmittedEvent],
//     [DefenseSubmittedEvent], [VoteCastEvent], [DebateResolvedEvent],
//     [DebateEscalatedEvent]
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously and protected against panics; a panicking handler will not
// prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe("agent.completed", func(e event.Event) {
//	    done := e.(event.AgentCompletedEvent)
//	    log.Printf("task %s finished (success=%v)", done.TaskID, done.Success)
//	})
//
//	bus.Publish(event.NewAgentStartedEvent("task-1", "coder", "default", 1))
package event
