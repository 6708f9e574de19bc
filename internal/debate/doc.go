// Package debate implements a multi-round consensus protocol between
// agent participants.
//
// When agents disagree on a solution, a debate gives the disagreement
// structure: each round every participant proposes, critiques the other
// proposals, defends their own, and finally votes. A proposal carrying an
// unresolved blocking critique cannot receive votes.
//
// # Round Lifecycle
//
// Each round moves through four phases:
//
//   - proposing: every participant submits one proposal
//   - critiquing: participants critique each other's proposals
//   - defending: authors rebut critiques, optionally resolving them
//   - voting: participants vote weight onto eligible proposals
//
// A round ends via ResolveDebate: one proposal reaching the consensus
// threshold resolves the debate; otherwise a new round opens, until the
// round cap, a fully blocked field, or an expired round escalates the
// debate for an external decision. Escalation is terminal and reportable,
// not an error.
//
// # Usage
//
//	coord := debate.NewCoordinator(debate.WithBus(bus))
//	id, _ := coord.StartDebate("gRPC or REST?", []string{"agent-a", "agent-b", "agent-c"})
//
//	coord.SubmitProposal(id, "agent-a", "use REST", "simpler ops", 0.8)
//	// ... remaining proposals, critiques, defenses, votes ...
//	outcome, _ := coord.ResolveDebate(id)
//
// # Thread Safety
//
// Coordinator is safe for concurrent use. All state mutations are
// protected by an internal mutex.
package debate
