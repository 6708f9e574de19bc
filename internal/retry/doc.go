// Package retry provides a generic, policy-driven retry execution engine.
//
// An [Engine] runs arbitrary units of work under a [Policy]: bounded
// attempts, exponential/linear/fixed backoff with an optional jitter, and
// retryability classification over structured error codes. It publishes a
// lifecycle event for every scheduled retry, for eventual success after
// retries, and for exhaustion, so observers can follow recovery behavior
// without participating in it.
//
// Classification never inspects free-text output: the decision is made on
// errors.Code, which is derived from exit codes, signals, and error kinds
// supplied by the caller. This keeps a worker's own output from being able
// to manipulate retry behavior.
//
// The engine additionally enforces two system-protection mechanisms: a
// ceiling on concurrently tracked operations (excess operations are
// rejected with a capacity error, never queued) and a [Breaker] that
// refuses new operations once the rolling failure rate over a trailing
// window crosses a threshold.
package retry
