// Package supervisor launches and supervises external worker processes, one
// per agent invocation.
//
// A worker is started from an argument vector (never a shell), receives an
// allow-listed environment and its prompt on stdin, and speaks the
// newline-delimited record format of package protocol on stdout. The
// supervisor accumulates assistant-visible text incrementally, forwards each
// text delta to observers as it arrives, and feeds tool records to an
// optional sink.
//
// # Enforcement
//
// Every invocation runs under a wall-clock timeout and an output-size cap.
// Termination escalates: a graceful signal first, a forced kill after a
// bounded grace period, and the process is verified gone before the
// invocation's table entry is released. Failures crossing the package
// boundary are sanitized so worker internals (absolute paths, home
// directories, deep stacks) never reach a caller-facing result.
//
// # Concurrency
//
// Concurrently active invocations are bounded by a resizable ceiling;
// requests beyond it are rejected immediately rather than queued. Each
// invocation is itself a retryable unit of work executed through the retry
// engine with a role-appropriate policy. Stop cancels a live invocation out
// of band and is a no-op once the task has terminated.
package supervisor
