package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
	"github.com/Iron-Ham/quorum/internal/protocol"
	"github.com/Iron-Ham/quorum/internal/retry"
)

// Sink receives parsed worker records for lifecycle tracking. Implemented
// by the tool activity tracker; callers may leave it unset.
type Sink interface {
	OnAssistantContent(blocks []protocol.ContentBlock)
	OnToolResult(rec protocol.Record)
}

// Supervisor runs worker processes with bounded concurrency and supervised
// lifecycles. Safe for concurrent use.
type Supervisor struct {
	mu     sync.Mutex
	active map[string]*invocation

	slots        *slotLimiter
	engine       *retry.Engine
	policies     map[string]retry.Policy
	defaultPol   retry.Policy
	envAllowlist []string
	grace        time.Duration
	sink         Sink
	bus          *event.Bus
	logger       *logging.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBus sets the event bus invocation events are published to.
func WithBus(bus *event.Bus) Option {
	return func(s *Supervisor) { s.bus = bus }
}

// WithEngine sets the retry engine invocations execute under.
func WithEngine(engine *retry.Engine) Option {
	return func(s *Supervisor) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithMaxConcurrent sets the invocation ceiling. Zero means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(s *Supervisor) { s.slots = newSlotLimiter(n) }
}

// WithEnvAllowlist replaces the default set of parent environment variables
// passed through to workers.
func WithEnvAllowlist(keys []string) Option {
	return func(s *Supervisor) { s.envAllowlist = keys }
}

// WithRolePolicy sets the retry policy used for invocations of a role.
func WithRolePolicy(role string, policy retry.Policy) Option {
	return func(s *Supervisor) { s.policies[role] = policy }
}

// WithDefaultPolicy sets the retry policy for roles without a specific one.
func WithDefaultPolicy(policy retry.Policy) Option {
	return func(s *Supervisor) { s.defaultPol = policy }
}

// WithGracePeriod sets how long a worker gets between the graceful
// termination signal and the forced kill.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithSink sets the record sink fed with parsed worker output.
func WithSink(sink Sink) Option {
	return func(s *Supervisor) { s.sink = sink }
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		active:       make(map[string]*invocation),
		slots:        newSlotLimiter(DefaultMaxConcurrent),
		policies:     make(map[string]retry.Policy),
		defaultPol:   retry.DefaultPolicy(),
		envAllowlist: defaultEnvAllowlist,
		grace:        DefaultGracePeriod,
		logger:       logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = retry.NewEngine(retry.WithBus(s.bus), retry.WithLogger(s.logger))
	}
	return s
}

// invocation is one row of the active table. The stop channel is closed at
// most once to request out-of-band termination of the live attempt.
type invocation struct {
	taskID    string
	role      string
	startedAt time.Time

	mu             sync.Mutex
	attempt        int
	stopCh         chan struct{}
	stopped        bool
	terminalStatus string
	terminalReason string
}

func (inv *invocation) terminal() (status, reason string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.terminalStatus, inv.terminalReason
}

func (inv *invocation) requestStop() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.stopped {
		return false
	}
	inv.stopped = true
	close(inv.stopCh)
	return true
}

func (inv *invocation) stopRequested() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.stopped
}

func (inv *invocation) beginAttempt() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.attempt++
	// The terminal record belongs to a single attempt. A failure reported
	// by the previous attempt must not classify its successor.
	inv.terminalStatus = ""
	inv.terminalReason = ""
	return inv.attempt
}

func (inv *invocation) attemptCount() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.attempt
}

// Run executes one agent invocation, retrying failed attempts per the
// role's policy. Exactly one Result is returned per call; the error, when
// non-nil, classifies why the invocation did not succeed. Requests beyond
// the concurrency ceiling are rejected immediately.
func (s *Supervisor) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !s.slots.TryAcquire() {
		s.logger.Warn("invocation rejected at concurrency ceiling",
			"task_id", req.TaskID, "limit", s.slots.Limit())
		return nil, errors.NewCapacityError("processes", s.slots.Limit())
	}
	defer s.slots.Release()

	inv := &invocation{
		taskID:    req.TaskID,
		role:      req.Role,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
	if err := s.register(inv); err != nil {
		return nil, err
	}
	// The entry outlives the process: remove only after runAttempt has
	// confirmed the worker terminated, which Execute's return implies.
	defer s.unregister(req.TaskID)

	log := s.logger.WithTask(req.TaskID).WithAgent(req.Role)

	result := &Result{
		TaskID:    req.TaskID,
		Role:      req.Role,
		ExitCode:  -1,
		StartedAt: inv.startedAt,
	}

	var out attemptOutcome
	runErr := s.engine.Execute(ctx, "invoke/"+req.TaskID, s.policyFor(req.Role),
		func(ctx context.Context) error {
			attempt := inv.beginAttempt()
			s.publish(event.NewAgentStartedEvent(req.TaskID, req.Role, req.Model, attempt))
			log.Info("worker starting", "attempt", attempt, "command", req.Command[0])

			var attemptErr error
			out, attemptErr = s.runAttempt(ctx, req, inv)
			return attemptErr
		})

	result.Attempts = inv.attemptCount()
	result.ExitCode = out.exitCode
	result.Signal = out.signal
	result.Output = out.output
	result.Truncated = out.truncated
	result.EndedAt = time.Now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)

	switch {
	case runErr == nil:
		result.Success = true
		result.Reason = out.workerReason
	default:
		result.Reason = errors.Sanitize(runErr.Error())
		result.Stopped = inv.stopRequested()
		result.TimedOut = errors.Is(runErr, errors.ErrTimeout)
	}

	s.publish(event.NewAgentCompletedEvent(req.TaskID, req.Role, result.Success, result.Reason))
	log.Info("invocation finished",
		"success", result.Success,
		"attempts", result.Attempts,
		"exit_code", result.ExitCode,
		"duration", result.Duration)

	return result, runErr
}

// Stop cancels the invocation for taskID out of band: the live worker
// process is terminated with the escalating kill strategy and any pending
// retry delay is abandoned. Returns false, as a no-op, when the task is
// unknown or already terminated.
func (s *Supervisor) Stop(taskID string) bool {
	s.mu.Lock()
	inv := s.active[taskID]
	s.mu.Unlock()

	if inv == nil {
		return false
	}
	if !inv.requestStop() {
		return false
	}

	s.engine.Cancel("invoke/" + taskID)
	s.publish(event.NewAgentStoppedEvent(taskID))
	s.logger.WithTask(taskID).Info("stop requested")
	return true
}

// Active returns a snapshot of the invocation table.
func (s *Supervisor) Active() []ActiveInvocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]ActiveInvocation, 0, len(s.active))
	for _, inv := range s.active {
		snapshot = append(snapshot, ActiveInvocation{
			TaskID:    inv.taskID,
			Role:      inv.role,
			Attempt:   inv.attemptCount(),
			StartedAt: inv.startedAt,
		})
	}
	return snapshot
}

// ActiveCount returns the number of live invocations.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// SetConcurrencyLimit adjusts the invocation ceiling at runtime.
func (s *Supervisor) SetConcurrencyLimit(n int) {
	s.slots.SetLimit(n)
	s.logger.Info("concurrency ceiling updated", "limit", n)
}

// ConcurrencyLimit returns the current invocation ceiling.
func (s *Supervisor) ConcurrencyLimit() int {
	return s.slots.Limit()
}

func (s *Supervisor) register(inv *invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[inv.taskID]; exists {
		return errors.Wrapf(errors.ErrOperationActive, "task %s already has a live invocation", inv.taskID)
	}
	s.active[inv.taskID] = inv
	return nil
}

func (s *Supervisor) unregister(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, taskID)
}

func (s *Supervisor) policyFor(role string) retry.Policy {
	if policy, ok := s.policies[role]; ok {
		return policy
	}
	return s.defaultPol
}

func (s *Supervisor) publish(ev event.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
