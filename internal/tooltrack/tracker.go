// Package tooltrack reconstructs the lifecycle of every discrete tool
// action a worker takes, from the content stream the supervisor parses.
//
// Tool events move pending → running → success/error; transitions out of a
// terminal status never happen. History is a fixed-capacity window so
// memory stays bounded regardless of run length, and every returned
// collection is a defensive copy. Input originates from an untrusted worker
// process: unknown IDs and malformed records are logged and ignored, never
// surfaced to the caller.
package tooltrack

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
	"github.com/Iron-Ham/quorum/internal/protocol"
)

// DefaultHistoryCapacity bounds retained completed tool events.
const DefaultHistoryCapacity = 1000

// maxTrackedNames bounds distinct keys in the per-tool frequency map. A
// worker inventing unique tool names must not grow tracker memory without
// bound; names past the cap still count toward totals, just not toward
// the top-tool ranking.
const maxTrackedNames = 512

// Status is a tool event lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// ToolEvent records one discrete worker action.
type ToolEvent struct {
	ID          string
	Name        string
	Status      Status
	Input       json.RawMessage
	Output      string
	CreatedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// Statistics is a point-in-time projection of tracked tool activity.
// AverageDuration covers resolved events only.
type Statistics struct {
	TotalInvocations int
	SuccessCount     int
	ErrorCount       int
	ActiveCount      int
	AverageDuration  time.Duration
	TopTool          string
}

// Tracker ingests worker content records and maintains the active set,
// bounded history, and rolling statistics. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	active   map[string]*ToolEvent
	history  []ToolEvent
	capacity int

	total       int
	successes   int
	errors      int
	durationSum time.Duration
	resolved    int
	nameCounts  map[string]int

	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBus sets the event bus tool events are published to.
func WithBus(bus *event.Bus) Option {
	return func(t *Tracker) { t.bus = bus }
}

// WithCapacity sets the history capacity. Values below 1 keep the default.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		active:     make(map[string]*ToolEvent),
		capacity:   DefaultHistoryCapacity,
		nameCounts: make(map[string]int),
		logger:     logging.NopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnAssistantContent extracts tool invocations from an assistant content
// fragment, creating a pending event per tool_use block. Blocks without an
// ID or name are logged and skipped.
func (t *Tracker) OnAssistantContent(blocks []protocol.ContentBlock) {
	for _, block := range blocks {
		if block.Type != protocol.BlockToolUse {
			continue
		}
		if block.ID == "" || block.Name == "" {
			t.logger.Warn("skipping tool invocation without id or name", "name", block.Name)
			continue
		}
		t.invoke(block)
	}
}

func (t *Tracker) invoke(block protocol.ContentBlock) {
	t.mu.Lock()
	if _, exists := t.active[block.ID]; exists {
		t.mu.Unlock()
		t.logger.Warn("duplicate tool invocation id", "tool_id", block.ID)
		return
	}

	var input json.RawMessage
	if len(block.Input) > 0 {
		input = append(json.RawMessage(nil), block.Input...)
	}
	t.active[block.ID] = &ToolEvent{
		ID:        block.ID,
		Name:      block.Name,
		Status:    StatusPending,
		Input:     input,
		CreatedAt: t.now(),
	}
	t.total++
	if _, known := t.nameCounts[block.Name]; known || len(t.nameCounts) < maxTrackedNames {
		t.nameCounts[block.Name]++
	}
	t.mu.Unlock()

	t.publish(event.NewToolInvokedEvent(block.ID, block.Name))
}

// MarkRunning transitions a pending tool to running, for finer-grained
// progress display. Any other starting status leaves the event untouched.
func (t *Tracker) MarkRunning(toolID string) {
	t.mu.Lock()
	ev, ok := t.active[toolID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("mark running for unknown tool id", "tool_id", toolID)
		return
	}
	if ev.Status != StatusPending {
		t.mu.Unlock()
		return
	}
	ev.Status = StatusRunning
	t.mu.Unlock()

	t.publish(event.NewToolRunningEvent(toolID))
}

// OnToolResult resolves a tool by ID, computes its duration, and moves it
// from the active set into history. Unknown IDs are logged and ignored.
func (t *Tracker) OnToolResult(rec protocol.Record) {
	t.mu.Lock()
	ev, ok := t.active[rec.ToolID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("result for unknown tool id", "tool_id", rec.ToolID)
		return
	}
	delete(t.active, rec.ToolID)

	if rec.IsError {
		ev.Status = StatusError
		t.errors++
	} else {
		ev.Status = StatusSuccess
		t.successes++
	}
	ev.Output = rec.Output
	ev.CompletedAt = t.now()
	ev.Duration = ev.CompletedAt.Sub(ev.CreatedAt)
	t.durationSum += ev.Duration
	t.resolved++

	t.history = append(t.history, *ev)
	if len(t.history) > t.capacity {
		t.history = t.history[len(t.history)-t.capacity:]
	}

	completed := event.NewToolCompletedEvent(ev.ID, ev.Name, rec.IsError, ev.Duration)
	stats := t.statisticsLocked()
	t.mu.Unlock()

	t.publish(completed)
	t.publish(event.NewToolStatsEvent(
		stats.TotalInvocations, stats.SuccessCount, stats.ErrorCount,
		stats.ActiveCount, stats.AverageDuration, stats.TopTool))
}

// Active returns a copy of the in-flight tool events keyed by ID.
func (t *Tracker) Active() map[string]ToolEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make(map[string]ToolEvent, len(t.active))
	for id, ev := range t.active {
		snapshot[id] = copyEvent(*ev)
	}
	return snapshot
}

// History returns a copy of completed events, oldest first.
func (t *Tracker) History() []ToolEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]ToolEvent, len(t.history))
	for i, ev := range t.history {
		snapshot[i] = copyEvent(ev)
	}
	return snapshot
}

// copyEvent deep-copies a ToolEvent. The struct copy still aliases the
// Input bytes, so those are cloned too.
func copyEvent(ev ToolEvent) ToolEvent {
	if len(ev.Input) > 0 {
		ev.Input = append(json.RawMessage(nil), ev.Input...)
	}
	return ev
}

// Statistics returns the current activity projection.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statisticsLocked()
}

func (t *Tracker) statisticsLocked() Statistics {
	stats := Statistics{
		TotalInvocations: t.total,
		SuccessCount:     t.successes,
		ErrorCount:       t.errors,
		ActiveCount:      len(t.active),
	}
	if t.resolved > 0 {
		stats.AverageDuration = t.durationSum / time.Duration(t.resolved)
	}

	top, topCount := "", 0
	for name, count := range t.nameCounts {
		if count > topCount || (count == topCount && name < top) {
			top, topCount = name, count
		}
	}
	stats.TopTool = top
	return stats
}

func (t *Tracker) publish(ev event.Event) {
	if t.bus != nil {
		t.bus.Publish(ev)
	}
}
