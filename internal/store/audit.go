package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// queueSize bounds pending writes between the bus and the writer
// goroutine. The bus is synchronous; publishers must not block on disk.
const queueSize = 1024

// AuditRecord is one persisted event.
type AuditRecord struct {
	ID          int64
	EventType   string
	PayloadJSON string
	CreatedAt   time.Time
}

// Audit subscribes to an event bus and persists every published event.
// Writes happen on a background goroutine; a full queue drops the event
// and counts the drop rather than blocking the publisher.
type Audit struct {
	db     *sql.DB
	logger *logging.Logger

	queue chan AuditRecord
	done  chan struct{}

	mu      sync.Mutex
	subID   string
	bus     *event.Bus
	dropped int64
	closed  bool
}

// AuditOption configures an Audit.
type AuditOption func(*Audit)

// WithLogger sets the logger used for write failures and drop reporting.
func WithLogger(logger *logging.Logger) AuditOption {
	return func(a *Audit) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAudit creates an audit writer over an open database and starts its
// writer goroutine. Call Close to flush and stop.
func NewAudit(db *sql.DB, opts ...AuditOption) *Audit {
	a := &Audit{
		db:     db,
		logger: logging.NopLogger(),
		queue:  make(chan AuditRecord, queueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.writeLoop()
	return a
}

// Attach subscribes to every event on the bus. One audit instance
// observes one bus at a time.
func (a *Audit) Attach(bus *event.Bus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bus != nil {
		a.bus.Unsubscribe(a.subID)
	}
	a.bus = bus
	a.subID = bus.SubscribeAll(a.observe)
}

// observe converts a bus event into a pending audit record. Marshal
// failures and queue overflow are counted, never propagated: the audit
// trail must not interfere with the operation it records.
func (a *Audit) observe(e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		payload = []byte("{}")
	}

	rec := AuditRecord{
		EventType:   e.EventType(),
		PayloadJSON: string(payload),
		CreatedAt:   e.Timestamp(),
	}

	// The closed check and the send share the lock so Close cannot shut
	// the queue between them.
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	select {
	case a.queue <- rec:
		a.mu.Unlock()
	default:
		a.dropped++
		dropped := a.dropped
		a.mu.Unlock()
		a.logger.Warn("audit queue full, event dropped",
			"event_type", rec.EventType, "dropped_total", dropped)
	}
}

func (a *Audit) writeLoop() {
	defer close(a.done)
	for rec := range a.queue {
		if err := a.insert(context.Background(), rec); err != nil {
			a.logger.Error("audit write failed",
				"event_type", rec.EventType, "error", err)
		}
	}
}

func (a *Audit) insert(ctx context.Context, rec AuditRecord) error {
	const q = `INSERT INTO audit_events (event_type, payload_json, created_at)
VALUES (?, ?, ?)`
	_, err := a.db.ExecContext(ctx, q, rec.EventType, rec.PayloadJSON, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Dropped reports how many events were discarded because the queue was full.
func (a *Audit) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close detaches from the bus, flushes pending writes, and stops the
// writer goroutine. The database handle is left open for the caller.
func (a *Audit) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.bus != nil {
		a.bus.Unsubscribe(a.subID)
		a.bus = nil
	}
	a.mu.Unlock()

	close(a.queue)
	<-a.done
}

// Recent returns the most recently recorded events, newest first.
func Recent(ctx context.Context, db *sql.DB, limit int) ([]AuditRecord, error) {
	const q = `SELECT id, event_type, payload_json, created_at
FROM audit_events
ORDER BY id DESC
LIMIT ?`
	return queryRecords(ctx, db, q, limit)
}

// ListByType returns the most recent events of one type, newest first.
func ListByType(ctx context.Context, db *sql.DB, eventType string, limit int) ([]AuditRecord, error) {
	const q = `SELECT id, event_type, payload_json, created_at
FROM audit_events
WHERE event_type = ?
ORDER BY id DESC
LIMIT ?`
	return queryRecords(ctx, db, q, eventType, limit)
}

// CountByType returns per-event-type counts over the whole trail.
func CountByType(ctx context.Context, db *sql.DB) (map[string]int64, error) {
	const q = `SELECT event_type, COUNT(*) FROM audit_events GROUP BY event_type`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var n int64
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}

func queryRecords(ctx context.Context, db *sql.DB, q string, args ...any) ([]AuditRecord, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
