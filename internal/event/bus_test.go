package event

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe("agent.started", func(e Event) {
		received = e
	})

	bus.Publish(NewAgentStartedEvent("task-1", "coder", "default", 1))

	if received == nil {
		t.Fatal("handler was not called")
	}
	started, ok := received.(AgentStartedEvent)
	if !ok {
		t.Fatalf("expected AgentStartedEvent, got %T", received)
	}
	if started.TaskID != "task-1" {
		t.Errorf("TaskID = %q, want %q", started.TaskID, "task-1")
	}
	if started.Role != "coder" {
		t.Errorf("Role = %q, want %q", started.Role, "coder")
	}
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Subscribe("retry.attempt", func(Event) { calls++ })

	bus.Publish(NewAgentStoppedEvent("task-1"))
	if calls != 0 {
		t.Errorf("handler called %d times for non-matching event, want 0", calls)
	}

	bus.Publish(NewRetryAttemptEvent("op-1", 2, time.Second, "timeout"))
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()

	var types []string
	bus.SubscribeAll(func(e Event) {
		types = append(types, e.EventType())
	})

	bus.Publish(NewToolInvokedEvent("tool-1", "read_file"))
	bus.Publish(NewDebateStartedEvent("deb-1", "approach", []string{"a", "b"}))

	if len(types) != 2 {
		t.Fatalf("wildcard handler received %d events, want 2", len(types))
	}
	if types[0] != "tool.invoked" || types[1] != "debate.started" {
		t.Errorf("received %v, want [tool.invoked debate.started]", types)
	}
}

func TestSpecificHandlersBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe("tool.running", func(Event) { order = append(order, "specific") })

	bus.Publish(NewToolRunningEvent("tool-1"))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("dispatch order = %v, want [specific wildcard]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	id := bus.Subscribe("agent.stopped", func(Event) { calls++ })

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe() = false, want true")
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe() = true, want false")
	}

	bus.Publish(NewAgentStoppedEvent("task-1"))
	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe, want 0", calls)
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe("breaker.opened", func(Event) { panic("misbehaving subscriber") })
	bus.Subscribe("breaker.opened", func(Event) { called = true })

	bus.Publish(NewBreakerOpenedEvent(0.9, 5*time.Minute))

	if !called {
		t.Error("second handler was not called after first panicked")
	}
}

func TestClearAndSubscriptionCount(t *testing.T) {
	bus := NewBus()

	bus.Subscribe("a", func(Event) {})
	bus.Subscribe("b", func(Event) {})
	bus.SubscribeAll(func(Event) {})

	if got := bus.SubscriptionCount(); got != 3 {
		t.Errorf("SubscriptionCount() = %d, want 3", got)
	}

	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d, want 0", got)
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("tool.running", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Publish(NewToolRunningEvent("tool-1"))
		}()
		go func() {
			defer wg.Done()
			id := bus.Subscribe("other", func(Event) {})
			bus.Unsubscribe(id)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Errorf("handler called %d times, want 10", count)
	}
}

func TestEventTimestamps(t *testing.T) {
	before := time.Now()
	e := NewDebateResolvedEvent("deb-1", "agent-b", 2, 2.0)
	after := time.Now()

	if e.Timestamp().Before(before) || e.Timestamp().After(after) {
		t.Errorf("Timestamp() = %v, want between %v and %v", e.Timestamp(), before, after)
	}
	if e.EventType() != "debate.resolved" {
		t.Errorf("EventType() = %q, want %q", e.EventType(), "debate.resolved")
	}
}
