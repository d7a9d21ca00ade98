package queue_test

import (
	"testing"
	"time"

	"github.com/engramd/engram/internal/queue"
)

func TestEventBus_FanOut(t *testing.T) {
	t.Parallel()

	bus := queue.NewEventBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	if bus.Len() != 2 {
		t.Fatalf("Len = %d, want 2", bus.Len())
	}

	bus.Publish(queue.Event{RequestID: "r1", Success: true, Timestamp: time.Now()})

	for name, ch := range map[string]<-chan queue.Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.RequestID != "r1" {
				t.Errorf("subscriber %s got %q", name, ev.RequestID)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}

func TestEventBus_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	bus := queue.NewEventBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Publish far past the buffer without anyone reading.
		for i := 0; i < 100; i++ {
			bus.Publish(queue.Event{RequestID: "burst"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow consumer")
	}

	// The buffer holds what fit; the rest were dropped.
	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received > 16 {
		t.Errorf("received %d events, want 1..16", received)
	}
}

func TestEventBus_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	bus := queue.NewEventBus()
	ch, cancel := bus.Subscribe()
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
	if bus.Len() != 0 {
		t.Errorf("Len = %d after cancel, want 0", bus.Len())
	}

	// Publishing to an empty bus is a no-op.
	bus.Publish(queue.Event{RequestID: "nobody"})
}
