package inproc

import (
	"errors"
	"testing"

	"agentsched/internal/domain"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := New(4)
	err := bus.Publish(domain.ProgressEvent{RunID: "r1"})
	if !errors.Is(err, ErrNoSubscribers) {
		t.Fatalf("expected ErrNoSubscribers, got: %v", err)
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := New(4)
	a := bus.Register("a")
	b := bus.Register("b")

	if err := bus.Publish(domain.ProgressEvent{RunID: "r1", Generation: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan domain.ProgressEvent{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.RunID != "r1" || ev.Generation != 3 {
				t.Fatalf("subscriber %s got %+v", name, ev)
			}
		default:
			t.Fatalf("subscriber %s got no event", name)
		}
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	bus := New(4)
	first := bus.Register("a")
	second := bus.Register("a")
	if first != second {
		t.Fatalf("expected the same channel for repeated registration")
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	bus := New(4)
	ch := bus.Register("a")
	bus.Unregister("a")

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after unregister")
	}
	if err := bus.Publish(domain.ProgressEvent{RunID: "r1"}); !errors.Is(err, ErrNoSubscribers) {
		t.Fatalf("expected ErrNoSubscribers after unregister, got: %v", err)
	}
}

func TestPublishReportsFullQueue(t *testing.T) {
	bus := New(1)
	ch := bus.Register("slow")

	if err := bus.Publish(domain.ProgressEvent{Generation: 1}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := bus.Publish(domain.ProgressEvent{Generation: 2}); !errors.Is(err, ErrSubscriberQueueFull) {
		t.Fatalf("expected ErrSubscriberQueueFull, got: %v", err)
	}

	ev := <-ch
	if ev.Generation != 1 {
		t.Fatalf("expected first event preserved, got %+v", ev)
	}
}
