package inproc

import (
	"errors"
	"sync"

	"agentsched/internal/domain"
)

var (
	ErrNoSubscribers       = errors.New("no subscribers registered on bus")
	ErrSubscriberQueueFull = errors.New("subscriber queue is full")
)

// Bus fans progress events out to every registered subscriber. Delivery is
// non-blocking; a full subscriber queue drops the event for that subscriber.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan domain.ProgressEvent
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[string]chan domain.ProgressEvent),
		buffer: buffer,
	}
}

func (b *Bus) Register(subscriberID string) <-chan domain.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[subscriberID]; ok {
		return ch
	}
	ch := make(chan domain.ProgressEvent, b.buffer)
	b.subs[subscriberID] = ch
	return ch
}

func (b *Bus) Unregister(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[subscriberID]
	if !ok {
		return
	}
	delete(b.subs, subscriberID)
	close(ch)
}

func (b *Bus) Publish(ev domain.ProgressEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subs) == 0 {
		return ErrNoSubscribers
	}

	var dropped bool
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			dropped = true
		}
	}
	if dropped {
		return ErrSubscriberQueueFull
	}
	return nil
}
