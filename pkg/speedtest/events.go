package speedtest

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType discriminates the events a Client publishes.
type EventType string

const (
	EventPhaseChanged    EventType = "phase_changed"
	EventProgressChanged EventType = "progress_changed"
	EventCompleted       EventType = "completed"
	EventCancelled       EventType = "cancelled"
)

// Event is a lightweight, in-memory signal for UI layers.
//
// Contract:
//   - publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
type Event struct {
	Type  EventType
	Time  time.Time
	RunID string

	Phase    Phase
	Progress int
	// Status is a short human-readable transfer note (e.g. "12 MB / 24 MB").
	// Only set on progress events during a transfer.
	Status string

	// Result is set on Completed events.
	Result *Result
}

// eventBus is a simple in-memory fanout. It owns no background goroutines.
type eventBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func newEventBus() *eventBus {
	return &eventBus{subs: map[uint64]chan Event{}}
}

func (b *eventBus) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so publish doesn't hold locks while sending.
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If a subscriber unsubscribes concurrently
		// and the channel closes, recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
