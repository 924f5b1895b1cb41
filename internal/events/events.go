package events

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	KindStarted   Kind = "session.started"
	KindRefreshed Kind = "session.refreshed"
	KindExpired   Kind = "session.expired"
	KindEnded     Kind = "session.ended"
)

// Event records a session transition. RedirectTo names where the UI should
// navigate; the core never navigates itself.
type Event struct {
	Kind       Kind      `json:"kind"`
	UserID     int64     `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	RedirectTo string    `json:"redirect_to,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

type Listener interface {
	HandleSessionEvent(ctx context.Context, e Event)
}

type ListenerFunc func(ctx context.Context, e Event)

func (f ListenerFunc) HandleSessionEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Bus delivers events to listeners synchronously, in subscription order.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
	now       func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Subscribe registers l and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.listeners, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l.HandleSessionEvent(ctx, e)
	}
}
