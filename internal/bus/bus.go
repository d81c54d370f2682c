package bus

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handler is invoked synchronously for each matching event.
type Handler func(Event)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Handlers run synchronously, in registration order, on the publishing
// goroutine, so events observed through the bus keep the order in which the
// transport delivered them. Handlers must not block.
type Bus struct {
	logger *zap.Logger

	mu   sync.Mutex
	subs []*subscription
	next int
}

type subscription struct {
	id        int
	namespace string
	fn        Handler
}

// New creates a new event bus. A nil logger disables logging.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Publish invokes every handler whose namespace is a prefix of event.Kind,
// in the order the handlers were registered. A handler that panics is
// recovered and logged so one bad subscriber cannot tear down the event loop.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			b.invoke(sub.fn, evt)
		}
	}
}

func (b *Bus) invoke(fn Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("kind", evt.Kind),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	fn(evt)
}

// Subscribe registers a handler for events matching the given namespace
// prefix. Returns an unsubscribe function; calling it more than once is safe.
func (b *Bus) Subscribe(namespace string, fn Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, &subscription{id: id, namespace: namespace, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}
