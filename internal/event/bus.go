// Package event provides the in-process event bus that replaces the ad hoc
// DOM custom-event pub/sub of the admin pages with typed topics.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

type subscriber struct {
	id      uint64
	handler plugin.EventHandler
}

// Bus is a synchronous-by-default publish/subscribe bus. Handlers run in
// subscription order; a panicking handler is logged and skipped.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscriber
	all    []subscriber
	nextID uint64
	logger *zap.Logger
	now    func() time.Time
}

// NewBus creates an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscriber),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers handler for topic and returns its unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[topic]
		for i := range subs {
			if subs[i].id == id {
				b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.all {
			if b.all[i].id == id {
				b.all = append(b.all[:i:i], b.all[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers event to every matching handler before returning.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	for _, h := range b.handlers(event.Topic) {
		b.dispatch(ctx, h, event)
	}
	return nil
}

// PublishAsync delivers event on a separate goroutine per handler.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	for _, h := range b.handlers(event.Topic) {
		go b.dispatch(ctx, h, event)
	}
}

// SubscriberCount returns the number of handlers that would receive topic.
func (b *Bus) SubscriberCount(topic string) int {
	return len(b.handlers(topic))
}

// handlers snapshots the handlers for topic so delivery runs without the lock;
// handlers may subscribe or unsubscribe while being dispatched.
func (b *Bus) handlers(topic string) []plugin.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]plugin.EventHandler, 0, len(b.topics[topic])+len(b.all))
	for _, s := range b.topics[topic] {
		out = append(out, s.handler)
	}
	for _, s := range b.all {
		out = append(out, s.handler)
	}
	return out
}

func (b *Bus) dispatch(ctx context.Context, h plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, event)
}
