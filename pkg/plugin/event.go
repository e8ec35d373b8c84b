package plugin

import (
	"context"
	"time"
)

// Event is a message carried by the event bus.
type Event struct {
	Topic     string
	Source    string
	Timestamp time.Time
	Payload   any
}

// EventHandler consumes an event.
type EventHandler func(ctx context.Context, event Event)

// EventBus is an in-process publish/subscribe channel. Subscribe functions
// return an unsubscribe callback.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event)
	Subscribe(topic string, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
}
