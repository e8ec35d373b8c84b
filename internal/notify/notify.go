// Package notify keeps the transient toast notifications and the global
// loading overlay of one admin workspace.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/event"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 4 * time.Second

// Notification is one toast.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center collects notifications and the loading overlay depth.
type Center struct {
	bus    plugin.EventBus
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	items   []Notification
	loading int
}

// Option configures a Center.
type Option func(*Center)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Center) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// NewCenter creates a Center publishing on bus. bus may be nil.
func NewCenter(bus plugin.EventBus, logger *zap.Logger, opts ...Option) *Center {
	c := &Center{bus: bus, logger: logger, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push records a notification and publishes it on the notification topic.
func (c *Center) Push(ctx context.Context, kind Kind, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.items = append(c.pruneLocked(now), n)
	c.mu.Unlock()

	if kind == KindError {
		c.logger.Warn("notification", zap.String("kind", string(kind)), zap.String("message", message))
	} else {
		c.logger.Debug("notification", zap.String("kind", string(kind)), zap.String("message", message))
	}
	if c.bus != nil {
		c.bus.PublishAsync(ctx, plugin.Event{
			Topic:   event.TopicNotification,
			Source:  "notify",
			Payload: n,
		})
	}
	return n
}

// Success pushes a success toast.
func (c *Center) Success(ctx context.Context, message string) { c.Push(ctx, KindSuccess, message) }

// Error pushes an error toast.
func (c *Center) Error(ctx context.Context, message string) { c.Push(ctx, KindError, message) }

// Info pushes an informational toast.
func (c *Center) Info(ctx context.Context, message string) { c.Push(ctx, KindInfo, message) }

// Active returns the unexpired notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = c.pruneLocked(c.now())
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Dismiss removes the notification with id. It reports whether it existed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) pruneLocked(now time.Time) []Notification {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	return kept
}

// BeginLoading raises the loading overlay and returns the function that
// lowers it. The returned function is safe to call more than once; only
// the first call has an effect.
func (c *Center) BeginLoading() (end func()) {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.loading--
			c.mu.Unlock()
		})
	}
}

// Loading reports whether the overlay is shown.
func (c *Center) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}
