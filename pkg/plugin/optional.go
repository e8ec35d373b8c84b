package plugin

import "context"

// HTTPProvider is implemented by modules that expose HTTP routes.
type HTTPProvider interface {
	Routes() []Route
}

// HealthChecker is implemented by modules that report their health status.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// EventSubscriber is implemented by modules that declare event subscriptions at init.
type EventSubscriber interface {
	Subscriptions() []Subscription
}

// HealthStatus is the result of a module health check.
type HealthStatus struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Subscription binds a topic to a handler.
type Subscription struct {
	Topic   string
	Handler EventHandler
}
