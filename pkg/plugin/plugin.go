// Package plugin defines the contracts shared by WelfareDesk modules: the
// module lifecycle, the event bus, persistence and HTTP route registration.
package plugin

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Module contract versions understood by the registry.
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// PluginInfo describes a module.
type PluginInfo struct {
	Name         string
	Version      string
	Description  string
	Dependencies []string
	// Required modules abort startup when they cannot run; optional ones
	// are disabled instead.
	Required   bool
	APIVersion int
}

// Dependencies are injected into a module at Init.
type Dependencies struct {
	Logger *zap.Logger
	Bus    EventBus
}

// Plugin is implemented by every WelfareDesk module.
type Plugin interface {
	// Info returns the module's identity.
	Info() PluginInfo

	// Init wires the module with its dependencies.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins background work.
	Start(ctx context.Context) error

	// Stop releases resources.
	Stop(ctx context.Context) error
}

// Route represents an HTTP route exposed by a module. Path is a full
// http.ServeMux pattern path (e.g. "/admin/{entity}").
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}
