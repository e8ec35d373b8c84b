// Package registry manages the lifecycle of WelfareDesk modules: dependency
// ordering, contract version checks, init/start/stop and route collection.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// Registry holds the registered modules.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	order    []string
	disabled map[string]string
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		disabled: make(map[string]string),
		logger:   logger,
	}
}

// Register adds a module. Names must be unique and non-empty.
func (r *Registry) Register(p plugin.Plugin) error {
	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("module with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("module %q already registered", info.Name)
	}
	r.plugins[info.Name] = p
	r.order = append(r.order, info.Name)
	r.logger.Info("module registered", zap.String("name", info.Name), zap.String("version", info.Version))
	return nil
}

// Validate checks contract versions and dependencies and sorts modules so
// each starts after the modules it depends on. Optional modules with an
// unusable version or a missing dependency are disabled, and so are the
// modules depending on them; required ones fail validation.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		info := r.plugins[name].Info()
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			reason := fmt.Sprintf("api version %d outside [%d, %d]", info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
			if info.Required {
				return fmt.Errorf("module %q: %s", name, reason)
			}
			r.disableLocked(name, reason)
		}
	}

	// Missing dependencies, repeated until no more modules get disabled.
	for changed := true; changed; {
		changed = false
		for _, name := range r.order {
			if _, off := r.disabled[name]; off {
				continue
			}
			info := r.plugins[name].Info()
			for _, dep := range info.Dependencies {
				_, exists := r.plugins[dep]
				_, depOff := r.disabled[dep]
				if exists && !depOff {
					continue
				}
				reason := fmt.Sprintf("dependency %q unavailable", dep)
				if info.Required {
					return fmt.Errorf("module %q: %s", name, reason)
				}
				r.disableLocked(name, reason)
				changed = true
				break
			}
		}
	}

	sorted, err := r.topoSortLocked()
	if err != nil {
		return err
	}
	r.order = sorted
	return nil
}

// topoSortLocked orders modules dependencies-first, keeping registration
// order among independent modules.
func (r *Registry) topoSortLocked() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.order))
	index := make(map[string]int, len(r.order))
	for i, n := range r.order {
		index[n] = i
	}
	out := make([]string, 0, len(r.order))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle: %v", append(path, name))
		}
		state[name] = visiting
		deps := append([]string(nil), r.plugins[name].Info().Dependencies...)
		sort.SliceStable(deps, func(i, j int) bool { return index[deps[i]] < index[deps[j]] })
		for _, dep := range deps {
			if _, ok := r.plugins[dep]; !ok {
				continue
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		out = append(out, name)
		return nil
	}
	for _, name := range r.order {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) disableLocked(name, reason string) {
	r.disabled[name] = reason
	r.logger.Warn("module disabled", zap.String("name", name), zap.String("reason", reason))
}

// IsDisabled reports whether name was disabled during Validate or Init.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.disabled[name]
	return off
}

// InitAll initializes enabled modules in dependency order with the
// dependencies deps returns for each.
func (r *Registry) InitAll(ctx context.Context, deps func(name string) plugin.Dependencies) error {
	for _, p := range r.enabled() {
		info := p.Info()
		r.logger.Info("initializing module", zap.String("name", info.Name))
		if err := p.Init(ctx, deps(info.Name)); err != nil {
			if info.Required {
				return fmt.Errorf("init module %q: %w", info.Name, err)
			}
			r.mu.Lock()
			r.disableLocked(info.Name, "init failed: "+err.Error())
			r.mu.Unlock()
		}
	}
	return nil
}

// StartAll starts enabled modules in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, p := range r.enabled() {
		name := p.Info().Name
		r.logger.Info("starting module", zap.String("name", name))
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start module %q: %w", name, err)
		}
	}
	return nil
}

// StopAll stops enabled modules in reverse order, logging failures.
func (r *Registry) StopAll(ctx context.Context) {
	mods := r.enabled()
	for i := len(mods) - 1; i >= 0; i-- {
		name := mods[i].Info().Name
		r.logger.Info("stopping module", zap.String("name", name))
		if err := mods[i].Stop(ctx); err != nil {
			r.logger.Error("failed to stop module", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns a module by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// All returns every registered module in the current order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// AllRoutes returns the routes of enabled modules that serve HTTP, keyed
// by module name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	routes := make(map[string][]plugin.Route)
	for _, p := range r.enabled() {
		if hp, ok := p.(plugin.HTTPProvider); ok {
			if rs := hp.Routes(); len(rs) > 0 {
				routes[p.Info().Name] = rs
			}
		}
	}
	return routes
}

// Health collects the status of every enabled module that reports one.
func (r *Registry) Health(ctx context.Context) map[string]plugin.HealthStatus {
	out := make(map[string]plugin.HealthStatus)
	for _, p := range r.enabled() {
		if hc, ok := p.(plugin.HealthChecker); ok {
			out[p.Info().Name] = hc.Health(ctx)
		}
	}
	return out
}

func (r *Registry) enabled() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if _, off := r.disabled[name]; !off {
			out = append(out, r.plugins[name])
		}
	}
	return out
}
