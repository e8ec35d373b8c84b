package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// Module exposes a Source to the registry: it serves the catalog API and
// keeps an override file watched while running.
type Module struct {
	src    *Source
	settle time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// NewModule wraps src. A zero settle uses DefaultSettle.
func NewModule(src *Source, settle time.Duration) *Module {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Module{src: src, settle: settle, logger: zap.NewNop()}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "catalog",
		Version:     "1.0.0",
		Description: "Entity catalog API and override file watcher",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	if deps.Logger != nil {
		m.logger = deps.Logger
	}
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := m.src.Watch(wctx, m.settle); err != nil {
		cancel()
		return fmt.Errorf("catalog: start watcher: %w", err)
	}
	m.cancel = cancel
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return nil
}

func (m *Module) Routes() []plugin.Route {
	return NewHandler(m.src, m.logger).Routes()
}

func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	source := m.src.Path()
	if source == "" {
		source = "embedded"
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"source":   source,
			"entities": strconv.Itoa(len(m.src.Names())),
		},
	}
}
