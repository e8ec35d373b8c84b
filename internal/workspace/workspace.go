// Package workspace holds the per-browser-session state of the admin front
// end: one event bus, the notification center, the dialogs and a table
// component per visited entity.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/event"
	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/internal/notify"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// Backend is the manage-endpoint client a workspace loads and saves
// through.
type Backend interface {
	datastore.Fetcher
	modal.Submitter
}

// Entities resolves entity definitions.
type Entities interface {
	Get(name string) (*models.Entity, bool)
	All() []models.Entity
}

type mounted struct {
	comp  *table.Component
	unsub func()
}

// Workspace is one browser session.
type Workspace struct {
	id      string
	deps    *Deps
	logger  *zap.Logger
	bus     *event.Bus
	notices *notify.Center
	modals  *modal.Manager

	mu        sync.Mutex
	tables    map[string]*mounted
	active    string
	collapsed bool
	lastSeen  time.Time
	repaint   map[uint64]func(table.Frame)
	nextSub   uint64
	closed    bool
	unsubs    []func()
}

func newWorkspace(id string, deps *Deps, now time.Time) *Workspace {
	logger := deps.Logger.With(zap.String("workspace", id))
	bus := event.NewBus(logger.Named("bus"))
	notices := notify.NewCenter(bus, logger.Named("notify"))
	w := &Workspace{
		id:       id,
		deps:     deps,
		logger:   logger,
		bus:      bus,
		notices:  notices,
		tables:   make(map[string]*mounted),
		lastSeen: now,
		repaint:  make(map[uint64]func(table.Frame)),
	}
	w.modals = modal.NewManager(modal.Deps{
		Submitter: deps.Backend,
		Bus:       bus,
		Notifier:  notices,
		Logger:    logger.Named("modal"),
		Observer:  deps.SubmissionObserver,
	})
	w.unsubs = append(w.unsubs,
		bus.Subscribe(event.TopicSidebarToggle, func(context.Context, plugin.Event) {
			w.mu.Lock()
			w.collapsed = !w.collapsed
			w.mu.Unlock()
		}),
		bus.Subscribe(event.TopicNavigateTo, func(_ context.Context, e plugin.Event) {
			if p, ok := e.Payload.(event.NavigatePayload); ok {
				w.mu.Lock()
				w.active = p.Entity
				w.mu.Unlock()
			}
		}),
	)
	return w
}

// ID is the session id.
func (w *Workspace) ID() string { return w.id }

// Bus is the session-scoped event bus.
func (w *Workspace) Bus() plugin.EventBus { return w.bus }

// Notices is the session's notification center.
func (w *Workspace) Notices() *notify.Center { return w.notices }

// Modals is the session's dialog manager.
func (w *Workspace) Modals() *modal.Manager { return w.modals }

// Entities is the catalog the workspace resolves names against.
func (w *Workspace) Entities() Entities { return w.deps.Entities }

// Table returns the component for entity, mounting it (and fetching its
// records) on first use.
func (w *Workspace) Table(ctx context.Context, name string) (*table.Component, error) {
	entity, ok := w.deps.Entities.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	if m, ok := w.tables[name]; ok {
		w.mu.Unlock()
		return m.comp, nil
	}
	logger := w.logger.Named("table").With(zap.String("entity", name))
	store := datastore.New(entity, w.deps.Backend, logger,
		datastore.WithPolicy(w.deps.StalePolicy),
		datastore.WithNotifier(w.notices),
	)
	comp := table.NewComponent(store, w.deps.Table, logger)
	comp.OnRepaint(w.forward)
	w.tables[name] = &mounted{comp: comp, unsub: store.Subscribe(w.bus)}
	w.mu.Unlock()

	comp.Mount(ctx)
	return comp, nil
}

// Mounted returns the component for entity if it was already mounted.
func (w *Workspace) Mounted(name string) (*table.Component, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.tables[name]
	if !ok {
		return nil, false
	}
	return m.comp, true
}

// Refresh asks entity's table to refetch, the same way a saved dialog does.
func (w *Workspace) Refresh(ctx context.Context, name string) error {
	if _, err := w.Table(ctx, name); err != nil {
		return err
	}
	return w.bus.Publish(ctx, plugin.Event{
		Topic:   event.RefreshTopic(name),
		Source:  "workspace",
		Payload: event.NavigatePayload{Entity: name},
	})
}

// Navigate marks entity as the visible page.
func (w *Workspace) Navigate(ctx context.Context, name string) {
	_ = w.bus.Publish(ctx, plugin.Event{
		Topic:   event.TopicNavigateTo,
		Source:  "workspace",
		Payload: event.NavigatePayload{Entity: name},
	})
}

// Active is the entity last navigated to.
func (w *Workspace) Active() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// ToggleSidebar flips the sidebar between expanded and collapsed.
func (w *Workspace) ToggleSidebar(ctx context.Context) {
	_ = w.bus.Publish(ctx, plugin.Event{Topic: event.TopicSidebarToggle, Source: "workspace"})
}

// SidebarCollapsed reports the sidebar state.
func (w *Workspace) SidebarCollapsed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collapsed
}

// OnRepaint registers fn for every table frame repainted in this
// workspace and returns a function that removes it.
func (w *Workspace) OnRepaint(fn func(table.Frame)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSub++
	id := w.nextSub
	w.repaint[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.repaint, id)
	}
}

// OnNotice registers fn for every notification pushed in this workspace.
func (w *Workspace) OnNotice(fn func(notify.Notification)) func() {
	return w.bus.Subscribe(event.TopicNotification, func(_ context.Context, e plugin.Event) {
		if n, ok := e.Payload.(notify.Notification); ok {
			fn(n)
		}
	})
}

func (w *Workspace) forward(f table.Frame) {
	w.mu.Lock()
	fns := make([]func(table.Frame), 0, len(w.repaint))
	for _, fn := range w.repaint {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(f)
	}
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// LastSeen is when the session last made a request.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Close dismisses the dialogs, stops every table and drops all
// subscriptions.
func (w *Workspace) Close(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	tables := w.tables
	w.tables = map[string]*mounted{}
	unsubs := w.unsubs
	w.unsubs = nil
	w.repaint = map[uint64]func(table.Frame){}
	w.mu.Unlock()

	w.modals.CloseAll(ctx)
	for _, m := range tables {
		m.unsub()
		m.comp.Close()
	}
	for _, u := range unsubs {
		u()
	}
	w.logger.Debug("workspace closed")
}
