package workspace

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/internal/table"
)

// CookieName carries the session id.
const CookieName = "welfaredesk_session"

// Defaults for the idle sweep.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

var (
	// ErrUnknownEntity is returned for names missing from the catalog.
	ErrUnknownEntity = errors.New("workspace: unknown entity")
	// ErrClosed is returned by a workspace after Close.
	ErrClosed = errors.New("workspace: closed")
)

// Gauge tracks the number of live workspaces.
type Gauge interface {
	WorkspaceOpened()
	WorkspaceClosed()
}

// Deps are shared by every workspace.
type Deps struct {
	Backend            Backend
	Entities           Entities
	Table              table.Config
	StalePolicy        datastore.StalePolicy
	Logger             *zap.Logger
	SubmissionObserver modal.Observer
	Gauge              Gauge
	IdleTTL            time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Manager creates, finds and expires workspaces.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu   sync.Mutex
	byID map[string]*Workspace
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty Manager.
func NewManager(deps Deps, opts ...Option) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	m := &Manager{deps: deps, now: time.Now, byID: make(map[string]*Workspace)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new workspace.
func (m *Manager) Create() *Workspace {
	w := newWorkspace(uuid.NewString(), &m.deps, m.now())
	m.mu.Lock()
	m.byID[w.id] = w
	m.mu.Unlock()
	if m.deps.Gauge != nil {
		m.deps.Gauge.WorkspaceOpened()
	}
	m.deps.Logger.Debug("workspace created", zap.String("workspace", w.id))
	return w
}

// Get returns the workspace with id and marks it as seen.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.Lock()
	w, ok := m.byID[id]
	m.mu.Unlock()
	if ok {
		w.touch(m.now())
	}
	return w, ok
}

// Lookup returns the workspace named by the request's session cookie.
func (m *Manager) Lookup(r *http.Request) (*Workspace, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	return m.Get(c.Value)
}

// Resolve returns the request's workspace, creating one and setting the
// session cookie when there is none.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) *Workspace {
	if ws, ok := m.Lookup(r); ok {
		return ws
	}
	ws := m.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    ws.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.deps.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return ws
}

// Len is the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Sweep closes the workspaces idle for longer than the idle TTL and
// returns how many it closed.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.deps.IdleTTL)
	var idle []*Workspace
	m.mu.Lock()
	for id, w := range m.byID {
		if w.LastSeen().Before(cutoff) {
			idle = append(idle, w)
			delete(m.byID, id)
		}
	}
	m.mu.Unlock()

	for _, w := range idle {
		w.Close(ctx)
		if m.deps.Gauge != nil {
			m.deps.Gauge.WorkspaceClosed()
		}
	}
	if len(idle) > 0 {
		m.deps.Logger.Info("idle workspaces closed", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// CloseAll closes every workspace.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := m.byID
	m.byID = make(map[string]*Workspace)
	m.mu.Unlock()
	for _, w := range all {
		w.Close(ctx)
		if m.deps.Gauge != nil {
			m.deps.Gauge.WorkspaceClosed()
		}
	}
}
