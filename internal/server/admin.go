package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/internal/live"
	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/internal/view"
	"github.com/HerbHall/welfaredesk/internal/workspace"
	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// maxFormBytes bounds a modal submission: the largest accepted upload
// plus room for the text fields.
const maxFormBytes = modal.MaxPDFBytes + 1<<20

// fileURLExpiry is how long presigned attachment links stay valid.
const fileURLExpiry = 15 * time.Minute

// AdminConfig configures the admin module.
type AdminConfig struct {
	Workspaces *workspace.Manager
	// Files serves GET /files/{key}. Nil disables the route.
	Files         attachments.Store
	SweepInterval time.Duration
	// Origins are extra host patterns allowed to open /ws cross-origin.
	Origins []string
}

// Admin serves the admin pages, the dialog actions, the live channel and
// stored attachments. Every request is bound to the caller's workspace.
type Admin struct {
	ws      *workspace.Manager
	files   attachments.Store
	sweep   time.Duration
	origins []string
	hub     *live.Hub
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	_ plugin.Plugin        = (*Admin)(nil)
	_ plugin.HTTPProvider  = (*Admin)(nil)
	_ plugin.HealthChecker = (*Admin)(nil)
)

// NewAdmin creates the admin module.
func NewAdmin(cfg AdminConfig) *Admin {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = workspace.DefaultSweepInterval
	}
	a := &Admin{
		ws:      cfg.Workspaces,
		files:   cfg.Files,
		sweep:   cfg.SweepInterval,
		origins: cfg.Origins,
		logger:  zap.NewNop(),
	}
	a.hub = live.NewHub(cfg.Workspaces, a.logger, cfg.Origins...)
	return a
}

func (a *Admin) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "admin",
		Version:      "1.0.0",
		Description:  "Admin pages, dialogs and live updates",
		Dependencies: []string{"catalog"},
		Required:     true,
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (a *Admin) Init(_ context.Context, deps plugin.Dependencies) error {
	if a.ws == nil {
		return errors.New("admin: workspace manager is required")
	}
	if deps.Logger != nil {
		a.logger = deps.Logger
		a.hub = live.NewHub(a.ws, deps.Logger.Named("live"), a.origins...)
	}
	return nil
}

// Start runs the idle-workspace sweep.
func (a *Admin) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	a.cancel, a.done = cancel, done
	go func() {
		defer close(done)
		a.ws.Run(sctx, a.sweep)
	}()
	return nil
}

// Stop ends the sweep and closes every workspace.
func (a *Admin) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	a.ws.CloseAll(ctx)
	return nil
}

func (a *Admin) Health(context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"workspaces":       strconv.Itoa(a.ws.Len()),
			"live_connections": strconv.Itoa(a.hub.Connections()),
		},
	}
}

func (a *Admin) Routes() []plugin.Route {
	routes := []plugin.Route{
		{Method: "GET", Path: view.Base, Handler: a.handleIndex},
		{Method: "GET", Path: view.Base + "/{entity}", Handler: a.handleTable},
		{Method: "POST", Path: view.Base + "/sidebar", Handler: a.handleSidebar},
		{Method: "POST", Path: view.Base + "/{entity}/refresh", Handler: a.handleRefresh},
		{Method: "POST", Path: view.Base + "/{entity}/modals", Handler: a.handleOpen},
		{Method: "POST", Path: view.Base + "/{entity}/modals/{id}/submit", Handler: a.handleSubmit},
		{Method: "POST", Path: view.Base + "/{entity}/modals/{id}/close", Handler: a.handleClose},
		{Method: "POST", Path: view.Base + "/{entity}/modals/{id}/confirm", Handler: a.handleConfirm},
		{Method: "POST", Path: view.Base + "/{entity}/modals/{id}/cancel", Handler: a.handleCancel},
		{Method: "GET", Path: "/ws", Handler: a.hub.ServeHTTP},
	}
	if a.files != nil {
		routes = append(routes, plugin.Route{Method: "GET", Path: view.FilesBase + "/{key...}", Handler: a.handleFile})
	}
	return routes
}

func (a *Admin) handleIndex(w http.ResponseWriter, r *http.Request) {
	ws := a.ws.Resolve(w, r)
	target := ws.Active()
	if target == "" {
		all := ws.Entities().All()
		if len(all) == 0 {
			NotFound(w, "no entities configured", r.URL.Path)
			return
		}
		target = all[0].Name
	}
	http.Redirect(w, r, tableURL(target), http.StatusSeeOther)
}

// handleTable renders an entity page. Query parameters drive the toolbar:
// search, one key per categorical filter, sort, reset, page and rows.
func (a *Admin) handleTable(w http.ResponseWriter, r *http.Request) {
	ws, comp, ok := a.table(w, r)
	if !ok {
		return
	}
	ws.Navigate(r.Context(), comp.Entity().Name)

	q := r.URL.Query()
	if q.Has("reset") {
		comp.ResetFilters()
	} else {
		for _, f := range comp.Entity().Filters {
			if q.Has(f.Key) {
				comp.SetFilter(f.Key, q.Get(f.Key))
			}
		}
		if q.Has("sort") {
			comp.SetSort(q.Get("sort"))
		}
		if q.Has("search") {
			s := comp.Search()
			s.Type(q.Get("search"))
			s.Enter()
		}
	}
	// No live channel is guaranteed here; answer with the filtered rows.
	comp.Settle()
	if n, err := strconv.Atoi(q.Get("rows")); err == nil {
		comp.SetRowsPerPage(n)
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		comp.GoToPage(n)
	}

	a.render(w, ws, comp)
}

func (a *Admin) handleSidebar(w http.ResponseWriter, r *http.Request) {
	ws := a.ws.Resolve(w, r)
	ws.ToggleSidebar(r.Context())
	back := view.Base
	if active := ws.Active(); active != "" {
		back = tableURL(active)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (a *Admin) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ws, comp, ok := a.table(w, r)
	if !ok {
		return
	}
	if err := ws.Refresh(r.Context(), comp.Entity().Name); err != nil {
		a.logger.Warn("refresh failed", zap.String("entity", comp.Entity().Name), zap.Error(err))
	}
	http.Redirect(w, r, tableURL(comp.Entity().Name), http.StatusSeeOther)
}

func (a *Admin) handleOpen(w http.ResponseWriter, r *http.Request) {
	ws, comp, ok := a.table(w, r)
	if !ok {
		return
	}
	e := comp.Entity()
	kind, ok := modal.ParseKind(r.FormValue("kind"))
	if !ok {
		BadRequest(w, "unknown dialog kind "+strconv.Quote(r.FormValue("kind")), r.URL.Path)
		return
	}
	var record models.Record
	if kind == modal.KindView {
		rec, found := comp.Store().Get(r.FormValue("id"))
		if !found {
			NotFound(w, fmt.Sprintf("%s record %q not found", e.Name, r.FormValue("id")), r.URL.Path)
			return
		}
		record = rec
	}
	if _, err := ws.Modals().Open(r.Context(), e, kind, record); err != nil {
		if errors.Is(err, modal.ErrNotAddable) {
			Conflict(w, err.Error(), r.URL.Path)
			return
		}
		a.logger.Error("open dialog failed", zap.String("entity", e.Name), zap.Error(err))
		InternalError(w, "could not open dialog", r.URL.Path)
		return
	}
	http.Redirect(w, r, tableURL(e.Name), http.StatusSeeOther)
}

// handleSubmit copies the posted form into the dialog and asks for
// confirmation. Validation failures are shown inside the dialog.
func (a *Admin) handleSubmit(w http.ResponseWriter, r *http.Request) {
	m, ok := a.dialog(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		BadRequest(w, "unreadable form: "+err.Error(), r.URL.Path)
		return
	}
	e := m.Entity()
	for _, f := range modal.FormFields(e) {
		if !r.Form.Has(f) {
			continue
		}
		if err := m.SetField(f, r.Form.Get(f)); err != nil {
			a.transitionError(w, r, err)
			return
		}
	}
	if e.FileField != "" {
		if ok := a.selectFile(w, r, m); !ok {
			return
		}
	}

	err := m.Submit(r.Context())
	var verr *modal.ValidationError
	if err != nil && !errors.As(err, &verr) {
		a.transitionError(w, r, err)
		return
	}
	http.Redirect(w, r, tableURL(e.Name), http.StatusSeeOther)
}

func (a *Admin) selectFile(w http.ResponseWriter, r *http.Request, m *modal.Modal) bool {
	file, hdr, err := r.FormFile(m.Entity().FileField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return true
	}
	if err != nil {
		BadRequest(w, "unreadable file: "+err.Error(), r.URL.Path)
		return false
	}
	defer file.Close()
	if hdr.Size == 0 {
		return true
	}
	data, err := io.ReadAll(file)
	if err != nil {
		BadRequest(w, "unreadable file: "+err.Error(), r.URL.Path)
		return false
	}
	err = m.SelectFile(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), data)
	var verr *modal.ValidationError
	if err != nil && !errors.As(err, &verr) {
		a.transitionError(w, r, err)
		return false
	}
	return true
}

func (a *Admin) handleClose(w http.ResponseWriter, r *http.Request) {
	m, ok := a.dialog(w, r)
	if !ok {
		return
	}
	m.RequestClose(r.Context())
	http.Redirect(w, r, tableURL(m.Entity().Name), http.StatusSeeOther)
}

// handleConfirm answers the save confirmation (answer=yes|no). A failed
// save leaves the dialog open with the server's message.
func (a *Admin) handleConfirm(w http.ResponseWriter, r *http.Request) {
	m, ok := a.dialog(w, r)
	if !ok {
		return
	}
	yes, ok := answer(w, r, "yes", "no")
	if !ok {
		return
	}
	if err := m.Confirm(r.Context(), yes); errors.Is(err, modal.ErrInvalidTransition) {
		a.transitionError(w, r, err)
		return
	}
	http.Redirect(w, r, tableURL(m.Entity().Name), http.StatusSeeOther)
}

// handleCancel answers the discard confirmation (answer=discard|resume).
func (a *Admin) handleCancel(w http.ResponseWriter, r *http.Request) {
	m, ok := a.dialog(w, r)
	if !ok {
		return
	}
	discard, ok := answer(w, r, "discard", "resume")
	if !ok {
		return
	}
	if err := m.ResolveCancel(r.Context(), discard); err != nil {
		a.transitionError(w, r, err)
		return
	}
	http.Redirect(w, r, tableURL(m.Entity().Name), http.StatusSeeOther)
}

func (a *Admin) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := attachments.ValidateKey(key); err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	if a.files.Driver() == attachments.DriverS3 {
		u, err := a.files.URL(r.Context(), key, fileURLExpiry)
		if err != nil {
			a.logger.Warn("presign failed", zap.String("key", key), zap.Error(err))
			InternalError(w, "file link unavailable", r.URL.Path)
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
		return
	}
	info, rc, err := a.files.Get(r.Context(), key)
	if errors.Is(err, attachments.ErrNotFound) {
		NotFound(w, "file not found", r.URL.Path)
		return
	}
	if err != nil {
		a.logger.Warn("file read failed", zap.String("key", key), zap.Error(err))
		InternalError(w, "file read failed", r.URL.Path)
		return
	}
	defer rc.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	_, _ = io.Copy(w, rc)
}

// -- helpers --

// table resolves the workspace and mounts the path's entity table.
func (a *Admin) table(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, *table.Component, bool) {
	ws := a.ws.Resolve(w, r)
	name := r.PathValue("entity")
	comp, err := ws.Table(r.Context(), name)
	switch {
	case errors.Is(err, workspace.ErrUnknownEntity):
		NotFound(w, "unknown entity "+strconv.Quote(name), r.URL.Path)
		return nil, nil, false
	case err != nil:
		a.logger.Error("mount table failed", zap.String("entity", name), zap.Error(err))
		InternalError(w, "could not load table", r.URL.Path)
		return nil, nil, false
	}
	return ws, comp, true
}

// dialog finds the path's open dialog in the caller's workspace.
func (a *Admin) dialog(w http.ResponseWriter, r *http.Request) (*modal.Modal, bool) {
	ws := a.ws.Resolve(w, r)
	m, ok := ws.Modals().Get(r.PathValue("id"))
	if !ok || m.Entity().Name != r.PathValue("entity") {
		NotFound(w, "no such dialog", r.URL.Path)
		return nil, false
	}
	return m, true
}

func (a *Admin) transitionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, modal.ErrInvalidTransition), errors.Is(err, modal.ErrReadOnly):
		Conflict(w, err.Error(), r.URL.Path)
	case errors.Is(err, modal.ErrUnknownField):
		BadRequest(w, err.Error(), r.URL.Path)
	default:
		a.logger.Error("dialog action failed", zap.String("path", r.URL.Path), zap.Error(err))
		InternalError(w, "dialog action failed", r.URL.Path)
	}
}

func answer(w http.ResponseWriter, r *http.Request, yes, no string) (bool, bool) {
	switch r.FormValue("answer") {
	case yes:
		return true, true
	case no:
		return false, true
	}
	BadRequest(w, fmt.Sprintf("answer must be %s or %s", yes, no), r.URL.Path)
	return false, false
}

func (a *Admin) render(w http.ResponseWriter, ws *workspace.Workspace, comp *table.Component) {
	e := comp.Entity()
	open := ws.Modals().Active()
	sort.Slice(open, func(i, j int) bool { return open[i].ID() < open[j].ID() })
	var dialogs []*view.Node
	for _, m := range open {
		if m.Entity().Name == e.Name {
			dialogs = append(dialogs, view.Modal(m.Entity(), m.Snapshot()))
		}
	}
	notices := ws.Notices()
	page := view.Page(view.PageData{
		Title:     e.Label,
		Entities:  ws.Entities().All(),
		Active:    e.Name,
		Collapsed: ws.SidebarCollapsed(),
		Content:   view.Table(comp.Frame()),
		Modals:    view.Fragment(dialogs...),
		Toasts:    view.Toasts(notices.Active(), notices.Loading()),
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := view.Render(w, page); err != nil {
		a.logger.Debug("write page failed", zap.Error(err))
	}
}

func tableURL(entity string) string { return view.Base + "/" + url.PathEscape(entity) }
