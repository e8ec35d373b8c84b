// Package live is the websocket channel between an admin page and its
// workspace: search input flows in, table and notification repaints flow
// out.
package live

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/notify"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/internal/view"
	"github.com/HerbHall/welfaredesk/internal/workspace"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 32
)

// Inbound message types.
const (
	TypeSearch = "search"
	TypePage   = "page"
)

// Message is sent by the page.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Value  string `json:"value,omitempty"`
	Enter  bool   `json:"enter,omitempty"`
	Page   int    `json:"page,omitempty"`
}

// Push replaces the element with id Target by HTML.
type Push struct {
	Target string `json:"target"`
	HTML   string `json:"html"`
}

// Workspaces finds the workspace of a request.
type Workspaces interface {
	Lookup(r *http.Request) (*workspace.Workspace, bool)
}

// Hub accepts live connections.
type Hub struct {
	workspaces Workspaces
	logger     *zap.Logger
	origins    []string

	mu    sync.Mutex
	conns int
}

// NewHub creates a Hub. origins lists extra host patterns allowed to
// connect cross-origin.
func NewHub(ws Workspaces, logger *zap.Logger, origins ...string) *Hub {
	return &Hub{workspaces: ws, logger: logger, origins: origins}
}

// Connections is the number of open connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

// ServeHTTP upgrades the request and serves it until the page goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspaces.Lookup(r)
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	h.track(1)
	defer h.track(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &session{
		conn:   c,
		ws:     ws,
		out:    make(chan Push, sendBuffer),
		logger: h.logger.With(zap.String("workspace", ws.ID())),
	}
	defer s.subscribe()()

	go s.writeLoop(ctx, cancel)
	err = s.readLoop(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		c.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
		// Closed by the page.
	default:
		s.logger.Debug("live connection ended", zap.Error(err))
		c.Close(websocket.StatusInternalError, "")
	}
}

func (h *Hub) track(d int) {
	h.mu.Lock()
	h.conns += d
	h.mu.Unlock()
}

type session struct {
	conn   *websocket.Conn
	ws     *workspace.Workspace
	out    chan Push
	logger *zap.Logger
}

func (s *session) subscribe() (unsubscribe func()) {
	offTable := s.ws.OnRepaint(func(f table.Frame) {
		s.send(Push{Target: view.TableID(f.Entity), HTML: view.String(view.Table(f))})
	})
	offNotice := s.ws.OnNotice(func(notify.Notification) {
		n := s.ws.Notices()
		s.send(Push{Target: view.NoticesID, HTML: view.String(view.Toasts(n.Active(), n.Loading()))})
	})
	return func() {
		offTable()
		offNotice()
	}
}

// send queues p, dropping it when the page is not keeping up. A later
// repaint of the same element supersedes it.
func (s *session) send(p Push) {
	select {
	case s.out <- p:
	default:
		s.logger.Warn("live push dropped", zap.String("target", p.Target))
	}
}

func (s *session) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.out:
			wctx, done := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, s.conn, p)
			done()
			if err != nil {
				s.logger.Debug("live write failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		var m Message
		if err := wsjson.Read(ctx, s.conn, &m); err != nil {
			return err
		}
		s.handle(ctx, m)
	}
}

func (s *session) handle(ctx context.Context, m Message) {
	switch m.Type {
	case TypeSearch:
		comp, err := s.ws.Table(ctx, m.Entity)
		if err != nil {
			s.logger.Debug("search for unknown table", zap.String("entity", m.Entity), zap.Error(err))
			return
		}
		comp.Search().Type(m.Value)
		if m.Enter {
			comp.Search().Enter()
		}
	case TypePage:
		if comp, ok := s.ws.Mounted(m.Entity); ok {
			comp.GoToPage(m.Page)
		}
	default:
		s.logger.Debug("unknown live message", zap.String("type", m.Type))
	}
}
