package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/registry"
	"github.com/HerbHall/welfaredesk/internal/version"
)

// Server is the WelfareDesk admin HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *registry.Registry
	logger     *zap.Logger
	mux        *http.ServeMux
	limiter    *limiter
	extra      map[string]http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit throttles requests to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.limiter = newLimiter(perSecond, burst)
		}
	}
}

// WithHandler mounts an extra core handler, e.g. "GET /metrics".
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) { s.extra[pattern] = h }
}

// New creates a server that serves the core API and every enabled module's
// routes from reg.
func New(addr string, reg *registry.Registry, logger *zap.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		registry: reg,
		logger:   logger,
		mux:      mux,
		extra:    make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerCoreRoutes()
	s.mountModuleRoutes()

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /ws connections are long-lived.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	return recoverer(s.logger, h)
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/modules", s.handleModules)

	patterns := make([]string, 0, len(s.extra))
	for p := range s.extra {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		s.mux.Handle(p, s.extra[p])
	}
}

// mountModuleRoutes registers every module route at its declared path.
func (s *Server) mountModuleRoutes() {
	for name, routes := range s.registry.AllRoutes() {
		for _, route := range routes {
			pattern := route.Method + " " + route.Path
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("module", name),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	modules := s.registry.Health(r.Context())
	status := "ok"
	for _, h := range modules {
		if h.Status != "ok" {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"service": "welfaredesk",
		"version": version.Map(),
		"modules": modules,
	})
}

type moduleResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Enabled     bool     `json:"enabled"`
}

func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	out := make([]moduleResponse, 0, len(all))
	for _, m := range all {
		info := m.Info()
		out = append(out, moduleResponse{
			Name:        info.Name,
			Version:     info.Version,
			Description: info.Description,
			DependsOn:   info.Dependencies,
			Enabled:     !s.registry.IsDisabled(info.Name),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-WelfareDesk-Version", version.Short())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
