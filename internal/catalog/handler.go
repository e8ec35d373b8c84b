package catalog

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// EntitiesResponse is the response for GET /api/v1/entities.
type EntitiesResponse struct {
	Count    int             `json:"count"`
	Entities []models.Entity `json:"entities"`
}

// Handler serves the catalog read API.
type Handler struct {
	src    *Source
	logger *zap.Logger
}

// NewHandler creates a catalog API handler.
func NewHandler(src *Source, logger *zap.Logger) *Handler {
	return &Handler{src: src, logger: logger}
}

// Routes lists the catalog endpoints.
func (h *Handler) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/api/v1/entities", Handler: h.handleList},
		{Method: "GET", Path: "/api/v1/entities/{name}", Handler: h.handleGet},
		{Method: "POST", Path: "/api/v1/entities/reload", Handler: h.handleReload},
	}
}

// RegisterRoutes mounts the catalog endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, rt := range h.Routes() {
		mux.HandleFunc(rt.Method+" "+rt.Path, rt.Handler)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	all := h.src.All()
	writeJSON(w, http.StatusOK, EntitiesResponse{Count: len(all), Entities: all})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := h.src.Get(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown entity "+r.PathValue("name"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleReload(w http.ResponseWriter, _ *http.Request) {
	if h.src.Path() == "" {
		writeError(w, http.StatusConflict, "catalog is embedded; set catalog.path to enable reloads")
		return
	}
	if err := h.src.Reload(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	all := h.src.All()
	writeJSON(w, http.StatusOK, EntitiesResponse{Count: len(all), Entities: all})
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://welfaredesk.local/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
