// Package emulator serves the manage-script action protocol from SQLite so
// the admin front end can run without the production backend.
package emulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

const (
	moduleName     = "emulator"
	maxUploadBytes = 16 << 20
	passwordField  = "password"
	passwordHash   = "passwordHash"
)

// Entities resolves the entity served by an endpoint script.
type Entities interface {
	ByEndpoint(script string) (*models.Entity, bool)
}

// Emulator answers manage-script requests.
type Emulator struct {
	records    *recordRepo
	entities   Entities
	files      attachments.Store
	logger     *zap.Logger
	latency    time.Duration
	bcryptCost int
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithLatency delays every response, which makes loading states visible
// during development.
func WithLatency(d time.Duration) Option {
	return func(e *Emulator) { e.latency = d }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(e *Emulator) { e.bcryptCost = cost }
}

// New migrates db and returns an Emulator serving the entities of cat.
func New(ctx context.Context, db plugin.Store, cat Entities, files attachments.Store, logger *zap.Logger, opts ...Option) (*Emulator, error) {
	if err := db.Migrate(ctx, moduleName, migrations()); err != nil {
		return nil, fmt.Errorf("emulator migrations: %w", err)
	}
	e := &Emulator{
		records:    &recordRepo{db: db},
		entities:   cat,
		files:      files,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create records and sequences",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE emulator_records (
						entity     TEXT     NOT NULL,
						id         INTEGER  NOT NULL,
						doc        TEXT     NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (entity, id)
					)`,
					`CREATE TABLE emulator_sequences (
						entity  TEXT    PRIMARY KEY,
						last_id INTEGER NOT NULL
					)`,
				}
				for _, s := range stmts {
					if _, err := tx.Exec(s); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// Handler returns the HTTP surface: POST /{script} for actions and
// GET /files/{key...} for stored uploads.
func (e *Emulator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{script}", e.handleAction)
	mux.HandleFunc("GET /files/{key...}", e.handleFile)
	return mux
}

// request is one decoded action call.
type request struct {
	action string
	fields map[string]string
	file   *upload
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func (e *Emulator) handleAction(w http.ResponseWriter, r *http.Request) {
	entity, ok := e.entities.ByEndpoint(r.PathValue("script"))
	if !ok {
		writeEnvelope(w, http.StatusNotFound, failure("Unknown endpoint"))
		return
	}
	if e.latency > 0 {
		select {
		case <-time.After(e.latency):
		case <-r.Context().Done():
			return
		}
	}

	req, err := decodeRequest(r, entity)
	if err != nil {
		e.logger.Debug("bad request", zap.String("entity", entity.Name), zap.Error(err))
		writeEnvelope(w, http.StatusBadRequest, failure("Invalid request"))
		return
	}

	resp, err := e.dispatch(r.Context(), entity, req)
	if err != nil {
		var be *businessError
		if errors.As(err, &be) {
			writeEnvelope(w, http.StatusOK, failure(be.msg))
			return
		}
		e.logger.Error("action failed",
			zap.String("entity", entity.Name),
			zap.String("action", req.action),
			zap.Error(err),
		)
		writeEnvelope(w, http.StatusOK, failure("Server error: "+req.action+" failed"))
		return
	}
	resp["success"] = true
	writeEnvelope(w, http.StatusOK, resp)
}

func (e *Emulator) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := attachments.ValidateKey(key); err != nil {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	info, rc, err := e.files.Get(r.Context(), key)
	if errors.Is(err, attachments.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		e.logger.Warn("file read failed", zap.String("key", key), zap.Error(err))
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprint(info.Size))
	_, _ = io.Copy(w, rc)
}

func decodeRequest(r *http.Request, entity *models.Entity) (request, error) {
	req := request{fields: make(map[string]string)}
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "application/json") {
		var body map[string]any
		dec := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return req, fmt.Errorf("decode json: %w", err)
		}
		for k, v := range body {
			s, _ := models.Record{k: v}.String(k)
			req.fields[k] = s
		}
	} else {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			if !errors.Is(err, http.ErrNotMultipart) {
				return req, fmt.Errorf("parse form: %w", err)
			}
			if err := r.ParseForm(); err != nil {
				return req, fmt.Errorf("parse form: %w", err)
			}
		}
		for k, vs := range r.Form {
			if len(vs) > 0 {
				req.fields[k] = vs[0]
			}
		}
		if entity.FileField != "" && r.MultipartForm != nil {
			if fhs := r.MultipartForm.File[entity.FileField]; len(fhs) > 0 {
				f, err := fhs[0].Open()
				if err != nil {
					return req, fmt.Errorf("open upload: %w", err)
				}
				data, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					return req, fmt.Errorf("read upload: %w", err)
				}
				req.file = &upload{
					name:        fhs[0].Filename,
					contentType: fhs[0].Header.Get("Content-Type"),
					data:        data,
				}
			}
		}
	}

	req.action = req.fields["action"]
	delete(req.fields, "action")
	if req.action == "" {
		return req, errors.New("missing action")
	}
	return req, nil
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}

func writeEnvelope(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
