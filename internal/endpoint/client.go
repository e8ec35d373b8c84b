// Package endpoint talks to the manage scripts that own each admin table's
// data. Every call is a single POST discriminated by an "action" field and
// answered with a JSON envelope.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/HerbHall/welfaredesk/pkg/models"
	"go.uber.org/zap"
)

// Actions understood by the manage scripts.
const (
	ActionFetch   = "fetchdata"
	ActionSave    = "save"
	ActionUpdate  = "update"
	ActionNextID  = "getNextID"
	ActionGetByID = "getById"
	ActionDelete  = "delete"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Observer receives one call per completed round trip.
type Observer interface {
	ObserveRequest(entity, action, outcome string, elapsed time.Duration)
}

// File is an upload attached to a save or update.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Request is one action against an entity's endpoint.
type Request struct {
	Entity *models.Entity
	Action string
	Fields map[string]string
	File   *File
}

// Client issues requests against the configured endpoint base URL.
type Client struct {
	base     *url.URL
	http     *http.Client
	logger   *zap.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver installs a round-trip observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithTimeout bounds each round trip. Zero means no client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a Client rooted at baseURL; entity endpoint scripts are
// resolved relative to it.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do performs req and returns the decoded envelope. A success:false envelope
// is returned as a *BusinessError.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	start := time.Now()
	env, err := c.do(ctx, req)
	if c.observer != nil {
		c.observer.ObserveRequest(req.Entity.Name, req.Action, Outcome(err), time.Since(start))
	}
	if err != nil {
		c.logger.Warn("endpoint request failed",
			zap.String("entity", req.Entity.Name),
			zap.String("action", req.Action),
			zap.Error(err),
		)
	}
	return env, err
}

func (c *Client) do(ctx context.Context, req Request) (*Envelope, error) {
	target := c.base.ResolveReference(&url.URL{Path: req.Entity.Endpoint})

	body, contentType, err := encode(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	env, perr := ParseEnvelope(raw)
	if perr != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
		}
		return nil, perr
	}
	if !env.Success {
		return env, &BusinessError{Action: req.Action, Message: env.Message}
	}
	return env, nil
}

// encode builds the request body. Uploads force multipart; otherwise the
// entity's configured encoding applies.
func encode(req Request) (io.Reader, string, error) {
	if req.File == nil && req.Entity.Encoding == models.EncodingJSON {
		payload := make(map[string]string, len(req.Fields)+1)
		for k, v := range req.Fields {
			payload[k] = v
		}
		payload["action"] = req.Action
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("action", req.Action); err != nil {
		return nil, "", err
	}
	keys := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, req.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", k, err)
		}
	}
	if f := req.File; f != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// FetchAll runs the entity's fetchdata action.
func (c *Client) FetchAll(ctx context.Context, entity *models.Entity) ([]models.Record, error) {
	env, err := c.Do(ctx, Request{Entity: entity, Action: ActionFetch})
	if err != nil {
		return nil, err
	}
	return env.Records(entity.PayloadKey)
}

// Save creates a record. The returned record is the server's copy when the
// envelope carries one, else the submitted fields plus the assigned id.
func (c *Client) Save(ctx context.Context, entity *models.Entity, fields map[string]string, file *File) (models.Record, error) {
	env, err := c.Do(ctx, Request{Entity: entity, Action: ActionSave, Fields: fields, File: file})
	if err != nil {
		return nil, err
	}
	return resultRecord(env, entity, fields, ""), nil
}

// Update modifies the record identified by id.
func (c *Client) Update(ctx context.Context, entity *models.Entity, id string, fields map[string]string, file *File) (models.Record, error) {
	withID := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		withID[k] = v
	}
	withID[models.FieldID] = id
	env, err := c.Do(ctx, Request{Entity: entity, Action: ActionUpdate, Fields: withID, File: file})
	if err != nil {
		return nil, err
	}
	return resultRecord(env, entity, withID, id), nil
}

// NextID asks the endpoint for the id the next saved record will receive.
func (c *Client) NextID(ctx context.Context, entity *models.Entity) (string, error) {
	env, err := c.Do(ctx, Request{Entity: entity, Action: ActionNextID})
	if err != nil {
		return "", err
	}
	for _, key := range []string{"nextId", "next_id", "id"} {
		if s, ok := env.String(key); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no next id in response", ErrMalformed)
}

// GetByID loads one record.
func (c *Client) GetByID(ctx context.Context, entity *models.Entity, id string) (models.Record, error) {
	env, err := c.Do(ctx, Request{Entity: entity, Action: ActionGetByID, Fields: map[string]string{models.FieldID: id}})
	if err != nil {
		return nil, err
	}
	r := env.Record()
	if r == nil {
		return nil, fmt.Errorf("%w: no record in response", ErrMalformed)
	}
	return r, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, entity *models.Entity, id string) error {
	_, err := c.Do(ctx, Request{Entity: entity, Action: ActionDelete, Fields: map[string]string{models.FieldID: id}})
	return err
}

func resultRecord(env *Envelope, entity *models.Entity, fields map[string]string, id string) models.Record {
	if r := env.Record(); r != nil {
		return r
	}
	r := make(models.Record, len(fields)+1)
	for k, v := range fields {
		if entity.IsWriteOnly(k) {
			continue
		}
		r[k] = v
	}
	if s, ok := env.String("id"); ok {
		id = s
	}
	if id != "" {
		r[models.FieldID] = id
	}
	if entity.FileField != "" {
		if s, ok := env.String(entity.FileField); ok {
			r[entity.FileField] = s
		}
	}
	return r
}
