package emulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/internal/endpoint"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

// businessError becomes a success:false envelope carrying msg.
type businessError struct{ msg string }

func (e *businessError) Error() string { return e.msg }

func reject(format string, args ...any) error {
	return &businessError{msg: fmt.Sprintf(format, args...)}
}

func (e *Emulator) dispatch(ctx context.Context, entity *models.Entity, req request) (map[string]any, error) {
	switch req.action {
	case endpoint.ActionFetch:
		return e.fetch(ctx, entity)
	case endpoint.ActionNextID:
		id, err := e.records.nextID(ctx, entity.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nextId": id}, nil
	case endpoint.ActionGetByID:
		id, err := parseID(req.fields)
		if err != nil {
			return nil, err
		}
		rec, err := e.records.get(ctx, entity.Name, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": public(entity, rec)}, nil
	case endpoint.ActionSave:
		return e.save(ctx, entity, req)
	case endpoint.ActionUpdate:
		return e.update(ctx, entity, req)
	case endpoint.ActionDelete:
		return e.remove(ctx, entity, req)
	default:
		return nil, reject("Unknown action: %s", req.action)
	}
}

func (e *Emulator) fetch(ctx context.Context, entity *models.Entity) (map[string]any, error) {
	recs, err := e.records.list(ctx, entity.Name)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, len(recs))
	for i, r := range recs {
		out[i] = public(entity, r)
	}
	return map[string]any{entity.PayloadKey: out}, nil
}

func (e *Emulator) save(ctx context.Context, entity *models.Entity, req request) (map[string]any, error) {
	doc := make(models.Record, len(req.fields))
	for k, v := range req.fields {
		if k == models.FieldID {
			continue
		}
		doc[k] = strings.TrimSpace(v)
	}
	for _, f := range entity.Required {
		if _, ok := doc.String(f); !ok {
			return nil, reject("Missing required field: %s", f)
		}
	}
	if err := e.hashPassword(doc); err != nil {
		return nil, err
	}
	key, err := e.storeUpload(ctx, entity, req.file)
	if err != nil {
		return nil, err
	}
	if key != "" {
		doc[entity.FileField] = key
	}

	id, err := e.records.insert(ctx, entity.Name, doc)
	if err != nil {
		e.discardUpload(ctx, key)
		return nil, err
	}
	doc[models.FieldID] = float64(id)
	e.logger.Info("record saved", zap.String("entity", entity.Name), zap.Int64("id", id))
	return map[string]any{
		"id":      id,
		"data":    public(entity, doc),
		"message": fmt.Sprintf("%s saved", entity.Label),
	}, nil
}

func (e *Emulator) update(ctx context.Context, entity *models.Entity, req request) (map[string]any, error) {
	id, err := parseID(req.fields)
	if err != nil {
		return nil, err
	}
	doc, err := e.records.get(ctx, entity.Name, id)
	if err != nil {
		return nil, err
	}
	for k, v := range req.fields {
		if k == models.FieldID {
			continue
		}
		v = strings.TrimSpace(v)
		if k == passwordField && v == "" {
			continue
		}
		doc[k] = v
	}
	for _, f := range entity.Required {
		if _, ok := doc.String(f); !ok {
			return nil, reject("Missing required field: %s", f)
		}
	}
	if err := e.hashPassword(doc); err != nil {
		return nil, err
	}

	oldKey, _ := doc.String(entity.FileField)
	key, err := e.storeUpload(ctx, entity, req.file)
	if err != nil {
		return nil, err
	}
	if key != "" {
		doc[entity.FileField] = key
	}
	if err := e.records.put(ctx, entity.Name, id, doc); err != nil {
		e.discardUpload(ctx, key)
		return nil, err
	}
	if key != "" && oldKey != "" {
		e.discardUpload(ctx, oldKey)
	}
	return map[string]any{
		"data":    public(entity, doc),
		"message": fmt.Sprintf("%s updated", entity.Label),
	}, nil
}

func (e *Emulator) remove(ctx context.Context, entity *models.Entity, req request) (map[string]any, error) {
	id, err := parseID(req.fields)
	if err != nil {
		return nil, err
	}
	doc, err := e.records.get(ctx, entity.Name, id)
	if err != nil {
		return nil, err
	}
	if err := e.records.delete(ctx, entity.Name, id); err != nil {
		return nil, err
	}
	if key, ok := doc.String(entity.FileField); ok {
		e.discardUpload(ctx, key)
	}
	return map[string]any{"message": fmt.Sprintf("%s deleted", entity.Label)}, nil
}

// hashPassword replaces a plain password with its bcrypt hash.
func (e *Emulator) hashPassword(doc models.Record) error {
	pw, ok := doc.String(passwordField)
	delete(doc, passwordField)
	if !ok {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), e.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return reject("Password is too long")
		}
		return fmt.Errorf("hash password: %w", err)
	}
	doc[passwordHash] = string(hash)
	return nil
}

func (e *Emulator) storeUpload(ctx context.Context, entity *models.Entity, up *upload) (string, error) {
	if up == nil || len(up.data) == 0 {
		return "", nil
	}
	if entity.FileField == "" {
		return "", reject("%s does not accept files", entity.Label)
	}
	key := attachments.NewKey(entity.Name, up.name)
	if _, err := e.files.Put(ctx, key, bytes.NewReader(up.data), up.contentType); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return key, nil
}

func (e *Emulator) discardUpload(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := e.files.Delete(ctx, key); err != nil {
		e.logger.Warn("delete upload failed", zap.String("key", key), zap.Error(err))
	}
}

// public strips stored secrets and write-only fields.
func public(entity *models.Entity, doc models.Record) models.Record {
	out := doc.Clone()
	delete(out, passwordHash)
	for _, f := range entity.WriteOnly {
		delete(out, f)
	}
	return out
}

func parseID(fields map[string]string) (int64, error) {
	raw := strings.TrimSpace(fields[models.FieldID])
	if raw == "" {
		return 0, reject("Missing id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, reject("Invalid id: %s", raw)
	}
	return id, nil
}
