package emulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// recordRepo keeps records as JSON documents keyed by (entity, id).
type recordRepo struct {
	db plugin.Store
}

func (r *recordRepo) list(ctx context.Context, entity string) ([]models.Record, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT id, doc FROM emulator_records WHERE entity = ? ORDER BY id DESC`, entity)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var id int64
		var doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", entity, err)
		}
		rec, err := decodeDoc(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *recordRepo) get(ctx context.Context, entity string, id int64) (models.Record, error) {
	var doc string
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT doc FROM emulator_records WHERE entity = ? AND id = ?`, entity, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reject("Record not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", entity, id, err)
	}
	return decodeDoc(id, doc)
}

// nextID previews the id insert would assign without reserving it.
func (r *recordRepo) nextID(ctx context.Context, entity string) (int64, error) {
	var last int64
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT last_id FROM emulator_sequences WHERE entity = ?`, entity).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("next id %s: %w", entity, err)
	}
	return last + 1, nil
}

func (r *recordRepo) insert(ctx context.Context, entity string, doc models.Record) (int64, error) {
	var id int64
	err := r.db.Tx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO emulator_sequences (entity, last_id) VALUES (?, 1)
			ON CONFLICT(entity) DO UPDATE SET last_id = last_id + 1
			RETURNING last_id`, entity).Scan(&id)
		if err != nil {
			return fmt.Errorf("allocate id: %w", err)
		}
		body, err := encodeDoc(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO emulator_records (entity, id, doc) VALUES (?, ?, ?)`, entity, id, body)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", entity, err)
	}
	return id, nil
}

func (r *recordRepo) put(ctx context.Context, entity string, id int64, doc models.Record) error {
	body, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	res, err := r.db.DB().ExecContext(ctx,
		`UPDATE emulator_records SET doc = ?, updated_at = CURRENT_TIMESTAMP WHERE entity = ? AND id = ?`,
		body, entity, id)
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", entity, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reject("Record not found: %d", id)
	}
	return nil
}

func (r *recordRepo) delete(ctx context.Context, entity string, id int64) error {
	_, err := r.db.DB().ExecContext(ctx,
		`DELETE FROM emulator_records WHERE entity = ? AND id = ?`, entity, id)
	if err != nil {
		return fmt.Errorf("delete %s/%d: %w", entity, id, err)
	}
	return nil
}

// Seed inserts records for entity, used to preload demo data.
func (e *Emulator) Seed(ctx context.Context, entity string, recs []models.Record) error {
	for _, rec := range recs {
		doc := rec.Clone()
		delete(doc, models.FieldID)
		if err := e.hashPassword(doc); err != nil {
			return err
		}
		if _, err := e.records.insert(ctx, entity, doc); err != nil {
			return err
		}
	}
	return nil
}

func encodeDoc(doc models.Record) (string, error) {
	stored := doc.Clone()
	delete(stored, models.FieldID)
	b, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(b), nil
}

func decodeDoc(id int64, doc string) (models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", id, err)
	}
	if rec == nil {
		rec = models.Record{}
	}
	rec[models.FieldID] = float64(id)
	return rec, nil
}
