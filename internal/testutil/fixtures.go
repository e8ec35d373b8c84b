package testutil

import (
	"fmt"
	"testing"

	"github.com/HerbHall/welfaredesk/pkg/models"
)

// Entity returns the named entity from the embedded catalog.
func Entity(t testing.TB, name string) *models.Entity {
	t.Helper()
	cat, err := models.DefaultCatalog()
	if err != nil {
		t.Fatalf("testutil.Entity: load catalog: %v", err)
	}
	e, ok := cat.Get(name)
	if !ok {
		t.Fatalf("testutil.Entity: no entity %q", name)
	}
	return e
}

// NewRecord returns a record with the given id and sensible report-like
// defaults. Override fields with options.
func NewRecord(id int, opts ...func(models.Record)) models.Record {
	r := models.Record{
		models.FieldID: fmt.Sprint(id),
		"title":        fmt.Sprintf("Record %d", id),
		"status":       "pending",
		"department":   "Administration",
		"reportDate":   "2025-01-01",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithField sets one field.
func WithField(key string, value any) func(models.Record) {
	return func(r models.Record) { r[key] = value }
}

// WithoutField removes one field.
func WithoutField(key string) func(models.Record) {
	return func(r models.Record) { delete(r, key) }
}

// Records returns n records with ids 1..n.
func Records(n int, opts ...func(models.Record)) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = NewRecord(i+1, opts...)
	}
	return out
}
