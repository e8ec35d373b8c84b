// Package filter narrows a table's records by categorical filters, a
// free-text search and an optional date ordering.
package filter

import (
	"slices"
	"strings"
	"time"

	"github.com/HerbHall/welfaredesk/pkg/models"
)

// Sort orders accepted under the "sort" key.
const (
	SortNone     = ""
	SortDateDesc = "date_desc"
	SortDateAsc  = "date_asc"
)

// State maps a filter key to its current value. An empty value places no
// constraint on the records.
type State map[string]string

// Set updates key and reports whether the value changed.
func (s State) Set(key, value string) bool {
	value = strings.TrimSpace(value)
	if s[key] == value {
		return false
	}
	if value == "" {
		delete(s, key)
	} else {
		s[key] = value
	}
	return true
}

// Get returns the value for key, or "".
func (s State) Get(key string) string { return s[key] }

// Reset clears every key.
func (s State) Reset() {
	for k := range s {
		delete(s, k)
	}
}

// Active reports whether any constraint narrows the records. A sort order
// alone does not.
func (s State) Active() bool {
	for k, v := range s {
		if k != models.FilterKeySort && v != "" {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Apply returns the records of records that satisfy state, in their original
// relative order unless state requests a date sort. Categorical keys match by
// case-insensitive equality; the search value matches by case-insensitive
// substring against any of the entity's search fields. Keys the entity does
// not declare are ignored.
func Apply(records []models.Record, entity *models.Entity, state State) []models.Record {
	type predicate func(models.Record) bool
	var preds []predicate

	for key, value := range state {
		if value == "" || key == models.FilterKeySort {
			continue
		}
		if key == models.FilterKeySearch {
			needle := strings.ToLower(value)
			fields := entity.SearchFields
			preds = append(preds, func(r models.Record) bool {
				for _, f := range fields {
					if s, ok := r.String(f); ok && strings.Contains(strings.ToLower(s), needle) {
						return true
					}
				}
				return false
			})
			continue
		}
		if _, ok := entity.Filter(key); !ok {
			continue
		}
		field, want := key, value
		preds = append(preds, func(r models.Record) bool {
			s, ok := r.String(field)
			return ok && strings.EqualFold(s, want)
		})
	}

	out := make([]models.Record, 0, len(records))
outer:
	for _, r := range records {
		for _, p := range preds {
			if !p(r) {
				continue outer
			}
		}
		out = append(out, r)
	}

	if order := state[models.FilterKeySort]; order != SortNone && entity.DateField != "" {
		sortByDate(out, entity.DateField, order == SortDateAsc)
	}
	return out
}

// sortByDate stably sorts records by field. Records without a parseable date
// sort after every dated record in both directions.
func sortByDate(records []models.Record, field string, ascending bool) {
	dates := make(map[string]time.Time, len(records))
	key := func(r models.Record) (time.Time, bool) {
		s, _ := r.String(field)
		if t, ok := dates[s]; ok {
			return t, !t.IsZero()
		}
		t, _ := models.ParseDate(s)
		dates[s] = t
		return t, !t.IsZero()
	}
	slices.SortStableFunc(records, func(a, b models.Record) int {
		ta, oka := key(a)
		tb, okb := key(b)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		c := ta.Compare(tb)
		if !ascending {
			c = -c
		}
		return c
	})
}
