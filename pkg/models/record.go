package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one row of domain data as returned by a manage endpoint. Its
// schema varies per entity; the only guaranteed field is "id".
type Record map[string]any

// FieldID is the key of the unique record identifier.
const FieldID = "id"

// ID returns the record identifier as a string, or "" when absent.
func (r Record) ID() string {
	s, _ := r.String(FieldID)
	return s
}

// String returns the named field rendered as a string. The boolean is false
// when the field is missing, null, or blank after trimming.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRecords copies a slice of records, cloning each record.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
