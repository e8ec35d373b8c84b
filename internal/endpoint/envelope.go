package endpoint

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/HerbHall/welfaredesk/pkg/models"
)

// Envelope is the top-level JSON object every manage endpoint returns.
type Envelope struct {
	Success bool
	Message string
	fields  map[string]json.RawMessage
}

// ParseEnvelope decodes body. A body that is not a JSON object carrying a
// boolean "success" is malformed.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	successRaw, ok := raw["success"]
	if !ok {
		return nil, fmt.Errorf("%w: missing success flag", ErrMalformed)
	}
	env := &Envelope{fields: raw}
	if err := json.Unmarshal(successRaw, &env.Success); err != nil {
		return nil, fmt.Errorf("%w: success is not a boolean", ErrMalformed)
	}
	if m, ok := raw["message"]; ok {
		_ = json.Unmarshal(m, &env.Message)
	}
	return env, nil
}

// Has reports whether the envelope carries key.
func (e *Envelope) Has(key string) bool {
	_, ok := e.fields[key]
	return ok
}

// Decode unmarshals the value under key into v.
func (e *Envelope) Decode(key string, v any) error {
	raw, ok := e.fields[key]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode %q: %v", ErrMalformed, key, err)
	}
	return nil
}

// Records returns the record array found under "data" or, failing that,
// under payloadKey. A null payload yields an empty slice. Numbers stay
// json.Number so ids and amounts keep their exact text.
func (e *Envelope) Records(payloadKey string) ([]models.Record, error) {
	key := "data"
	if !e.Has(key) {
		key = payloadKey
	}
	if !e.Has(key) {
		return nil, fmt.Errorf("%w: no %q or %q array", ErrMalformed, "data", payloadKey)
	}
	var recs []models.Record
	if err := e.Decode(key, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []models.Record{}
	}
	return recs, nil
}

// Record returns the single record found under "data" or "record", or nil
// when the envelope carries neither as an object.
func (e *Envelope) Record() models.Record {
	for _, key := range []string{"data", "record"} {
		if !e.Has(key) {
			continue
		}
		var r models.Record
		if err := e.Decode(key, &r); err == nil && r != nil {
			return r
		}
	}
	return nil
}

// String returns a scalar envelope value as a string.
func (e *Envelope) String(key string) (string, bool) {
	raw, ok := e.fields[key]
	if !ok {
		return "", false
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	return models.Record{"v": v}.String("v")
}
