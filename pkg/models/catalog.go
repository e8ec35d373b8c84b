package models

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed entities.yaml
var entitiesRawData []byte

// Reserved filter keys that entities may not declare as categorical filters.
const (
	FilterKeySearch = "search"
	FilterKeySort   = "sort"
)

// catalogFile is the top-level structure of an entity catalog YAML document.
type catalogFile struct {
	Entities []Entity `yaml:"entities"`
}

// Catalog is an immutable, validated set of entity definitions.
type Catalog struct {
	entities []Entity
	byName   map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the catalog embedded in the binary. It is parsed
// once on first access.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalog(entitiesRawData)
	})
	return defaultCatalog, defaultErr
}

// ParseCatalog parses and validates a catalog YAML document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	return NewCatalog(f.Entities)
}

// NewCatalog validates entities and builds a Catalog from them.
func NewCatalog(entities []Entity) (*Catalog, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("catalog: no entities defined")
	}
	c := &Catalog{
		entities: make([]Entity, 0, len(entities)),
		byName:   make(map[string]int, len(entities)),
	}
	for i := range entities {
		e := entities[i]
		if err := validateEntity(&e); err != nil {
			return nil, err
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate entity %q", e.Name)
		}
		if e.Encoding == "" {
			e.Encoding = EncodingForm
		}
		if e.PayloadKey == "" {
			e.PayloadKey = e.Name
		}
		if e.Label == "" {
			e.Label = e.Name
		}
		c.byName[e.Name] = len(c.entities)
		c.entities = append(c.entities, e)
	}
	return c, nil
}

func validateEntity(e *Entity) error {
	if e.Name == "" {
		return fmt.Errorf("catalog: entity without name")
	}
	if e.Endpoint == "" {
		return fmt.Errorf("catalog: entity %q: endpoint is required", e.Name)
	}
	switch e.Encoding {
	case "", EncodingForm, EncodingJSON:
	default:
		return fmt.Errorf("catalog: entity %q: unknown encoding %q", e.Name, e.Encoding)
	}
	switch e.FileKind {
	case FileKindNone, FileKindImage, FileKindPDF:
	default:
		return fmt.Errorf("catalog: entity %q: unknown file kind %q", e.Name, e.FileKind)
	}
	if e.FileKind != FileKindNone && e.FileField == "" {
		return fmt.Errorf("catalog: entity %q: file_kind set without file_field", e.Name)
	}
	if len(e.Filters) > 4 {
		return fmt.Errorf("catalog: entity %q: at most 4 filters, got %d", e.Name, len(e.Filters))
	}
	for _, f := range e.Filters {
		if f.Key == FilterKeySearch || f.Key == FilterKeySort {
			return fmt.Errorf("catalog: entity %q: filter key %q is reserved", e.Name, f.Key)
		}
	}
	if len(e.Columns) == 0 {
		return fmt.Errorf("catalog: entity %q: at least one column is required", e.Name)
	}
	return nil
}

// Get returns the entity named name.
func (c *Catalog) Get(name string) (*Entity, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	e := c.entities[i]
	return &e, true
}

// All returns copies of all entities in declaration order.
func (c *Catalog) All() []Entity {
	out := make([]Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Names returns entity names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entities))
	for i := range c.entities {
		out[i] = c.entities[i].Name
	}
	return out
}

// ByEndpoint returns the entity served by the named endpoint script.
func (c *Catalog) ByEndpoint(script string) (*Entity, bool) {
	for i := range c.entities {
		if c.entities[i].Endpoint == script {
			e := c.entities[i]
			return &e, true
		}
	}
	return nil, false
}
