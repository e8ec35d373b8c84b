package models

import "slices"

// FileKind restricts which uploads an entity accepts.
type FileKind string

const (
	FileKindNone  FileKind = ""
	FileKindImage FileKind = "image"
	FileKindPDF   FileKind = "pdf"
)

// Encoding selects how requests to an entity's endpoint are encoded.
type Encoding string

const (
	EncodingForm Encoding = "form"
	EncodingJSON Encoding = "json"
)

// ColumnFormat controls how a column value is projected into a table cell.
type ColumnFormat string

const (
	FormatText  ColumnFormat = "text"
	FormatDate  ColumnFormat = "date"
	FormatBadge ColumnFormat = "badge"
	FormatRich  ColumnFormat = "rich"
	FormatFile  ColumnFormat = "file"
)

// Column is one visible table column.
type Column struct {
	Key    string       `yaml:"key" json:"key"`
	Label  string       `yaml:"label" json:"label"`
	Format ColumnFormat `yaml:"format" json:"format"`
}

// FilterField is a categorical filter offered above a table.
type FilterField struct {
	Key    string   `yaml:"key" json:"key"`
	Label  string   `yaml:"label" json:"label"`
	Values []string `yaml:"values" json:"values"`
}

// Entity describes one admin table: where its data lives and how it is
// filtered, rendered and edited.
type Entity struct {
	Name         string            `yaml:"name" json:"name"`
	Label        string            `yaml:"label" json:"label"`
	Endpoint     string            `yaml:"endpoint" json:"endpoint"`
	PayloadKey   string            `yaml:"payload_key" json:"payload_key"`
	Encoding     Encoding          `yaml:"encoding" json:"encoding"`
	Columns      []Column          `yaml:"columns" json:"columns"`
	Filters      []FilterField     `yaml:"filters" json:"filters"`
	SearchFields []string          `yaml:"search_fields" json:"search_fields"`
	TitleField   string            `yaml:"title_field" json:"title_field"`
	DateField    string            `yaml:"date_field" json:"date_field"`
	FileField    string            `yaml:"file_field" json:"file_field"`
	FileKind     FileKind          `yaml:"file_kind" json:"file_kind"`
	Badges       map[string]string `yaml:"badges" json:"badges"`
	FormFields   []string          `yaml:"form_fields" json:"form_fields"`
	Required     []string          `yaml:"required" json:"required"`
	WriteOnly    []string          `yaml:"write_only" json:"write_only"`
	Addable      bool              `yaml:"addable" json:"addable"`
	Editable     bool              `yaml:"editable" json:"editable"`
}

// Filter returns the filter definition for key.
func (e *Entity) Filter(key string) (FilterField, bool) {
	for _, f := range e.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return FilterField{}, false
}

// IsRequired reports whether field must be filled before submission.
func (e *Entity) IsRequired(field string) bool {
	return slices.Contains(e.Required, field)
}

// IsWriteOnly reports whether field is accepted on save but never displayed.
func (e *Entity) IsWriteOnly(field string) bool {
	return slices.Contains(e.WriteOnly, field)
}

// BadgeColor returns the badge color configured for a status value, or
// "gray" when none is set.
func (e *Entity) BadgeColor(value string) string {
	if c, ok := e.Badges[value]; ok && c != "" {
		return c
	}
	return "gray"
}
