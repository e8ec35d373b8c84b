// Package table projects an entity's filtered records into the frame a
// table repaint shows, and owns the per-table filter and page state.
package table

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

// NotAvailable is shown for missing field values.
const NotAvailable = "N/A"

// State is the single placeholder or content state of a repaint.
type State string

const (
	StateLoading   State = "loading"
	StateFiltering State = "filtering"
	StateNoResults State = "no-results"
	StateNoData    State = "no-data"
	StateRows      State = "rows"
)

// Placeholder messages.
var messages = map[State][2]string{
	StateLoading:   {"Loading…", "Fetching the latest records."},
	StateFiltering: {"Filtering…", "Applying your filters."},
	StateNoResults: {"No Results Found", "No records match your search or filters. Try adjusting them."},
	StateNoData:    {"No Data Available", "There are no records yet."},
}

// Cell is one projected value.
type Cell struct {
	Key     string              `json:"key"`
	Text    string              `json:"text"`
	Format  models.ColumnFormat `json:"format"`
	Badge   string              `json:"badge,omitempty"`
	Href    string              `json:"href,omitempty"`
	Missing bool                `json:"missing,omitempty"`
}

// Row is one projected record.
type Row struct {
	ID    string `json:"id"`
	Cells []Cell `json:"cells"`
}

// Frame is everything one repaint of a table shows.
type Frame struct {
	Entity       string               `json:"entity"`
	Label        string               `json:"label"`
	State        State                `json:"state"`
	Title        string               `json:"title,omitempty"`
	Message      string               `json:"message,omitempty"`
	Columns      []models.Column      `json:"columns"`
	Rows         []Row                `json:"rows"`
	FilterFields []models.FilterField `json:"filter_fields"`
	Filters      filter.State         `json:"filters"`
	Page         paginate.State       `json:"page"`
	TotalPages   int                  `json:"total_pages"`
	Matched      int                  `json:"matched"`
	RecordCount  int                  `json:"record_count"`
	Buttons      []paginate.Button    `json:"buttons"`
	Addable      bool                 `json:"addable"`
	Editable     bool                 `json:"editable"`
}

// Input is the table state a Frame is computed from.
type Input struct {
	Filtered    []models.Record
	RecordCount int
	Filters     filter.State
	Page        paginate.State
	Loading     bool
	Filtering   bool
}

// Render computes the frame for in. It is pure.
func Render(entity *models.Entity, in Input) Frame {
	f := Frame{
		Entity:       entity.Name,
		Label:        entity.Label,
		Columns:      entity.Columns,
		FilterFields: entity.Filters,
		Filters:      in.Filters,
		Page:         in.Page,
		Matched:      len(in.Filtered),
		RecordCount:  in.RecordCount,
		Addable:      entity.Addable,
		Editable:     entity.Editable,
	}
	if f.Filters == nil {
		f.Filters = filter.State{}
	}
	f.Page.Clamp(len(in.Filtered))
	f.TotalPages = paginate.TotalPages(len(in.Filtered), f.Page.RowsPerPage)
	f.Buttons = paginate.Buttons(len(in.Filtered), f.Page)

	switch {
	case in.Loading:
		f.State = StateLoading
	case in.Filtering:
		f.State = StateFiltering
	case in.RecordCount == 0:
		f.State = StateNoData
	case len(in.Filtered) == 0:
		f.State = StateNoResults
	default:
		f.State = StateRows
	}
	if f.State != StateRows {
		m := messages[f.State]
		f.Title, f.Message = m[0], m[1]
		f.Rows = []Row{}
		return f
	}

	page := paginate.Page(in.Filtered, f.Page)
	f.Rows = make([]Row, len(page))
	for i, r := range page {
		f.Rows[i] = ProjectRow(entity, r)
	}
	return f
}

// ProjectRow projects r onto the entity's columns.
func ProjectRow(entity *models.Entity, r models.Record) Row {
	row := Row{ID: r.ID(), Cells: make([]Cell, len(entity.Columns))}
	for i, col := range entity.Columns {
		row.Cells[i] = projectCell(entity, col, r)
	}
	return row
}

func projectCell(entity *models.Entity, col models.Column, r models.Record) Cell {
	c := Cell{Key: col.Key, Format: col.Format}
	v, ok := r.String(col.Key)
	if !ok {
		c.Text, c.Missing = NotAvailable, true
		return c
	}
	switch col.Format {
	case models.FormatDate:
		c.Text = models.LongDate(v)
	case models.FormatBadge:
		c.Text = capitalize(v)
		c.Badge = entity.BadgeColor(strings.ToLower(v))
	case models.FormatFile:
		c.Text = path.Base(v)
		c.Href = v
	default:
		c.Text = v
	}
	return c
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
