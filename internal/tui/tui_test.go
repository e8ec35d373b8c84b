package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/internal/testutil"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

type staticFetcher []models.Record

func (f staticFetcher) FetchAll(context.Context, *models.Entity) ([]models.Record, error) {
	return models.CloneRecords(f), nil
}

func newComponent(t *testing.T, n int) *table.Component {
	t.Helper()
	e := testutil.Entity(t, "reports")
	store := datastore.New(e, staticFetcher(testutil.Records(n)), testutil.Logger())
	comp := table.NewComponent(store, table.Config{}, testutil.Logger())
	t.Cleanup(comp.Close)
	comp.Mount(context.Background())
	return comp
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

// drain applies the newest queued repaint.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	select {
	case f := <-m.frames:
		return send(t, m, frameMsg(f))
	default:
		t.Fatal("no repaint queued")
		return m
	}
}

func TestCellText(t *testing.T) {
	tests := []struct {
		name string
		cell table.Cell
		want string
	}{
		{"plain", table.Cell{Text: "Record 1"}, "Record 1"},
		{"rich", table.Cell{Format: models.FormatRich, Text: "<p>Free <b>meals</b> &amp; rides</p>"}, "Free meals & rides"},
		{"whitespace", table.Cell{Text: "a\n\n  b"}, "a b"},
		{"long", table.Cell{Text: strings.Repeat("x", 60)}, strings.Repeat("x", 39) + "…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CellText(tt.cell); got != tt.want {
				t.Errorf("CellText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrint_Rows(t *testing.T) {
	e := testutil.Entity(t, "reports")
	f := table.Render(e, table.Input{
		Filtered:    testutil.Records(3),
		RecordCount: 3,
		Filters:     filter.State{},
		Page:        paginate.NewState(10),
	})

	var buf bytes.Buffer
	if err := Print(&buf, f, DefaultStyles()); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Reports", "Title", "Record 3", "Pending", "Page 1 of 1 · 3 of 3 records"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrint_Placeholder(t *testing.T) {
	e := testutil.Entity(t, "reports")
	f := table.Render(e, table.Input{Filters: filter.State{}, Page: paginate.NewState(10)})

	var buf bytes.Buffer
	if err := Print(&buf, f, DefaultStyles()); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No Data Available") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestModel_SearchEnterAppliesImmediately(t *testing.T) {
	comp := newComponent(t, 3)
	m := NewModel(context.Background(), comp)
	if got := len(m.Frame().Rows); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}

	m = send(t, m, key("/"), key("2"))
	if !m.typing {
		t.Fatal("search box not focused")
	}
	if got := comp.Search().Value(); got != "2" {
		t.Fatalf("search value = %q, want 2", got)
	}

	m = send(t, m, key("enter"))
	m = drain(t, m)
	if m.typing {
		t.Error("search box still focused after Enter")
	}
	if got := m.Frame().Matched; got != 1 {
		t.Errorf("matched = %d, want 1", got)
	}
	if !strings.Contains(m.View(), "Record 2") {
		t.Error("view does not show the match")
	}
}

func TestModel_PagingAndClear(t *testing.T) {
	comp := newComponent(t, 25)
	m := NewModel(context.Background(), comp)

	m = drain(t, send(t, m, key("n")))
	if got := m.Frame().Page.CurrentPage; got != 2 {
		t.Fatalf("page = %d, want 2", got)
	}
	m = drain(t, send(t, m, key("p")))
	if got := m.Frame().Page.CurrentPage; got != 1 {
		t.Fatalf("page = %d, want 1", got)
	}

	m = send(t, m, key("/"), key("7"), key("enter"))
	m = drain(t, m)
	if got := m.Frame().Matched; got != 2 {
		t.Fatalf("matched = %d, want 2 (Record 7 and Record 17)", got)
	}

	m = drain(t, send(t, m, key("c")))
	if got := m.Frame().Matched; got != 25 {
		t.Errorf("matched after clear = %d, want 25", got)
	}
	if m.search.Value() != "" {
		t.Errorf("search box = %q, want empty", m.search.Value())
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(context.Background(), newComponent(t, 1))
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
