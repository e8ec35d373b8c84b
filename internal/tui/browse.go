package tui

import (
	"context"
	"errors"
	"strings"

	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/table"
)

// Table is the part of a table component the browser drives.
type Table interface {
	Frame() table.Frame
	OnRepaint(fn func(table.Frame))
	Search() *filter.SearchInput
	GoToPage(p int) bool
	SetSort(order string)
	ResetFilters()
	Refresh(ctx context.Context) datastore.Result
}

// frameMsg carries a repaint from the component into the program.
type frameMsg table.Frame

// refreshedMsg reports the end of a refetch started with "r".
type refreshedMsg struct{ err error }

var sortCycle = []string{filter.SortNone, filter.SortDateDesc, filter.SortDateAsc}

// Model is the interactive table browser. Search keystrokes go through the
// component's debounced search box; repaints arrive as frameMsg.
type Model struct {
	ctx    context.Context
	comp   Table
	frames chan table.Frame

	frame  table.Frame
	grid   btable.Model
	search textinput.Model
	typing bool
	sort   int
	status string
	failed bool
	styles Styles
}

// NewModel creates a browser over comp and subscribes to its repaints.
func NewModel(ctx context.Context, comp Table) Model {
	frames := make(chan table.Frame, 1)
	comp.OnRepaint(func(f table.Frame) { latest(frames, f) })

	ti := textinput.New()
	ti.Placeholder = "Search…"
	ti.CharLimit = 120
	ti.Width = 40
	ti.Prompt = "/ "

	m := Model{
		ctx:    ctx,
		comp:   comp,
		frames: frames,
		grid:   btable.New(btable.WithFocused(true), btable.WithHeight(12)),
		search: ti,
		styles: DefaultStyles(),
	}
	m.apply(comp.Frame())
	return m
}

// latest keeps only the newest frame queued.
func latest(ch chan table.Frame, f table.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m Model) waitFrame() tea.Cmd {
	return func() tea.Msg {
		select {
		case f := <-m.frames:
			return frameMsg(f)
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

// Init starts listening for repaints.
func (m Model) Init() tea.Cmd { return m.waitFrame() }

// Update handles keys, repaints and window resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.apply(table.Frame(msg))
		return m, m.waitFrame()
	case refreshedMsg:
		m.status, m.failed = "", msg.err != nil
		if msg.err != nil {
			m.status = "Refresh failed: " + msg.err.Error()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.grid.SetHeight(max(msg.Height-8, 3))
		return m, nil
	case tea.KeyMsg:
		if m.typing {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.comp.Search().Enter()
		m.typing = false
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.typing = false
		m.search.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.comp.Search().Type(v)
	}
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.typing = true
		return m, m.search.Focus()
	case "n", "right":
		m.comp.GoToPage(m.frame.Page.CurrentPage + 1)
		return m, nil
	case "p", "left":
		m.comp.GoToPage(m.frame.Page.CurrentPage - 1)
		return m, nil
	case "s":
		m.sort = (m.sort + 1) % len(sortCycle)
		m.comp.SetSort(sortCycle[m.sort])
		return m, nil
	case "c":
		m.sort = 0
		m.search.SetValue("")
		m.comp.ResetFilters()
		return m, nil
	case "r":
		m.status, m.failed = "Refreshing…", false
		comp, ctx := m.comp, m.ctx
		return m, func() tea.Msg {
			return refreshedMsg{err: comp.Refresh(ctx).Err}
		}
	}
	var cmd tea.Cmd
	m.grid, cmd = m.grid.Update(msg)
	return m, cmd
}

// apply shows f. Column widths follow the widest visible value.
func (m *Model) apply(f table.Frame) {
	m.frame = f
	cols := make([]btable.Column, len(f.Columns))
	for i, c := range f.Columns {
		cols[i] = btable.Column{Title: c.Label, Width: len([]rune(c.Label))}
	}
	rows := make([]btable.Row, 0, len(f.Rows))
	for _, r := range f.Rows {
		row := make(btable.Row, len(cols))
		for j, c := range r.Cells {
			if j >= len(cols) {
				break
			}
			row[j] = CellText(c)
			if w := len([]rune(row[j])); w > cols[j].Width {
				cols[j].Width = w
			}
		}
		rows = append(rows, row)
	}
	// Rows must be cleared before the column count changes.
	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.frame.Label))
	b.WriteString("\n")
	box := m.styles.Search
	if m.typing {
		box = m.styles.Focused
	}
	b.WriteString(box.Render(m.search.View()))
	b.WriteString("\n")

	if m.frame.State == table.StateRows {
		b.WriteString(m.grid.View())
	} else {
		b.WriteString(m.styles.Header.Render(m.frame.Title))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(m.frame.Message))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(summary(m.frame)))
	if m.status != "" {
		style := m.styles.Muted
		if m.failed {
			style = m.styles.Error
		}
		b.WriteString("\n")
		b.WriteString(style.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("/ search · n/p page · s sort · c clear · r refresh · q quit"))
	return b.String()
}

// Frame is the frame currently shown.
func (m Model) Frame() table.Frame { return m.frame }

// Browse runs the browser until the user quits or ctx ends.
func Browse(ctx context.Context, comp Table) error {
	p := tea.NewProgram(NewModel(ctx, comp), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
