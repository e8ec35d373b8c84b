package tui

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"

	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

// maxCellWidth truncates long values such as article bodies.
const maxCellWidth = 40

var plainText = bluemonday.StrictPolicy()

// CellText is the terminal form of a cell: rich text loses its markup and
// everything is cut to maxCellWidth.
func CellText(c table.Cell) string {
	text := c.Text
	if c.Format == models.FormatRich && !c.Missing {
		text = html.UnescapeString(plainText.Sanitize(text))
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > maxCellWidth {
		text = string(r[:maxCellWidth-1]) + "…"
	}
	return text
}

// Print writes one frame as a bordered table followed by the page summary.
// Placeholder frames print their title and message instead of rows.
func Print(w io.Writer, f table.Frame, st Styles) error {
	var b strings.Builder
	b.WriteString(st.Title.Render(f.Label))
	b.WriteString("\n")

	if f.State != table.StateRows {
		b.WriteString(st.Header.Render(f.Title))
		b.WriteString("\n")
		b.WriteString(st.Muted.Render(f.Message))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	headers := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		headers[i] = c.Label
	}
	rows := make([][]string, len(f.Rows))
	for i, r := range f.Rows {
		rows[i] = make([]string, len(r.Cells))
		for j, c := range r.Cells {
			rows[i][j] = CellText(c)
		}
	}
	b.WriteString(grid(headers, rows, f, st))
	b.WriteString("\n")
	b.WriteString(st.Muted.Render(summary(f)))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func summary(f table.Frame) string {
	return fmt.Sprintf("Page %d of %d · %d of %d records",
		f.Page.CurrentPage, max(f.TotalPages, 1), f.Matched, f.RecordCount)
}

func grid(headers []string, rows [][]string, f table.Frame, st Styles) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(st.Header.Width(widths[i] + 2).Render(h))
	}
	b.WriteString("\n")
	for i, row := range rows {
		for j, cell := range row {
			if j >= len(widths) {
				break
			}
			text := cell
			if c := f.Rows[i].Cells[j]; c.Format == models.FormatBadge && !c.Missing {
				text = st.Badge(cell, c.Badge)
			}
			b.WriteString(st.Cell.Width(widths[j] + 2).Render(text))
		}
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		Render(strings.TrimRight(b.String(), "\n"))
}
