// Package paginate slices filtered records into pages and builds the page
// button bar shown under a table.
package paginate

import (
	"slices"
	"strconv"
)

// DefaultRowsPerPage is used when no valid page size is configured.
const DefaultRowsPerPage = 10

// window is how many pages either side of the current page get a button.
const window = 2

// RowsPerPageOptions are the page sizes a table offers.
var RowsPerPageOptions = []int{5, 10, 25, 50, 100}

// ValidRowsPerPage reports whether n is an offered page size.
func ValidRowsPerPage(n int) bool { return slices.Contains(RowsPerPageOptions, n) }

// State is a table's position in its filtered records.
type State struct {
	CurrentPage int `json:"current_page"`
	RowsPerPage int `json:"rows_per_page"`
}

// NewState returns page 1 at rowsPerPage, or at DefaultRowsPerPage when
// rowsPerPage is not an offered size.
func NewState(rowsPerPage int) State {
	if !ValidRowsPerPage(rowsPerPage) {
		rowsPerPage = DefaultRowsPerPage
	}
	return State{CurrentPage: 1, RowsPerPage: rowsPerPage}
}

// TotalPages returns ceil(total/rowsPerPage); zero when total is zero.
func TotalPages(total, rowsPerPage int) int {
	if total <= 0 || rowsPerPage <= 0 {
		return 0
	}
	return (total + rowsPerPage - 1) / rowsPerPage
}

// GoToPage moves to page p when 1 <= p <= TotalPages(total). It reports
// whether the page changed; out-of-range requests are ignored.
func (s *State) GoToPage(p, total int) bool {
	if p < 1 || p > TotalPages(total, s.RowsPerPage) || p == s.CurrentPage {
		return false
	}
	s.CurrentPage = p
	return true
}

// SetRowsPerPage changes the page size and returns to page 1. Sizes that are
// not offered are ignored.
func (s *State) SetRowsPerPage(n int) bool {
	if !ValidRowsPerPage(n) {
		return false
	}
	s.RowsPerPage = n
	s.CurrentPage = 1
	return true
}

// Reset returns to page 1.
func (s *State) Reset() { s.CurrentPage = 1 }

// Clamp pulls CurrentPage into [1, max(1, TotalPages(total))].
func (s *State) Clamp(total int) {
	last := max(1, TotalPages(total, s.RowsPerPage))
	s.CurrentPage = min(max(1, s.CurrentPage), last)
}

// Page returns the slice of items visible on the current page. The state is
// clamped against len(items) first.
func Page[T any](items []T, s State) []T {
	s.Clamp(len(items))
	if s.RowsPerPage <= 0 {
		return items
	}
	start := (s.CurrentPage - 1) * s.RowsPerPage
	if start >= len(items) {
		return items[:0]
	}
	end := min(start+s.RowsPerPage, len(items))
	return items[start:end]
}

// ButtonKind distinguishes entries of the page button bar.
type ButtonKind string

const (
	ButtonPrev     ButtonKind = "prev"
	ButtonNext     ButtonKind = "next"
	ButtonPage     ButtonKind = "page"
	ButtonEllipsis ButtonKind = "ellipsis"
)

// Button is one entry of the page button bar. Page is the target page for
// prev, next and page buttons.
type Button struct {
	Kind     ButtonKind `json:"kind"`
	Label    string     `json:"label"`
	Page     int        `json:"page,omitempty"`
	Current  bool       `json:"current,omitempty"`
	Disabled bool       `json:"disabled,omitempty"`
}

// Buttons builds the bar for total filtered records: Prev, the first and
// last pages, the current page with two neighbours either side, ellipses
// over gaps, and Next. With no records it is a single disabled "1" between
// disabled Prev and Next.
func Buttons(total int, s State) []Button {
	pages := TotalPages(total, s.RowsPerPage)
	if pages == 0 {
		return []Button{
			{Kind: ButtonPrev, Label: "Prev", Disabled: true},
			{Kind: ButtonPage, Label: "1", Page: 1, Current: true, Disabled: true},
			{Kind: ButtonNext, Label: "Next", Disabled: true},
		}
	}
	s.Clamp(total)
	cur := s.CurrentPage

	out := []Button{{Kind: ButtonPrev, Label: "Prev", Page: cur - 1, Disabled: cur == 1}}
	prev := 0
	for p := 1; p <= pages; p++ {
		if p != 1 && p != pages && (p < cur-window || p > cur+window) {
			continue
		}
		if prev != 0 && p-prev > 1 {
			out = append(out, Button{Kind: ButtonEllipsis, Label: "…", Disabled: true})
		}
		out = append(out, Button{Kind: ButtonPage, Label: strconv.Itoa(p), Page: p, Current: p == cur})
		prev = p
	}
	out = append(out, Button{Kind: ButtonNext, Label: "Next", Page: cur + 1, Disabled: cur == pages})
	return out
}
