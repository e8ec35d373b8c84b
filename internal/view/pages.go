package view

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/internal/notify"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

// richPolicy sanitizes rich-text cells, which hold administrator-entered
// HTML.
var richPolicy = bluemonday.UGCPolicy()

// SanitizeRich returns s with unsafe markup removed.
func SanitizeRich(s string) string { return richPolicy.Sanitize(s) }

// TableID is the DOM id of an entity's table section. Live repaints replace
// the element with this id.
func TableID(entity string) string { return "table-" + entity }

// Base is the URL prefix of the admin pages.
const Base = "/admin"

// FilesBase is where stored attachments are served.
const FilesBase = "/files"

func entityURL(entity string) string { return Base + "/" + url.PathEscape(entity) }

// FileURL maps a record's file field to a link. Absolute URLs pass through;
// anything else is a storage key.
func FileURL(v string) string {
	if strings.HasPrefix(v, "/") || strings.Contains(v, "://") {
		return v
	}
	return FilesBase + "/" + v
}

// Table renders one repaint of an entity table.
func Table(f table.Frame) *Node {
	return El("section", A("id", TableID(f.Entity), "class", "admin-table", "data-entity", f.Entity, "data-state", string(f.State)),
		El("header", A("class", "table-header"),
			El("h1", nil, Text(f.Label)),
			toolbarActions(f),
		),
		filterBar(f),
		body(f),
		pager(f),
	)
}

func toolbarActions(f table.Frame) *Node {
	var add *Node
	if f.Addable {
		add = El("form", A("method", "post", "action", entityURL(f.Entity)+"/modals"),
			El("input", A("type", "hidden", "name", "kind", "value", string(modal.KindAdd))),
			El("button", A("type", "submit", "class", "btn btn-primary"), Text("Add "+f.Label)),
		)
	}
	return El("div", A("class", "table-actions"),
		El("form", A("method", "post", "action", entityURL(f.Entity)+"/refresh"),
			El("button", A("type", "submit", "class", "btn"), Text("Refresh")),
		),
		add,
	)
}

func filterBar(f table.Frame) *Node {
	form := El("form", A("method", "get", "action", entityURL(f.Entity), "class", "filter-bar"),
		El("input", A("type", "search", "name", models.FilterKeySearch, "placeholder", "Search…",
			"value", f.Filters.Get(models.FilterKeySearch), "data-live-search", f.Entity)),
	)
	for _, ff := range f.FilterFields {
		cur := f.Filters.Get(ff.Key)
		opts := []*Node{El("option", A("value", ""), Text("All "+ff.Label))}
		for _, v := range ff.Values {
			opts = append(opts, El("option", Join(A("value", v), Flag("selected", v == cur)), Text(v)))
		}
		form.Children = append(form.Children, El("select", A("name", ff.Key, "aria-label", ff.Label), opts...))
	}
	sortCur := f.Filters.Get(models.FilterKeySort)
	form.Children = append(form.Children,
		El("select", A("name", models.FilterKeySort, "aria-label", "Sort"),
			El("option", Join(A("value", filter.SortNone), Flag("selected", sortCur == filter.SortNone)), Text("Default order")),
			El("option", Join(A("value", filter.SortDateDesc), Flag("selected", sortCur == filter.SortDateDesc)), Text("Newest first")),
			El("option", Join(A("value", filter.SortDateAsc), Flag("selected", sortCur == filter.SortDateAsc)), Text("Oldest first")),
		),
		El("button", A("type", "submit", "class", "btn"), Text("Apply")),
		El("a", A("href", entityURL(f.Entity)+"?reset=1", "class", "btn btn-link"), Text("Reset")),
	)
	return form
}

func body(f table.Frame) *Node {
	if f.State != table.StateRows {
		var spinner *Node
		if f.State == table.StateLoading || f.State == table.StateFiltering {
			spinner = El("div", A("class", "spinner", "aria-hidden", "true"))
		}
		return El("div", A("class", "placeholder placeholder-"+string(f.State), "role", "status"),
			spinner,
			El("h2", nil, Text(f.Title)),
			El("p", nil, Text(f.Message)),
		)
	}
	head := El("tr", nil)
	for _, c := range f.Columns {
		head.Children = append(head.Children, El("th", A("scope", "col"), Text(c.Label)))
	}
	head.Children = append(head.Children, El("th", A("scope", "col"), Text("Actions")))

	rows := El("tbody", nil)
	for _, r := range f.Rows {
		tr := El("tr", A("data-id", r.ID))
		for _, c := range r.Cells {
			tr.Children = append(tr.Children, El("td", A("data-key", c.Key), cell(c)))
		}
		tr.Children = append(tr.Children, El("td", A("class", "row-actions"),
			El("form", A("method", "post", "action", entityURL(f.Entity)+"/modals"),
				El("input", A("type", "hidden", "name", "kind", "value", string(modal.KindView))),
				El("input", A("type", "hidden", "name", "id", "value", r.ID)),
				El("button", A("type", "submit", "class", "btn btn-small"), Text("View")),
			),
		))
		rows.Children = append(rows.Children, tr)
	}
	return El("table", A("class", "data-table"), El("thead", nil, head), rows)
}

func cell(c table.Cell) *Node {
	if c.Missing {
		return El("span", A("class", "na"), Text(c.Text))
	}
	switch c.Format {
	case models.FormatBadge:
		return El("span", A("class", "badge badge-"+c.Badge), Text(c.Text))
	case models.FormatRich:
		return El("div", A("class", "rich"), Raw(SanitizeRich(c.Text)))
	case models.FormatFile:
		return El("a", A("href", FileURL(c.Href), "target", "_blank", "rel", "noopener"), Text(c.Text))
	}
	return Text(c.Text)
}

func pager(f table.Frame) *Node {
	nav := El("nav", A("class", "pagination", "aria-label", "Pagination"))
	for _, b := range f.Buttons {
		switch {
		case b.Kind == paginate.ButtonEllipsis:
			nav.Children = append(nav.Children, El("span", A("class", "ellipsis"), Text(b.Label)))
		case b.Disabled:
			class := "page-btn disabled"
			if b.Current {
				class += " current"
			}
			nav.Children = append(nav.Children, El("span", A("class", class, "aria-disabled", "true"), Text(b.Label)))
		case b.Current:
			nav.Children = append(nav.Children, El("a", A("href", pageURL(f.Entity, b.Page), "class", "page-btn current", "aria-current", "page"), Text(b.Label)))
		default:
			nav.Children = append(nav.Children, El("a", A("href", pageURL(f.Entity, b.Page), "class", "page-btn"), Text(b.Label)))
		}
	}

	sizes := El("select", A("name", "rows", "aria-label", "Rows per page"))
	for _, n := range paginate.RowsPerPageOptions {
		sizes.Children = append(sizes.Children,
			El("option", Join(A("value", strconv.Itoa(n)), Flag("selected", n == f.Page.RowsPerPage)), Text(strconv.Itoa(n))))
	}
	summary := fmt.Sprintf("%d of %d records", f.Matched, f.RecordCount)
	return El("footer", A("class", "table-footer"),
		El("span", A("class", "summary"), Text(summary)),
		nav,
		El("form", A("method", "get", "action", entityURL(f.Entity)),
			sizes,
			El("button", A("type", "submit", "class", "btn btn-small"), Text("Show")),
		),
	)
}

func pageURL(entity string, page int) string {
	return entityURL(entity) + "?page=" + strconv.Itoa(page)
}

// NoticesID is the DOM id of the element Toasts renders; live pushes
// replace it whole.
const NoticesID = "notices"

// Toasts renders the notification stack and the loading overlay.
func Toasts(items []notify.Notification, loading bool) *Node {
	stack := El("div", A("id", "toasts", "class", "toasts", "aria-live", "polite"))
	for _, n := range items {
		stack.Children = append(stack.Children,
			El("div", A("class", "toast toast-"+string(n.Kind), "data-id", n.ID), Text(n.Message)))
	}
	var overlay *Node
	if loading {
		overlay = El("div", A("id", "loading-overlay", "class", "loading-overlay"), El("div", A("class", "spinner")))
	}
	return El("div", A("id", NoticesID), stack, overlay)
}
