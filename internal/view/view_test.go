package view

import (
	"strings"
	"testing"

	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/internal/notify"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/internal/testutil"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

func TestRender_EscapesTextAndAttributes(t *testing.T) {
	n := El("p", A("title", `"quoted" & <b>`), Text("<script>alert(1)</script>"))
	got := String(n)
	want := `<p title="&#34;quoted&#34; &amp; &lt;b&gt;">&lt;script&gt;alert(1)&lt;/script&gt;</p>`
	if got != want {
		t.Errorf("String() = %s\nwant      %s", got, want)
	}
}

func TestRender_VoidAndBoolAttrs(t *testing.T) {
	got := String(El("input", Join(A("name", "q"), Flag("disabled", true), Flag("readonly", false))))
	if got != `<input name="q" disabled>` {
		t.Errorf("String() = %s", got)
	}
}

func TestRender_SkipsNilChildren(t *testing.T) {
	got := String(El("div", nil, nil, Text("a"), nil))
	if got != "<div>a</div>" {
		t.Errorf("String() = %s", got)
	}
}

func TestSanitizeRich(t *testing.T) {
	got := SanitizeRich(`<p onclick="x()">Hello <strong>there</strong><script>bad()</script></p>`)
	if strings.Contains(got, "script") || strings.Contains(got, "onclick") {
		t.Errorf("unsafe markup kept: %s", got)
	}
	if !strings.Contains(got, "<strong>there</strong>") {
		t.Errorf("safe markup dropped: %s", got)
	}
}

func TestTable_Rows(t *testing.T) {
	e := testutil.Entity(t, "advisories")
	recs := []models.Record{{"id": "1", "title": "Test Advisory", "uploadDate": "2025-01-01", "status": "active"}}
	f := table.Render(e, table.Input{Filtered: recs, RecordCount: 1, Filters: filter.State{}, Page: paginate.NewState(10)})
	html := String(Table(f))

	for _, want := range []string{
		`id="table-advisories"`,
		`data-state="rows"`,
		"Test Advisory",
		"January 1, 2025",
		`class="badge badge-green"`,
		`<span class="na">N/A</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("table html missing %q", want)
		}
	}
	if n := strings.Count(html, `<tr data-id=`); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestTable_NoResultsPlaceholder(t *testing.T) {
	e := testutil.Entity(t, "advisories")
	f := table.Render(e, table.Input{RecordCount: 4, Filters: filter.State{"status": "expired"}, Page: paginate.NewState(10)})
	html := String(Table(f))
	if !strings.Contains(html, "No Results Found") {
		t.Error("missing No Results Found placeholder")
	}
	if strings.Contains(html, "<table") {
		t.Error("placeholder frame rendered a table")
	}
	if !strings.Contains(html, `<option value="expired" selected>`) {
		t.Error("active filter not selected")
	}
}

func TestModal_ConfirmCancel(t *testing.T) {
	e := testutil.Entity(t, "advisories")
	s := modal.Snapshot{ID: "m1", Entity: e.Name, Kind: modal.KindAdd, State: modal.StateConfirmCancel, Editable: true,
		Fields: map[string]string{"title": "Draft"}, Error: "Title already exists"}
	html := String(Modal(e, s))
	for _, want := range []string{"Discard your unsaved changes?", "Keep editing", "Title already exists", `value="Draft"`} {
		if !strings.Contains(html, want) {
			t.Errorf("modal html missing %q", want)
		}
	}
	if Modal(e, modal.Snapshot{State: modal.StateClosed}) != nil {
		t.Error("closed modal rendered")
	}
}

func TestToasts(t *testing.T) {
	html := String(Toasts([]notify.Notification{{ID: "n1", Kind: notify.KindError, Message: "Oops <x>"}}, true))
	if !strings.Contains(html, `toast-error`) || !strings.Contains(html, "Oops &lt;x&gt;") {
		t.Errorf("toast html = %s", html)
	}
	if !strings.Contains(html, "loading-overlay") {
		t.Error("overlay missing while loading")
	}
}

func TestFileURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"advisories/abc-flyer.png", "/files/advisories/abc-flyer.png"},
		{"/static/a.pdf", "/static/a.pdf"},
		{"https://cdn.example.org/a.pdf", "https://cdn.example.org/a.pdf"},
	}
	for _, tt := range tests {
		if got := FileURL(tt.in); got != tt.want {
			t.Errorf("FileURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
