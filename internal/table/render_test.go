package table

import (
	"testing"

	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/internal/testutil"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

func TestRender_States(t *testing.T) {
	e := testutil.Entity(t, "reports")
	recs := testutil.Records(3)
	tests := []struct {
		name string
		in   Input
		want State
	}{
		{"loading wins", Input{Filtered: recs, RecordCount: 3, Loading: true, Filtering: true}, StateLoading},
		{"filtering", Input{Filtered: recs, RecordCount: 3, Filtering: true}, StateFiltering},
		{"no data", Input{RecordCount: 0}, StateNoData},
		{"no results", Input{RecordCount: 3, Filters: filter.State{"status": "archived"}}, StateNoResults},
		{"rows", Input{Filtered: recs, RecordCount: 3}, StateRows},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Page = paginate.NewState(10)
			f := Render(e, tc.in)
			if f.State != tc.want {
				t.Errorf("State = %q, want %q", f.State, tc.want)
			}
			if tc.want != StateRows && (len(f.Rows) != 0 || f.Title == "") {
				t.Errorf("placeholder frame rows=%d title=%q", len(f.Rows), f.Title)
			}
		})
	}
}

func TestRender_NoResultsTitle(t *testing.T) {
	f := Render(testutil.Entity(t, "reports"), Input{RecordCount: 5, Page: paginate.NewState(10)})
	if f.Title != "No Results Found" {
		t.Errorf("Title = %q, want No Results Found", f.Title)
	}
}

func TestRender_PagesRows(t *testing.T) {
	recs := testutil.Records(23)
	f := Render(testutil.Entity(t, "reports"), Input{
		Filtered:    recs,
		RecordCount: 23,
		Page:        paginate.State{CurrentPage: 3, RowsPerPage: 10},
	})
	if len(f.Rows) != 3 || f.Rows[0].ID != "21" {
		t.Errorf("rows = %d first = %q, want 3 starting at 21", len(f.Rows), f.Rows[0].ID)
	}
	if f.TotalPages != 3 || f.Matched != 23 {
		t.Errorf("TotalPages = %d Matched = %d", f.TotalPages, f.Matched)
	}
}

func TestProjectRow(t *testing.T) {
	e := testutil.Entity(t, "reports")
	r := models.Record{
		"id":         float64(4),
		"title":      "Pending Report",
		"department": "",
		"reportDate": "2025-01-01",
		"status":     "approved",
		"filePath":   "uploads/reports/q1.pdf",
	}
	row := ProjectRow(e, r)
	got := map[string]Cell{}
	for _, c := range row.Cells {
		got[c.Key] = c
	}
	if row.ID != "4" {
		t.Errorf("ID = %q, want 4", row.ID)
	}
	if c := got["department"]; c.Text != NotAvailable || !c.Missing {
		t.Errorf("department = %+v, want N/A", c)
	}
	if c := got["reportDate"]; c.Text != "January 1, 2025" {
		t.Errorf("reportDate = %q, want January 1, 2025", c.Text)
	}
	if c := got["status"]; c.Text != "Approved" || c.Badge != "green" {
		t.Errorf("status = %+v, want Approved/green", c)
	}
	if c := got["filePath"]; c.Text != "q1.pdf" || c.Href != "uploads/reports/q1.pdf" {
		t.Errorf("filePath = %+v", c)
	}
}

func TestProjectRow_UnknownBadgeIsGray(t *testing.T) {
	e := testutil.Entity(t, "reports")
	row := ProjectRow(e, models.Record{"id": "1", "status": "escalated"})
	for _, c := range row.Cells {
		if c.Key == "status" && c.Badge != "gray" {
			t.Errorf("badge = %q, want gray", c.Badge)
		}
	}
}
