package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/internal/tui"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

var (
	listSearch  string
	listFilters map[string]string
	listSort    string
	listPage    int
	listRows    int
)

var listCmd = &cobra.Command{
	Use:   "list <entity>",
	Short: "Print one page of an entity's records",
	Example: `  welfaredesk list reports --filter status=pending --sort date_desc
  welfaredesk list news --search budget --page 2`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listSearch, "search", "", "free-text search")
	f.StringToStringVar(&listFilters, "filter", nil, "categorical filter key=value (repeatable)")
	f.StringVar(&listSort, "sort", filter.SortNone, "date order: date_desc or date_asc")
	f.IntVar(&listPage, "page", 1, "page to print")
	f.IntVar(&listRows, "rows", 0, "rows per page (5, 10, 25, 50 or 100)")
}

func runList(cmd *cobra.Command, args []string) error {
	src, err := openCatalog()
	if err != nil {
		return err
	}
	entity, ok := src.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown entity %q (known: %v)", args[0], src.Names())
	}
	client, err := newClient(cfg.GetString("endpoint.base_url"), nil)
	if err != nil {
		return err
	}

	store := datastore.New(entity, client, logger.Named("datastore"))
	if res := store.Fetch(cmd.Context()); res.Err != nil {
		return fmt.Errorf("fetch %s: %w", entity.Name, res.Err)
	}

	state := filter.State{}
	for k, v := range listFilters {
		state.Set(k, v)
	}
	state.Set(models.FilterKeySearch, listSearch)
	state.Set(models.FilterKeySort, listSort)
	matched := filter.Apply(store.Records(), entity, state)

	rows := listRows
	if rows == 0 {
		rows = cfg.GetInt("table.rows_per_page")
	}
	if !paginate.ValidRowsPerPage(rows) {
		return fmt.Errorf("rows per page must be one of %v", paginate.RowsPerPageOptions)
	}
	page := paginate.NewState(rows)
	if listPage != page.CurrentPage && !page.GoToPage(listPage, len(matched)) {
		return fmt.Errorf("page %d out of range (1-%d)", listPage, max(paginate.TotalPages(len(matched), rows), 1))
	}

	frame := table.Render(entity, table.Input{
		Filtered:    matched,
		RecordCount: store.Len(),
		Filters:     state,
		Page:        page,
	})
	return tui.Print(cmd.OutOrStdout(), frame, tui.DefaultStyles())
}
