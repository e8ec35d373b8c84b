package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse <entity>",
	Short: "Browse an entity's records interactively in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		policy, err := datastore.ParseStalePolicy(cfg.GetString("datastore.stale_responses"))
		if err != nil {
			return err
		}

		// Log lines would tear the alternate screen.
		quiet := zap.NewNop()
		store := datastore.New(entity, client, quiet, datastore.WithPolicy(policy))
		comp := table.NewComponent(store, tableConfig(nil), quiet)
		defer comp.Close()

		go comp.Mount(cmd.Context())
		return tui.Browse(cmd.Context(), comp)
	},
}
