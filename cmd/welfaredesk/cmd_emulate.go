package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/attachments"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Serve the manage endpoints from a local SQLite database",
	Long: `Serve the manage-endpoint scripts (getReports.php, manageNews.php, ...)
backed by SQLite, for development without the production backend.

Seed data is read from the YAML file named by --seed: a map from entity
name to a list of records.`,
	RunE: runEmulate,
}

func init() {
	f := emulateCmd.Flags()
	f.String("addr", "", "listen address (default emulator.addr)")
	f.String("seed", "", "YAML file of records to load at startup")
	f.Duration("latency", 0, "delay added to every response")
}

func runEmulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Flags override the emulator.* keys.
	for flag, key := range map[string]string{"addr": "emulator.addr", "seed": "emulator.seed", "latency": "emulator.latency"} {
		if f := cmd.Flags().Lookup(flag); f.Changed {
			cfg.Viper().Set(key, f.Value.String())
		}
	}

	src, err := openCatalog()
	if err != nil {
		return err
	}
	files, err := attachments.Open(ctx, cfg.Sub("attachments"))
	if err != nil {
		return err
	}
	emu, db, err := openEmulator(ctx, src, files)
	if err != nil {
		return err
	}
	defer db.Close()

	prefix := "/" + strings.Trim(cfg.GetString("emulator.prefix"), "/")
	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix, emu.Handler()))
	srv := &http.Server{
		Addr:              cfg.GetString("emulator.addr"),
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}
	logger.Info("emulating manage endpoints",
		zap.String("addr", srv.Addr),
		zap.String("prefix", prefix+"/"),
		zap.String("db", db.Path()),
	)
	return serveUntilDone(ctx, func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, srv.Shutdown)
}
