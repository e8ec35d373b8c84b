package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/internal/catalog"
	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/emulator"
	"github.com/HerbHall/welfaredesk/internal/metrics"
	"github.com/HerbHall/welfaredesk/internal/registry"
	"github.com/HerbHall/welfaredesk/internal/server"
	"github.com/HerbHall/welfaredesk/internal/workspace"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

const shutdownTimeout = 10 * time.Second

var serveEmulate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin front end",
	Long: `Serve the admin pages, the JSON API and /metrics.

With --emulate the manage endpoints are served in-process from a SQLite
database and the admin talks to them over loopback.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveEmulate, "emulate", false, "serve the manage endpoints in-process")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openCatalog()
	if err != nil {
		return err
	}
	files, err := attachments.Open(ctx, cfg.Sub("attachments"))
	if err != nil {
		return err
	}
	m := metrics.New()

	port := cfg.GetString("server.port")
	addr := net.JoinHostPort(cfg.GetString("server.host"), port)
	mods := []plugin.Plugin{catalog.NewModule(src, 0)}

	baseURL := cfg.GetString("endpoint.base_url")
	if serveEmulate || cfg.GetBool("emulator.embedded") {
		emu, db, err := openEmulator(ctx, src, files)
		if err != nil {
			return err
		}
		defer db.Close()
		prefix := "/" + strings.Trim(cfg.GetString("emulator.prefix"), "/") + "/"
		mods = append(mods, emulator.NewModule(emu, prefix))
		baseURL = "http://" + net.JoinHostPort("127.0.0.1", port) + prefix
		logger.Info("serving emulated endpoints", zap.String("base_url", baseURL))
	}

	client, err := newClient(baseURL, m)
	if err != nil {
		return err
	}
	policy, err := datastore.ParseStalePolicy(cfg.GetString("datastore.stale_responses"))
	if err != nil {
		return err
	}
	mgr := workspace.NewManager(workspace.Deps{
		Backend:            client,
		Entities:           src,
		Table:              tableConfig(m),
		StalePolicy:        policy,
		Logger:             logger.Named("workspace"),
		SubmissionObserver: m,
		Gauge:              m,
		IdleTTL:            cfg.GetDuration("workspace.idle_ttl"),
		SecureCookie:       cfg.GetBool("server.secure_cookie"),
	})
	mods = append(mods, server.NewAdmin(server.AdminConfig{
		Workspaces:    mgr,
		Files:         files,
		SweepInterval: cfg.GetDuration("workspace.sweep_interval"),
		Origins:       cfg.GetStringSlice("server.allowed_origins"),
	}))

	reg := registry.New(logger.Named("registry"))
	for _, mod := range mods {
		if err := reg.Register(mod); err != nil {
			return err
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("validate modules: %w", err)
	}
	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{Logger: logger.Named(name)}
	}); err != nil {
		return fmt.Errorf("init modules: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("start modules: %w", err)
	}

	srv := server.New(addr, reg, logger,
		server.WithRateLimit(cfg.GetFloat64("server.rate_limit"), cfg.GetInt("server.rate_burst")),
		server.WithHandler("GET /metrics", m.Handler()),
	)
	return serveUntilDone(ctx, srv.Start, srv.Shutdown, func(ctx context.Context) {
		reg.StopAll(ctx)
	})
}

// serveUntilDone runs start until it fails or ctx ends, then shuts down
// within shutdownTimeout and runs the cleanups in order.
func serveUntilDone(ctx context.Context, start func() error, shutdown func(context.Context) error, cleanups ...func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := shutdown(sctx)
		for _, fn := range cleanups {
			fn(sctx)
		}
		return err
	})
	return g.Wait()
}
