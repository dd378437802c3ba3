package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/drivecast/internal/server"
	"github.com/tonimelisma/drivecast/internal/tokenstore"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Run the drivecast HTTP server until interrupted.

Only one server may run per data directory: a locked PID file prevents two
servers from refreshing the same token. Logins and logouts made with the CLI
while the server runs are picked up from the token store.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "listen address (overrides server.listen)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	cleanup, err := writePIDFile(cfg.PIDPath)
	if err != nil {
		return err
	}
	defer cleanup()

	app, err := NewApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	events := server.NewEvents(logger)
	app.Session.OnInvalidate(events)

	ctx := shutdownContext(cmd.Context(), logger, func() drainState {
		return drainState{Streams: app.Proxy.Active(), Subscribers: events.Subscribers()}
	})

	handler := server.NewHandler(server.Dependencies{
		Session:  app.Session,
		Catalog:  app.Catalog,
		Streamer: app.Proxy,
		Events:   events,
	}, server.Options{
		StaticDir: cfg.Server.StaticDir,
		RateLimit: float64(cfg.Server.RateLimit),
		RateBurst: cfg.Server.RateBurst,
	}, logger)

	srv := server.New(cfg.Server.Listen, handler, logger)

	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	statusf(flagQuiet, "drivecast listening on http://%s\n", ln.Addr())

	if ok, authErr := app.Session.Authenticated(ctx); authErr == nil && !ok {
		statusf(flagQuiet, "Not signed in yet: open http://%s/auth/login to connect Google Drive.\n", ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		events.Close()

		return srv.Shutdown(cfg.ShutdownTimeout)
	})

	if cfg.Token.Backend != tokenstore.BackendMemory {
		app.Session.Recheck(ctx)

		g.Go(func() error {
			err := tokenstore.Watch(gctx, cfg.TokenPath, func() { app.Session.Recheck(gctx) }, logger)
			if err != nil {
				// Serving still works; only outside logins go unnoticed.
				logger.Warn("not watching token store", slog.String("error", err.Error()))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("server stopped", slog.String("addr", ln.Addr().String()))

	return nil
}
