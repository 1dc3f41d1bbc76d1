package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/dashboard"
	"github.com/masjid-network/masjidctl/internal/timetable"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web dashboard",
	Long: `Run the masjidctl dashboard on a loopback address.

The dashboard reuses the CLI session: tokens stored by "masjidctl login" sign
the browser in, and signing in through the browser updates the token file the
other commands read. Requests from non-loopback addresses are rejected.

Examples:
  # Serve on the configured address (default 127.0.0.1:8754)
  masjidctl serve

  # Serve with per-request trace spans printed to stderr
  masjidctl serve --trace`,
	RunE: runServe,
}

var traceRequests bool

func init() {
	serveCmd.Flags().BoolVar(&traceRequests, "trace", false, "export request trace spans to stderr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C exits immediately.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	var extra []api.Option
	var tp *sdktrace.TracerProvider
	if traceRequests {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		extra = append(extra, api.WithTracer(tp.Tracer("masjidctl")))
	}

	app, err := buildApp(ctx, true, extra...)
	if err != nil {
		return err
	}
	defer app.close()
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	_, _, maxAge, err := app.cfg.Durations()
	if err != nil {
		return err
	}
	cache, err := timetable.OpenCache(app.cfg.Timetable.CachePath, maxAge, app.logger)
	if err != nil {
		return fmt.Errorf("open timetable cache: %w", err)
	}
	defer func() { _ = cache.Close() }()
	if pruned, err := cache.Prune(ctx); err != nil {
		app.logger.Warn("prune timetable cache", "error", err)
	} else if pruned > 0 {
		app.logger.Debug("pruned stale timetable months", "count", pruned)
	}

	server, err := dashboard.NewServer(app.cfg, app.sessions, app.client, cache, app.registry, app.logger)
	if err != nil {
		return err
	}

	app.logger.Info("dashboard starting",
		"addr", app.cfg.Dashboard.Addr,
		"signed_in", app.sessions.Snapshot().Authenticated,
	)
	fmt.Fprintf(os.Stderr, "Dashboard: http://%s/\n", app.cfg.Dashboard.Addr)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	app.logger.Info("dashboard stopped")
	return nil
}
