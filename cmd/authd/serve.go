package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/httpapi"
	otelexport "github.com/MrEthical07/sessionauth/metrics/export/otel"
	promexport "github.com/MrEthical07/sessionauth/metrics/export/prometheus"
	"github.com/MrEthical07/sessionauth/session"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. Configuration is read from the --config YAML file,
then AUTHD_ environment variables, then flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, logger)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

// app is a fully wired engine and HTTP handler.
type app struct {
	engine  *sessionauth.Engine
	handler *httpapi.Handler
	deps    *deps
	otel    *otelexport.Exporter
}

func (a *app) Close() {
	if a.otel != nil {
		_ = a.otel.Close()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.deps != nil {
		a.deps.Close()
	}
}

func newApp(ctx context.Context, cfg appConfig, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.deps, err = openDeps(ctx, &cfg, logger)
	if err != nil {
		return nil, err
	}

	var sink sessionauth.AuditSink
	if cfg.Auth.Audit.Enabled {
		sink = sessionauth.NewSlogSink(logger.With("component", "audit"))
	}

	a.engine, err = sessionauth.New().
		WithConfig(cfg.Auth).
		WithRedis(a.deps.redis).
		WithUserStore(a.deps.users).
		WithCodeStore(a.deps.codes).
		WithMailer(a.deps.mailer).
		WithLogger(logger).
		WithAuditSink(sink).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	sessions := session.NewStore(a.deps.redis, cfg.Auth.Session.RedisPrefix)
	opts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithHealthCheck("redis", func(ctx context.Context) error {
			_, err := sessions.Ping(ctx)
			return err
		}),
	}
	if a.deps.pool != nil {
		opts = append(opts, httpapi.WithHealthCheck("postgres", a.deps.pool.Ping))
	}

	if cfg.Auth.Metrics.Enabled {
		opts = append(opts, httpapi.WithMetricsHandler(promexport.NewExporter(a.engine).Handler()))

		a.otel, err = otelexport.NewGlobalExporter(a.engine)
		if err != nil {
			return nil, fmt.Errorf("otel exporter: %w", err)
		}
	}

	a.handler, err = httpapi.New(a.engine, cfg.HTTP, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func runServer(ctx context.Context, cfg appConfig, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authd.listening", "addr", cfg.Addr, "dev", cfg.Dev)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("authd.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
