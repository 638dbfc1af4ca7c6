package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mentorbridge/mentorbridge/internal/httpapi"
	"github.com/mentorbridge/mentorbridge/metrics/export/prometheus"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := a.settings.EngineConfig()
	if err != nil {
		return err
	}
	rdb, err := a.redis(ctx)
	if err != nil {
		return err
	}
	engine, err := a.engine(cfg, rdb)
	if err != nil {
		return err
	}

	opts := httpapi.Options{
		Mode:        a.settings.Server.Mode,
		CORSOrigins: a.settings.Server.CORSOrigins,
	}
	if a.settings.Metrics.Enabled {
		opts.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}
	if a.settings.Metrics.Enabled && a.settings.Metrics.OTel.Enabled {
		shutdownOTel, err := startOTel(engine, a.settings.Metrics.OTel, a.logger)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(flushCtx); err != nil {
				a.logger.WithError(err).Warn("otel shutdown")
			}
		}()
	}

	srv := &http.Server{
		Addr:              a.settings.Server.Addr,
		Handler:           httpapi.New(engine, a.logger, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("server forced to shutdown")
		return err
	}
	a.logger.Info("server exited")
	return nil
}
