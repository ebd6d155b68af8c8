package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/catalystwells/grantd/internal/config"
	httpx "github.com/catalystwells/grantd/internal/http"
	"github.com/catalystwells/grantd/internal/observability/logger"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("serve")

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	srv := httpx.NewServer(httpx.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, d.handler)

	log.Info("grantd starting",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("alg", d.issuer.Alg()),
		logger.Bool("rotate_refresh_tokens", cfg.OAuth.RotateRefreshTokens),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
	)

	served := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(served)
		return httpx.Serve(gctx, srv, cfg.Server.ShutdownTimeout)
	})

	// El sink se drena recién cuando el server terminó: los requests en vuelo
	// todavía pueden registrar eventos durante el shutdown.
	g.Go(func() error {
		<-served
		dctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := d.sink.Close(dctx); err != nil {
			log.Warn("analytics drain incomplete", logger.Err(err))
			return err
		}
		if n := d.sink.Dropped(); n > 0 {
			log.Warn("analytics events dropped", logger.Int64("dropped", n))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("grantd stopped")
	return nil
}
