package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/server"
	"github.com/gauthierbraillon/subfeed/internal/store"
)

const shutdownTimeout = 30 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed API",
		Long:  "Run the HTTP API that serves the aggregated feed and manages channels and categories.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			api, err := newApp(a.cfg, prefs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, api, a.cfg.Addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config, :3000)")

	return cmd
}

// newApp wires the aggregator, the YouTube directory and the store into the HTTP API.
func newApp(cfg *config.Config, prefs *store.Store) (*fiber.App, error) {
	agg, err := newAggregator(cfg)
	if err != nil {
		return nil, err
	}

	serverConfig := &server.ServerConfig{
		Preferences:  prefs,
		Aggregator:   agg,
		PageSize:     cfg.Feed.PageSize,
		MaxPageSize:  cfg.Feed.MaxPageSize,
		AllowOrigins: cfg.CORS.AllowOrigins,
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
	}
	if client := youtubeClient(cfg); client != nil {
		serverConfig.Directory = client
	}
	return server.Server(serverConfig), nil
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, api *fiber.App, addr string) error {
	errs := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": addr, "version": buildVersion()}).Info("Starting server")
		errs <- api.Listen(addr)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("Gracefully shutting down")
	if err := api.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
