package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/challengehub/internal/observability"
	"github.com/Tyrowin/challengehub/internal/server"
	"github.com/Tyrowin/challengehub/internal/store"
)

const shutdownTimeout = 10 * time.Second

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the challenge hub server",
		Long: `Start the HTTP and WebSocket server.

Configured challenges are created on startup if they do not exist yet.
Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with defaults (in-memory storage, port 8080)
  challengehub serve

  # Start with a config file and debug logging
  challengehub serve --config /etc/challengehub.yaml --debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, debug, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CHALLENGEHUB_CONFIG"),
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

func buildSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the configured challenges and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := server.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, false, cmd.ErrOrStderr())

			st, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			created, err := seedChallenges(cmd.Context(), st, cfg.Challenges, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d challenges\n", created, len(cfg.Challenges))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CHALLENGEHUB_CONFIG"),
		"Path to YAML configuration file")
	return cmd
}

func newLogger(cfg server.Config, debug bool, out io.Writer) *slog.Logger {
	logCfg := cfg.Logging
	if debug {
		logCfg.Level = "debug"
	}
	if logCfg.Output == nil {
		logCfg.Output = out
	}
	return observability.NewLogger(logCfg)
}

func seedChallenges(ctx context.Context, st store.Store, seeds []server.ChallengeSeed, logger *slog.Logger) (int, error) {
	created := 0
	for _, seed := range seeds {
		challenge := seed.Challenge()
		ok, err := store.EnsureChallenge(ctx, st, challenge)
		if err != nil {
			return created, fmt.Errorf("seed challenge %q: %w", seed.Title, err)
		}
		if ok {
			created++
			logger.Info("created challenge", "challenge_id", challenge.ID, "title", challenge.Title)
		}
	}
	return created, nil
}

func runServe(ctx context.Context, configPath string, debug bool, logOut io.Writer) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, debug, logOut)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	base, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := base.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()
	logger.Info("storage ready", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path)

	if _, err := seedChallenges(ctx, base, cfg.Challenges, logger); err != nil {
		return err
	}

	hub := server.NewHub(server.HubOptions{
		Store:         store.Instrument(base, metrics.ObserveStore),
		Authenticator: server.NewAuthenticator(cfg.Auth),
		Hub:           cfg.Hub,
		Server:        cfg.Server,
		Logger:        logger,
		Metrics:       metrics,
	})
	go hub.Run(ctx)

	routes := server.SetupRoutes(hub, server.RouteOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
		Logger:         logger,
	})
	httpServer := server.CreateServer(cfg.Server.Port, routes)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = hub.Shutdown(shutdownTimeout)
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout, logger); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		logger.Error("hub shutdown failed", "error", err)
	}
	return nil
}
