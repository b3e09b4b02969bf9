// Command platformd runs the game-hosting control plane: the framed-JSON
// control socket, the child-report listener, and the Prometheus metrics
// endpoint, all wired from a single YAML configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/dispatch"
	"github.com/forgegames/platform/internal/identity"
	"github.com/forgegames/platform/internal/launcher"
	"github.com/forgegames/platform/internal/packagestore"
	"github.com/forgegames/platform/internal/review"
	"github.com/forgegames/platform/internal/room"
	"github.com/forgegames/platform/internal/transport"
	"github.com/forgegames/platform/pkg/config"
	"github.com/forgegames/platform/pkg/database"
	"github.com/forgegames/platform/pkg/logging"
	"github.com/forgegames/platform/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the platform's YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New("platformd", cfg.Logging)

	authConn, err := database.Open(cfg.Database.Driver, cfg.Database.AuthDSN)
	if err != nil {
		return fmt.Errorf("open auth database: %w", err)
	}
	defer authConn.Close()

	gameConn, err := database.Open(cfg.Database.Driver, cfg.Database.GameDSN)
	if err != nil {
		return fmt.Errorf("open game database: %w", err)
	}
	defer gameConn.Close()

	reviewsConn, err := database.Open(cfg.Database.Driver, cfg.Database.ReviewsDSN)
	if err != nil {
		return fmt.Errorf("open reviews database: %w", err)
	}
	defer reviewsConn.Close()

	argonParams := identity.ArgonParams{
		Time:    cfg.Identity.ArgonTime,
		Memory:  cfg.Identity.ArgonMemory,
		Threads: cfg.Identity.ArgonThreads,
		KeyLen:  cfg.Identity.ArgonKeyLen,
	}

	identityStore, err := identity.New(authConn, logger, argonParams)
	if err != nil {
		return fmt.Errorf("construct identity store: %w", err)
	}

	cat, err := catalog.New(gameConn)
	if err != nil {
		return fmt.Errorf("construct catalog: %w", err)
	}

	reviews, err := review.New(reviewsConn, cat)
	if err != nil {
		return fmt.Errorf("construct review store: %w", err)
	}

	packages, err := packagestore.New(cfg.Storage, cat)
	if err != nil {
		return fmt.Errorf("construct package store: %w", err)
	}
	packages.OnDownloaded(func(ctx context.Context, username, gameName string, version int) {
		if err := reviews.RecordDownload(ctx, username, gameName, version); err != nil {
			logger.Warn("failed to record download for review eligibility", "error", err)
		}
	})

	rooms := room.New(cat)

	m := metrics.NewRegistry("forgegames", logger)

	l := launcher.New(cfg.Launcher, rooms, packages, logger, m)

	d := dispatch.New(identityStore, cat, reviews, packages, rooms, l, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 3)

	go func() {
		errc <- l.Run(ctx)
	}()

	if cfg.Metrics.Enabled {
		go func() {
			errc <- m.Start(ctx, cfg.Metrics.Port)
		}()
	}

	server := &transport.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Config: transport.ConnConfig{
			InactivityTimeout: config.ParseDuration(cfg.Server.InactivityTimeout, 0),
			MaxLineBytes:      cfg.Server.MaxLineBytes,
			RateLimitPerSec:   cfg.Server.RateLimitPerSecond,
		},
		Disp:    d,
		Logger:  logger,
		Metrics: m,
	}
	go func() {
		errc <- server.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			logger.Error("fatal service error", "error", err)
		}
		stop()
	}

	l.Shutdown()
	return nil
}
