// trendwatchd collects periodic metric snapshots and serves bounded
// history queries for the dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/trendwatch/internal/fetch"
	"github.com/xtxerr/trendwatch/internal/loader"
	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/service"
	"github.com/xtxerr/trendwatch/internal/server"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "snapshot store path (overrides config)")
	fetchURL := flag.String("fetch-url", "", "upstream snapshot URL (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			logging.Init(logging.ParseLevel("info"), false)
			logging.Logger.Error("load config", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *fetchURL != "" {
		cfg.Fetch.URL = *fetchURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	log := logging.Component("main")
	log.Info("trendwatchd starting", "version", Version)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	svcCfg := service.Config{
		StorePath:         cfg.Store.Path,
		StoreQueryTimeout: cfg.Store.QueryTimeout,
		RetentionSeconds:  cfg.History.RetentionSeconds,
		RetentionInterval: cfg.History.RetentionInterval,
		IngestQueueSize:   cfg.History.IngestQueueSize,
	}
	if cfg.Archive.Enabled {
		svcCfg.ArchiveDir = cfg.Archive.Dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := service.New(svcCfg)
	if err := svc.Init(ctx); err != nil {
		log.Error("init history service", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Listen:          cfg.Server.Listen,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Start(gctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if cfg.Fetch.URL != "" {
		fetcher := fetch.New(fetch.Config{
			URL:      cfg.Fetch.URL,
			Interval: cfg.Fetch.Interval,
			Timeout:  cfg.Fetch.Timeout,
		}, svc)
		g.Go(func() error {
			err := fetcher.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("fetcher enabled", "url", cfg.Fetch.URL, "interval", cfg.Fetch.Interval)
	} else {
		log.Info("fetcher disabled, ingestion via POST /api/v1/ingest")
	}

	if err := g.Wait(); err != nil {
		log.Error("runtime failure", "error", err)
		svc.Close()
		os.Exit(1)
	}

	log.Info("shutting down")
	if err := svc.Close(); err != nil {
		log.Warn("close history service", "error", err)
	}
	log.Info("trendwatchd stopped")
}
