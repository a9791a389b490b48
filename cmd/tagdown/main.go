package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tagdown/internal/server"
	"tagdown/pkg/config"
	"tagdown/pkg/limiter"
	"tagdown/pkg/logger"
	"tagdown/pkg/mediaproxy"
	"tagdown/pkg/quota"
	"tagdown/pkg/transcode"
	"tagdown/pkg/upstream"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.SetLogger(log)

	store, cleanup, err := buildStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize quota store")
	}
	defer cleanup()

	lim, err := limiter.New(store, quota.Policy{
		AuthenticatedLimit: cfg.Quota.AuthenticatedLimit,
		AnonymousLimit:     cfg.Quota.AnonymousLimit,
		Window:             cfg.Quota.Window,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize limiter")
	}

	srv := server.New(
		cfg,
		log,
		lim,
		upstream.NewClient(cfg.Upstream, log),
		mediaproxy.New(log),
		transcode.New(cfg.Transcode.FFmpegPath, cfg.Transcode.Bitrate, log),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("shutdown did not complete cleanly")
			os.Exit(1)
		}
	}

	log.Info("server stopped")
}

// buildStore selects the quota backend from configuration. The memory
// store runs a sweeper so records of idle identities are reclaimed.
func buildStore(cfg *config.Config, log logger.Logger) (quota.Store, func(), error) {
	switch cfg.Quota.Backend {
	case "redis":
		store, err := quota.NewRedisStore(cfg.Redis, cfg.Quota.Window)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("addr", cfg.Redis.Addr).Info("using redis quota store")
		return store, func() { _ = store.Close() }, nil
	default:
		store := quota.NewMemoryStore(cfg.Quota.Window)
		store.StartSweeper(time.Hour)
		log.Info("using in-memory quota store")
		return store, store.Stop, nil
	}
}
