// Command server runs the full engine in one process: the entity store, the
// websocket broadcast hub, and an embedded resolution worker. Additional
// headless workers (cmd/worker) may point at the same store for redundancy.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calder-games/nightfall/internal/broadcast"
	"github.com/calder-games/nightfall/internal/game/item"
	"github.com/calder-games/nightfall/internal/game/turn"
	"github.com/calder-games/nightfall/internal/platform/config"
	"github.com/calder-games/nightfall/internal/storage/sqlite"
	"github.com/calder-games/nightfall/internal/worker"
)

type serverConfig struct {
	HTTPAddr          string        `env:"NIGHTFALL_HTTP_ADDR" envDefault:":8080"`
	DBPath            string        `env:"NIGHTFALL_DB_PATH" envDefault:"data/nightfall.db"`
	TurnWindow        time.Duration `env:"NIGHTFALL_TURN_WINDOW" envDefault:"60s"`
	PollInterval      time.Duration `env:"NIGHTFALL_POLL_INTERVAL" envDefault:"1s"`
	LeaseTTL          time.Duration `env:"NIGHTFALL_LEASE_TTL" envDefault:"30s"`
	LockMaxAttempts   int           `env:"NIGHTFALL_LOCK_MAX_ATTEMPTS" envDefault:"4"`
	LockRetryBackoff  time.Duration `env:"NIGHTFALL_LOCK_RETRY_BACKOFF" envDefault:"100ms"`
	LockRetryMaxDelay time.Duration `env:"NIGHTFALL_LOCK_RETRY_MAX_DELAY" envDefault:"2s"`
	ReadHeaderTimeout time.Duration `env:"NIGHTFALL_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"NIGHTFALL_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("load .env: %v", err)
	}
	var cfg serverConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			config.Exitf("create storage dir: %v", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		config.Exitf("open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	hub := broadcast.NewHub()
	orch := turn.New(store, hub, item.Default(), cfg.TurnWindow)
	runner := worker.New(store, orch, worker.Config{
		PollInterval:  cfg.PollInterval,
		LeaseTTL:      cfg.LeaseTTL,
		MaxAttempts:   cfg.LockMaxAttempts,
		RetryBackoff:  cfg.LockRetryBackoff,
		RetryMaxDelay: cfg.LockRetryMaxDelay,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           hub.NewHandler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("server: listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		config.Exitf("server: %v", err)
	}
	log.Print("server: shut down")
}
