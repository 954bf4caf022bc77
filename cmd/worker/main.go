// Command worker runs a headless resolution process against a shared store.
// Any number of these can run next to cmd/server; the per-game lease keeps
// them from stepping on each other.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/calder-games/nightfall/internal/game/item"
	"github.com/calder-games/nightfall/internal/game/turn"
	"github.com/calder-games/nightfall/internal/platform/config"
	"github.com/calder-games/nightfall/internal/storage/sqlite"
	"github.com/calder-games/nightfall/internal/worker"
)

type workerConfig struct {
	DBPath            string        `env:"NIGHTFALL_DB_PATH" envDefault:"data/nightfall.db"`
	TurnWindow        time.Duration `env:"NIGHTFALL_TURN_WINDOW" envDefault:"60s"`
	PollInterval      time.Duration `env:"NIGHTFALL_POLL_INTERVAL" envDefault:"1s"`
	LeaseTTL          time.Duration `env:"NIGHTFALL_LEASE_TTL" envDefault:"30s"`
	LockMaxAttempts   int           `env:"NIGHTFALL_LOCK_MAX_ATTEMPTS" envDefault:"4"`
	LockRetryBackoff  time.Duration `env:"NIGHTFALL_LOCK_RETRY_BACKOFF" envDefault:"100ms"`
	LockRetryMaxDelay time.Duration `env:"NIGHTFALL_LOCK_RETRY_MAX_DELAY" envDefault:"2s"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("load .env: %v", err)
	}
	var cfg workerConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
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

	// A headless worker has no websocket peers; resolutions it performs are
	// announced by whichever server process the clients are attached to, via
	// their own re-fetch on reconnect or deadline observation.
	orch := turn.New(store, nil, item.Default(), cfg.TurnWindow)
	runner := worker.New(store, orch, worker.Config{
		PollInterval:  cfg.PollInterval,
		LeaseTTL:      cfg.LeaseTTL,
		MaxAttempts:   cfg.LockMaxAttempts,
		RetryBackoff:  cfg.LockRetryBackoff,
		RetryMaxDelay: cfg.LockRetryMaxDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Print("worker: polling for due turns")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		config.Exitf("worker: %v", err)
	}
	log.Print("worker: shut down")
}
