// Package turn sequences one full round: item distribution, the timed action
// window, the five-step resolution, and the next-turn bootstrap. The
// resolution critical section is always executed under the game's lease lock;
// the orchestrator itself never acquires it (see the worker package).
package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/item"
	"github.com/calder-games/nightfall/internal/storage"
)

// Broadcaster fans a payload out to one region's subscribers. Delivery is
// fire-and-forget, at-most-once; clients reconcile by re-fetching state.
type Broadcaster interface {
	Publish(gameID string, region int, payload any)
}

// Phase labels the orchestrator's position within a turn.
type Phase string

const (
	PhaseItemDistribution Phase = "item-distribution"
	PhaseActionWindow     Phase = "action-window"
	PhaseResolution       Phase = "resolution"
	PhaseBootstrap        Phase = "next-turn-bootstrap"
)

// TurnAdvanced is the region broadcast emitted after a resolution. Clients
// re-fetch their personalized view on receipt.
type TurnAdvanced struct {
	GameID   string        `json:"game_id"`
	Turn     int           `json:"turn"`
	Phase    Phase         `json:"phase"`
	Result   domain.Result `json:"result"`
	Deadline time.Time     `json:"deadline,omitempty"`
}

// EventType labels the broadcast envelope.
func (TurnAdvanced) EventType() string { return "turn-advanced" }

// Orchestrator advances games through their turn phases.
type Orchestrator struct {
	store     storage.Store
	broadcast Broadcaster
	catalog   *item.Catalog
	window    time.Duration
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures orchestrator behavior.
type Option func(*Orchestrator)

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRand overrides the randomness source for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// New creates an orchestrator. window is the action-window duration applied
// to every new turn.
func New(store storage.Store, broadcast Broadcaster, catalog *item.Catalog, window time.Duration, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		broadcast: broadcast,
		catalog:   catalog,
		window:    window,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Window returns the configured action-window duration.
func (o *Orchestrator) Window() time.Duration {
	return o.window
}

func (o *Orchestrator) draw() domain.ItemCode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.catalog.Draw(o.rng)
}

// HandleExpiry runs the resolution critical section for a game whose
// persisted deadline elapsed. The caller must hold the game's lease for the
// whole call. The handler is idempotent under re-invocation: once a worker
// has advanced the turn, the refreshed deadline makes later invocations
// no-ops, so concurrent expiry observations increment the turn exactly once.
func (o *Orchestrator) HandleExpiry(ctx context.Context, gameID string) error {
	game, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// deadline outlived its game; drop it so polling stops
			log.Printf("turn: dropping deadline for missing game %s", gameID)
			return o.store.ClearDeadline(ctx, gameID)
		}
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	if game.Finished() {
		// a lagging worker observed a stale deadline after game end
		return o.store.ClearDeadline(ctx, gameID)
	}

	deadline, err := o.store.GetDeadline(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load deadline %s: %w", gameID, err)
	}
	if deadline.After(o.now()) {
		// another worker already resolved this expiry and armed the next turn
		return nil
	}

	return o.resolve(ctx, game)
}
