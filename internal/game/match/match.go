// Package match bootstraps new games: slot assignment, the hidden host draw,
// initial placement, the first item distribution, and the first deadline.
package match

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/item"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/platform/id"
	"github.com/calder-games/nightfall/internal/storage"
)

// MinPlayers is the smallest playable lobby: one host plus survivors who can
// outvote a single suspicion.
const MinPlayers = 4

// MinRegions keeps movement meaningful.
const MinRegions = 2

// Service creates games over the shared entity store.
type Service struct {
	store   storage.Store
	catalog *item.Catalog
	window  time.Duration
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures service behavior.
type Option func(*Service)

// WithClock overrides the service clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand overrides the randomness source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// NewService wires the match bootstrap. window is the action-window duration
// armed on every new turn.
func NewService(store storage.Store, catalog *item.Catalog, window time.Duration, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		window:  window,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a game for the given actors. One of them, uniformly at
// random, becomes the hidden host; everyone is scattered across the regions,
// handed one item, and the first action window opens immediately.
func (s *Service) Create(ctx context.Context, actors []domain.Actor, regionCount int) (domain.Game, error) {
	if len(actors) < MinPlayers || len(actors) > domain.MaxSlots {
		return domain.Game{}, apperrors.WithMetadata(apperrors.CodeMatchPlayerCount,
			"unplayable lobby size", map[string]string{"players": strconv.Itoa(len(actors))})
	}
	if regionCount < MinRegions {
		return domain.Game{}, apperrors.WithMetadata(apperrors.CodeMatchRegionCount,
			"too few regions", map[string]string{"regions": strconv.Itoa(regionCount)})
	}
	seen := make(map[domain.Actor]struct{}, len(actors))
	for _, a := range actors {
		if _, dup := seen[a]; dup {
			return domain.Game{}, apperrors.WithMetadata(apperrors.CodeMatchPlayerCount,
				"duplicate actor in lobby", map[string]string{"actor": a.ID})
		}
		seen[a] = struct{}{}
	}

	s.mu.Lock()
	hostSlot := s.rng.Intn(len(actors))
	regions := make([]int, len(actors))
	items := make([]domain.ItemCode, len(actors))
	for i := range actors {
		regions[i] = s.rng.Intn(regionCount)
		items[i] = s.catalog.Draw(s.rng)
	}
	s.mu.Unlock()

	now := s.now()
	game := domain.Game{
		ID:          id.MustNewID(),
		Turn:        1,
		HostSlot:    hostSlot,
		RegionCount: regionCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutGame(ctx, game); err != nil {
		return domain.Game{}, fmt.Errorf("persist game: %w", err)
	}

	for i, actor := range actors {
		state := domain.StateAlive
		if i == hostSlot {
			state = domain.StateHost
		}
		p := domain.Player{
			Slot:       i,
			Owner:      actor,
			State:      state,
			Region:     regions[i],
			NextRegion: domain.NoRegion,
			Items:      []domain.ItemCode{items[i]},
			CanRunaway: true,
		}
		if err := s.store.PutPlayer(ctx, game.ID, p); err != nil {
			return domain.Game{}, fmt.Errorf("persist player %d: %w", i, err)
		}
	}

	secret := domain.HostSecret{Slot: hostSlot, CanInfect: true, PendingTarget: domain.NoSlot}
	if err := s.store.PutHostSecret(ctx, game.ID, secret); err != nil {
		return domain.Game{}, fmt.Errorf("persist host secret: %w", err)
	}

	// Armed last: a crash before this point leaves a game no worker will
	// ever try to resolve, which a lobby retry simply replaces.
	if err := s.store.SetDeadline(ctx, game.ID, now.Add(s.window)); err != nil {
		return domain.Game{}, fmt.Errorf("arm deadline: %w", err)
	}
	return game, nil
}
