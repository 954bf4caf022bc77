// Package host implements the hidden secret-role subsystem: the pending
// infection target and remote zombie commands. Nothing in this package is
// ever included in a non-host broadcast payload.
package host

import (
	"context"
	"errors"
	"strconv"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/zombie"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/storage"
)

// Service exposes the host-only operations. Callers are responsible for
// authenticating the actor as the game's host before invoking anything here.
type Service struct {
	store storage.Store
}

// NewService creates the host subsystem over the shared entity store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// SetInfectionTarget records a pending infection, consumed at the next
// infection resolution. The eligibility flag is consumed at resolution time,
// so the host may re-aim freely within one action window.
func (s *Service) SetInfectionTarget(ctx context.Context, gameID string, targetSlot int) error {
	secret, err := s.store.GetHostSecret(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeHostNotFound, "host record missing")
		}
		return err
	}
	if !secret.CanInfect {
		return apperrors.New(apperrors.CodeInfectUnavailable, "infection not available this turn")
	}

	target, err := s.store.GetPlayer(ctx, gameID, targetSlot)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeTargetNotInGame,
				"infection target is not in this game",
				map[string]string{"slot": strconv.Itoa(targetSlot)})
		}
		return err
	}
	if target.State != domain.StateAlive {
		return apperrors.New(apperrors.CodeTargetNotAlive, "infection target is not alive")
	}
	if target.Infected() {
		return apperrors.New(apperrors.CodeTargetInfected, "target already incubating")
	}

	secret.PendingTarget = targetSlot
	return s.store.PutHostSecret(ctx, gameID, secret)
}

// IssueZombieCommand redirects one zombie's pending target and movement.
// Commands land immediately and take effect at the next zombie tick; the
// countdown is never touched.
func (s *Service) IssueZombieCommand(ctx context.Context, gameID string, zombieSlot, targetSlot, nextRegion int) error {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeGameNotFound, "game missing")
		}
		return err
	}

	z, err := s.store.GetZombie(ctx, gameID, zombieSlot)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeZombieNotInGame,
				"zombie does not belong to this game",
				map[string]string{"slot": strconv.Itoa(zombieSlot)})
		}
		return err
	}

	if nextRegion >= game.RegionCount {
		return apperrors.New(apperrors.CodeInvalidRegion, "next region out of range")
	}
	if targetSlot >= 0 {
		if _, err := s.store.GetPlayer(ctx, gameID, targetSlot); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeTargetNotInGame, "command target is not in this game")
			}
			return err
		}
	}

	zombie.Redirect(&z, targetSlot, nextRegion)
	return s.store.PutZombie(ctx, gameID, z)
}

// ZombieIntel pairs a zombie with the survivor slots sharing its region.
type ZombieIntel struct {
	Zombie domain.Zombie `json:"zombie"`
	Nearby []int         `json:"nearby_slots"`
}

// View is the host-only state surface: infection eligibility, the pending
// target, and the commanded roster with targeting intel.
type View struct {
	CanInfect     bool          `json:"can_infect"`
	PendingTarget int           `json:"pending_target"`
	Zombies       []ZombieIntel `json:"zombies"`
}

// BuildView assembles the host view from fresh store state.
func (s *Service) BuildView(ctx context.Context, gameID string) (View, error) {
	secret, err := s.store.GetHostSecret(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperrors.New(apperrors.CodeHostNotFound, "host record missing")
		}
		return View{}, err
	}

	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return View{}, err
	}
	zombies, err := s.store.ListZombies(ctx, gameID)
	if err != nil {
		return View{}, err
	}

	view := View{CanInfect: secret.CanInfect, PendingTarget: secret.PendingTarget}
	for _, z := range zombies {
		intel := ZombieIntel{Zombie: z, Nearby: []int{}}
		for _, p := range players {
			if p.Present() && p.Region == z.Region {
				intel.Nearby = append(intel.Nearby, p.Slot)
			}
		}
		view.Zombies = append(view.Zombies, intel)
	}
	return view, nil
}
