package host

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/calder-games/nightfall/internal/game/domain"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/storage"
	"github.com/calder-games/nightfall/internal/storage/sqlite"
)

func setupGame(t *testing.T) (storage.Store, *Service) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	game := domain.Game{ID: "g1", Turn: 3, HostSlot: 0, RegionCount: 3}
	if err := store.PutGame(ctx, game); err != nil {
		t.Fatalf("put game: %v", err)
	}
	players := []domain.Player{
		{Slot: 0, Owner: domain.Human("host"), State: domain.StateHost, Region: 0, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 1, Owner: domain.Human("a"), State: domain.StateAlive, Region: 1, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 2, Owner: domain.Bot("b1"), State: domain.StateAlive, Region: 1, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 3, Owner: domain.Human("c"), State: domain.StateKilled, Region: 2, NextRegion: domain.NoRegion},
	}
	for _, p := range players {
		if err := store.PutPlayer(ctx, "g1", p); err != nil {
			t.Fatalf("put player %d: %v", p.Slot, err)
		}
	}
	if err := store.PutHostSecret(ctx, "g1", domain.HostSecret{Slot: 0, CanInfect: true, PendingTarget: domain.NoSlot}); err != nil {
		t.Fatalf("put host secret: %v", err)
	}
	return store, NewService(store)
}

func TestSetInfectionTarget(t *testing.T) {
	store, svc := setupGame(t)
	ctx := context.Background()

	if err := svc.SetInfectionTarget(ctx, "g1", 1); err != nil {
		t.Fatalf("set infection target: %v", err)
	}
	secret, err := store.GetHostSecret(ctx, "g1")
	if err != nil {
		t.Fatalf("get host secret: %v", err)
	}
	if secret.PendingTarget != 1 {
		t.Fatalf("expected pending target 1, got %d", secret.PendingTarget)
	}
	if !secret.CanInfect {
		t.Fatal("eligibility is consumed at resolution, not at aim time")
	}

	// re-aiming within the same window is allowed
	if err := svc.SetInfectionTarget(ctx, "g1", 2); err != nil {
		t.Fatalf("re-aim: %v", err)
	}
}

func TestSetInfectionTargetRejections(t *testing.T) {
	store, svc := setupGame(t)
	ctx := context.Background()

	if err := svc.SetInfectionTarget(ctx, "g1", 99); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for unknown slot, got %v", err)
	}
	if err := svc.SetInfectionTarget(ctx, "g1", 3); apperrors.ClassOf(err) != apperrors.ClassStateConflict {
		t.Fatalf("expected state conflict for killed target, got %v", err)
	}

	infectedAt := 2
	if err := store.PutPlayer(ctx, "g1", domain.Player{Slot: 2, Owner: domain.Bot("b1"), State: domain.StateAlive, Region: 1, InfectedAtTurn: &infectedAt}); err != nil {
		t.Fatalf("put infected player: %v", err)
	}
	if err := svc.SetInfectionTarget(ctx, "g1", 2); apperrors.ClassOf(err) != apperrors.ClassStateConflict {
		t.Fatalf("expected state conflict for incubating target, got %v", err)
	}

	secret, _ := store.GetHostSecret(ctx, "g1")
	secret.CanInfect = false
	if err := store.PutHostSecret(ctx, "g1", secret); err != nil {
		t.Fatalf("put host secret: %v", err)
	}
	err := svc.SetInfectionTarget(ctx, "g1", 1)
	if apperrors.ClassOf(err) != apperrors.ClassStateConflict {
		t.Fatalf("expected state conflict when canInfect=false, got %v", err)
	}
}

func TestIssueZombieCommand(t *testing.T) {
	store, svc := setupGame(t)
	ctx := context.Background()

	z := domain.Zombie{Slot: 5, Region: 1, Countdown: 3, TargetSlot: domain.NoSlot, NextRegion: 0}
	if err := store.PutZombie(ctx, "g1", z); err != nil {
		t.Fatalf("put zombie: %v", err)
	}

	if err := svc.IssueZombieCommand(ctx, "g1", 5, 1, 2); err != nil {
		t.Fatalf("issue command: %v", err)
	}
	updated, err := store.GetZombie(ctx, "g1", 5)
	if err != nil {
		t.Fatalf("get zombie: %v", err)
	}
	if updated.TargetSlot != 1 || updated.NextRegion != 2 {
		t.Fatalf("command not applied: %+v", updated)
	}
	if updated.Countdown != 3 {
		t.Fatalf("command must not affect countdown, got %d", updated.Countdown)
	}

	if err := svc.IssueZombieCommand(ctx, "g1", 9, 1, 2); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for foreign zombie, got %v", err)
	}
	if err := svc.IssueZombieCommand(ctx, "g1", 5, 1, 7); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for out-of-range region, got %v", err)
	}
}

func TestBuildView(t *testing.T) {
	store, svc := setupGame(t)
	ctx := context.Background()

	if err := store.PutZombie(ctx, "g1", domain.Zombie{Slot: 5, Region: 1, Countdown: 2, TargetSlot: domain.NoSlot, NextRegion: 0}); err != nil {
		t.Fatalf("put zombie: %v", err)
	}

	view, err := svc.BuildView(ctx, "g1")
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if !view.CanInfect {
		t.Fatal("expected canInfect true")
	}
	if len(view.Zombies) != 1 {
		t.Fatalf("expected one zombie, got %d", len(view.Zombies))
	}
	// slots 1 and 2 share region 1 with the zombie; the killed slot 3 does not
	nearby := view.Zombies[0].Nearby
	if len(nearby) != 2 || nearby[0] != 1 || nearby[1] != 2 {
		t.Fatalf("unexpected nearby slots: %v", nearby)
	}
}
