package worker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/item"
	"github.com/calder-games/nightfall/internal/game/turn"
	"github.com/calder-games/nightfall/internal/storage"
	"github.com/calder-games/nightfall/internal/storage/sqlite"
)

type nopBroadcast struct{}

func (nopBroadcast) Publish(string, int, any) {}

func setupWorker(t *testing.T) (storage.Store, *turn.Orchestrator) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.PutGame(ctx, domain.Game{ID: "g1", Turn: 1, HostSlot: 0, RegionCount: 2}); err != nil {
		t.Fatalf("put game: %v", err)
	}
	players := []domain.Player{
		{Slot: 0, Owner: domain.Human("host"), State: domain.StateHost, Region: 0, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 1, Owner: domain.Human("a"), State: domain.StateAlive, Region: 0, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 2, Owner: domain.Human("b"), State: domain.StateAlive, Region: 1, NextRegion: domain.NoRegion, CanRunaway: true},
	}
	for _, p := range players {
		if err := store.PutPlayer(ctx, "g1", p); err != nil {
			t.Fatalf("put player %d: %v", p.Slot, err)
		}
	}
	if err := store.PutHostSecret(ctx, "g1", domain.HostSecret{Slot: 0, CanInfect: true, PendingTarget: domain.NoSlot}); err != nil {
		t.Fatalf("put host secret: %v", err)
	}
	if err := store.SetDeadline(ctx, "g1", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	return store, turn.New(store, nopBroadcast{}, item.Default(), time.Minute)
}

func TestResolveDueAdvancesTurn(t *testing.T) {
	store, orch := setupWorker(t)
	runner := New(store, orch, Config{})
	ctx := context.Background()

	if err := runner.ResolveDue(ctx); err != nil {
		t.Fatalf("resolve due: %v", err)
	}
	game, err := store.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if game.Turn != 2 {
		t.Fatalf("expected turn 2, got %d", game.Turn)
	}
	deadline, err := store.GetDeadline(ctx, "g1")
	if err != nil {
		t.Fatalf("get deadline: %v", err)
	}
	if !deadline.After(time.Now()) {
		t.Fatalf("expected rearmed future deadline, got %v", deadline)
	}

	// Lock must be released once the resolution is done.
	acquired, err := store.Acquire(ctx, storage.LockKey("g1"), "probe", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("expected lease free after resolution: acquired=%v err=%v", acquired, err)
	}
}

func TestConcurrentWorkersResolveOnce(t *testing.T) {
	store, orch := setupWorker(t)
	ctx := context.Background()

	const workers = 4
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		runner := New(store, orch, Config{RetryBackoff: 5 * time.Millisecond})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.ResolveDue(ctx); err != nil {
				t.Errorf("resolve due: %v", err)
			}
		}()
	}
	wg.Wait()

	// The lease serializes the workers and the deadline re-read under the
	// lease turns the late arrivals into no-ops.
	game, err := store.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if game.Turn != 2 {
		t.Fatalf("expected exactly one resolution, turn is %d", game.Turn)
	}
}

func TestHeldLeaseDefersResolution(t *testing.T) {
	store, orch := setupWorker(t)
	ctx := context.Background()

	if acquired, err := store.Acquire(ctx, storage.LockKey("g1"), "rival", time.Minute); err != nil || !acquired {
		t.Fatalf("seed rival lease: acquired=%v err=%v", acquired, err)
	}

	runner := New(store, orch, Config{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	if err := runner.ResolveDue(ctx); err != nil {
		t.Fatalf("resolve due must swallow contention: %v", err)
	}
	game, _ := store.GetGame(ctx, "g1")
	if game.Turn != 1 {
		t.Fatalf("rival-held game must not resolve, turn is %d", game.Turn)
	}

	if err := store.Release(ctx, storage.LockKey("g1"), "rival"); err != nil {
		t.Fatalf("release rival lease: %v", err)
	}
	if err := runner.ResolveDue(ctx); err != nil {
		t.Fatalf("resolve due: %v", err)
	}
	game, _ = store.GetGame(ctx, "g1")
	if game.Turn != 2 {
		t.Fatalf("expected resolution after release, turn is %d", game.Turn)
	}
}

func TestFinishedGameSkipped(t *testing.T) {
	store, orch := setupWorker(t)
	ctx := context.Background()

	game, _ := store.GetGame(ctx, "g1")
	game.Result = domain.ResultKilledWin
	if err := store.PutGame(ctx, game); err != nil {
		t.Fatalf("put game: %v", err)
	}

	runner := New(store, orch, Config{})
	if err := runner.ResolveDue(ctx); err != nil {
		t.Fatalf("resolve due: %v", err)
	}
	game, _ = store.GetGame(ctx, "g1")
	if game.Turn != 1 {
		t.Fatalf("finished game must not advance, turn is %d", game.Turn)
	}
	// The stale deadline is dropped so the next scan stays quiet.
	if _, err := store.GetDeadline(ctx, "g1"); err == nil {
		t.Fatal("expected stale deadline cleared")
	}
}
