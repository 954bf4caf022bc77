package action

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/host"
	"github.com/calder-games/nightfall/internal/game/item"
	"github.com/calder-games/nightfall/internal/game/turn"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/storage"
	"github.com/calder-games/nightfall/internal/storage/sqlite"
)

type capturedEvent struct {
	gameID  string
	region  int
	payload any
}

type captureBroadcast struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *captureBroadcast) Publish(gameID string, region int, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{gameID: gameID, region: region, payload: payload})
}

func (c *captureBroadcast) list() []capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedEvent(nil), c.events...)
}

// setupEngine seeds a three-region game: the hidden host in region 0, two
// survivors in region 1 sharing it with a zombie, and a killed slot.
func setupEngine(t *testing.T) (storage.Store, *Engine, *captureBroadcast) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.PutGame(ctx, domain.Game{ID: "g1", Turn: 3, HostSlot: 0, RegionCount: 3}); err != nil {
		t.Fatalf("put game: %v", err)
	}
	players := []domain.Player{
		{Slot: 0, Owner: domain.Human("host"), State: domain.StateHost, Region: 0, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 1, Owner: domain.Human("a"), State: domain.StateAlive, Region: 1, NextRegion: domain.NoRegion, CanRunaway: true},
		{Slot: 2, Owner: domain.Bot("b1"), State: domain.StateAlive, Region: 1, NextRegion: domain.NoRegion, CanRunaway: false},
		{Slot: 3, Owner: domain.Human("c"), State: domain.StateKilled, Region: 2, NextRegion: domain.NoRegion},
		{Slot: 4, Owner: domain.Human("d"), State: domain.StateZombie, Region: 1, NextRegion: domain.NoRegion},
	}
	for _, p := range players {
		if err := store.PutPlayer(ctx, "g1", p); err != nil {
			t.Fatalf("put player %d: %v", p.Slot, err)
		}
	}
	if err := store.PutZombie(ctx, "g1", domain.Zombie{Slot: 4, Region: 1, Countdown: 4, TargetSlot: domain.NoSlot, NextRegion: 2}); err != nil {
		t.Fatalf("put zombie: %v", err)
	}
	if err := store.PutHostSecret(ctx, "g1", domain.HostSecret{Slot: 0, CanInfect: true, PendingTarget: domain.NoSlot}); err != nil {
		t.Fatalf("put host secret: %v", err)
	}

	bc := &captureBroadcast{}
	catalog := item.Default()
	orch := turn.New(store, bc, catalog, time.Minute)
	engine := NewEngine(store, host.NewService(store), orch, catalog, bc)
	return store, engine, bc
}

func giveItems(t *testing.T, store storage.Store, slot int, items ...domain.ItemCode) {
	t.Helper()
	ctx := context.Background()
	p, err := store.GetPlayer(ctx, "g1", slot)
	if err != nil {
		t.Fatalf("get player %d: %v", slot, err)
	}
	p.Items = append(p.Items, items...)
	if err := store.PutPlayer(ctx, "g1", p); err != nil {
		t.Fatalf("put player %d: %v", slot, err)
	}
}

func TestApplyMove(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()

	if err := engine.Apply(ctx, "g1", domain.Human("a"), Move(2)); err != nil {
		t.Fatalf("move: %v", err)
	}
	p, _ := store.GetPlayer(ctx, "g1", 1)
	if p.NextRegion != 2 {
		t.Fatalf("expected next region 2, got %d", p.NextRegion)
	}
	if p.Region != 1 {
		t.Fatalf("movement must not apply before resolution, region is %d", p.Region)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), Move(3)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for out-of-range region, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("c"), Move(0)); apperrors.ClassOf(err) != apperrors.ClassStateConflict {
		t.Fatalf("expected state conflict for killed actor, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("nobody"), Move(0)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for unknown actor, got %v", err)
	}
}

func TestApplyRespond(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()

	if err := engine.Apply(ctx, "g1", domain.Human("a"), Respond(domain.ResponseLure)); err != nil {
		t.Fatalf("respond: %v", err)
	}
	p, _ := store.GetPlayer(ctx, "g1", 1)
	if p.Response != domain.ResponseLure {
		t.Fatalf("expected lure, got %q", p.Response)
	}

	if err := engine.Apply(ctx, "g1", domain.Bot("b1"), Respond(domain.ResponseRunaway)); !apperrors.Is(err, apperrors.CodeRunawayExhausted) {
		t.Fatalf("expected runaway exhausted, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), Respond("panic")); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyChat(t *testing.T) {
	store, engine, bc := setupEngine(t)
	ctx := context.Background()

	if err := engine.Apply(ctx, "g1", domain.Human("a"), Chat("anyone in the mall?")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	channel, err := store.GetRegionChannel(ctx, "g1", 3, 1)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if len(channel.Chat) != 1 || channel.Chat[0].Slot != 1 {
		t.Fatalf("expected one chat entry from slot 1, got %+v", channel.Chat)
	}

	events := bc.list()
	if len(events) != 1 || events[0].region != 1 {
		t.Fatalf("expected one broadcast to region 1, got %+v", events)
	}
	if _, ok := events[0].payload.(ChatPosted); !ok {
		t.Fatalf("expected ChatPosted payload, got %T", events[0].payload)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), Chat("   ")); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for blank message, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("d"), Chat("braains")); !apperrors.Is(err, apperrors.CodeSpeechForbidden) {
		t.Fatalf("expected speech forbidden for zombie, got %v", err)
	}
}

func TestUseCombat(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 1, "bat")

	// Incubation elsewhere keeps the game running after the kill.
	infectedAt := 2
	p2, _ := store.GetPlayer(ctx, "g1", 2)
	p2.InfectedAtTurn = &infectedAt
	if err := store.PutPlayer(ctx, "g1", p2); err != nil {
		t.Fatalf("put player: %v", err)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("bat", 4)); err != nil {
		t.Fatalf("use bat: %v", err)
	}

	if _, err := store.GetZombie(ctx, "g1", 4); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("expected zombie gone, got %v", err)
	}
	victim, _ := store.GetPlayer(ctx, "g1", 4)
	if victim.State != domain.StateKilled {
		t.Fatalf("expected controlling slot killed, got %q", victim.State)
	}
	attacker, _ := store.GetPlayer(ctx, "g1", 1)
	if attacker.HasItem("bat") {
		t.Fatal("bat must be consumed")
	}
	game, _ := store.GetGame(ctx, "g1")
	if game.Finished() {
		t.Fatalf("pending infection must keep the game running, got %q", game.Result)
	}
}

func TestUseCombatRejections(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 0, "bat")

	// Host is in region 0, the zombie in region 1.
	if err := engine.Apply(ctx, "g1", domain.Human("host"), UseItemOn("bat", 4)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for cross-region attack, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("host"), UseItemOn("bat", 1)); !apperrors.Is(err, apperrors.CodeTargetNotZombie) {
		t.Fatalf("expected target-not-zombie conflict, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("bat", 4)); !apperrors.Is(err, apperrors.CodeItemNotOwned) {
		t.Fatalf("expected item-not-owned, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("chainsaw", 4)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for unknown item, got %v", err)
	}
}

func TestCombatKilledWin(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 1, "bat")

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("bat", 4)); err != nil {
		t.Fatalf("use bat: %v", err)
	}

	game, _ := store.GetGame(ctx, "g1")
	if game.Result != domain.ResultKilledWin {
		t.Fatalf("expected killed-win with the last zombie down, got %q", game.Result)
	}
	if _, err := store.GetDeadline(ctx, "g1"); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("expected deadline cleared, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), Move(0)); !apperrors.Is(err, apperrors.CodeGameFinished) {
		t.Fatalf("expected finished-game rejection, got %v", err)
	}
}

func TestUseCure(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 1, "vaccine", "vaccine")

	infectedAt := 2
	p2, _ := store.GetPlayer(ctx, "g1", 2)
	p2.InfectedAtTurn = &infectedAt
	if err := store.PutPlayer(ctx, "g1", p2); err != nil {
		t.Fatalf("put player: %v", err)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("vaccine", 2)); err != nil {
		t.Fatalf("cure: %v", err)
	}
	cured, _ := store.GetPlayer(ctx, "g1", 2)
	if cured.Infected() {
		t.Fatal("expected infection marker cleared")
	}
	actor, _ := store.GetPlayer(ctx, "g1", 1)
	if len(actor.Items) != 1 {
		t.Fatalf("expected one vaccine left, got %v", actor.Items)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("vaccine", 2)); !apperrors.Is(err, apperrors.CodeTargetNotInfected) {
		t.Fatalf("expected target-not-infected for healthy target, got %v", err)
	}
}

func TestCureHostWinsGame(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()

	// Move a survivor into the host's region and hand them the vaccine.
	p, _ := store.GetPlayer(ctx, "g1", 1)
	p.Region = 0
	p.Items = []domain.ItemCode{"vaccine"}
	if err := store.PutPlayer(ctx, "g1", p); err != nil {
		t.Fatalf("put player: %v", err)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemOn("vaccine", 0)); err != nil {
		t.Fatalf("cure host: %v", err)
	}
	game, _ := store.GetGame(ctx, "g1")
	if game.Result != domain.ResultCuredWin {
		t.Fatalf("expected cured-win, got %q", game.Result)
	}
}

func TestUseFlare(t *testing.T) {
	store, engine, bc := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 1, "flare")

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemWith("flare", "over here")); err != nil {
		t.Fatalf("flare: %v", err)
	}
	events := bc.list()
	if len(events) != 1 || events[0].region != 1 {
		t.Fatalf("expected one broadcast to region 1, got %+v", events)
	}
	sig, ok := events[0].payload.(FlareSignal)
	if !ok || sig.Slot != 1 {
		t.Fatalf("expected FlareSignal from slot 1, got %+v", events[0].payload)
	}
	p, _ := store.GetPlayer(ctx, "g1", 1)
	if p.HasItem("flare") {
		t.Fatal("flare must be consumed")
	}
}

func TestGraffitiAndEraser(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 1, "spray", "scraper", "scraper")

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemWith("spray", "do not trust slot 2")); err != nil {
		t.Fatalf("spray: %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemAt("scraper", 0)); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	channel, _ := store.GetRegionChannel(ctx, "g1", 3, 1)
	if len(channel.Graffiti) != 1 {
		t.Fatalf("erasure must preserve indices, got %d entries", len(channel.Graffiti))
	}
	if !channel.Graffiti[0].Erased || channel.Graffiti[0].Text != domain.ErasedGraffiti {
		t.Fatalf("expected tombstone, got %+v", channel.Graffiti[0])
	}

	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemAt("scraper", 0)); !apperrors.Is(err, apperrors.CodeGraffitiErased) {
		t.Fatalf("expected already-erased conflict, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), UseItemAt("scraper", 7)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for bad index, got %v", err)
	}
	// The failed erasures must not have consumed the second scraper.
	p, _ := store.GetPlayer(ctx, "g1", 1)
	if !p.HasItem("scraper") {
		t.Fatal("failed erasure must not consume the item")
	}
}

func TestGiveItem(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()
	giveItems(t, store, 1, "bat")

	if err := engine.Apply(ctx, "g1", domain.Human("a"), GiveItem("bat", 2)); err != nil {
		t.Fatalf("give: %v", err)
	}
	giver, _ := store.GetPlayer(ctx, "g1", 1)
	receiver, _ := store.GetPlayer(ctx, "g1", 2)
	if giver.HasItem("bat") {
		t.Fatal("giver must lose the item")
	}
	if !receiver.HasItem("bat") {
		t.Fatal("receiver must gain the item")
	}

	if err := engine.Apply(ctx, "g1", domain.Bot("b1"), GiveItem("bat", 0)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for cross-region give, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Bot("b1"), GiveItem("bat", 2)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for self give, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Bot("b1"), GiveItem("bat", 4)); apperrors.ClassOf(err) != apperrors.ClassValidation {
		t.Fatalf("expected validation error for zombie receiver, got %v", err)
	}
}

func TestHostOnlyActions(t *testing.T) {
	store, engine, _ := setupEngine(t)
	ctx := context.Background()

	if err := engine.Apply(ctx, "g1", domain.Human("a"), Infect(2)); !apperrors.Is(err, apperrors.CodeActorNotHost) {
		t.Fatalf("expected actor-not-host, got %v", err)
	}
	if err := engine.Apply(ctx, "g1", domain.Human("a"), CommandZombie(4, 1, 2)); !apperrors.Is(err, apperrors.CodeActorNotHost) {
		t.Fatalf("expected actor-not-host, got %v", err)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("host"), Infect(1)); err != nil {
		t.Fatalf("infect: %v", err)
	}
	secret, _ := store.GetHostSecret(ctx, "g1")
	if secret.PendingTarget != 1 {
		t.Fatalf("expected pending target 1, got %d", secret.PendingTarget)
	}

	if err := engine.Apply(ctx, "g1", domain.Human("host"), CommandZombie(4, 1, 0)); err != nil {
		t.Fatalf("command zombie: %v", err)
	}
	z, _ := store.GetZombie(ctx, "g1", 4)
	if z.TargetSlot != 1 || z.NextRegion != 0 {
		t.Fatalf("expected redirected zombie, got %+v", z)
	}
	if z.Countdown != 4 {
		t.Fatalf("command must not touch the countdown, got %d", z.Countdown)
	}
}
