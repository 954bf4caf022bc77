package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/host"
	"github.com/calder-games/nightfall/internal/game/item"
	"github.com/calder-games/nightfall/internal/game/turn"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/storage"
)

// ChatPosted is the region broadcast emitted for every accepted chat action.
type ChatPosted struct {
	GameID  string `json:"game_id"`
	Turn    int    `json:"turn"`
	Region  int    `json:"region"`
	Slot    int    `json:"slot"`
	Message string `json:"message"`
}

// EventType labels the broadcast envelope.
func (ChatPosted) EventType() string { return "chat" }

// FlareSignal is the region broadcast emitted when a signal item is lit.
type FlareSignal struct {
	GameID  string `json:"game_id"`
	Turn    int    `json:"turn"`
	Region  int    `json:"region"`
	Slot    int    `json:"slot"`
	Message string `json:"message,omitempty"`
}

// EventType labels the broadcast envelope.
func (FlareSignal) EventType() string { return "flare" }

// Engine validates and applies actions against fresh store state. Every
// handler re-reads the entities it touches; nothing is trusted from the
// caller beyond the actor identity, which the transport authenticated.
type Engine struct {
	store     storage.Store
	hosts     *host.Service
	turns     *turn.Orchestrator
	catalog   *item.Catalog
	broadcast turn.Broadcaster
	now       func() time.Time
}

// EngineOption configures engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the action contract over the shared store. The orchestrator
// is needed because combat and cure items can finish a game mid-window.
func NewEngine(store storage.Store, hosts *host.Service, turns *turn.Orchestrator, catalog *item.Catalog, broadcast turn.Broadcaster, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		hosts:     hosts,
		turns:     turns,
		catalog:   catalog,
		broadcast: broadcast,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply executes one action on behalf of actor. Validation happens against
// state read inside this call; a stale client view never corrupts the store,
// it only earns a state-conflict error.
func (e *Engine) Apply(ctx context.Context, gameID string, actor domain.Actor, act Action) error {
	game, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeGameNotFound, "game missing")
		}
		return err
	}
	if game.Finished() {
		return apperrors.New(apperrors.CodeGameFinished, "game already finished")
	}

	player, err := e.findActor(ctx, gameID, actor)
	if err != nil {
		return err
	}

	switch act.Kind {
	case KindMove:
		return e.applyMove(ctx, game, player, act)
	case KindRespond:
		return e.applyRespond(ctx, game, player, act)
	case KindChat:
		return e.applyChat(ctx, game, player, act)
	case KindUseItem:
		return e.applyUseItem(ctx, game, player, act)
	case KindGiveItem:
		return e.applyGiveItem(ctx, game, player, act)
	case KindInfect:
		return e.applyInfect(ctx, game, player, act)
	case KindCommandZombie:
		return e.applyCommandZombie(ctx, game, player, act)
	default:
		return apperrors.WithMetadata(apperrors.CodeInvalidActionKind,
			"unknown action kind", map[string]string{"kind": string(act.Kind)})
	}
}

func (e *Engine) findActor(ctx context.Context, gameID string, actor domain.Actor) (domain.Player, error) {
	players, err := e.store.ListPlayers(ctx, gameID)
	if err != nil {
		return domain.Player{}, err
	}
	for _, p := range players {
		if p.Owner == actor {
			return p, nil
		}
	}
	return domain.Player{}, apperrors.WithMetadata(apperrors.CodeActorNotInGame,
		"actor has no slot in this game", map[string]string{"actor": actor.ID})
}

func (e *Engine) applyMove(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if !player.Present() {
		return apperrors.New(apperrors.CodeActorInactive, "only alive players move")
	}
	if act.Region < 0 || act.Region >= game.RegionCount {
		return apperrors.WithMetadata(apperrors.CodeInvalidRegion, "destination out of range",
			map[string]string{"region": strconv.Itoa(act.Region)})
	}
	player.NextRegion = act.Region
	return e.store.PutPlayer(ctx, game.ID, player)
}

func (e *Engine) applyRespond(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if !player.Present() {
		return apperrors.New(apperrors.CodeActorInactive, "only alive players respond")
	}
	if !domain.ValidResponse(act.Response) {
		return apperrors.WithMetadata(apperrors.CodeInvalidResponse, "unknown response",
			map[string]string{"response": string(act.Response)})
	}
	// Eligibility is checked here but consumed at resolution, so re-aiming
	// within the window costs nothing.
	if act.Response == domain.ResponseRunaway && !player.CanRunaway {
		return apperrors.New(apperrors.CodeRunawayExhausted, "runaway needs a turn of rest")
	}
	player.Response = act.Response
	return e.store.PutPlayer(ctx, game.ID, player)
}

func (e *Engine) applyChat(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if !player.Present() {
		return apperrors.New(apperrors.CodeSpeechForbidden, "the dead do not speak")
	}
	if strings.TrimSpace(act.Message) == "" {
		return apperrors.New(apperrors.CodeMessageEmpty, "empty chat message")
	}
	entry := domain.ChatEntry{Slot: player.Slot, Message: act.Message, SentAt: e.now()}
	if err := e.store.AppendChat(ctx, game.ID, game.Turn, player.Region, entry); err != nil {
		return err
	}
	e.broadcast.Publish(game.ID, player.Region, ChatPosted{
		GameID:  game.ID,
		Turn:    game.Turn,
		Region:  player.Region,
		Slot:    player.Slot,
		Message: act.Message,
	})
	return nil
}

func (e *Engine) applyUseItem(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if !player.Present() {
		return apperrors.New(apperrors.CodeActorInactive, "only alive players use items")
	}
	entry, ok := e.catalog.Lookup(act.Item)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeInvalidItem, "unknown item",
			map[string]string{"item": string(act.Item)})
	}
	if !player.HasItem(act.Item) {
		return apperrors.WithMetadata(apperrors.CodeItemNotOwned, "item not in inventory",
			map[string]string{"item": string(act.Item)})
	}

	switch entry.Kind {
	case item.KindCombat:
		return e.useCombat(ctx, game, player, act)
	case item.KindCure:
		return e.useCure(ctx, game, player, act)
	case item.KindSignal:
		return e.useSignal(ctx, game, player, act)
	case item.KindGraffiti:
		return e.useGraffiti(ctx, game, player, act)
	case item.KindEraser:
		return e.useEraser(ctx, game, player, act)
	default:
		return fmt.Errorf("item %s: unhandled kind %s", entry.Code, entry.Kind)
	}
}

// useCombat removes a co-located zombie. The controlling player's slot
// transitions to killed; if that was the last zombie and nobody is
// incubating, the survivors win on the spot.
func (e *Engine) useCombat(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	z, err := e.store.GetZombie(ctx, game.ID, act.TargetSlot)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeTargetNotZombie, "target is not a zombie")
		}
		return err
	}
	if z.Region != player.Region {
		return apperrors.New(apperrors.CodeTargetNotInRegion, "target zombie is elsewhere")
	}

	player.RemoveItem(act.Item)
	if err := e.store.PutPlayer(ctx, game.ID, player); err != nil {
		return err
	}
	if err := e.store.DeleteZombie(ctx, game.ID, z.Slot); err != nil {
		return err
	}

	victim, err := e.store.GetPlayer(ctx, game.ID, z.Slot)
	if err == nil && victim.State == domain.StateZombie {
		victim.State = domain.StateKilled
		if err := e.store.PutPlayer(ctx, game.ID, victim); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	return e.checkKilledWin(ctx, game)
}

func (e *Engine) checkKilledWin(ctx context.Context, game domain.Game) error {
	zombies, err := e.store.ListZombies(ctx, game.ID)
	if err != nil {
		return err
	}
	if len(zombies) > 0 {
		return nil
	}
	players, err := e.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.State == domain.StateAlive && p.Infected() {
			return nil
		}
	}
	game.Result = domain.ResultKilledWin
	return e.turns.Finish(ctx, game)
}

// useCure clears a pending infection, or ends the game outright when aimed
// at the host: curing the source is the survivors' cleanest victory.
func (e *Engine) useCure(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	// Self-cure mutates the actor's own record; anything else re-reads the
	// target fresh.
	target := player
	if act.TargetSlot != player.Slot {
		var err error
		target, err = e.store.GetPlayer(ctx, game.ID, act.TargetSlot)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeTargetNotInGame, "cure target is not in this game")
			}
			return err
		}
		if target.Region != player.Region {
			return apperrors.New(apperrors.CodeTargetNotInRegion, "cure target is elsewhere")
		}
	}

	if target.Slot == game.HostSlot {
		player.RemoveItem(act.Item)
		if err := e.store.PutPlayer(ctx, game.ID, player); err != nil {
			return err
		}
		game.Result = domain.ResultCuredWin
		return e.turns.Finish(ctx, game)
	}
	if !target.Infected() {
		return apperrors.New(apperrors.CodeTargetNotInfected, "target has no pending infection")
	}

	target.InfectedAtTurn = nil
	if target.Slot == player.Slot {
		target.RemoveItem(act.Item)
		return e.store.PutPlayer(ctx, game.ID, target)
	}
	if err := e.store.PutPlayer(ctx, game.ID, target); err != nil {
		return err
	}
	player.RemoveItem(act.Item)
	return e.store.PutPlayer(ctx, game.ID, player)
}

func (e *Engine) useSignal(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	player.RemoveItem(act.Item)
	if err := e.store.PutPlayer(ctx, game.ID, player); err != nil {
		return err
	}
	e.broadcast.Publish(game.ID, player.Region, FlareSignal{
		GameID:  game.ID,
		Turn:    game.Turn,
		Region:  player.Region,
		Slot:    player.Slot,
		Message: act.Message,
	})
	return nil
}

func (e *Engine) useGraffiti(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if strings.TrimSpace(act.Message) == "" {
		return apperrors.New(apperrors.CodeMessageEmpty, "empty graffiti text")
	}
	entry := domain.GraffitiEntry{Slot: player.Slot, Text: act.Message, WrittenAt: e.now()}
	if err := e.store.AppendGraffiti(ctx, game.ID, game.Turn, player.Region, entry); err != nil {
		return err
	}
	player.RemoveItem(act.Item)
	return e.store.PutPlayer(ctx, game.ID, player)
}

func (e *Engine) useEraser(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	channel, err := e.store.GetRegionChannel(ctx, game.ID, game.Turn, player.Region)
	if err != nil {
		return err
	}
	if act.GraffitiIndex < 0 || act.GraffitiIndex >= len(channel.Graffiti) {
		return apperrors.WithMetadata(apperrors.CodeGraffitiIndex, "no graffiti at index",
			map[string]string{"index": strconv.Itoa(act.GraffitiIndex)})
	}
	if channel.Graffiti[act.GraffitiIndex].Erased {
		return apperrors.New(apperrors.CodeGraffitiErased, "graffiti already erased")
	}
	if err := e.store.EraseGraffiti(ctx, game.ID, game.Turn, player.Region, act.GraffitiIndex); err != nil {
		return err
	}
	player.RemoveItem(act.Item)
	return e.store.PutPlayer(ctx, game.ID, player)
}

func (e *Engine) applyGiveItem(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if !player.Present() {
		return apperrors.New(apperrors.CodeActorInactive, "only alive players trade")
	}
	if !player.HasItem(act.Item) {
		return apperrors.WithMetadata(apperrors.CodeItemNotOwned, "item not in inventory",
			map[string]string{"item": string(act.Item)})
	}
	if act.TargetSlot == player.Slot {
		return apperrors.New(apperrors.CodeReceiverUnavailable, "cannot give an item to yourself")
	}

	receiver, err := e.store.GetPlayer(ctx, game.ID, act.TargetSlot)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeTargetNotInGame, "receiver is not in this game")
		}
		return err
	}
	if !receiver.Present() {
		return apperrors.New(apperrors.CodeReceiverUnavailable, "receiver cannot hold items")
	}
	if receiver.Region != player.Region {
		return apperrors.New(apperrors.CodeTargetNotInRegion, "receiver is elsewhere")
	}

	// Receiver first: a crash between the writes duplicates rather than
	// destroys, and the duplicate is reconciled by the next distribution.
	receiver.Items = append(receiver.Items, act.Item)
	if err := e.store.PutPlayer(ctx, game.ID, receiver); err != nil {
		return err
	}
	player.RemoveItem(act.Item)
	return e.store.PutPlayer(ctx, game.ID, player)
}

func (e *Engine) applyInfect(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if player.State != domain.StateHost {
		return apperrors.New(apperrors.CodeActorNotHost, "infection is a host action")
	}
	return e.hosts.SetInfectionTarget(ctx, game.ID, act.TargetSlot)
}

func (e *Engine) applyCommandZombie(ctx context.Context, game domain.Game, player domain.Player, act Action) error {
	if player.State != domain.StateHost {
		return apperrors.New(apperrors.CodeActorNotHost, "zombie command is a host action")
	}
	return e.hosts.IssueZombieCommand(ctx, game.ID, act.ZombieSlot, act.TargetSlot, act.NextRegion)
}
