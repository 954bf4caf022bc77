package turn

import (
	"context"
	"fmt"
	"log"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/zombie"
)

// resolve runs the five resolution steps in their mandated order and, when
// the game survives them, bootstraps the next turn. Step ordering is load
// bearing:
//
//  1. host infection first, so a freshly-infected player cannot be attacked
//     this turn;
//  2. encounters next, on pre-movement regions and responses;
//  3. survivor movement, so runaway cannot also dodge geography;
//  4. zombie ticks, independent of survivor movement;
//  5. transformation last, on post-movement regions, so new zombies spawn
//     where the infected player now stands.
//
// Each step persists its whole result before the next begins. A failure
// aborts the remaining steps; the next deadline poll retries from the top.
func (o *Orchestrator) resolve(ctx context.Context, game domain.Game) error {
	players, err := o.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	zombies, err := o.store.ListZombies(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("list zombies: %w", err)
	}
	secret, err := o.store.GetHostSecret(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("load host secret: %w", err)
	}

	bySlot := make(map[int]*domain.Player, len(players))
	for i := range players {
		bySlot[players[i].Slot] = &players[i]
	}

	if err := o.stepHostInfection(ctx, &game, &secret, bySlot); err != nil {
		return err
	}
	if err := o.stepEncounters(ctx, game, players, zombies, bySlot); err != nil {
		return err
	}
	if o.checkInfectedWin(&game, players) {
		return o.Finish(ctx, game)
	}
	if err := o.stepMovement(ctx, game, bySlot); err != nil {
		return err
	}
	if err := o.stepZombieMovement(ctx, game, zombies); err != nil {
		return err
	}
	if err := o.stepTransformation(ctx, &game, bySlot); err != nil {
		return err
	}
	if o.checkInfectedWin(&game, players) {
		return o.Finish(ctx, game)
	}

	return o.bootstrap(ctx, game, secret, bySlot)
}

// stepHostInfection consumes the pending infection target, if any. The
// eligibility flag flips false for the following turn only when the
// infection was actually used.
func (o *Orchestrator) stepHostInfection(ctx context.Context, game *domain.Game, secret *domain.HostSecret, bySlot map[int]*domain.Player) error {
	if secret.PendingTarget == domain.NoSlot || !secret.CanInfect {
		return nil
	}

	target, ok := bySlot[secret.PendingTarget]
	if ok && target.State == domain.StateAlive && !target.Infected() {
		infectedAt := game.Turn
		target.InfectedAtTurn = &infectedAt
		if err := o.store.PutPlayer(ctx, game.ID, *target); err != nil {
			return fmt.Errorf("persist infection: %w", err)
		}
		secret.CanInfect = false
		secret.InfectionUsedTurn = game.Turn
	}

	// A target that turned invalid since aiming wastes nothing: the host
	// keeps eligibility for the next window.
	secret.PendingTarget = domain.NoSlot
	if err := o.store.PutHostSecret(ctx, game.ID, *secret); err != nil {
		return fmt.Errorf("persist host secret: %w", err)
	}
	return nil
}

// stepEncounters resolves zombie encounters on pre-movement state and
// persists the casualties and eligibility flips as one unit.
func (o *Orchestrator) stepEncounters(ctx context.Context, game domain.Game, players []domain.Player, zombies []domain.Zombie, bySlot map[int]*domain.Player) error {
	outcome := resolveEncounters(players, zombies)

	for _, slot := range outcome.Killed {
		p := bySlot[slot]
		p.State = domain.StateKilled
	}
	for _, slot := range outcome.RunawaySpent {
		bySlot[slot].CanRunaway = false
	}
	for _, slot := range outcome.RunawayRested {
		bySlot[slot].CanRunaway = true
	}

	changed := make(map[int]bool)
	for _, slot := range outcome.Killed {
		changed[slot] = true
	}
	for _, slot := range outcome.RunawaySpent {
		changed[slot] = true
	}
	for _, slot := range outcome.RunawayRested {
		changed[slot] = true
	}
	for slot := range changed {
		if err := o.store.PutPlayer(ctx, game.ID, *bySlot[slot]); err != nil {
			return fmt.Errorf("persist encounter outcome for slot %d: %w", slot, err)
		}
	}
	return nil
}

// stepMovement applies each surviving player's chosen next-region. The
// choice fields themselves are reset at bootstrap, after views of the old
// turn are no longer served.
func (o *Orchestrator) stepMovement(ctx context.Context, game domain.Game, bySlot map[int]*domain.Player) error {
	for _, p := range bySlot {
		if !p.Present() || p.NextRegion == domain.NoRegion {
			continue
		}
		p.Region = p.NextRegion
		if err := o.store.PutPlayer(ctx, game.ID, *p); err != nil {
			return fmt.Errorf("persist movement for slot %d: %w", p.Slot, err)
		}
	}
	return nil
}

// stepZombieMovement ticks every live zombie exactly once.
func (o *Orchestrator) stepZombieMovement(ctx context.Context, game domain.Game, zombies []domain.Zombie) error {
	for i := range zombies {
		o.mu.Lock()
		zombie.Tick(&zombies[i], o.rng, game.RegionCount)
		o.mu.Unlock()
		if err := o.store.PutZombie(ctx, game.ID, zombies[i]); err != nil {
			return fmt.Errorf("persist zombie %d: %w", zombies[i].Slot, err)
		}
	}
	return nil
}

// stepTransformation matures incubations: a player infected at turn T
// transforms at turn T+incubation, spawning a zombie in the player's
// post-movement region.
func (o *Orchestrator) stepTransformation(ctx context.Context, game *domain.Game, bySlot map[int]*domain.Player) error {
	for _, p := range bySlot {
		if p.State != domain.StateAlive || !p.Infected() {
			continue
		}
		if game.Turn < *p.InfectedAtTurn+domain.Incubation {
			continue
		}

		p.State = domain.StateZombie
		if err := o.store.PutPlayer(ctx, game.ID, *p); err != nil {
			return fmt.Errorf("persist transformation for slot %d: %w", p.Slot, err)
		}
		o.mu.Lock()
		spawned := zombie.Spawn(p.Slot, p.Region, o.rng, game.RegionCount)
		o.mu.Unlock()
		if err := o.store.PutZombie(ctx, game.ID, spawned); err != nil {
			return fmt.Errorf("persist spawned zombie %d: %w", p.Slot, err)
		}
	}
	return nil
}

// checkInfectedWin records the host victory once no alive survivor remains.
func (o *Orchestrator) checkInfectedWin(game *domain.Game, players []domain.Player) bool {
	if game.Finished() {
		return true
	}
	for _, p := range players {
		if p.State == domain.StateAlive {
			return false
		}
	}
	game.Result = domain.ResultInfectedWin
	return true
}

// Finish persists the terminal result already recorded on game, stops
// scheduling, and notifies every region. Stale deadlines observed later are
// dropped by HandleExpiry. Exported for the action layer, whose combat and
// cure items can end a game mid-window.
func (o *Orchestrator) Finish(ctx context.Context, game domain.Game) error {
	game.UpdatedAt = o.now()
	if err := o.store.PutGame(ctx, game); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}
	if err := o.store.ClearDeadline(ctx, game.ID); err != nil {
		return fmt.Errorf("clear deadline: %w", err)
	}
	log.Printf("turn: game %s finished with %s at turn %d", game.ID, game.Result, game.Turn)
	o.publishToAll(game, TurnAdvanced{GameID: game.ID, Turn: game.Turn, Phase: PhaseResolution, Result: game.Result})
	return nil
}

// bootstrap opens the next turn: graffiti carries forward under the new
// turn's keys, choice fields reset, eligibility recovers, one item is drawn
// per present player, and the new deadline is armed last so a crash before
// this point leaves the old deadline due and the whole resolution retried.
func (o *Orchestrator) bootstrap(ctx context.Context, game domain.Game, secret domain.HostSecret, bySlot map[int]*domain.Player) error {
	nextTurn := game.Turn + 1

	for region := 0; region < game.RegionCount; region++ {
		channel, err := o.store.GetRegionChannel(ctx, game.ID, game.Turn, region)
		if err != nil {
			return fmt.Errorf("load region %d: %w", region, err)
		}
		if len(channel.Graffiti) == 0 {
			continue
		}
		if err := o.store.PutRegionChannel(ctx, channel.CarryForward(nextTurn)); err != nil {
			return fmt.Errorf("carry graffiti for region %d: %w", region, err)
		}
	}

	for _, p := range bySlot {
		if !p.Present() {
			continue
		}
		p.NextRegion = domain.NoRegion
		p.Response = domain.ResponseNone
		p.Items = append(p.Items, o.draw())
		if err := o.store.PutPlayer(ctx, game.ID, *p); err != nil {
			return fmt.Errorf("bootstrap slot %d: %w", p.Slot, err)
		}
	}

	// infection eligibility recovers one turn after an unused turn
	if secret.InfectionUsedTurn != game.Turn && !secret.CanInfect {
		secret.CanInfect = true
		if err := o.store.PutHostSecret(ctx, game.ID, secret); err != nil {
			return fmt.Errorf("restore infection eligibility: %w", err)
		}
	}

	game.Turn = nextTurn
	game.UpdatedAt = o.now()
	if err := o.store.PutGame(ctx, game); err != nil {
		return fmt.Errorf("advance turn counter: %w", err)
	}

	deadline := o.now().Add(o.window)
	if err := o.store.SetDeadline(ctx, game.ID, deadline); err != nil {
		return fmt.Errorf("arm deadline: %w", err)
	}

	o.publishToAll(game, TurnAdvanced{GameID: game.ID, Turn: game.Turn, Phase: PhaseActionWindow, Deadline: deadline})
	return nil
}

func (o *Orchestrator) publishToAll(game domain.Game, payload TurnAdvanced) {
	if o.broadcast == nil {
		return
	}
	for region := 0; region < game.RegionCount; region++ {
		o.broadcast.Publish(game.ID, region, payload)
	}
}
