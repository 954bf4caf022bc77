// Package zombie implements the per-zombie tick model. A zombie roams on a
// countdown; when the countdown runs out it commits its pending movement and
// starts a new cycle. The host may redirect the pending movement and target
// at any point before the tick; the tick itself never consults the host.
package zombie

import (
	"math/rand"

	"github.com/calder-games/nightfall/internal/game/domain"
)

// State labels a zombie's position in its lifecycle.
type State string

const (
	// StateDormant: infection incubating, no entity exists yet.
	StateDormant State = "dormant"
	// StateRoaming: countdown running, movement pending.
	StateRoaming State = "roaming"
	// StateMoving: countdown exhausted this tick, movement committed.
	StateMoving State = "moving"
	// StateRemoved: destroyed by a combat item.
	StateRemoved State = "removed"
)

// Spawn creates the entity for a slot whose incubation matured. The spawn
// region is the player's post-movement region; the first wander destination
// is drawn immediately so a host command can override it before the next tick.
func Spawn(slot, region int, rng *rand.Rand, regionCount int) domain.Zombie {
	return domain.Zombie{
		Slot:       slot,
		Region:     region,
		Countdown:  domain.CountdownReset,
		TargetSlot: domain.NoSlot,
		NextRegion: rng.Intn(regionCount),
	}
}

// Tick advances z by one resolution step and reports whether the zombie
// committed a movement. On commit the countdown resets and the next
// destination is rerolled uniformly; a host command issued in the following
// action window overwrites the reroll before it is ever acted on.
func Tick(z *domain.Zombie, rng *rand.Rand, regionCount int) bool {
	z.Countdown--
	if z.Countdown > 0 {
		return false
	}
	z.Region = z.NextRegion
	z.Countdown = domain.CountdownReset
	z.NextRegion = rng.Intn(regionCount)
	return true
}

// Redirect applies a host command to the pending cycle. Negative target or
// region values leave the respective field untouched; the countdown is never
// affected.
func Redirect(z *domain.Zombie, targetSlot, nextRegion int) {
	if targetSlot >= 0 {
		z.TargetSlot = targetSlot
	}
	if nextRegion >= 0 {
		z.NextRegion = nextRegion
	}
}
