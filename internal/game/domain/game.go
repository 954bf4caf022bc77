// Package domain defines the entities of the turn engine: games, players,
// zombies, the host secret, and per-region channels. Entities carry no
// behavior that requires the store; resolution logic lives in the turn,
// zombie, and host packages.
package domain

import "time"

// Incubation is the fixed number of turns between infection and zombie
// transformation. A player infected at turn T transforms at turn T+Incubation.
const Incubation = 5

// MaxSlots bounds player slot ids to 0..MaxSlots-1 per game.
const MaxSlots = 20

// NoSlot marks an empty player-slot reference.
const NoSlot = -1

// NoRegion marks an unset region choice.
const NoRegion = -1

// Result is the terminal outcome of a game.
type Result string

const (
	// ResultNone means the game is still running.
	ResultNone Result = ""
	// ResultInfectedWin: no uninfected survivor remains alive.
	ResultInfectedWin Result = "infected-win"
	// ResultKilledWin: every zombie destroyed with no infection pending.
	ResultKilledWin Result = "killed-win"
	// ResultCuredWin: the host itself was cured.
	ResultCuredWin Result = "cured-win"
)

// Game is the per-match root record. One exists per match; the turn counter
// starts at 1 and only the resolution critical section advances it.
type Game struct {
	ID          string    `json:"id"`
	Turn        int       `json:"turn"`
	HostSlot    int       `json:"host_slot"`
	Result      Result    `json:"result"`
	RegionCount int       `json:"region_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Finished reports whether a terminal result has been recorded.
func (g Game) Finished() bool {
	return g.Result != ResultNone
}
