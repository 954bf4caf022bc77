package domain

// CountdownReset is the countdown value a zombie returns to after committing
// a movement.
const CountdownReset = 5

// Zombie is the autonomous entity spawned when a player's incubation
// matures. It ticks once per resolution: the countdown decrements, and on
// reaching zero the zombie commits NextRegion as its region and resets.
type Zombie struct {
	Slot       int `json:"slot"`
	Region     int `json:"region"`
	Countdown  int `json:"countdown"`
	TargetSlot int `json:"target_slot"`
	NextRegion int `json:"next_region"`
}

// HostSecret is the hidden per-game record backing the host role. It is only
// ever readable through the host view; broadcast payloads for other players
// never include it.
type HostSecret struct {
	Slot              int  `json:"slot"`
	CanInfect         bool `json:"can_infect"`
	PendingTarget     int  `json:"pending_target"`
	InfectionUsedTurn int  `json:"infection_used_turn"`
}
