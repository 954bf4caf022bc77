package turn

import "github.com/calder-games/nightfall/internal/game/domain"

// encounterOutcome captures the per-turn results of zombie encounters before
// any entity is written. A whole outcome is applied or none of it is.
type encounterOutcome struct {
	// Killed holds the slots of survivors caught this turn.
	Killed []int
	// RunawaySpent holds the slots whose runaway eligibility flips false
	// for the next turn.
	RunawaySpent []int
	// RunawayRested holds the slots whose eligibility resets to true.
	RunawayRested []int
}

// resolveEncounters runs the encounter algorithm for every region using
// pre-movement regions and pre-movement responses.
//
// Per region: if any present survivor chose lure, each zombie whose target is
// a luring survivor kills that survivor and everyone else is safe. With no
// lure present, each zombie whose target chose hide discovers and kills them.
// Runaway is always safe but spends next turn's eligibility. Each zombie
// resolves independently; one zombie's lure does not shield another zombie's
// target.
func resolveEncounters(players []domain.Player, zombies []domain.Zombie) encounterOutcome {
	byRegion := make(map[int][]domain.Player)
	for _, p := range players {
		if p.Present() {
			byRegion[p.Region] = append(byRegion[p.Region], p)
		}
	}

	var out encounterOutcome
	killed := make(map[int]bool)

	for region, present := range byRegion {
		lurePresent := false
		response := make(map[int]domain.Response, len(present))
		for _, p := range present {
			response[p.Slot] = p.Response
			if p.Response == domain.ResponseLure {
				lurePresent = true
			}
		}

		for _, z := range zombies {
			if z.Region != region || z.TargetSlot == domain.NoSlot {
				continue
			}
			targetResponse, here := response[z.TargetSlot]
			if !here {
				continue
			}
			if lurePresent {
				if targetResponse == domain.ResponseLure {
					killed[z.TargetSlot] = true
				}
			} else if targetResponse == domain.ResponseHide {
				killed[z.TargetSlot] = true
			}
		}

		for _, p := range present {
			switch {
			case p.Response == domain.ResponseRunaway:
				out.RunawaySpent = append(out.RunawaySpent, p.Slot)
			case !killed[p.Slot]:
				out.RunawayRested = append(out.RunawayRested, p.Slot)
			}
		}
	}

	for slot := range killed {
		out.Killed = append(out.Killed, slot)
	}
	return out
}
