package domain

// ActorKind discriminates human from autonomous actors. Bot identity is
// explicit; it is never inferred from the sign or shape of an id.
type ActorKind string

const (
	// ActorHuman identifies an authenticated user.
	ActorHuman ActorKind = "human"
	// ActorBot identifies an autonomous decision engine driving a seat.
	ActorBot ActorKind = "bot"
)

// Actor identifies who controls a player slot.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// Human returns a human actor identity.
func Human(id string) Actor { return Actor{Kind: ActorHuman, ID: id} }

// Bot returns a bot actor identity.
func Bot(id string) Actor { return Actor{Kind: ActorBot, ID: id} }

// PlayerState is the lifecycle state of a player slot.
type PlayerState string

const (
	// StateAlive is an uninfected or incubating survivor.
	StateAlive PlayerState = "alive"
	// StateHost marks the single hidden adversarial role. Exactly one player
	// per game holds this state for the whole match.
	StateHost PlayerState = "host"
	// StateZombie means the player's incubation matured; an autonomous
	// zombie entity now exists for this slot.
	StateZombie PlayerState = "zombie"
	// StateKilled means the player died in an encounter or combat.
	StateKilled PlayerState = "killed"
	// StateLeft means the owner abandoned the match.
	StateLeft PlayerState = "left"
)

// Response is a survivor's declared reaction to a zombie encounter.
type Response string

const (
	ResponseNone    Response = ""
	ResponseRunaway Response = "runaway"
	ResponseHide    Response = "hide"
	ResponseLure    Response = "lure"
)

// ValidResponse reports whether r is a choosable encounter response.
func ValidResponse(r Response) bool {
	switch r {
	case ResponseRunaway, ResponseHide, ResponseLure:
		return true
	}
	return false
}

// ItemCode names a catalog item held in a player inventory.
type ItemCode string

// Player is one seat in a game. Slot ids are unique per game. Fields under
// the "chosen" group (NextRegion, Response) are exclusively written by the
// owning player's actions during the action window and reset each bootstrap.
type Player struct {
	Slot           int         `json:"slot"`
	Owner          Actor       `json:"owner"`
	State          PlayerState `json:"state"`
	Region         int         `json:"region"`
	NextRegion     int         `json:"next_region"`
	Response       Response    `json:"response"`
	InfectedAtTurn *int        `json:"infected_at_turn,omitempty"`
	Items          []ItemCode  `json:"items"`
	CanRunaway     bool        `json:"can_runaway"`
}

// Infected reports whether the player carries a pending infection marker.
func (p Player) Infected() bool {
	return p.InfectedAtTurn != nil
}

// Present reports whether the player occupies a region as a survivor-looking
// participant. The host is present: the role is hidden among survivors.
func (p Player) Present() bool {
	return p.State == StateAlive || p.State == StateHost
}

// HasItem reports whether the inventory holds at least one instance of code.
func (p Player) HasItem(code ItemCode) bool {
	for _, held := range p.Items {
		if held == code {
			return true
		}
	}
	return false
}

// RemoveItem removes one instance of code from the inventory, preserving the
// order of the remaining items. It reports whether an instance was removed.
func (p *Player) RemoveItem(code ItemCode) bool {
	for i, held := range p.Items {
		if held == code {
			p.Items = append(p.Items[:i:i], p.Items[i+1:]...)
			return true
		}
	}
	return false
}
