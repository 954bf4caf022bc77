// Package action is the single mutation contract of the action window. Every
// player-originated effect, human or bot, passes through Engine.Apply as one
// Action value; there is no second write path into the entity store.
package action

import "github.com/calder-games/nightfall/internal/game/domain"

// Kind discriminates the closed action union. Dispatch is an exhaustive
// switch; adding a kind without a handler is a compile-visible gap, not a
// silent fallthrough.
type Kind string

const (
	KindMove          Kind = "move"
	KindRespond       Kind = "respond"
	KindChat          Kind = "chat"
	KindUseItem       Kind = "use-item"
	KindGiveItem      Kind = "give-item"
	KindInfect        Kind = "infect"
	KindCommandZombie Kind = "command-zombie"
)

// Action is the tagged union. Only the fields of the named kind are read;
// the rest are ignored, so a caller can safely zero-fill.
type Action struct {
	Kind Kind `json:"kind"`

	// Region is the destination for KindMove.
	Region int `json:"region,omitempty"`

	// Response is the encounter stance for KindRespond.
	Response domain.Response `json:"response,omitempty"`

	// Message carries chat text, flare text, and graffiti text.
	Message string `json:"message,omitempty"`

	// Item names the inventory entry for KindUseItem and KindGiveItem.
	Item domain.ItemCode `json:"item,omitempty"`

	// TargetSlot is the combat target, cure target, give receiver,
	// infection target, or zombie command target depending on the kind.
	TargetSlot int `json:"target_slot,omitempty"`

	// GraffitiIndex selects the wall entry for eraser items.
	GraffitiIndex int `json:"graffiti_index,omitempty"`

	// ZombieSlot and NextRegion parameterize KindCommandZombie.
	ZombieSlot int `json:"zombie_slot,omitempty"`
	NextRegion int `json:"next_region,omitempty"`
}

// Move declares the region the actor travels to at the movement step.
func Move(region int) Action {
	return Action{Kind: KindMove, Region: region}
}

// Respond declares the actor's stance for this turn's encounter step.
func Respond(r domain.Response) Action {
	return Action{Kind: KindRespond, Response: r}
}

// Chat posts a message to the actor's current region channel.
func Chat(message string) Action {
	return Action{Kind: KindChat, Message: message}
}

// UseItemOn consumes a combat or cure item against a slot in the actor's
// region.
func UseItemOn(code domain.ItemCode, targetSlot int) Action {
	return Action{Kind: KindUseItem, Item: code, TargetSlot: targetSlot}
}

// UseItemWith consumes a signal or graffiti item carrying a text payload.
func UseItemWith(code domain.ItemCode, message string) Action {
	return Action{Kind: KindUseItem, Item: code, Message: message}
}

// UseItemAt consumes an eraser item against one graffiti index.
func UseItemAt(code domain.ItemCode, index int) Action {
	return Action{Kind: KindUseItem, Item: code, GraffitiIndex: index}
}

// GiveItem hands one inventory entry to a co-located player.
func GiveItem(code domain.ItemCode, receiverSlot int) Action {
	return Action{Kind: KindGiveItem, Item: code, TargetSlot: receiverSlot}
}

// Infect aims the host's pending infection at a slot. Host only.
func Infect(targetSlot int) Action {
	return Action{Kind: KindInfect, TargetSlot: targetSlot}
}

// CommandZombie redirects one zombie's target and next region. Host only.
// Pass domain.NoSlot or domain.NoRegion to leave a field untouched.
func CommandZombie(zombieSlot, targetSlot, nextRegion int) Action {
	return Action{Kind: KindCommandZombie, ZombieSlot: zombieSlot, TargetSlot: targetSlot, NextRegion: nextRegion}
}
