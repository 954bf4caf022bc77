package domain

import "time"

// ErasedGraffiti is the tombstone marker readers receive in place of erased
// graffiti text. Distinct from an absent entry: indices are never compacted.
const ErasedGraffiti = "[erased]"

// ChatEntry is one message in a region's per-turn chat log.
type ChatEntry struct {
	Slot    int       `json:"slot"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// GraffitiEntry is one wall entry in a region. Erasure tombstones the slot
// in place so indices written in one turn stay valid in the next.
type GraffitiEntry struct {
	Slot      int       `json:"slot"`
	Text      string    `json:"text"`
	Erased    bool      `json:"erased"`
	WrittenAt time.Time `json:"written_at"`
}

// RegionChannel is the ephemeral per-(game, turn, region) record holding the
// chat log and graffiti list. Chat does not carry over between turns;
// graffiti is copied forward at bootstrap.
type RegionChannel struct {
	GameID   string          `json:"game_id"`
	Turn     int             `json:"turn"`
	Region   int             `json:"region"`
	Chat     []ChatEntry     `json:"chat"`
	Graffiti []GraffitiEntry `json:"graffiti"`
}

// EraseGraffiti tombstones the entry at index. Length and indices are
// preserved. It reports false when the index is out of range and leaves the
// channel untouched; erasing an already-erased entry reports true.
func (c *RegionChannel) EraseGraffiti(index int) bool {
	if index < 0 || index >= len(c.Graffiti) {
		return false
	}
	c.Graffiti[index].Text = ErasedGraffiti
	c.Graffiti[index].Erased = true
	return true
}

// CarryForward returns the channel for the next turn: graffiti preserved
// (tombstones included), chat emptied.
func (c RegionChannel) CarryForward(turn int) RegionChannel {
	next := RegionChannel{
		GameID:   c.GameID,
		Turn:     turn,
		Region:   c.Region,
		Graffiti: make([]GraffitiEntry, len(c.Graffiti)),
	}
	copy(next.Graffiti, c.Graffiti)
	return next
}
