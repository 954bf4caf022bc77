// Package view assembles the personalized state payload each client renders.
// The payload is trimmed per recipient: the host's role and the hidden
// infection state never leak into a survivor's view.
package view

import (
	"context"
	"errors"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/game/host"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/storage"
)

// RosterEntry is one other participant as the recipient sees them. State is
// the visible state: the host is reported alive to everyone but themselves.
type RosterEntry struct {
	Slot       int                `json:"slot"`
	State      domain.PlayerState `json:"state"`
	SameRegion bool               `json:"same_region"`
}

// OwnStatus is the recipient's own slot, trimmed to what they are allowed
// to know. The infection marker stays server side: an incubating survivor
// must not be able to read their own clock.
type OwnStatus struct {
	Slot       int                `json:"slot"`
	State      domain.PlayerState `json:"state"`
	Region     int                `json:"region"`
	NextRegion int                `json:"next_region"`
	Response   domain.Response    `json:"response"`
	Items      []domain.ItemCode  `json:"items"`
	CanRunaway bool               `json:"can_runaway"`
}

// Payload is the full personalized snapshot a client renders after any
// TurnAdvanced broadcast.
type Payload struct {
	GameID           string        `json:"game_id"`
	Turn             int           `json:"turn"`
	Result           domain.Result `json:"result"`
	You              OwnStatus     `json:"you"`
	Roster           []RosterEntry `json:"roster"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Host             *host.View    `json:"host,omitempty"`
}

// Builder produces payloads from fresh store state.
type Builder struct {
	store storage.Store
	hosts *host.Service
	now   func() time.Time
}

// Option configures builder behavior.
type Option func(*Builder)

// WithClock overrides the builder clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder wires the view layer over the shared store.
func NewBuilder(store storage.Store, hosts *host.Service, opts ...Option) *Builder {
	b := &Builder{store: store, hosts: hosts, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// For builds the payload actor receives for gameID.
func (b *Builder) For(ctx context.Context, gameID string, actor domain.Actor) (Payload, error) {
	game, err := b.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Payload{}, apperrors.New(apperrors.CodeGameNotFound, "game missing")
		}
		return Payload{}, err
	}

	players, err := b.store.ListPlayers(ctx, gameID)
	if err != nil {
		return Payload{}, err
	}
	var you *domain.Player
	for i := range players {
		if players[i].Owner == actor {
			you = &players[i]
			break
		}
	}
	if you == nil {
		return Payload{}, apperrors.WithMetadata(apperrors.CodeActorNotInGame,
			"actor has no slot in this game", map[string]string{"actor": actor.ID})
	}

	payload := Payload{
		GameID: game.ID,
		Turn:   game.Turn,
		Result: game.Result,
		You: OwnStatus{
			Slot:       you.Slot,
			State:      you.State,
			Region:     you.Region,
			NextRegion: you.NextRegion,
			Response:   you.Response,
			Items:      you.Items,
			CanRunaway: you.CanRunaway,
		},
	}

	isHost := you.Slot == game.HostSlot
	for _, p := range players {
		if p.Slot == you.Slot {
			continue
		}
		visible := p.State
		if visible == domain.StateHost && !isHost {
			visible = domain.StateAlive
		}
		payload.Roster = append(payload.Roster, RosterEntry{
			Slot:       p.Slot,
			State:      visible,
			SameRegion: p.Present() && you.Present() && p.Region == you.Region,
		})
	}

	if deadline, err := b.store.GetDeadline(ctx, gameID); err == nil {
		if remaining := deadline.Sub(b.now()); remaining > 0 {
			payload.RemainingSeconds = int(remaining / time.Second)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Payload{}, err
	}

	if isHost {
		hv, err := b.hosts.BuildView(ctx, gameID)
		if err != nil {
			return Payload{}, err
		}
		payload.Host = &hv
	}
	return payload, nil
}
