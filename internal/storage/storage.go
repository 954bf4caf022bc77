// Package storage defines the entity store contracts the turn engine runs
// on. There are no cross-entity transactions: every method reads or writes a
// single keyed record, and multi-process consistency comes from the lease
// lock plus per-turn keys, not from the store.
package storage

import (
	"context"
	"time"

	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/game/domain"
)

// ErrNotFound indicates a requested persistence record is missing. Callers
// use this to differentiate "no such entity" from transport failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// GameStore persists the per-match root record.
type GameStore interface {
	PutGame(ctx context.Context, g domain.Game) error
	GetGame(ctx context.Context, id string) (domain.Game, error)
	DeleteGame(ctx context.Context, id string) error
}

// PlayerStore persists player slots.
type PlayerStore interface {
	PutPlayer(ctx context.Context, gameID string, p domain.Player) error
	GetPlayer(ctx context.Context, gameID string, slot int) (domain.Player, error)
	// ListPlayers returns every player of a game ordered by slot.
	ListPlayers(ctx context.Context, gameID string) ([]domain.Player, error)
}

// ZombieStore persists zombie entities.
type ZombieStore interface {
	PutZombie(ctx context.Context, gameID string, z domain.Zombie) error
	GetZombie(ctx context.Context, gameID string, slot int) (domain.Zombie, error)
	// ListZombies returns every live zombie of a game ordered by slot.
	ListZombies(ctx context.Context, gameID string) ([]domain.Zombie, error)
	DeleteZombie(ctx context.Context, gameID string, slot int) error
}

// HostStore persists the hidden host record.
type HostStore interface {
	PutHostSecret(ctx context.Context, gameID string, h domain.HostSecret) error
	GetHostSecret(ctx context.Context, gameID string) (domain.HostSecret, error)
}

// RegionStore persists per-(turn, region) channels. Appends and erasures are
// atomic per channel so concurrent writers in one action window cannot drop
// each other's entries.
type RegionStore interface {
	PutRegionChannel(ctx context.Context, c domain.RegionChannel) error
	GetRegionChannel(ctx context.Context, gameID string, turn, region int) (domain.RegionChannel, error)
	AppendChat(ctx context.Context, gameID string, turn, region int, entry domain.ChatEntry) error
	AppendGraffiti(ctx context.Context, gameID string, turn, region int, entry domain.GraffitiEntry) error
	// EraseGraffiti tombstones one graffiti index in place. Index and list
	// length are preserved.
	EraseGraffiti(ctx context.Context, gameID string, turn, region, index int) error
}

// DeadlineStore persists the authoritative turn deadline per game. Workers
// poll it; no in-process timer is trusted across processes.
type DeadlineStore interface {
	SetDeadline(ctx context.Context, gameID string, deadline time.Time) error
	GetDeadline(ctx context.Context, gameID string) (time.Time, error)
	ClearDeadline(ctx context.Context, gameID string) error
	// ListDueDeadlines returns the ids of games whose persisted deadline is
	// at or before now.
	ListDueDeadlines(ctx context.Context, now time.Time) ([]string, error)
}

// LeaseLock is the distributed mutual-exclusion primitive guarding the
// resolution critical section: set-if-absent with a TTL and an owner token.
// Acquire is re-entrant for the same owner, which doubles as renewal.
type LeaseLock interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

// Store aggregates every persistence contract the engine consumes.
type Store interface {
	GameStore
	PlayerStore
	ZombieStore
	HostStore
	RegionStore
	DeadlineStore
	LeaseLock
}
