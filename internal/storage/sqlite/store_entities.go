package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/calder-games/nightfall/internal/game/domain"
	"github.com/calder-games/nightfall/internal/storage"
)

// compile-time check that the store satisfies every contract.
var _ storage.Store = (*Store)(nil)

// PutGame persists the per-match root record.
func (s *Store) PutGame(ctx context.Context, g domain.Game) error {
	return s.putEntity(ctx, storage.GameKey(g.ID), g)
}

// GetGame reads the per-match root record.
func (s *Store) GetGame(ctx context.Context, id string) (domain.Game, error) {
	var g domain.Game
	if err := s.getEntity(ctx, storage.GameKey(id), &g); err != nil {
		return domain.Game{}, err
	}
	return g, nil
}

// DeleteGame removes the root record at match end.
func (s *Store) DeleteGame(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, storage.GameKey(id))
}

// PutPlayer persists one player slot.
func (s *Store) PutPlayer(ctx context.Context, gameID string, p domain.Player) error {
	return s.putEntity(ctx, storage.PlayerKey(gameID, p.Slot), p)
}

// GetPlayer reads one player slot.
func (s *Store) GetPlayer(ctx context.Context, gameID string, slot int) (domain.Player, error) {
	var p domain.Player
	if err := s.getEntity(ctx, storage.PlayerKey(gameID, slot), &p); err != nil {
		return domain.Player{}, err
	}
	return p, nil
}

// ListPlayers returns every player of a game ordered by slot.
func (s *Store) ListPlayers(ctx context.Context, gameID string) ([]domain.Player, error) {
	values, err := s.listEntities(ctx, fmt.Sprintf("game:%s:player:*", gameID))
	if err != nil {
		return nil, err
	}
	players := make([]domain.Player, 0, len(values))
	for _, value := range values {
		var p domain.Player
		if err := json.Unmarshal(value, &p); err != nil {
			return nil, fmt.Errorf("decode player of game %s: %w", gameID, err)
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Slot < players[j].Slot })
	return players, nil
}

// PutZombie persists one zombie entity.
func (s *Store) PutZombie(ctx context.Context, gameID string, z domain.Zombie) error {
	return s.putEntity(ctx, storage.ZombieKey(gameID, z.Slot), z)
}

// GetZombie reads one zombie entity.
func (s *Store) GetZombie(ctx context.Context, gameID string, slot int) (domain.Zombie, error) {
	var z domain.Zombie
	if err := s.getEntity(ctx, storage.ZombieKey(gameID, slot), &z); err != nil {
		return domain.Zombie{}, err
	}
	return z, nil
}

// ListZombies returns every live zombie of a game ordered by slot.
func (s *Store) ListZombies(ctx context.Context, gameID string) ([]domain.Zombie, error) {
	values, err := s.listEntities(ctx, fmt.Sprintf("game:%s:zombie:*", gameID))
	if err != nil {
		return nil, err
	}
	zombies := make([]domain.Zombie, 0, len(values))
	for _, value := range values {
		var z domain.Zombie
		if err := json.Unmarshal(value, &z); err != nil {
			return nil, fmt.Errorf("decode zombie of game %s: %w", gameID, err)
		}
		zombies = append(zombies, z)
	}
	sort.Slice(zombies, func(i, j int) bool { return zombies[i].Slot < zombies[j].Slot })
	return zombies, nil
}

// DeleteZombie removes a zombie entity after combat removal.
func (s *Store) DeleteZombie(ctx context.Context, gameID string, slot int) error {
	return s.deleteEntity(ctx, storage.ZombieKey(gameID, slot))
}

// PutHostSecret persists the hidden host record.
func (s *Store) PutHostSecret(ctx context.Context, gameID string, h domain.HostSecret) error {
	return s.putEntity(ctx, storage.HostKey(gameID), h)
}

// GetHostSecret reads the hidden host record.
func (s *Store) GetHostSecret(ctx context.Context, gameID string) (domain.HostSecret, error) {
	var h domain.HostSecret
	if err := s.getEntity(ctx, storage.HostKey(gameID), &h); err != nil {
		return domain.HostSecret{}, err
	}
	return h, nil
}

// SetDeadline persists the authoritative turn deadline for a game.
func (s *Store) SetDeadline(ctx context.Context, gameID string, deadline time.Time) error {
	return s.putEntity(ctx, storage.DeadlineKey(gameID), toMillis(deadline))
}

// GetDeadline reads the persisted turn deadline for a game.
func (s *Store) GetDeadline(ctx context.Context, gameID string) (time.Time, error) {
	var millis int64
	if err := s.getEntity(ctx, storage.DeadlineKey(gameID), &millis); err != nil {
		return time.Time{}, err
	}
	return fromMillis(millis), nil
}

// ClearDeadline removes the persisted deadline once a game finishes.
func (s *Store) ClearDeadline(ctx context.Context, gameID string) error {
	return s.deleteEntity(ctx, storage.DeadlineKey(gameID))
}

// ListDueDeadlines returns the ids of games whose persisted deadline is at
// or before now.
func (s *Store) ListDueDeadlines(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT key, value FROM entities WHERE key GLOB 'game:*:turnEndTime' ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("scan deadlines: %w", err)
	}
	defer rows.Close()

	limit := toMillis(now)
	var due []string
	for rows.Next() {
		var key, encoded string
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, fmt.Errorf("scan deadline row: %w", err)
		}
		var millis int64
		if err := json.Unmarshal([]byte(encoded), &millis); err != nil {
			return nil, fmt.Errorf("decode deadline %s: %w", key, err)
		}
		if millis > limit {
			continue
		}
		gameID := strings.TrimSuffix(strings.TrimPrefix(key, "game:"), ":turnEndTime")
		due = append(due, gameID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan deadline rows: %w", err)
	}
	return due, nil
}
