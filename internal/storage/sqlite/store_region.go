package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/calder-games/nightfall/internal/game/domain"
	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/storage"
)

// PutRegionChannel replaces one per-(turn, region) channel wholesale. Used
// by bootstrap when carrying graffiti into the new turn's keys.
func (s *Store) PutRegionChannel(ctx context.Context, c domain.RegionChannel) error {
	return s.putEntity(ctx, storage.RegionKey(c.GameID, c.Turn, c.Region), c)
}

// GetRegionChannel reads one channel. A channel nobody has written to yet
// comes back empty rather than as a missing-entity error; per-turn keys are
// created lazily.
func (s *Store) GetRegionChannel(ctx context.Context, gameID string, turn, region int) (domain.RegionChannel, error) {
	var c domain.RegionChannel
	err := s.getEntity(ctx, storage.RegionKey(gameID, turn, region), &c)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.RegionChannel{GameID: gameID, Turn: turn, Region: region}, nil
	}
	if err != nil {
		return domain.RegionChannel{}, err
	}
	return c, nil
}

// AppendChat appends one chat entry to a channel. The read-modify-write runs
// in a single-row transaction so concurrent senders in one action window
// cannot drop each other's messages.
func (s *Store) AppendChat(ctx context.Context, gameID string, turn, region int, entry domain.ChatEntry) error {
	return s.mutateChannel(ctx, gameID, turn, region, func(c *domain.RegionChannel) error {
		c.Chat = append(c.Chat, entry)
		return nil
	})
}

// AppendGraffiti appends one graffiti entry to a channel.
func (s *Store) AppendGraffiti(ctx context.Context, gameID string, turn, region int, entry domain.GraffitiEntry) error {
	return s.mutateChannel(ctx, gameID, turn, region, func(c *domain.RegionChannel) error {
		c.Graffiti = append(c.Graffiti, entry)
		return nil
	})
}

// EraseGraffiti tombstones one graffiti index in place.
func (s *Store) EraseGraffiti(ctx context.Context, gameID string, turn, region, index int) error {
	return s.mutateChannel(ctx, gameID, turn, region, func(c *domain.RegionChannel) error {
		if !c.EraseGraffiti(index) {
			return apperrors.WithMetadata(apperrors.CodeGraffitiIndex,
				"graffiti index out of range",
				map[string]string{"index": strconv.Itoa(index)})
		}
		return nil
	})
}

// mutateChannel applies fn to one channel row inside an immediate
// transaction. Only this single entity is touched; the store offers no
// cross-entity transactions.
func (s *Store) mutateChannel(ctx context.Context, gameID string, turn, region int, fn func(*domain.RegionChannel) error) error {
	key := storage.RegionKey(gameID, turn, region)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin channel tx %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	channel := domain.RegionChannel{GameID: gameID, Turn: turn, Region: region}
	var encoded string
	row := tx.QueryRowContext(ctx, "SELECT value FROM entities WHERE key = ?", key)
	switch err := row.Scan(&encoded); {
	case errors.Is(err, sql.ErrNoRows):
		// first write to this turn's channel
	case err != nil:
		return fmt.Errorf("get %s: %w", key, err)
	default:
		if err := json.Unmarshal([]byte(encoded), &channel); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}

	if err := fn(&channel); err != nil {
		return err
	}

	updated, err := json.Marshal(channel)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO entities (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, string(updated), toMillis(s.now())); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit channel tx %s: %w", key, err)
	}
	return nil
}
