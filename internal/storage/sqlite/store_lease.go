package sqlite

import (
	"context"
	"fmt"
	"time"
)

// Acquire takes the lease when the key is free, expired, or already held by
// the same owner. Same-owner acquisition doubles as renewal: the expiry is
// pushed out by ttl. Returns false without error on contention.
func (s *Store) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if key == "" || owner == "" {
		return false, fmt.Errorf("lease key and owner are required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be positive")
	}

	now := toMillis(s.now())
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO leases (key, owner, expires_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
WHERE leases.expires_at <= ? OR leases.owner = excluded.owner
`, key, owner, now+ttl.Milliseconds(), now)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s rows: %w", key, err)
	}
	return affected > 0, nil
}

// Release frees the lease if this owner still holds it. Releasing a lease
// lost to expiry is a no-op, never an error: the guaranteed-cleanup path must
// stay safe to call after failures.
func (s *Store) Release(ctx context.Context, key, owner string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM leases WHERE key = ? AND owner = ?", key, owner); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}
