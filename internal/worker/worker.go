// Package worker polls the persisted turn deadlines and drives resolutions.
// Any number of worker processes may run against the same store; the per-game
// lease lock guarantees a single resolver, and deadline re-reads under the
// lease make duplicate wakeups harmless.
package worker

import (
	"context"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/calder-games/nightfall/internal/platform/errors"
	"github.com/calder-games/nightfall/internal/platform/id"
	"github.com/calder-games/nightfall/internal/storage"
)

// Resolver performs the turn resolution for one expired game.
type Resolver interface {
	HandleExpiry(ctx context.Context, gameID string) error
}

// Config controls the poll loop and lease-acquisition behavior.
type Config struct {
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 2 * time.Second
	}
	return c
}

// Runner is one worker instance with a unique lease-owner identity.
type Runner struct {
	store    storage.Store
	resolver Resolver
	cfg      Config
	owner    string
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures runner behavior.
type Option func(*Runner)

// WithClock overrides the runner clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithOwner overrides the generated lease-owner token, for tests.
func WithOwner(owner string) Option {
	return func(r *Runner) { r.owner = owner }
}

// New builds a runner. Each runner gets a fresh owner token so two instances
// in one process still contend like separate workers.
func New(store storage.Store, resolver Resolver, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		store:    store,
		resolver: resolver,
		cfg:      cfg.normalized(),
		owner:    id.MustNewID(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is canceled. Per-game failures are logged and retried
// on the next cycle; only a store-level scan failure is logged at the loop
// level, never fatal.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := r.ResolveDue(ctx); err != nil {
			log.Printf("worker %s: scan due deadlines: %v", r.owner, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ResolveDue scans for expired deadlines and resolves each under its lease.
func (r *Runner) ResolveDue(ctx context.Context) error {
	due, err := r.store.ListDueDeadlines(ctx, r.now())
	if err != nil {
		return err
	}
	for _, gameID := range due {
		if err := r.resolveOne(ctx, gameID); err != nil {
			if apperrors.ClassOf(err) == apperrors.ClassLockContention {
				// Another worker holds the game; the next poll retries.
				continue
			}
			log.Printf("worker %s: resolve game %s: %v", r.owner, gameID, err)
		}
	}
	return nil
}

func (r *Runner) resolveOne(ctx context.Context, gameID string) error {
	key := storage.LockKey(gameID)
	delay := r.cfg.RetryBackoff
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		acquired, err := r.store.Acquire(ctx, key, r.owner, r.cfg.LeaseTTL)
		if err != nil {
			return err
		}
		if acquired {
			defer func() {
				if err := r.store.Release(ctx, key, r.owner); err != nil {
					log.Printf("worker %s: release %s: %v", r.owner, key, err)
				}
			}()
			return r.resolver.HandleExpiry(ctx, gameID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.jitter(delay)):
		}
		if delay *= 2; delay > r.cfg.RetryMaxDelay {
			delay = r.cfg.RetryMaxDelay
		}
	}
	return apperrors.WithMetadata(apperrors.CodeLockContention,
		"lease not acquired within attempt budget",
		map[string]string{"game": gameID, "attempts": strconv.Itoa(r.cfg.MaxAttempts)})
}

// jitter spreads retries across contending workers: half the base delay plus
// a random half.
func (r *Runner) jitter(d time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return d/2 + time.Duration(r.rng.Int63n(int64(d/2)+1))
}
