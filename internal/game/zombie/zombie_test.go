package zombie

import (
	"math/rand"
	"testing"

	"github.com/calder-games/nightfall/internal/game/domain"
)

func TestTickLaw(t *testing.T) {
	// given countdown k, after exactly k ticks the region becomes the
	// previously-recorded next-region and the countdown resets
	for k := 1; k <= domain.CountdownReset; k++ {
		rng := rand.New(rand.NewSource(1))
		z := domain.Zombie{Slot: 1, Region: 0, Countdown: k, TargetSlot: domain.NoSlot, NextRegion: 2}

		for i := 0; i < k-1; i++ {
			if Tick(&z, rng, 3) {
				t.Fatalf("k=%d: unexpected commit on tick %d", k, i+1)
			}
			if z.Region != 0 {
				t.Fatalf("k=%d: region must not change before commit", k)
			}
		}

		if !Tick(&z, rng, 3) {
			t.Fatalf("k=%d: expected commit on tick %d", k, k)
		}
		if z.Region != 2 {
			t.Fatalf("k=%d: expected region 2 after commit, got %d", k, z.Region)
		}
		if z.Countdown != domain.CountdownReset {
			t.Fatalf("k=%d: expected countdown reset to %d, got %d", k, domain.CountdownReset, z.Countdown)
		}
	}
}

func TestCountdownMonotoneUntilReset(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	z := domain.Zombie{Slot: 1, Countdown: domain.CountdownReset, NextRegion: 1}

	previous := z.Countdown
	for range 20 {
		moved := Tick(&z, rng, 4)
		if moved {
			if z.Countdown != domain.CountdownReset {
				t.Fatalf("commit must reset countdown, got %d", z.Countdown)
			}
		} else if z.Countdown != previous-1 {
			t.Fatalf("countdown must decrement by one, went %d -> %d", previous, z.Countdown)
		}
		previous = z.Countdown
	}
}

func TestCommitRerollsNextRegion(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	z := domain.Zombie{Slot: 2, Region: 0, Countdown: 1, NextRegion: 5}

	Tick(&z, rng, 6)
	if z.Region != 5 {
		t.Fatalf("expected committed region 5, got %d", z.Region)
	}
	if z.NextRegion < 0 || z.NextRegion >= 6 {
		t.Fatalf("rerolled next-region out of range: %d", z.NextRegion)
	}
}

func TestRedirectLeavesCountdownAlone(t *testing.T) {
	z := domain.Zombie{Slot: 2, Countdown: 3, TargetSlot: domain.NoSlot, NextRegion: 0}

	Redirect(&z, 4, 2)
	if z.TargetSlot != 4 || z.NextRegion != 2 {
		t.Fatalf("redirect not applied: %+v", z)
	}
	if z.Countdown != 3 {
		t.Fatalf("redirect must not touch countdown, got %d", z.Countdown)
	}

	// partial redirects leave the other field untouched
	Redirect(&z, domain.NoSlot, 1)
	if z.TargetSlot != 4 || z.NextRegion != 1 {
		t.Fatalf("partial redirect wrong: %+v", z)
	}
}

func TestSpawnStartsFullCycle(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	z := Spawn(8, 2, rng, 3)

	if z.Slot != 8 || z.Region != 2 {
		t.Fatalf("unexpected spawn identity: %+v", z)
	}
	if z.Countdown != domain.CountdownReset {
		t.Fatalf("expected full countdown, got %d", z.Countdown)
	}
	if z.TargetSlot != domain.NoSlot {
		t.Fatalf("expected no initial target, got %d", z.TargetSlot)
	}
	if z.NextRegion < 0 || z.NextRegion >= 3 {
		t.Fatalf("initial next-region out of range: %d", z.NextRegion)
	}
}
