package item

import (
	"math/rand"
	"testing"

	"github.com/calder-games/nightfall/internal/game/domain"
)

func TestDefaultCatalogParses(t *testing.T) {
	c := Default()

	for _, code := range []string{"bat", "vaccine", "flare", "spray", "scraper"} {
		if _, ok := c.Lookup(domain.ItemCode(code)); !ok {
			t.Fatalf("expected %s in default catalog", code)
		}
	}
	bat, _ := c.Lookup("bat")
	if bat.Kind != KindCombat {
		t.Fatalf("expected bat to be combat, got %s", bat.Kind)
	}
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", "items: []"},
		{"missing code", "items:\n  - name: X\n    kind: combat\n    weight: 1"},
		{"zero weight", "items:\n  - code: x\n    kind: combat\n    weight: 0"},
		{"duplicate", "items:\n  - code: x\n    kind: combat\n    weight: 1\n  - code: x\n    kind: cure\n    weight: 1"},
	}
	for _, tc := range cases {
		if _, err := Load([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: expected load error", tc.name)
		}
	}
}

func TestDrawCoversCatalogAndRespectsWeights(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(7))

	counts := make(map[string]int)
	for range 5000 {
		counts[string(c.Draw(rng))]++
	}
	for _, code := range []string{"bat", "vaccine", "flare", "spray", "scraper"} {
		if counts[code] == 0 {
			t.Fatalf("expected %s to be drawable", code)
		}
	}
	if counts["bat"] <= counts["vaccine"] {
		t.Fatalf("expected weight-3 bat to outdraw weight-1 vaccine, got %d vs %d", counts["bat"], counts["vaccine"])
	}
}
