// Package item defines the item catalog and the weighted per-turn draw.
package item

import (
	_ "embed"
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/calder-games/nightfall/internal/game/domain"
)

//go:embed items.yaml
var catalogYAML []byte

// Kind groups items by the action semantics they unlock.
type Kind string

const (
	// KindCombat items remove a co-located zombie.
	KindCombat Kind = "combat"
	// KindCure items clear a pending infection marker.
	KindCure Kind = "cure"
	// KindSignal items broadcast to the user's region.
	KindSignal Kind = "signal"
	// KindGraffiti items append a graffiti entry.
	KindGraffiti Kind = "graffiti"
	// KindEraser items tombstone a graffiti entry.
	KindEraser Kind = "eraser"
)

// Item is one catalog entry.
type Item struct {
	Code   domain.ItemCode `yaml:"code"`
	Name   string          `yaml:"name"`
	Kind   Kind            `yaml:"kind"`
	Weight int             `yaml:"weight"`
}

// Catalog is the closed set of items a game distributes.
type Catalog struct {
	items  []Item
	byCode map[domain.ItemCode]Item
	total  int
}

type catalogFile struct {
	Items []Item `yaml:"items"`
}

// Load parses a catalog from YAML bytes.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse item catalog: %w", err)
	}
	if len(file.Items) == 0 {
		return nil, fmt.Errorf("item catalog is empty")
	}

	c := &Catalog{byCode: make(map[domain.ItemCode]Item, len(file.Items))}
	for _, it := range file.Items {
		if it.Code == "" {
			return nil, fmt.Errorf("item catalog entry without code")
		}
		if it.Weight <= 0 {
			return nil, fmt.Errorf("item %s: weight must be positive", it.Code)
		}
		if _, dup := c.byCode[it.Code]; dup {
			return nil, fmt.Errorf("item %s: duplicate code", it.Code)
		}
		c.items = append(c.items, it)
		c.byCode[it.Code] = it
		c.total += it.Weight
	}
	return c, nil
}

// Default returns the embedded catalog. The embedded file is validated by
// tests, so a parse failure here is a build defect.
func Default() *Catalog {
	c, err := Load(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the catalog entry for code.
func (c *Catalog) Lookup(code domain.ItemCode) (Item, bool) {
	it, ok := c.byCode[code]
	return it, ok
}

// Draw picks one item code at random, weighted by catalog weights.
func (c *Catalog) Draw(rng *rand.Rand) domain.ItemCode {
	pick := rng.Intn(c.total)
	for _, it := range c.items {
		pick -= it.Weight
		if pick < 0 {
			return it.Code
		}
	}
	return c.items[len(c.items)-1].Code
}
