package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/saaga0h/canopy/internal/registry"
	"golang.org/x/sync/errgroup"
)

// PlantCache holds the plants of every zone between registry refreshes so
// evaluations do not query the registry
type PlantCache struct {
	registry registry.Registry

	mu     sync.RWMutex
	plants map[string][]registry.Plant
}

// NewPlantCache creates an empty cache over reg
func NewPlantCache(reg registry.Registry) *PlantCache {
	return &PlantCache{
		registry: reg,
		plants:   make(map[string][]registry.Plant),
	}
}

// Plants returns the cached plants of zoneID, loading them on a miss
func (c *PlantCache) Plants(ctx context.Context, zoneID string) ([]registry.Plant, error) {
	c.mu.RLock()
	plants, ok := c.plants[zoneID]
	c.mu.RUnlock()
	if ok {
		return plants, nil
	}
	return c.registry.Plants(ctx, zoneID)
}

// Refresh reloads the plants of zones with at most limit concurrent
// queries. On error the previous contents are kept.
func (c *PlantCache) Refresh(ctx context.Context, zones []registry.Zone, limit int) error {
	results := make([][]registry.Plant, len(zones))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, z := range zones {
		g.Go(func() error {
			plants, err := c.registry.Plants(gctx, z.ID)
			if err != nil {
				return fmt.Errorf("failed to load plants for zone %s: %w", z.ID, err)
			}
			results[i] = plants
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := make(map[string][]registry.Plant, len(zones))
	for i, z := range zones {
		next[z.ID] = results[i]
	}

	c.mu.Lock()
	c.plants = next
	c.mu.Unlock()
	return nil
}
