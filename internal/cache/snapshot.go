package cache

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/types"
)

type snapshot struct {
	LastUpdate int64                        `json:"lastUpdate"`
	Queries    map[string]int64             `json:"queries,omitempty"`
	Types      map[string][]json.RawMessage `json:"types"`
}

// Snapshot serialises every list and the watermarks as snappy-compressed JSON.
func (c *Cache) Snapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := snapshot{
		LastUpdate: c.lastUpdate,
		Queries:    c.queries,
		Types:      make(map[string][]json.RawMessage, len(c.lists)),
	}
	for typ, list := range c.lists {
		items := make([]json.RawMessage, 0, len(list))
		for _, e := range list {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s %d: %w", typ, e.ID, err)
			}
			items = append(items, data)
		}
		snap.Types[typ] = items
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// Restore replaces the cache contents with a snapshot, materializing every
// entity through the registry.
func (c *Cache) Restore(data []byte, reg *registry.Registry) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	lists := make(map[string][]*types.Entity, len(snap.Types))
	for typ, items := range snap.Types {
		list := make([]*types.Entity, 0, len(items))
		for _, item := range items {
			e, err := reg.MaterializeJSON(typ, item)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			list = append(list, e)
		}
		lists[typ] = list
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = lists
	c.lastUpdate = snap.LastUpdate
	c.queries = snap.Queries
	if c.queries == nil {
		c.queries = make(map[string]int64)
	}
	return nil
}
