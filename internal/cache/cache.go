// Package cache holds the client's per-type entity lists and applies server
// delta batches to them.
//
// Lists keep server order for creates and keep entity pointers stable across
// updates: an update copies the new values into the existing *types.Entity so
// grids and forms holding it see the change on their next refresh.
package cache

import (
	"context"
	"log"
	"slices"
	"sync"

	"github.com/matthewbaird/entitygrid/internal/eventbus"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// Cache maps entity type names to ordered entity lists. Safe for concurrent
// use; round-trip callbacks apply batches from client goroutines.
type Cache struct {
	mu         sync.RWMutex
	lists      map[string][]*types.Entity
	lastUpdate int64
	queries    map[string]int64
	strict     bool
	bus        *eventbus.Bus
}

// Option configures a Cache.
type Option func(*Cache)

// WithBus publishes CacheUpdated events after every non-empty batch.
func WithBus(b *eventbus.Bus) Option {
	return func(c *Cache) { c.bus = b }
}

// WithStrictOrdering skips updates whose QueryLastUpdate is older than one
// already applied for the same query. Without it the last applied batch wins.
func WithStrictOrdering() Option {
	return func(c *Cache) { c.strict = true }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		lists:   make(map[string][]*types.Entity),
		queries: make(map[string]int64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result counts what a batch changed.
type Result struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Types   []string
}

// Applied is the number of updates that changed the cache.
func (r Result) Applied() int { return r.Created + r.Updated + r.Deleted }

// Load replaces the list of one type, e.g. after an initial full fetch.
func (c *Cache) Load(typ string, entities []*types.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[typ] = slices.Clone(entities)
}

// Apply applies every update of a reply in order and advances the watermark.
func (c *Cache) Apply(ctx context.Context, resp *wire.Response) Result {
	res := c.apply(resp.Updates, resp.LastUpdate)
	c.publish(ctx, res)
	return res
}

// ApplyUpdates applies a batch that did not come with a reply watermark.
func (c *Cache) ApplyUpdates(ctx context.Context, updates []wire.Update) Result {
	res := c.apply(updates, 0)
	c.publish(ctx, res)
	return res
}

func (c *Cache) apply(updates []wire.Update, lastUpdate int64) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res Result
	for _, u := range updates {
		if c.strict && u.QueryID != "" && u.QueryLastUpdate < c.queries[u.QueryID] {
			res.Skipped++
			continue
		}
		switch u.Kind {
		case wire.KindCreate, wire.KindUpdate:
			if c.upsert(u.EntityType, u.Entity) {
				res.Updated++
			} else {
				res.Created++
			}
		case wire.KindDelete:
			if c.remove(u.EntityType, u.EntityID) {
				res.Deleted++
			}
		default:
			log.Printf("cache: ignoring update with kind %q for %s %d", u.Kind, u.EntityType, u.EntityID)
			continue
		}
		if !slices.Contains(res.Types, u.EntityType) {
			res.Types = append(res.Types, u.EntityType)
		}
		if u.QueryID != "" && u.QueryLastUpdate > c.queries[u.QueryID] {
			c.queries[u.QueryID] = u.QueryLastUpdate
		}
		c.lastUpdate = max(c.lastUpdate, u.QueryLastUpdate)
	}
	c.lastUpdate = max(c.lastUpdate, lastUpdate)
	return res
}

// upsert replaces the entity with the same ID in place, or appends it.
// Reports whether an existing entity was replaced.
func (c *Cache) upsert(typ string, e *types.Entity) bool {
	if e == nil {
		return false
	}
	list := c.lists[typ]
	for _, existing := range list {
		if existing.ID == e.ID {
			existing.CopyFrom(e)
			return true
		}
	}
	c.lists[typ] = append(list, e)
	return false
}

func (c *Cache) remove(typ string, id int64) bool {
	list := c.lists[typ]
	i := slices.IndexFunc(list, func(e *types.Entity) bool { return e.ID == id })
	if i < 0 {
		return false
	}
	c.lists[typ] = slices.Delete(list, i, i+1)
	return true
}

func (c *Cache) publish(ctx context.Context, res Result) {
	if c.bus == nil || res.Applied() == 0 {
		return
	}
	c.bus.Publish(ctx, eventbus.Event{
		Type:       eventbus.CacheUpdated,
		Types:      res.Types,
		Applied:    res.Applied(),
		LastUpdate: c.LastUpdate(),
	})
}

// LastUpdate returns the watermark to send with the next round trip.
func (c *Cache) LastUpdate() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// QueryLastUpdate returns the highest watermark applied for one query.
func (c *Cache) QueryLastUpdate(queryID string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queries[queryID]
}

// List returns a copy of the list for a type. The entities are shared.
func (c *Cache) List(typ string) []*types.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lists[typ])
}

// Find returns the entity of a type with the given ID.
func (c *Cache) Find(typ string, id int64) (*types.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.lists[typ] {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of cached entities of a type.
func (c *Cache) Len(typ string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lists[typ])
}

// Types returns the cached type names in sorted order.
func (c *Cache) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.lists))
	for name := range c.lists {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
