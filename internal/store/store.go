// Package store is the reference server's entity store. Every mutation is
// appended to a change log; the sequence number of the last change is the
// watermark clients send back as lastUpdate.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrNoID     = errors.New("entity has no id")
)

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(typ string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, typ, id)
}

// Change is one entry of the change log.
type Change struct {
	Seq    int64
	Kind   wire.UpdateKind
	Type   string
	ID     int64
	Entity *types.Entity // nil for deletes
}

// Update converts the change into a wire update scoped to queryID.
func (c Change) Update(queryID string) wire.Update {
	return wire.Update{
		QueryID:         queryID,
		QueryLastUpdate: c.Seq,
		Kind:            c.Kind,
		EntityID:        c.ID,
		EntityType:      c.Type,
		Entity:          c.Entity,
	}
}

// Store persists entities and their change log.
type Store interface {
	// Create assigns the next ID of the entity's type and stores it.
	Create(ctx context.Context, e *types.Entity) (Change, error)
	// Update replaces a stored entity.
	Update(ctx context.Context, e *types.Entity) (Change, error)
	// Delete removes an entity.
	Delete(ctx context.Context, typ string, id int64) (Change, error)
	Get(ctx context.Context, typ string, id int64) (*types.Entity, error)
	// List returns the entities of a type ordered by ID.
	List(ctx context.Context, typ string) ([]*types.Entity, error)
	// Changes returns the log entries after since, oldest first, limited to
	// the given types when any are given.
	Changes(ctx context.Context, since int64, types ...string) ([]Change, error)
	LastSeq(ctx context.Context) (int64, error)
}

func wants(typesFilter []string, typ string) bool {
	return len(typesFilter) == 0 || slices.Contains(typesFilter, typ)
}
