package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// MemoryStore implements Store in memory. Intended for tests and demos.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]map[int64]*types.Entity
	nextID   map[string]int64
	log      []Change
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]map[int64]*types.Entity),
		nextID:   make(map[string]int64),
	}
}

func (s *MemoryStore) Create(_ context.Context, e *types.Entity) (Change, error) {
	if err := e.Validate(); err != nil {
		return Change{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID[e.Type]++
	stored := e.Clone()
	stored.ID = s.nextID[e.Type]
	if s.entities[e.Type] == nil {
		s.entities[e.Type] = make(map[int64]*types.Entity)
	}
	s.entities[e.Type][stored.ID] = stored
	return s.append(wire.KindCreate, stored.Type, stored.ID, stored), nil
}

func (s *MemoryStore) Update(_ context.Context, e *types.Entity) (Change, error) {
	if err := e.Validate(); err != nil {
		return Change{}, err
	}
	if e.IsNew() {
		return Change{}, ErrNoID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[e.Type][e.ID]; !ok {
		return Change{}, NotFound(e.Type, e.ID)
	}
	stored := e.Clone()
	s.entities[e.Type][e.ID] = stored
	return s.append(wire.KindUpdate, stored.Type, stored.ID, stored), nil
}

func (s *MemoryStore) Delete(_ context.Context, typ string, id int64) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[typ][id]; !ok {
		return Change{}, NotFound(typ, id)
	}
	delete(s.entities[typ], id)
	return s.append(wire.KindDelete, typ, id, nil), nil
}

// append must be called with the write lock held.
func (s *MemoryStore) append(kind wire.UpdateKind, typ string, id int64, e *types.Entity) Change {
	c := Change{Seq: int64(len(s.log)) + 1, Kind: kind, Type: typ, ID: id}
	if e != nil {
		c.Entity = e.Clone()
	}
	s.log = append(s.log, c)
	return c
}

func (s *MemoryStore) Get(_ context.Context, typ string, id int64) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[typ][id]
	if !ok {
		return nil, NotFound(typ, id)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, typ string) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Entity, 0, len(s.entities[typ]))
	for _, e := range s.entities[typ] {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b *types.Entity) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) Changes(_ context.Context, since int64, typesFilter ...string) ([]Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Change
	for _, c := range s.log[min(max(since, 0), int64(len(s.log))):] {
		if wants(typesFilter, c.Type) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) LastSeq(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.log)), nil
}

// Types returns the types that have ever been stored, sorted.
func (s *MemoryStore) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entities))
}
