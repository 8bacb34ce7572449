// Package registry maps entity type names to factories that turn raw decoded
// payloads into typed entities.
//
// The registry is populated at start-up (explicitly or from a schema) and is
// safe for concurrent read access afterwards. It is never a process global:
// callers construct one and pass it to the client, cache and server.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

var (
	// ErrDuplicateType is returned when a name is registered twice.
	ErrDuplicateType = errors.New("type already registered")
	// ErrUnknownType matches every *UnknownTypeError.
	ErrUnknownType = errors.New("unknown entity type")
)

// UnknownTypeError reports a type name with no registered factory.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", e.Name)
}

// Is makes errors.Is(err, ErrUnknownType) match.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// Factory builds an entity from a decoded property bag. The bag includes the
// "ID" property when the payload carried one.
type Factory func(raw map[string]any) (*types.Entity, error)

// Registry holds the factory for every known type.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering the same name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("register: empty type name")
	}
	if f == nil {
		return fmt.Errorf("register %s: nil factory", name)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("register %s: %w", name, ErrDuplicateType)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for start-up wiring; it panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// RegisterSchema registers DefaultFactory for every schema type that does
// not already have a factory.
func (r *Registry) RegisterSchema(s *schema.Schema) {
	for _, name := range s.EntityNames() {
		if _, ok := r.factories[name]; ok {
			continue
		}
		r.factories[name] = DefaultFactory(name)
		r.order = append(r.order, name)
	}
}

// Resolve returns the factory for a name.
func (r *Registry) Resolve(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	return f, nil
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Materialize builds an entity of the named type from a raw property bag.
// Client-private properties (leading "_") are carried over even when the
// factory drops them.
func (r *Registry) Materialize(name string, raw map[string]any) (*types.Entity, error) {
	f, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	e, err := f(raw)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}
	e.Type = name
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			e.Set(k, v)
		}
	}
	return e, nil
}

// MaterializeJSON decodes a flat JSON object and materializes it.
func (r *Registry) MaterializeJSON(name string, data []byte) (*types.Entity, error) {
	if _, err := r.Resolve(name); err != nil {
		return nil, err
	}
	raw, err := types.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}
	return r.Materialize(name, raw)
}

// MaterializeAll maps Materialize over a list, stopping at the first error.
func (r *Registry) MaterializeAll(name string, raws []map[string]any) ([]*types.Entity, error) {
	out := make([]*types.Entity, 0, len(raws))
	for i, raw := range raws {
		e, err := r.Materialize(name, raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// MaterializeJSONList decodes a JSON array of flat objects.
func (r *Registry) MaterializeJSONList(name string, data []byte) ([]*types.Entity, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("materialize %s list: %w", name, err)
	}
	out := make([]*types.Entity, 0, len(items))
	for i, item := range items {
		e, err := r.MaterializeJSON(name, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// DefaultFactory builds a generic entity carrying every property of the bag.
func DefaultFactory(name string) Factory {
	return func(raw map[string]any) (*types.Entity, error) {
		e := types.NewEntity(name, 0)
		for k, v := range raw {
			e.Set(k, v)
		}
		return e, nil
	}
}
