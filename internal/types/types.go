// Package types provides the Go representation of the records exchanged with a
// schema-described backend. Entities are dynamic: the schema, not the compiler,
// decides which fields a type carries.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// IDProperty is the name of the identity property in the flat JSON form.
const IDProperty = "ID"

// EntitiesSuffix marks array properties that hold IDs of related entities.
const EntitiesSuffix = "Entities"

// ErrMissingType is returned when an entity has no type tag.
var ErrMissingType = errors.New("entity has no type")

// Entity is a typed record with a numeric identity. An ID <= 0 marks an entity
// that has not been persisted yet.
type Entity struct {
	Type   string
	ID     int64
	Fields map[string]any
}

// NewEntity returns an empty entity of the given type.
func NewEntity(typ string, id int64) *Entity {
	return &Entity{Type: typ, ID: id, Fields: make(map[string]any)}
}

// IsNew reports whether the entity has never been stored.
func (e *Entity) IsNew() bool { return e.ID <= 0 }

// Validate checks the invariants every entity handed to a remote operation must hold.
func (e *Entity) Validate() error {
	if e == nil {
		return errors.New("nil entity")
	}
	if e.Type == "" {
		return ErrMissingType
	}
	return nil
}

// Get returns a property. "ID" reads the identity.
func (e *Entity) Get(prop string) (any, bool) {
	if prop == IDProperty {
		return e.ID, true
	}
	v, ok := e.Fields[prop]
	return v, ok
}

// Value returns a property or nil.
func (e *Entity) Value(prop string) any {
	v, _ := e.Get(prop)
	return v
}

// Set writes a property. "ID" writes the identity.
func (e *Entity) Set(prop string, v any) {
	if prop == IDProperty {
		e.ID, _ = AsInt(v)
		return
	}
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[prop] = v
}

// Int reads an integer property such as a foreign key. Missing or
// non-numeric values read as 0.
func (e *Entity) Int(prop string) int64 {
	n, _ := AsInt(e.Value(prop))
	return n
}

// String reads a property as text. Missing values read as "".
func (e *Entity) String(prop string) string {
	v := e.Value(prop)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// IDs reads an "...Entities" array property as a sorted ID list.
func (e *Entity) IDs(prop string) []int64 {
	raw, ok := e.Value(prop).([]any)
	if !ok {
		if ids, ok := e.Value(prop).([]int64); ok {
			out := slices.Clone(ids)
			slices.Sort(out)
			return out
		}
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if n, ok := AsInt(v); ok {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := &Entity{Type: e.Type, ID: e.ID, Fields: make(map[string]any, len(e.Fields))}
	for k, v := range e.Fields {
		c.Fields[k] = cloneValue(v)
	}
	return c
}

// CopyFrom replaces the identity and fields of e with those of src, keeping
// the pointer stable for anyone holding it.
func (e *Entity) CopyFrom(src *Entity) {
	e.Type = src.Type
	e.ID = src.ID
	e.Fields = src.Clone().Fields
}

// Equal reports whether two entities carry the same type, identity and fields.
func (e *Entity) Equal(o *Entity) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Type == o.Type && e.ID == o.ID && reflect.DeepEqual(e.Fields, o.Fields)
}

// PropertyNames returns the field names in sorted order.
func (e *Entity) PropertyNames() []string {
	return slices.Sorted(maps.Keys(e.Fields))
}

// MarshalJSON writes the flat object form: {"ID": 1, "Name": "x", ...}.
func (e *Entity) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+1)
	maps.Copy(m, e.Fields)
	m[IDProperty] = e.ID
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat object form. The type tag is not part of the
// payload and must be set by the caller (see registry.Materialize).
func (e *Entity) UnmarshalJSON(data []byte) error {
	m, err := DecodeObject(data)
	if err != nil {
		return err
	}
	e.ID, _ = AsInt(m[IDProperty])
	delete(m, IDProperty)
	e.Fields = m
	return nil
}

// DecodeObject decodes a JSON object with numbers normalised to int64 when
// integral and float64 otherwise.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	if m == nil {
		return nil, errors.New("decode entity: not an object")
	}
	for k, v := range m {
		m[k] = Normalize(v)
	}
	return m, nil
}

// Normalize converts json.Number values (recursively) into int64 or float64.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = Normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = Normalize(t[k])
		}
		return t
	}
	return v
}

// AsInt converts numeric values to int64.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// AsFloat converts numeric values to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []int64:
		return slices.Clone(t)
	}
	return v
}

// Query is a named reference to a server-side query plus an optional filter
// expression evaluated on the client.
type Query struct {
	Type   string `json:"Type"`
	Filter string `json:"Filter,omitempty"`
}

// ID identifies the query in update batches.
func (q Query) ID() string {
	if q.Filter == "" {
		return q.Type
	}
	return q.Type + ":" + q.Filter
}

// MarshalJSON includes the derived ID so servers can echo it back.
func (q Query) MarshalJSON() ([]byte, error) {
	type alias Query
	return json.Marshal(struct {
		ID string `json:"QueryId"`
		alias
	}{q.ID(), alias(q)})
}

// TypeNameProperty is the conventional display property of a type: "<Type>Name".
func TypeNameProperty(typ string) string { return typ + "Name" }

// ForeignKeyProperty is the conventional foreign key property: "<Type>ID".
func ForeignKeyProperty(typ string) string { return typ + IDProperty }

// IsEntitiesProperty reports whether prop names an array of related IDs.
func IsEntitiesProperty(prop string) bool {
	return strings.HasSuffix(prop, EntitiesSuffix) && len(prop) > len(EntitiesSuffix)
}
