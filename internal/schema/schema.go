// Package schema holds the server-provided description of entity types and
// their fields.
//
// The description is loaded once (JSON from the server, or a CUE file for
// offline tools) and consumed by the type registry, field contexts, grids and
// the reference server's validation.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Field type names as reported by the server.
const (
	TypeByte     = "Byte"
	TypeInt16    = "Int16"
	TypeInt32    = "Int32"
	TypeInt64    = "Int64"
	TypeSingle   = "Single"
	TypeDouble   = "Double"
	TypeDecimal  = "Decimal"
	TypeString   = "String"
	TypeBoolean  = "Boolean"
	TypeDateTime = "DateTime"
)

var numericTypes = []string{TypeByte, TypeInt16, TypeInt32, TypeInt64, TypeSingle, TypeDouble, TypeDecimal}

// IsNumeric reports whether values of the named type must parse as numbers.
func IsNumeric(typ string) bool {
	return slices.Contains(numericTypes, typ)
}

// FieldSchema describes one field: its type, nullability and maximum length.
type FieldSchema struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	AllowNull bool   `json:"allowNull"`
	Length    int    `json:"length,omitempty"`
}

// Numeric reports whether the field holds a number.
func (f *FieldSchema) Numeric() bool { return IsNumeric(f.Type) }

// EntitySchema holds the fields of one entity type.
type EntitySchema struct {
	Name       string
	Fields     map[string]*FieldSchema
	FieldOrder []string
}

// Field returns the schema of a named field, or nil.
func (es *EntitySchema) Field(name string) *FieldSchema {
	return es.Fields[name]
}

// EntityDescription is the wire form of one entity type.
type EntityDescription struct {
	Name   string         `json:"name"`
	Fields []*FieldSchema `json:"fields"`
}

// Description is the wire form of the whole schema.
type Description []EntityDescription

// Schema indexes a description by type and field name. It is immutable after
// construction and safe for concurrent reads.
type Schema struct {
	entities map[string]*EntitySchema
	order    []string
	desc     Description
}

// New indexes a description.
func New(desc Description) *Schema {
	s := &Schema{
		entities: make(map[string]*EntitySchema, len(desc)),
		desc:     desc,
	}
	for _, ed := range desc {
		es := &EntitySchema{Name: ed.Name, Fields: make(map[string]*FieldSchema, len(ed.Fields))}
		for _, f := range ed.Fields {
			es.Fields[f.Name] = f
			es.FieldOrder = append(es.FieldOrder, f.Name)
		}
		if _, dup := s.entities[ed.Name]; !dup {
			s.order = append(s.order, ed.Name)
		}
		s.entities[ed.Name] = es
	}
	slices.Sort(s.order)
	return s
}

// Parse reads the JSON description: [{name, fields:[{name,type,allowNull,length}]}].
func Parse(data []byte) (*Schema, error) {
	var desc Description
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return New(desc), nil
}

// LoadFile reads a schema from disk. Files ending in .cue are evaluated with
// CUE, everything else is parsed as JSON.
func LoadFile(path string) (*Schema, error) {
	if filepath.Ext(path) == ".cue" {
		return LoadCUE(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Entity returns the schema for a named type, or nil if not found.
func (s *Schema) Entity(name string) *EntitySchema {
	return s.entities[name]
}

// FieldSchema returns the schema for a property of a type, or nil.
func (s *Schema) FieldSchema(typ, prop string) *FieldSchema {
	es := s.entities[typ]
	if es == nil {
		return nil
	}
	return es.Fields[prop]
}

// EntityNames returns all type names in sorted order.
func (s *Schema) EntityNames() []string {
	return slices.Clone(s.order)
}

// Description returns the wire form the schema was built from.
func (s *Schema) Description() Description {
	return s.desc
}
