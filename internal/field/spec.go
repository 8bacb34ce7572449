// Package field describes how one property of an entity is shown, edited
// and validated, and computes the per-entity view of that property.
//
// A Spec is shared by every entity of a type; a Ctx binds a Spec to one
// entity and to the explicit Env (schema, cache, renderer defaults) it is
// evaluated in.
package field

import (
	"strings"

	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

// Spec is the static description of a field or column. Edit and Column are
// set for form fields and grid columns respectively; a spec can carry both.
type Spec struct {
	ID           string // property path, e.g. "Name" or "ChildEntities"
	Name         string // caption
	EntityType   string
	DataProperty string // first step of ID
	DisplayPath  string

	Edit   *EditSpec
	Column *ColumnSpec

	AdditionalProperties map[string]any
}

// EditSpec holds form-field options.
type EditSpec struct {
	Renderer       *FieldRenderer
	Validator      *Validator
	ShowOnAdd      bool
	ReadOnly       bool
	ShowOnReadOnly bool
	IgnoreDirty    bool
	DefaultValue   any

	// Set for "...Entities" properties edited as child tables.
	TableType        string
	TableSpec        string
	TableParentField string
}

// ColumnSpec holds grid-column options.
type ColumnSpec struct {
	Renderer *ColumnRenderer
	// Source is a relational path such as "Customer" or "Customer.Region.Name";
	// the column value is then the ID of the first type in the path.
	Source   string
	Width    int
	Sortable bool
	Total    bool
	Tooltip  bool
}

// Validator extends the schema-implied rules of a field.
type Validator struct {
	schema.ValidateInfo
	// Custom returns an error message or "" for valid values.
	Custom func(fc *Ctx, value any) string
}

// DefaultEdit returns the options a field gets when nothing is specified.
func DefaultEdit() EditSpec {
	return EditSpec{ShowOnAdd: true, ShowOnReadOnly: true}
}

// DefaultColumn returns the options a column gets when nothing is specified.
func DefaultColumn() ColumnSpec {
	return ColumnSpec{Width: 100, Sortable: true}
}

func newSpec(entityType, id, name string) *Spec {
	if name == "" {
		name = id
	}
	return &Spec{
		ID:                   id,
		Name:                 name,
		EntityType:           entityType,
		DataProperty:         strings.Split(id, ".")[0],
		DisplayPath:          id,
		AdditionalProperties: make(map[string]any),
	}
}

// NewField creates a form-field spec. "...Entities" properties default to a
// child table of the related type.
func NewField(entityType, id, name string, edit EditSpec) *Spec {
	s := newSpec(entityType, id, name)
	if types.IsEntitiesProperty(s.DataProperty) && edit.Renderer == nil {
		if edit.TableType == "" {
			edit.TableType = strings.TrimSuffix(s.DataProperty, types.EntitiesSuffix)
		}
		if edit.TableSpec == "" {
			edit.TableSpec = edit.TableType
		}
	}
	if edit.TableType != "" && edit.TableParentField == "" {
		edit.TableParentField = types.ForeignKeyProperty(entityType)
	}
	s.Edit = &edit
	return s
}

// NewColumn creates a grid-column spec.
func NewColumn(entityType, id, name string, col ColumnSpec) *Spec {
	s := newSpec(entityType, id, name)
	s.Column = &col
	return s
}

// IsParentProperty reports whether prop is a foreign key such as "CustomerID".
func IsParentProperty(prop string) bool {
	return len(prop) > len(types.IDProperty) && strings.HasSuffix(prop, types.IDProperty)
}

// ParentType returns the type a foreign key refers to: "CustomerID" -> "Customer".
func ParentType(prop string) string {
	return strings.TrimSuffix(prop, types.IDProperty)
}
