package field

import (
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

// Env is what a field is evaluated against: the schema, the cache and the
// renderer defaults per schema type.
type Env struct {
	Schema          *schema.Schema
	Cache           Lookup
	ColumnRenderers map[string]*ColumnRenderer
	FieldRenderers  map[string]*FieldRenderer
}

// NewEnv returns an Env with the default renderers.
func NewEnv(s *schema.Schema, cache Lookup) *Env {
	return &Env{
		Schema:          s,
		Cache:           cache,
		ColumnRenderers: DefaultColumnRenderers(),
		FieldRenderers:  DefaultFieldRenderers(),
	}
}

// Ctx binds a spec to one entity.
type Ctx struct {
	Spec    *Spec
	Entity  *types.Entity
	Schema  *schema.FieldSchema // nil when the schema does not describe the field
	Control Control             // set once the field is rendered

	env      *Env
	dateOnly bool
}

// NewCtx creates the context of a spec for an entity. Editable date-only
// fields read as midnight UTC so untouched dates never read as dirty; the
// entity itself is left alone.
func NewCtx(env *Env, spec *Spec, e *types.Entity) *Ctx {
	if env == nil || spec == nil || e == nil {
		panic("field: NewCtx needs an env, a spec and an entity")
	}
	fc := &Ctx{Spec: spec, Entity: e, env: env}
	if env.Schema != nil {
		fc.Schema = env.Schema.FieldSchema(spec.EntityType, spec.DataProperty)
	}
	if spec.Edit != nil {
		if r := fc.FieldRenderer(); r != nil && r.Kind == KindDate {
			fc.dateOnly = true
		}
	}
	return fc
}

func midnight(v any) any {
	ms, ok := types.AsInt(v)
	if !ok {
		return v
	}
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
}

// ID returns the spec ID.
func (fc *Ctx) ID() string { return fc.Spec.ID }

// Env returns the environment the context was created in.
func (fc *Ctx) Env() *Env { return fc.env }

// IsEditable reports whether the field accepts input for this entity.
func (fc *Ctx) IsEditable() bool {
	ed := fc.Spec.Edit
	if ed == nil {
		return false
	}
	return !ed.ReadOnly && ed.TableType == "" && (ed.ShowOnAdd || !fc.Entity.IsNew())
}

// IsRequired reports whether a value must be entered.
func (fc *Ctx) IsRequired() bool {
	ed := fc.Spec.Edit
	if ed != nil && ed.ReadOnly {
		return false
	}
	if ed != nil && ed.Validator != nil && ed.Validator.Required {
		return true
	}
	return fc.Schema != nil && !fc.Schema.AllowNull
}

// EntityValue returns the stored value. New entities without a value use
// the spec's default; a default for a foreign key names the parent and is
// resolved to its ID through the cache.
func (fc *Ctx) EntityValue() any {
	prop := fc.Spec.DataProperty
	v, ok := fc.Entity.Get(prop)
	if ok && v != nil {
		if types.IsEntitiesProperty(prop) {
			return sortedIDs(v)
		}
		if fc.dateOnly {
			return midnight(v)
		}
		return v
	}
	if fc.Entity.IsNew() && fc.Spec.Edit != nil && fc.Spec.Edit.DefaultValue != nil {
		return fc.defaultValue()
	}
	return v
}

func (fc *Ctx) defaultValue() any {
	def := fc.Spec.Edit.DefaultValue
	prop := fc.Spec.DataProperty
	if !IsParentProperty(prop) {
		return def
	}
	parent, ok := FindByName(fc.env.Cache, ParentType(prop), def)
	if !ok {
		log.Printf("field: default %v for %s matches no %s", def, fc.Spec.ID, ParentType(prop))
		return nil
	}
	return parent.ID
}

// ControlValue returns the value currently held by the rendered control, or
// the entity value when the field has not been rendered.
func (fc *Ctx) ControlValue() any {
	if fc.Control == nil {
		return fc.EntityValue()
	}
	v := fc.Control.Value()
	if types.IsEntitiesProperty(fc.Spec.DataProperty) && v != nil {
		return sortedIDs(v)
	}
	return v
}

// ApplyControlValue writes the control value into target.
func (fc *Ctx) ApplyControlValue(target *types.Entity) {
	target.Set(fc.Spec.DataProperty, fc.ControlValue())
}

// DisplayValue returns the human-readable value: relational paths are
// resolved through the cache, everything else is the entity value.
func (fc *Ctx) DisplayValue() any {
	prop := fc.Spec.DataProperty
	switch {
	case fc.Spec.Column != nil && fc.Spec.Column.Source != "":
		return ResolveSource(fc.env.Cache, fc.Spec.Column.Source, fc.Entity.Int(prop))
	case types.IsEntitiesProperty(prop):
		return ResolveList(fc.env.Cache, fc.Entity, prop)
	case IsParentProperty(prop) && fc.Spec.DisplayPath == prop && fc.isKnownType(ParentType(prop)):
		return ResolveSource(fc.env.Cache, ParentType(prop), fc.Entity.Int(prop))
	case strings.Contains(fc.Spec.DisplayPath, "."):
		steps := strings.Split(fc.Spec.DisplayPath, ".")
		return ResolveSource(fc.env.Cache, strings.Join(append([]string{ParentType(steps[0])}, steps[1:]...), "."), fc.Entity.Int(steps[0]))
	}
	return fc.EntityValue()
}

func (fc *Ctx) isKnownType(typ string) bool {
	if fc.env.Schema != nil && fc.env.Schema.Entity(typ) != nil {
		return true
	}
	return fc.env.Cache != nil && len(fc.env.Cache.List(typ)) > 0
}

// ColumnRenderer returns the column's renderer, the default for its schema
// type, or nil.
func (fc *Ctx) ColumnRenderer() *ColumnRenderer {
	if fc.Spec.Column != nil && fc.Spec.Column.Renderer != nil {
		return fc.Spec.Column.Renderer
	}
	if fc.Schema == nil {
		return nil
	}
	return fc.env.ColumnRenderers[fc.Schema.Type]
}

// FieldRenderer returns the field's renderer, the default for its schema
// type, or nil.
func (fc *Ctx) FieldRenderer() *FieldRenderer {
	if fc.Spec.Edit != nil && fc.Spec.Edit.Renderer != nil {
		return fc.Spec.Edit.Renderer
	}
	if fc.Schema == nil {
		return nil
	}
	return fc.env.FieldRenderers[fc.Schema.Type]
}

// Text renders the cell text of a column.
func (fc *Ctx) Text() string {
	if fc.Spec.Column != nil && fc.Spec.Column.Source != "" {
		return text(fc.DisplayValue())
	}
	if r := fc.ColumnRenderer(); r != nil {
		return r.Render(fc)
	}
	return Format(fc.DisplayValue())
}

// CompareableValue is the value a column sorts by: the raw value for
// unrendered, date, date-time and cents columns, the rendered text
// otherwise.
func (fc *Ctx) CompareableValue() any {
	if fc.Spec.Column != nil && fc.Spec.Column.Source != "" {
		return fc.DisplayValue()
	}
	r := fc.ColumnRenderer()
	if r.SortsByValue() {
		return fc.EntityValue()
	}
	return r.Render(fc)
}

// IsDirty reports whether the control differs from the entity value.
// Falsy-equivalent values ("", 0, "0", "false", "{}", nil) are all equal
// and line endings are canonicalised before comparing.
func (fc *Ctx) IsDirty() bool {
	orig := fc.EntityValue()
	curr := fc.ControlValue()
	if falseEquivalent(curr) && falseEquivalent(orig) {
		return false
	}
	o, c := canonical(orig), canonical(curr)
	if o != c {
		log.Printf("field: dirty %s 1[%s] 2[%s]", fc.Spec.ID, o, c)
	}
	return o != c
}

// Validate checks the control value against the schema-implied rules and
// the spec's validator. Fields that are not editable are never invalid.
func (fc *Ctx) Validate() []string {
	if !fc.IsEditable() {
		return nil
	}
	rules := schema.RulesFor(fc.Schema)
	var custom func(*Ctx, any) string
	if v := fc.Spec.Edit.Validator; v != nil {
		rules.Required = rules.Required || v.Required
		rules.IsNumber = rules.IsNumber || v.IsNumber
		if v.MaxLength > 0 && (rules.MaxLength == 0 || v.MaxLength < rules.MaxLength) {
			rules.MaxLength = v.MaxLength
		}
		custom = v.Custom
	}
	value := fc.ControlValue()
	errs := rules.Check(fc.Spec.Name, value)
	if custom != nil {
		if msg := custom(fc, value); msg != "" {
			errs = append(errs, msg)
		}
	}
	if len(errs) > 0 {
		log.Printf("field: %s val: %v error: %v", fc.Spec.ID, value, errs)
	}
	return errs
}

// Format renders a plain value as text.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []int64:
		parts := make([]string, len(t))
		for i, n := range t {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = Format(x)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func falseEquivalent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == "" || t == "0" || t == "false" || t == "{}"
	case []int64:
		return false
	}
	if f, ok := types.AsFloat(v); ok {
		return f == 0
	}
	return false
}

func canonical(v any) string {
	s := Format(v)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func sortedIDs(v any) []int64 {
	var out []int64
	switch t := v.(type) {
	case []int64:
		out = slices.Clone(t)
	case []any:
		for _, x := range t {
			if n, ok := types.AsInt(x); ok {
				out = append(out, n)
			}
		}
	default:
		return nil
	}
	slices.Sort(out)
	return out
}
