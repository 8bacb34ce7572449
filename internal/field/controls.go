package field

import (
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

// ValueControl is a Control that simply holds a value. It backs read-only
// fields and is handy for headless forms.
type ValueControl struct {
	value any
}

// NewValueControl creates a control holding v.
func NewValueControl(v any) *ValueControl { return &ValueControl{value: v} }

func (c *ValueControl) Value() any     { return c.value }
func (c *ValueControl) SetValue(v any) { c.value = v }

// TextRenderer builds ValueControls; it is the renderer used for plain
// fields when nothing more specific is configured.
var TextRenderer = &FieldRenderer{Kind: KindText, Build: func(value any, _ *types.Entity, parent Container, _ bool) Control {
	c := NewValueControl(value)
	if parent != nil {
		parent.Add(c)
	}
	return c
}}

// DateFieldRenderer is TextRenderer for date-only fields.
var DateFieldRenderer = &FieldRenderer{Kind: KindDate, Build: TextRenderer.Build}

// DefaultFieldRenderers maps schema types to the renderer used when a field
// does not name one.
func DefaultFieldRenderers() map[string]*FieldRenderer {
	return map[string]*FieldRenderer{
		schema.TypeDateTime: DateFieldRenderer,
		schema.TypeString:   TextRenderer,
	}
}
