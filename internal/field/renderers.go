package field

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

// Renderer kinds with special handling.
const (
	KindDate     = "date"
	KindDateTime = "datetime"
	KindCents    = "cents"
	KindYesNo    = "yesno"
	KindInt      = "int"
	KindText     = "text"
)

// ColumnRenderer turns a cell into text.
type ColumnRenderer struct {
	Kind   string
	Render func(fc *Ctx) string
}

// SortsByValue reports whether cells of this renderer sort by the raw value
// rather than the rendered text.
func (r *ColumnRenderer) SortsByValue() bool {
	if r == nil {
		return true
	}
	switch r.Kind {
	case KindDate, KindDateTime, KindCents:
		return true
	}
	return false
}

// Container receives the controls built by field renderers.
type Container interface {
	Add(c Control)
}

// Control is the live input of a rendered field.
type Control interface {
	Value() any
	SetValue(v any)
}

// FieldRenderer builds the control of a form field.
type FieldRenderer struct {
	Kind  string
	Build func(value any, e *types.Entity, parent Container, search bool) Control
}

// Dates are Unix milliseconds and render in UTC.
func dateValue(fc *Ctx) (time.Time, bool) {
	ms, ok := types.AsInt(fc.EntityValue())
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// DateRenderer renders Unix-millisecond values as dates.
var DateRenderer = &ColumnRenderer{Kind: KindDate, Render: func(fc *Ctx) string {
	t, ok := dateValue(fc)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}}

// DateTimeRenderer renders Unix-millisecond values as date and time.
var DateTimeRenderer = &ColumnRenderer{Kind: KindDateTime, Render: func(fc *Ctx) string {
	t, ok := dateValue(fc)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}}

// CentsRenderer renders integer cents as a currency amount.
var CentsRenderer = &ColumnRenderer{Kind: KindCents, Render: func(fc *Ctx) string {
	cents, ok := types.AsFloat(fc.EntityValue())
	if !ok {
		return ""
	}
	amount := cents / 100
	sign := ""
	if amount < 0 {
		sign, amount = "-", math.Abs(amount)
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", amount)
}}

// YesNoRenderer renders booleans as Yes/No.
var YesNoRenderer = &ColumnRenderer{Kind: KindYesNo, Render: func(fc *Ctx) string {
	switch v := fc.EntityValue().(type) {
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case string:
		if b, err := strconv.ParseBool(v); err == nil && b {
			return "Yes"
		}
		return "No"
	}
	return ""
}}

// IntRenderer renders numbers without decimals and with thousands separators.
var IntRenderer = &ColumnRenderer{Kind: KindInt, Render: func(fc *Ctx) string {
	n, ok := types.AsInt(fc.EntityValue())
	if !ok {
		return ""
	}
	return humanize.Comma(n)
}}

// DefaultColumnRenderers maps schema types to the renderer used when a column
// does not name one.
func DefaultColumnRenderers() map[string]*ColumnRenderer {
	return map[string]*ColumnRenderer{
		schema.TypeDateTime: DateRenderer,
		schema.TypeBoolean:  YesNoRenderer,
	}
}
