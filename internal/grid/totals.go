package grid

import (
	"math"

	"github.com/dustin/go-humanize"

	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/types"
)

const totalScale = 1e6

// Total is the sum of a total column over the visible rows.
type Total struct {
	ColumnID string
	Value    float64
	Text     string
}

// Totals sums every total column over the visible rows in fixed point so
// repeated additions do not drift.
func (g *Grid) Totals() []Total {
	var out []Total
	for _, c := range g.order {
		if !c.spec.Column.Total {
			continue
		}
		var acc int64
		for _, e := range g.visible {
			if v, ok := types.AsFloat(g.fieldCtx(c, e).EntityValue()); ok {
				acc += int64(math.Round(v * totalScale))
			}
		}
		v := float64(acc) / totalScale
		out = append(out, Total{ColumnID: c.spec.ID, Value: v, Text: g.totalText(c, v)})
	}
	return out
}

func (g *Grid) totalText(c *column, v float64) string {
	if c.spec.Column.Renderer != nil {
		e := types.NewEntity(c.spec.EntityType, 0)
		e.Set(c.spec.DataProperty, v)
		return field.NewCtx(g.env, c.spec, e).Text()
	}
	if g.cfg.TotalFormat != nil {
		return g.cfg.TotalFormat(v)
	}
	return FormatTotal(v)
}

// FormatTotal is the default total format: thousands separators and one
// decimal.
func FormatTotal(v float64) string {
	return humanize.FormatFloat("#,###.#", v)
}
