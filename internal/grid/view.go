package grid

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/types"
)

func (g *Grid) fieldCtx(c *column, e *types.Entity) *field.Ctx {
	return field.NewCtx(g.env, c.spec, e)
}

func (g *Grid) cells(e *types.Entity) []string {
	row := make([]string, len(g.order))
	for i, c := range g.order {
		row[i] = g.fieldCtx(c, e).Text()
	}
	return row
}

// refresh recomputes the visible rows: external predicate AND every quick
// filter, then a stable sort on the sort column.
func (g *Grid) refresh() {
	visible := make([]*types.Entity, 0, len(g.items))
	for _, e := range g.items {
		if g.pred != nil && !g.pred(e) {
			continue
		}
		if !g.matchesQuick(e) {
			continue
		}
		visible = append(visible, e)
	}
	if c, ok := g.byID[g.sortCol]; ok {
		asc := g.sortAsc
		slices.SortStableFunc(visible, func(a, b *types.Entity) int {
			r := Compare(g.fieldCtx(c, a).CompareableValue(), g.fieldCtx(c, b).CompareableValue())
			if !asc {
				return -r
			}
			return r
		})
	}
	g.visible = visible
}

func (g *Grid) matchesQuick(e *types.Entity) bool {
	for id, text := range g.quick {
		c, ok := g.byID[id]
		if !ok || text == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(g.fieldCtx(c, e).Text()), strings.ToLower(text)) {
			return false
		}
	}
	return true
}

func (g *Grid) invalidate() {
	g.refresh()
	if g.widget != nil {
		g.widget.Invalidate()
	}
}

// Compare is the three-way comparison used for sorting: nil sorts first,
// numbers compare numerically, booleans false before true, anything else
// by its text.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := types.AsFloat(a); ok {
		if y, ok := types.AsFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case y:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(field.Format(a), field.Format(b))
}

// Items returns the full, unfiltered list.
func (g *Grid) Items() []*types.Entity { return g.items }

// Visible returns the rows that pass the filters, in display order.
func (g *Grid) Visible() []*types.Entity { return slices.Clone(g.visible) }

// SetItems replaces the list, for example after a cache update, and
// refreshes the visible rows.
func (g *Grid) SetItems(items []*types.Entity) {
	if g.state == Disposed {
		return
	}
	g.items = items
	g.invalidate()
}

// Refresh recomputes the visible rows from the current list; call it after
// entities in the list changed in place.
func (g *Grid) Refresh() error {
	if err := g.live(); err != nil {
		return err
	}
	g.invalidate()
	return nil
}

// ApplyFilter replaces the external predicate; nil removes it. It combines
// with the quick filters.
func (g *Grid) ApplyFilter(pred func(*types.Entity) bool) error {
	if err := g.live(); err != nil {
		return err
	}
	g.pred = pred
	g.invalidate()
	return nil
}

// Sort orders the rows by a column and persists the choice.
func (g *Grid) Sort(ctx context.Context, colID string, asc bool) error {
	if err := g.live(); err != nil {
		return err
	}
	c, ok := g.byID[colID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, colID)
	}
	if !g.cfg.Sortable || !c.spec.Column.Sortable {
		return fmt.Errorf("%w: %s", ErrNotSortable, colID)
	}
	g.sortCol, g.sortAsc = colID, asc
	g.invalidate()
	g.widget.SetSortIndicator(colID, asc)
	g.saveLayout(ctx)
	return nil
}

// SortState returns the sort column and direction.
func (g *Grid) SortState() (string, bool) { return g.sortCol, g.sortAsc }

// SetQuickFilter sets the quick filter text of a column; "" clears it.
func (g *Grid) SetQuickFilter(ctx context.Context, colID, text string) error {
	if err := g.live(); err != nil {
		return err
	}
	if !g.cfg.QuickFilters {
		return ErrQuickFiltersDisabled
	}
	if _, ok := g.byID[colID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, colID)
	}
	if text == "" {
		delete(g.quick, colID)
	} else {
		g.quick[colID] = text
	}
	g.invalidate()
	g.widget.SetQuickFilters(maps.Clone(g.quick))
	g.saveQuickFilters(ctx)
	return nil
}

// QuickFilters returns the active quick filters.
func (g *Grid) QuickFilters() map[string]string {
	return maps.Clone(g.quick)
}

// ClearFilters removes every quick filter and the external predicate.
func (g *Grid) ClearFilters(ctx context.Context) error {
	if err := g.live(); err != nil {
		return err
	}
	clear(g.quick)
	g.pred = nil
	g.invalidate()
	g.widget.SetQuickFilters(map[string]string{})
	g.saveQuickFilters(ctx)
	return nil
}

// Columns returns the column headers in display order.
func (g *Grid) Columns() []ColumnInfo { return g.view().Columns() }

func (g *Grid) reorder(ctx context.Context, ids []string) {
	order, ok := g.columnsFor(ids)
	if !ok {
		return
	}
	g.order = order
	if g.widget != nil {
		g.widget.Invalidate()
	}
	g.saveLayout(ctx)
}

// columnsFor maps a permutation of the column IDs to columns.
func (g *Grid) columnsFor(ids []string) ([]*column, bool) {
	if len(ids) != len(g.cols) {
		return nil, false
	}
	out := make([]*column, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := g.byID[id]
		if !ok || seen[id] {
			return nil, false
		}
		seen[id] = true
		out = append(out, c)
	}
	return out, true
}

func (g *Grid) resize(ctx context.Context, id string, width int) {
	c, ok := g.byID[id]
	if !ok || width <= 0 {
		return
	}
	c.width = width
	g.saveLayout(ctx)
}
