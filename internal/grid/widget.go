package grid

import "github.com/matthewbaird/entitygrid/internal/types"

// ColumnInfo is what a widget needs to draw a column header.
type ColumnInfo struct {
	ID       string
	Name     string
	Width    int
	Sortable bool
	Total    bool
	Tooltip  bool
}

// RowView is the virtualised row source a widget pulls from. Indexes are
// into the visible, sorted rows.
type RowView interface {
	Columns() []ColumnInfo
	Len() int
	Row(i int) []string
	Entity(i int) *types.Entity
	Totals() []Total
}

// Handlers are the grid callbacks a widget invokes on user input.
type Handlers struct {
	Sort             func(colID string, asc bool)
	ColumnsReordered func(ids []string)
	ColumnResized    func(colID string, width int)
	RowSelected      func(row int)
	QuickFilter      func(colID, text string)
	Command          func(id string)
}

// Widget draws a grid.
type Widget interface {
	// Subscribe registers the grid's callbacks; the returned func removes them.
	Subscribe(h Handlers) func()
	// Invalidate tells the widget that rows or columns changed.
	Invalidate()
	SetSortIndicator(colID string, asc bool)
	SetQuickFilters(filters map[string]string)
	Destroy()
}

// Container creates widgets.
type Container interface {
	NewWidget(view RowView, cfg Config) Widget
}

type rowView struct{ g *Grid }

func (g *Grid) view() RowView { return rowView{g} }

func (v rowView) Columns() []ColumnInfo {
	out := make([]ColumnInfo, len(v.g.order))
	for i, c := range v.g.order {
		out[i] = ColumnInfo{
			ID:       c.spec.ID,
			Name:     c.spec.Name,
			Width:    c.width,
			Sortable: v.g.cfg.Sortable && c.spec.Column.Sortable,
			Total:    c.spec.Column.Total,
			Tooltip:  c.spec.Column.Tooltip,
		}
	}
	return out
}

func (v rowView) Len() int { return len(v.g.visible) }

func (v rowView) Row(i int) []string {
	if i < 0 || i >= len(v.g.visible) {
		return nil
	}
	return v.g.cells(v.g.visible[i])
}

func (v rowView) Entity(i int) *types.Entity {
	if i < 0 || i >= len(v.g.visible) {
		return nil
	}
	return v.g.visible[i]
}

func (v rowView) Totals() []Total { return v.g.Totals() }
