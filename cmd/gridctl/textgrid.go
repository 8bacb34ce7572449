package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/matthewbaird/entitygrid/internal/grid"
)

// textContainer creates widgets that draw to a terminal.
type textContainer struct {
	out     io.Writer
	maxRows int
	last    *textWidget
}

func (c *textContainer) NewWidget(view grid.RowView, cfg grid.Config) grid.Widget {
	c.last = &textWidget{out: c.out, view: view, maxRows: c.maxRows}
	return c.last
}

// textWidget draws the grid as an aligned table. It redraws on Draw only;
// Invalidate marks it stale.
type textWidget struct {
	out     io.Writer
	view    grid.RowView
	maxRows int

	handlers  grid.Handlers
	sortCol   string
	sortAsc   bool
	quick     map[string]string
	stale     bool
	destroyed bool
}

func (w *textWidget) Subscribe(h grid.Handlers) func() {
	w.handlers = h
	return func() { w.handlers = grid.Handlers{} }
}

func (w *textWidget) Invalidate() { w.stale = true }

func (w *textWidget) SetSortIndicator(colID string, asc bool) {
	w.sortCol, w.sortAsc = colID, asc
}

func (w *textWidget) SetQuickFilters(filters map[string]string) { w.quick = filters }

func (w *textWidget) Destroy() { w.destroyed = true }

// Stale reports whether rows changed since the last Draw.
func (w *textWidget) Stale() bool { return w.stale }

// Draw writes the header, the visible rows and the totals line.
func (w *textWidget) Draw() error {
	if w.destroyed {
		return grid.ErrDisposed
	}
	tw := tabwriter.NewWriter(w.out, 0, 4, 2, ' ', 0)
	cols := w.view.Columns()

	header := make([]string, len(cols))
	for i, c := range cols {
		h := c.Name
		if c.ID == w.sortCol {
			h += map[bool]string{true: " ^", false: " v"}[w.sortAsc]
		}
		if q := w.quick[c.ID]; q != "" {
			h += fmt.Sprintf(" [%s]", q)
		}
		header[i] = h
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	n := w.view.Len()
	shown := n
	if w.maxRows > 0 && shown > w.maxRows {
		shown = w.maxRows
	}
	for i := range shown {
		cells := w.view.Row(i)
		for j, c := range cells {
			cells[j] = clip(c, cols[j].Width)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if totals := w.view.Totals(); len(totals) > 0 {
		line := make([]string, len(cols))
		for _, t := range totals {
			if i := slices.IndexFunc(cols, func(c grid.ColumnInfo) bool { return c.ID == t.ColumnID }); i >= 0 {
				line[i] = t.Text
			}
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if shown < n {
		fmt.Fprintf(w.out, "... %d more rows\n", n-shown)
	}
	w.stale = false
	return nil
}

// Sort simulates a click on a column header.
func (w *textWidget) Sort(colID string, asc bool) {
	if w.handlers.Sort != nil {
		w.handlers.Sort(colID, asc)
	}
}

// QuickFilter simulates typing into a column's filter box.
func (w *textWidget) QuickFilter(colID, text string) {
	if w.handlers.QuickFilter != nil {
		w.handlers.QuickFilter(colID, text)
	}
}

// Select simulates a row click.
func (w *textWidget) Select(row int) {
	if w.handlers.RowSelected != nil {
		w.handlers.RowSelected(row)
	}
}

// clip shortens s to a column width given in characters; widths of 100 or
// more are treated as unbounded.
func clip(s string, width int) string {
	r := []rune(s)
	if width <= 0 || width >= 100 || len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// Command simulates a toolbar button.
func (w *textWidget) Command(id string) {
	if w.handlers.Command != nil {
		w.handlers.Command(id)
	}
}
