package grid

import "iter"

// ExportRows yields the header row followed by the rendered cells of every
// visible row, in display column order. The sequence reads the grid state
// when iterated, so it can be ranged over again after changes.
func (g *Grid) ExportRows() iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		if g.state == Disposed {
			return
		}
		header := make([]string, len(g.order))
		for i, c := range g.order {
			header[i] = c.spec.Name
		}
		if !yield(header) {
			return
		}
		for _, e := range g.visible {
			if !yield(g.cells(e)) {
				return
			}
		}
	}
}
