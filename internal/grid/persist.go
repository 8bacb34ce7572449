package grid

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// QuickFilterPrefix prefixes the key quick filters are stored under.
const QuickFilterPrefix = "saved-quick-filters:"

type layout struct {
	IDs    []string   `json:"ids"`
	Widths []int      `json:"widths"`
	Sort   *sortState `json:"sort,omitempty"`
}

type sortState struct {
	ColID string `json:"colid"`
	Asc   bool   `json:"asc"`
}

// StateKey returns the key the layout is persisted under: the configured
// prefix plus a hash of the declared column IDs, so differently configured
// grids of the same type keep separate state.
func (g *Grid) StateKey() string {
	ids := make([]string, len(g.cols))
	for i, c := range g.cols {
		ids[i] = c.spec.ID
	}
	return g.cfg.HashPrefix + strconv.FormatUint(murmur3.Sum64([]byte(strings.Join(ids, ","))), 36)
}

func (g *Grid) saveLayout(ctx context.Context) {
	if g.cfg.Store == nil {
		return
	}
	l := layout{IDs: make([]string, len(g.order)), Widths: make([]int, len(g.order))}
	for i, c := range g.order {
		l.IDs[i], l.Widths[i] = c.spec.ID, c.width
	}
	if g.sortCol != "" {
		l.Sort = &sortState{ColID: g.sortCol, Asc: g.sortAsc}
	}
	g.save(ctx, g.StateKey(), l)
}

func (g *Grid) saveQuickFilters(ctx context.Context) {
	if g.cfg.Store == nil {
		return
	}
	g.save(ctx, QuickFilterPrefix+g.StateKey(), g.quick)
}

func (g *Grid) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("grid: encode %s: %v", key, err)
		return
	}
	if err := g.cfg.Store.Set(ctx, key, string(data), g.cfg.Retention); err != nil {
		log.Printf("grid: save %s: %v", key, err)
	}
}

func (g *Grid) load(ctx context.Context, key string, v any) bool {
	raw, ok, err := g.cfg.Store.Get(ctx, key)
	if err != nil {
		log.Printf("grid: load %s: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Printf("grid: ignoring stored %s: %v", key, err)
		return false
	}
	return true
}

// restore applies the persisted layout and quick filters. Stored state that
// no longer matches the columns is ignored piece by piece.
func (g *Grid) restore(ctx context.Context) {
	if g.cfg.Store == nil {
		return
	}
	var l layout
	if g.load(ctx, g.StateKey(), &l) {
		if order, ok := g.columnsFor(l.IDs); ok {
			g.order = order
			if len(l.Widths) == len(order) {
				for i, c := range order {
					if l.Widths[i] > 0 {
						c.width = l.Widths[i]
					}
				}
			}
		}
		if l.Sort != nil {
			if c, ok := g.byID[l.Sort.ColID]; ok && g.cfg.Sortable && c.spec.Column.Sortable {
				g.sortCol, g.sortAsc = l.Sort.ColID, l.Sort.Asc
			}
		}
	}
	if !g.cfg.QuickFilters {
		return
	}
	var quick map[string]string
	if g.load(ctx, QuickFilterPrefix+g.StateKey(), &quick) {
		for id, text := range quick {
			if _, ok := g.byID[id]; ok && text != "" {
				g.quick[id] = text
			}
		}
	}
}
