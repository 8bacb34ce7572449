// Package grid is the filter, sort and layout engine behind entity grids.
//
// A Grid owns the visible row set of an entity list: the external
// predicate and per-column quick filters decide which rows show, the sort
// column orders them, and column order, widths, sort and quick filters are
// persisted in a state.Store. Drawing is delegated to a Widget that pulls
// rows on demand through a RowView.
//
// A Grid is not safe for concurrent use. Drive it from one goroutine, the
// way a UI thread would.
package grid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"time"

	"github.com/matthewbaird/entitygrid/internal/eventbus"
	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/state"
	"github.com/matthewbaird/entitygrid/internal/types"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column id")
	ErrNotRendered     = errors.New("grid not rendered")
	ErrRendered        = errors.New("grid already rendered")
	ErrDisposed        = errors.New("grid disposed")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrNotSortable     = errors.New("column not sortable")

	ErrQuickFiltersDisabled = errors.New("quick filters disabled")
)

// State is the lifecycle stage of a grid.
type State int

const (
	Unrendered State = iota
	Rendered
	Disposed
)

func (s State) String() string {
	switch s {
	case Unrendered:
		return "unrendered"
	case Rendered:
		return "rendered"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventType names a grid event.
type EventType string

const (
	EventRowSelected  EventType = "row-selected"
	EventAdd          EventType = "add"
	EventExportData   EventType = "export-data"
	EventClearFilters EventType = "clear-filters"
)

// Command is a toolbar action shown with the grid.
type Command struct {
	ID    string
	Label string
	Event EventType
}

// DefaultCommands are the commands of an editable grid.
func DefaultCommands() []Command {
	return []Command{
		{ID: "add", Label: "Add", Event: EventAdd},
		{ID: "export", Label: "Export", Event: EventExportData},
		{ID: "clear", Label: "Clear Filters", Event: EventClearFilters},
	}
}

// Event is delivered to OnEvent subscribers.
type Event struct {
	Type    EventType
	Command string
	Entity  *types.Entity // row-selected only
}

// Config holds the per-grid options.
type Config struct {
	Width        int
	ReadOnly     bool
	Sortable     bool
	QuickFilters bool

	// HashPrefix scopes persisted state, usually to the entity type.
	HashPrefix string
	Store      state.Store
	Retention  time.Duration

	OnSelect func(e *types.Entity)
	// TotalFormat formats totals of columns without a renderer.
	TotalFormat func(v float64) string
}

type column struct {
	spec  *field.Spec
	width int
}

// Grid is one grid instance.
type Grid struct {
	env      *field.Env
	cfg      Config
	commands []Command

	items   []*types.Entity
	visible []*types.Entity

	cols    []*column // declaration order; the state key hashes these IDs
	order   []*column // display order
	byID    map[string]*column
	pred    func(*types.Entity) bool
	quick   map[string]string
	sortCol string
	sortAsc bool

	state    State
	widget   Widget
	unwatch  func()
	sub      *eventbus.Subscription
	handlers []*eventHandler
	nextID   int
	selected *types.Entity
}

type eventHandler struct {
	id int
	fn func(Event)
}

// New creates a grid over items. Every spec must carry column options and
// column IDs must be unique.
func New(env *field.Env, items []*types.Entity, cols []*field.Spec, commands []Command, cfg Config) (*Grid, error) {
	if env == nil {
		panic("grid: New needs an env")
	}
	if len(cols) == 0 {
		return nil, errors.New("grid: no columns")
	}
	g := &Grid{
		env:      env,
		cfg:      cfg,
		commands: commands,
		items:    items,
		byID:     make(map[string]*column, len(cols)),
		quick:    make(map[string]string),
		sortAsc:  true,
	}
	for _, s := range cols {
		if s.Column == nil {
			return nil, fmt.Errorf("grid: %s is not a column", s.ID)
		}
		if _, dup := g.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, s.ID)
		}
		c := &column{spec: s, width: s.Column.Width}
		g.cols = append(g.cols, c)
		g.byID[s.ID] = c
	}
	g.order = slices.Clone(g.cols)
	g.refresh()
	return g, nil
}

// State returns the lifecycle stage.
func (g *Grid) State() State { return g.state }

// Render builds the widget in container, restores persisted layout, sort
// and quick filters, and wires the widget's events to the grid.
func (g *Grid) Render(ctx context.Context, container Container) error {
	switch g.state {
	case Rendered:
		return ErrRendered
	case Disposed:
		return ErrDisposed
	}
	g.restore(ctx)
	if g.sortCol == "" && g.cfg.Sortable {
		// First sortable column; none leaves the list order.
		for _, c := range g.order {
			if c.spec.Column.Sortable {
				g.sortCol, g.sortAsc = c.spec.ID, true
				break
			}
		}
	}
	g.refresh()

	g.widget = container.NewWidget(g.view(), g.cfg)
	g.unwatch = g.widget.Subscribe(Handlers{
		Sort: func(id string, asc bool) {
			if err := g.Sort(ctx, id, asc); err != nil {
				log.Printf("grid: sort %s: %v", id, err)
			}
		},
		ColumnsReordered: func(ids []string) { g.reorder(ctx, ids) },
		ColumnResized:    func(id string, width int) { g.resize(ctx, id, width) },
		RowSelected:      g.selectRow,
		QuickFilter: func(id, text string) {
			if err := g.SetQuickFilter(ctx, id, text); err != nil {
				log.Printf("grid: quick filter %s: %v", id, err)
			}
		},
		Command: func(id string) { g.command(ctx, id) },
	})
	g.state = Rendered
	if g.sortCol != "" {
		g.widget.SetSortIndicator(g.sortCol, g.sortAsc)
	}
	if g.cfg.QuickFilters {
		g.widget.SetQuickFilters(maps.Clone(g.quick))
	}
	g.widget.Invalidate()
	return nil
}

// Follow keeps the grid in sync with the cache: every CacheUpdated event
// touching typ replaces the items with src.List(typ). The subscription is
// released by Dispose.
func (g *Grid) Follow(bus *eventbus.Bus, src field.Lookup, typ string) {
	if g.sub != nil {
		g.sub.Unsubscribe()
	}
	g.sub = bus.Subscribe("grid:"+typ, eventbus.HandlerFunc(func(_ context.Context, evt eventbus.Event) error {
		if !slices.Contains(evt.Types, typ) || g.state == Disposed {
			return nil
		}
		g.SetItems(src.List(typ))
		return nil
	}), eventbus.CacheUpdated)
}

// OnEvent subscribes to grid events. The returned func unsubscribes.
func (g *Grid) OnEvent(fn func(Event)) func() {
	g.nextID++
	h := &eventHandler{id: g.nextID, fn: fn}
	g.handlers = append(g.handlers, h)
	return func() {
		g.handlers = slices.DeleteFunc(g.handlers, func(x *eventHandler) bool { return x == h })
	}
}

func (g *Grid) emit(evt Event) {
	for _, h := range slices.Clone(g.handlers) {
		h.fn(evt)
	}
}

func (g *Grid) command(ctx context.Context, id string) {
	i := slices.IndexFunc(g.commands, func(c Command) bool { return c.ID == id })
	if i < 0 {
		log.Printf("grid: unknown command %s", id)
		return
	}
	cmd := g.commands[i]
	if cmd.Event == EventClearFilters {
		if err := g.ClearFilters(ctx); err != nil {
			log.Printf("grid: clear filters: %v", err)
		}
		return
	}
	if cmd.Event == EventAdd && g.cfg.ReadOnly {
		return
	}
	g.emit(Event{Type: cmd.Event, Command: cmd.ID})
}

func (g *Grid) selectRow(row int) {
	if row < 0 || row >= len(g.visible) {
		return
	}
	g.selected = g.visible[row]
	if g.cfg.OnSelect != nil {
		g.cfg.OnSelect(g.selected)
	}
	g.emit(Event{Type: EventRowSelected, Entity: g.selected})
}

// Selected returns the last selected entity.
func (g *Grid) Selected() (*types.Entity, bool) {
	return g.selected, g.selected != nil
}

// Dispose releases the widget and every subscription. No further calls are
// valid.
func (g *Grid) Dispose() {
	if g.state == Disposed {
		return
	}
	if g.unwatch != nil {
		g.unwatch()
		g.unwatch = nil
	}
	if g.widget != nil {
		g.widget.Destroy()
		g.widget = nil
	}
	if g.sub != nil {
		g.sub.Unsubscribe()
		g.sub = nil
	}
	g.handlers = nil
	g.items, g.visible, g.selected = nil, nil, nil
	g.state = Disposed
}

func (g *Grid) live() error {
	switch g.state {
	case Unrendered:
		return ErrNotRendered
	case Disposed:
		return ErrDisposed
	}
	return nil
}
