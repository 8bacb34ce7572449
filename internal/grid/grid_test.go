package grid

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/eventbus"
	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/state"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

type fakeWidget struct {
	view        RowView
	h           Handlers
	subscribed  bool
	invalidated int
	sortCol     string
	sortAsc     bool
	quick       map[string]string
	destroyed   bool
}

func (w *fakeWidget) Subscribe(h Handlers) func() {
	w.h, w.subscribed = h, true
	return func() { w.subscribed = false }
}
func (w *fakeWidget) Invalidate() { w.invalidated++ }
func (w *fakeWidget) SetSortIndicator(id string, asc bool) { w.sortCol, w.sortAsc = id, asc }
func (w *fakeWidget) SetQuickFilters(f map[string]string) { w.quick = f }
func (w *fakeWidget) Destroy() { w.destroyed = true }

type fakeContainer struct{ w *fakeWidget }

func (c *fakeContainer) NewWidget(view RowView, _ Config) Widget {
	c.w = &fakeWidget{view: view}
	return c.w
}

func testEnv() *field.Env {
	s := schema.New(schema.Description{{Name: "Person", Fields: []*schema.FieldSchema{
		{Name: "PersonName", Type: schema.TypeString},
		{Name: "Age", Type: schema.TypeInt32},
		{Name: "Amount", Type: schema.TypeDouble, AllowNull: true},
	}}})
	return field.NewEnv(s, cache.New())
}

func person(id int64, name string, age int64, amount float64) *types.Entity {
	e := types.NewEntity("Person", id)
	e.Set("PersonName", name)
	e.Set("Age", age)
	e.Set("Amount", amount)
	return e
}

func people() []*types.Entity {
	return []*types.Entity{
		person(1, "John Smith", 40, 10.001),
		person(2, "Jane Doe", 30, 10.002),
		person(3, "SMITHERS", 50, 1),
		person(4, "Bob", 20, 2),
	}
}

func columns() []*field.Spec {
	total := field.DefaultColumn()
	total.Total = true
	return []*field.Spec{
		field.NewColumn("Person", "PersonName", "Name", field.DefaultColumn()),
		field.NewColumn("Person", "Age", "Age", field.DefaultColumn()),
		field.NewColumn("Person", "Amount", "Amount", total),
	}
}

func config(store state.Store) Config {
	return Config{Sortable: true, QuickFilters: true, HashPrefix: "Person:", Store: store}
}

func rendered(t *testing.T, items []*types.Entity, cfg Config) (*Grid, *fakeWidget) {
	t.Helper()
	g, err := New(testEnv(), items, columns(), DefaultCommands(), cfg)
	require.NoError(t, err)
	c := &fakeContainer{}
	require.NoError(t, g.Render(context.Background(), c))
	return g, c.w
}

func names(g *Grid) []string {
	var out []string
	for _, e := range g.Visible() {
		out = append(out, e.String("PersonName"))
	}
	return out
}

func TestNew_DuplicateColumn(t *testing.T) {
	cols := append(columns(), field.NewColumn("Person", "Age", "Again", field.DefaultColumn()))
	_, err := New(testEnv(), people(), cols, nil, Config{})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestGrid_Lifecycle(t *testing.T) {
	ctx := context.Background()
	g, err := New(testEnv(), people(), columns(), nil, config(nil))
	require.NoError(t, err)
	assert.Equal(t, Unrendered, g.State())
	assert.ErrorIs(t, g.ApplyFilter(nil), ErrNotRendered)
	assert.ErrorIs(t, g.Sort(ctx, "Age", true), ErrNotRendered)

	c := &fakeContainer{}
	require.NoError(t, g.Render(ctx, c))
	assert.Equal(t, Rendered, g.State())
	assert.True(t, c.w.subscribed)
	assert.ErrorIs(t, g.Render(ctx, c), ErrRendered)

	g.Dispose()
	assert.Equal(t, Disposed, g.State())
	assert.True(t, c.w.destroyed)
	assert.False(t, c.w.subscribed)
	assert.ErrorIs(t, g.Refresh(), ErrDisposed)
	assert.ErrorIs(t, g.Render(ctx, c), ErrDisposed)
	g.Dispose()
}

func TestGrid_DefaultSortIsFirstColumn(t *testing.T) {
	g, w := rendered(t, people(), config(nil))
	col, asc := g.SortState()
	assert.Equal(t, "PersonName", col)
	assert.True(t, asc)
	assert.Equal(t, "PersonName", w.sortCol)
	assert.Equal(t, []string{"Bob", "Jane Doe", "John Smith", "SMITHERS"}, names(g))
	assert.Equal(t, 4, w.view.Len())
	assert.Equal(t, []string{"Bob", "20", "2"}, w.view.Row(0))
}

func TestGrid_DefaultSortSkipsUnsortable(t *testing.T) {
	cols := columns()
	cols[0].Column.Sortable = false
	g, err := New(testEnv(), people(), cols, nil, config(nil))
	require.NoError(t, err)
	c := &fakeContainer{}
	require.NoError(t, g.Render(context.Background(), c))

	col, asc := g.SortState()
	assert.Equal(t, "Age", col)
	assert.True(t, asc)
	assert.Equal(t, "Age", c.w.sortCol)
	assert.Equal(t, []string{"Bob", "Jane Doe", "John Smith", "SMITHERS"}, names(g))

	for _, spec := range cols {
		spec.Column.Sortable = false
	}
	g, err = New(testEnv(), people(), cols, nil, config(nil))
	require.NoError(t, err)
	require.NoError(t, g.Render(context.Background(), &fakeContainer{}))
	col, _ = g.SortState()
	assert.Empty(t, col)
	assert.Equal(t, []string{"John Smith", "Jane Doe", "SMITHERS", "Bob"}, names(g), "list order kept")
}

func TestGrid_Sort(t *testing.T) {
	ctx := context.Background()
	g, w := rendered(t, people(), config(nil))

	require.NoError(t, g.Sort(ctx, "Age", true))
	assert.Equal(t, []string{"Bob", "Jane Doe", "John Smith", "SMITHERS"}, names(g))
	require.NoError(t, g.Sort(ctx, "Age", false))
	assert.Equal(t, []string{"SMITHERS", "John Smith", "Jane Doe", "Bob"}, names(g))
	assert.Equal(t, "Age", w.sortCol)
	assert.False(t, w.sortAsc)

	w.h.Sort("Amount", true)
	assert.Equal(t, []string{"SMITHERS", "Bob", "John Smith", "Jane Doe"}, names(g))

	assert.ErrorIs(t, g.Sort(ctx, "Missing", true), ErrUnknownColumn)
}

func TestGrid_NotSortable(t *testing.T) {
	cfg := config(nil)
	cfg.Sortable = false
	g, w := rendered(t, people(), cfg)
	col, _ := g.SortState()
	assert.Empty(t, col)
	assert.Empty(t, w.sortCol)
	assert.ErrorIs(t, g.Sort(context.Background(), "Age", true), ErrNotSortable)
	assert.Equal(t, []string{"John Smith", "Jane Doe", "SMITHERS", "Bob"}, names(g), "list order kept")
}

func TestGrid_QuickFilter(t *testing.T) {
	ctx := context.Background()
	g, w := rendered(t, people(), config(nil))

	require.NoError(t, g.SetQuickFilter(ctx, "PersonName", "smith"))
	assert.Equal(t, []string{"John Smith", "SMITHERS"}, names(g))
	assert.Equal(t, map[string]string{"PersonName": "smith"}, w.quick)

	require.NoError(t, g.ApplyFilter(func(e *types.Entity) bool { return e.Int("Age") < 45 }))
	assert.Equal(t, []string{"John Smith"}, names(g), "predicate and quick filter combine")

	w.h.QuickFilter("PersonName", "")
	assert.Equal(t, []string{"Bob", "Jane Doe", "John Smith"}, names(g))

	require.NoError(t, g.SetQuickFilter(ctx, "Age", "0"))
	w.h.Command("clear")
	assert.Len(t, g.Visible(), 4)
	assert.Empty(t, g.QuickFilters())
	assert.Empty(t, w.quick)
}

func TestGrid_QuickFiltersDisabled(t *testing.T) {
	cfg := config(nil)
	cfg.QuickFilters = false
	g, _ := rendered(t, people(), cfg)
	assert.ErrorIs(t, g.SetQuickFilter(context.Background(), "Age", "1"), ErrQuickFiltersDisabled)
}

func TestGrid_Totals(t *testing.T) {
	g, w := rendered(t, people()[:2], config(nil))
	totals := g.Totals()
	require.Len(t, totals, 1)
	assert.Equal(t, "Amount", totals[0].ColumnID)
	assert.InDelta(t, 20.003, totals[0].Value, 1e-9)
	assert.Equal(t, 20.003, totals[0].Value, "fixed point sum is exact at six decimals")
	assert.Equal(t, "20.0", totals[0].Text)
	assert.Equal(t, totals, w.view.Totals())

	cfg := config(nil)
	cfg.TotalFormat = func(v float64) string { return "custom" }
	g, _ = rendered(t, people(), cfg)
	assert.Equal(t, "custom", g.Totals()[0].Text)
}

func TestGrid_ExportRows(t *testing.T) {
	ctx := context.Background()
	g, _ := rendered(t, people(), config(nil))
	require.NoError(t, g.SetQuickFilter(ctx, "PersonName", "j"))

	rows := slices.Collect(g.ExportRows())
	assert.Equal(t, [][]string{
		{"Name", "Age", "Amount"},
		{"Jane Doe", "30", "10.002"},
		{"John Smith", "40", "10.001"},
	}, rows)
	assert.Equal(t, rows, slices.Collect(g.ExportRows()), "restartable")

	for row := range g.ExportRows() {
		assert.Equal(t, "Name", row[0])
		break
	}
}

func TestGrid_EventsAndSelection(t *testing.T) {
	var selected *types.Entity
	cfg := config(nil)
	cfg.OnSelect = func(e *types.Entity) { selected = e }
	g, w := rendered(t, people(), cfg)

	var events []Event
	unsubscribe := g.OnEvent(func(e Event) { events = append(events, e) })

	w.h.RowSelected(0)
	require.NotNil(t, selected)
	assert.Equal(t, "Bob", selected.String("PersonName"))
	got, ok := g.Selected()
	assert.True(t, ok)
	assert.Same(t, selected, got)

	w.h.Command("add")
	w.h.Command("export")
	w.h.Command("clear")
	w.h.Command("nope")
	w.h.RowSelected(99)
	require.Len(t, events, 3)
	assert.Equal(t, EventRowSelected, events[0].Type)
	assert.Equal(t, EventAdd, events[1].Type)
	assert.Equal(t, EventExportData, events[2].Type)

	unsubscribe()
	w.h.Command("add")
	assert.Len(t, events, 3)
}

func TestGrid_ReadOnlyDropsAdd(t *testing.T) {
	cfg := config(nil)
	cfg.ReadOnly = true
	g, w := rendered(t, people(), cfg)
	var events []Event
	g.OnEvent(func(e Event) { events = append(events, e) })
	w.h.Command("add")
	assert.Empty(t, events)
}

func TestGrid_PersistedState(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	g, w := rendered(t, people(), config(store))

	w.h.ColumnsReordered([]string{"Age", "PersonName", "Amount"})
	w.h.ColumnResized("PersonName", 240)
	require.NoError(t, g.Sort(ctx, "Age", false))
	require.NoError(t, g.SetQuickFilter(ctx, "PersonName", "smith"))

	raw, ok, err := store.Get(ctx, g.StateKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"ids":["Age","PersonName","Amount"],"widths":[100,240,100],"sort":{"colid":"Age","asc":false}}`, raw)
	raw, ok, err = store.Get(ctx, QuickFilterPrefix+g.StateKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"PersonName":"smith"}`, raw)
	g.Dispose()

	g2, w2 := rendered(t, people(), config(store))
	assert.Equal(t, []string{"Age", "PersonName", "Amount"}, ids(g2.Columns()))
	assert.Equal(t, 240, g2.Columns()[1].Width)
	col, asc := g2.SortState()
	assert.Equal(t, "Age", col)
	assert.False(t, asc)
	assert.Equal(t, map[string]string{"PersonName": "smith"}, w2.quick)
	assert.Equal(t, []string{"SMITHERS", "John Smith"}, names(g2))
}

func TestGrid_StateKeyDependsOnColumns(t *testing.T) {
	a, err := New(testEnv(), nil, columns(), nil, config(nil))
	require.NoError(t, err)
	b, err := New(testEnv(), nil, columns()[:2], nil, config(nil))
	require.NoError(t, err)
	assert.NotEqual(t, a.StateKey(), b.StateKey())
	assert.Contains(t, a.StateKey(), "Person:")
}

func TestGrid_IgnoresStaleLayout(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	g, err := New(testEnv(), people(), columns(), nil, config(store))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, g.StateKey(), `{"ids":["Gone","Age","Amount"],"widths":[1,2,3],"sort":{"colid":"Gone","asc":false}}`, 0))
	require.NoError(t, g.Render(ctx, &fakeContainer{}))
	assert.Equal(t, []string{"PersonName", "Age", "Amount"}, ids(g.Columns()))
	col, _ := g.SortState()
	assert.Equal(t, "PersonName", col)
}

func TestGrid_FollowsCache(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New()
	c := cache.New(cache.WithBus(bus))
	c.Load("Person", people()[:1])

	g, w := rendered(t, c.List("Person"), config(nil))
	g.Follow(bus, c, "Person")
	before := w.invalidated

	c.Apply(ctx, &wire.Response{Updates: []wire.Update{{
		QueryID: "Person", QueryLastUpdate: 1, Kind: wire.KindCreate,
		EntityID: 9, EntityType: "Person", Entity: person(9, "Zed", 1, 0),
	}}})
	assert.Len(t, g.Visible(), 2)
	assert.Greater(t, w.invalidated, before)

	g.Dispose()
	assert.Equal(t, 0, bus.Len())
}

func ids(cols []ColumnInfo) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.ID
	}
	return out
}
