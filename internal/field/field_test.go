package field

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

func testSchema() *schema.Schema {
	return schema.New(schema.Description{
		{Name: "Order", Fields: []*schema.FieldSchema{
			{Name: "OrderName", Type: schema.TypeString, Length: 5},
			{Name: "CustomerID", Type: schema.TypeInt64},
			{Name: "Amount", Type: schema.TypeInt64, AllowNull: true},
			{Name: "Paid", Type: schema.TypeBoolean, AllowNull: true},
			{Name: "Due", Type: schema.TypeDateTime, AllowNull: true},
			{Name: "Notes", Type: schema.TypeString, AllowNull: true},
		}},
		{Name: "Customer", Fields: []*schema.FieldSchema{
			{Name: "CustomerName", Type: schema.TypeString},
			{Name: "RegionID", Type: schema.TypeInt64},
		}},
		{Name: "Region", Fields: []*schema.FieldSchema{
			{Name: "RegionName", Type: schema.TypeString},
			{Name: "Code", Type: schema.TypeString},
		}},
	})
}

func testEnv() *Env {
	c := cache.New()
	r := types.NewEntity("Region", 7)
	r.Set("RegionName", "North")
	r.Set("Code", "N1")
	c.Load("Region", []*types.Entity{r})
	a := types.NewEntity("Customer", 1)
	a.Set("CustomerName", "Alice Smith")
	a.Set("RegionID", int64(7))
	b := types.NewEntity("Customer", 2)
	b.Set("CustomerName", "Bob")
	c.Load("Customer", []*types.Entity{a, b})
	return NewEnv(testSchema(), c)
}

func order(id int64) *types.Entity {
	e := types.NewEntity("Order", id)
	e.Set("OrderName", "o1")
	e.Set("CustomerID", int64(1))
	e.Set("Amount", int64(123456))
	e.Set("Paid", true)
	return e
}

func TestResolveSource(t *testing.T) {
	env := testEnv()

	assert.Equal(t, "Alice Smith", ResolveSource(env.Cache, "Customer", 1))
	assert.Equal(t, "Alice Smith", ResolveSource(env.Cache, "Customer.CustomerName", 1))
	assert.Equal(t, "N1", ResolveSource(env.Cache, "Customer.Region.Code", 1))
	assert.Equal(t, "", ResolveSource(env.Cache, "Customer.Region.Code", 2), "customer without region")
	assert.Equal(t, "", ResolveSource(env.Cache, "Customer", 0))
	assert.Equal(t, "", ResolveSource(env.Cache, "Customer", 99))
	assert.Equal(t, "", ResolveSource(nil, "Customer", 1))
}

func TestCtx_DisplayValue(t *testing.T) {
	env := testEnv()
	e := order(1)

	col := NewColumn("Order", "CustomerID", "Customer", ColumnSpec{Source: "Customer.Region.RegionName"})
	assert.Equal(t, "North", NewCtx(env, col, e).DisplayValue())

	parent := NewColumn("Order", "CustomerID", "Customer", DefaultColumn())
	assert.Equal(t, "Alice Smith", NewCtx(env, parent, e).DisplayValue())

	e.Set("CustomerEntities", []any{int64(2), int64(1)})
	list := NewColumn("Order", "CustomerEntities", "Customers", DefaultColumn())
	assert.Equal(t, "Alice Smith, Bob", NewCtx(env, list, e).DisplayValue())
}

func TestCtx_Text(t *testing.T) {
	env := testEnv()
	e := order(1)
	e.Set("Due", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC).UnixMilli())

	cents := NewColumn("Order", "Amount", "", ColumnSpec{Renderer: CentsRenderer})
	assert.Equal(t, "$1,234.56", NewCtx(env, cents, e).Text())

	paid := NewColumn("Order", "Paid", "", DefaultColumn())
	assert.Equal(t, "Yes", NewCtx(env, paid, e).Text(), "boolean columns default to yes/no")

	due := NewColumn("Order", "Due", "", DefaultColumn())
	assert.Equal(t, "2024-03-05", NewCtx(env, due, e).Text())

	dueTime := NewColumn("Order", "Due", "", ColumnSpec{Renderer: DateTimeRenderer})
	assert.Equal(t, "2024-03-05 14:30", NewCtx(env, dueTime, e).Text())

	n := NewColumn("Order", "Amount", "", ColumnSpec{Renderer: IntRenderer})
	assert.Equal(t, "123,456", NewCtx(env, n, e).Text())

	plain := NewColumn("Order", "OrderName", "", DefaultColumn())
	assert.Equal(t, "o1", NewCtx(env, plain, e).Text())
}

func TestCtx_CompareableValue(t *testing.T) {
	env := testEnv()
	e := order(1)

	cents := NewColumn("Order", "Amount", "", ColumnSpec{Renderer: CentsRenderer})
	assert.Equal(t, int64(123456), NewCtx(env, cents, e).CompareableValue(), "cents sort by raw value")

	paid := NewColumn("Order", "Paid", "", DefaultColumn())
	assert.Equal(t, "Yes", NewCtx(env, paid, e).CompareableValue(), "yes/no sorts by text")

	plain := NewColumn("Order", "OrderName", "", DefaultColumn())
	assert.Equal(t, "o1", NewCtx(env, plain, e).CompareableValue())

	src := NewColumn("Order", "CustomerID", "", ColumnSpec{Source: "Customer"})
	assert.Equal(t, "Alice Smith", NewCtx(env, src, e).CompareableValue())
}

func TestCtx_EditableAndRequired(t *testing.T) {
	env := testEnv()

	name := NewField("Order", "OrderName", "Name", DefaultEdit())
	fc := NewCtx(env, name, order(1))
	assert.True(t, fc.IsEditable())
	assert.True(t, fc.IsRequired(), "schema does not allow null")

	notes := NewField("Order", "Notes", "Notes", DefaultEdit())
	assert.False(t, NewCtx(env, notes, order(1)).IsRequired())

	ro := DefaultEdit()
	ro.ReadOnly = true
	assert.False(t, NewCtx(env, NewField("Order", "OrderName", "", ro), order(1)).IsEditable())
	assert.False(t, NewCtx(env, NewField("Order", "OrderName", "", ro), order(1)).IsRequired())

	noAdd := DefaultEdit()
	noAdd.ShowOnAdd = false
	assert.False(t, NewCtx(env, NewField("Order", "Notes", "", noAdd), order(0)).IsEditable())
	assert.True(t, NewCtx(env, NewField("Order", "Notes", "", noAdd), order(3)).IsEditable())

	table := NewField("Order", "LineEntities", "Lines", DefaultEdit())
	assert.Equal(t, "Line", table.Edit.TableType)
	assert.Equal(t, "OrderID", table.Edit.TableParentField)
	assert.False(t, NewCtx(env, table, order(1)).IsEditable())
}

func TestCtx_DefaultParentValue(t *testing.T) {
	env := testEnv()
	edit := DefaultEdit()
	edit.DefaultValue = "Bob"
	spec := NewField("Order", "CustomerID", "Customer", edit)

	e := types.NewEntity("Order", 0)
	assert.Equal(t, int64(2), NewCtx(env, spec, e).EntityValue())

	edit.DefaultValue = "Nobody"
	spec = NewField("Order", "CustomerID", "Customer", edit)
	assert.Nil(t, NewCtx(env, spec, e).EntityValue())

	edit = DefaultEdit()
	edit.DefaultValue = "draft"
	spec = NewField("Order", "Notes", "", edit)
	assert.Equal(t, "draft", NewCtx(env, spec, e).EntityValue())
	assert.Nil(t, NewCtx(env, spec, order(4)).EntityValue(), "defaults only apply to new entities")
}

func TestCtx_IsDirty(t *testing.T) {
	env := testEnv()
	e := order(1)
	spec := NewField("Order", "Notes", "", DefaultEdit())

	fc := NewCtx(env, spec, e)
	assert.False(t, fc.IsDirty(), "unrendered field is clean")

	fc.Control = NewValueControl("")
	assert.False(t, fc.IsDirty(), "empty equals missing")
	fc.Control.SetValue("0")
	assert.False(t, fc.IsDirty())
	fc.Control.SetValue("text")
	assert.True(t, fc.IsDirty())

	e.Set("Notes", "a\r\nb")
	fc.Control.SetValue("a\nb")
	assert.False(t, fc.IsDirty(), "line endings are canonical")

	e.Set("TagEntities", []any{int64(3), int64(1)})
	tags := NewCtx(env, NewField("Order", "TagEntities", "", DefaultEdit()), e)
	tags.Control = NewValueControl([]any{int64(1), int64(3)})
	assert.False(t, tags.IsDirty(), "entity lists compare sorted")
	tags.Control.SetValue([]any{int64(1)})
	assert.True(t, tags.IsDirty())
}

func TestCtx_DateReadsAsMidnight(t *testing.T) {
	env := testEnv()
	e := order(1)
	due := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC).UnixMilli()
	e.Set("Due", due)

	fc := NewCtx(env, NewField("Order", "Due", "Due", DefaultEdit()), e)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, day, fc.EntityValue())
	assert.Equal(t, due, e.Int("Due"), "the entity keeps its stored value")

	fc.Control = NewValueControl(fc.EntityValue())
	assert.False(t, fc.IsDirty())

	col := NewCtx(env, NewColumn("Order", "Due", "", DefaultColumn()), e)
	assert.Equal(t, due, col.EntityValue())
}

func TestCtx_Validate(t *testing.T) {
	env := testEnv()
	e := order(1)

	name := NewCtx(env, NewField("Order", "OrderName", "Name", DefaultEdit()), e)
	name.Control = NewValueControl("")
	assert.Equal(t, []string{"Name is required."}, name.Validate())
	name.Control.SetValue("too long")
	assert.Equal(t, []string{"Name must be 5 characters or less."}, name.Validate())
	name.Control.SetValue("ok")
	assert.Empty(t, name.Validate())

	amount := NewCtx(env, NewField("Order", "Amount", "Amount", DefaultEdit()), e)
	amount.Control = NewValueControl("12x")
	assert.Equal(t, []string{"Amount must be a number."}, amount.Validate())

	edit := DefaultEdit()
	edit.Validator = &Validator{
		ValidateInfo: schema.ValidateInfo{Required: true},
		Custom: func(_ *Ctx, v any) string {
			if v == "forbidden" {
				return "Notes cannot be forbidden."
			}
			return ""
		},
	}
	notes := NewCtx(env, NewField("Order", "Notes", "Notes", edit), e)
	assert.True(t, notes.IsRequired())
	notes.Control = NewValueControl(nil)
	assert.Equal(t, []string{"Notes is required."}, notes.Validate())
	notes.Control.SetValue("forbidden")
	assert.Equal(t, []string{"Notes cannot be forbidden."}, notes.Validate())

	ro := DefaultEdit()
	ro.ReadOnly = true
	locked := NewCtx(env, NewField("Order", "OrderName", "Name", ro), e)
	locked.Control = NewValueControl("")
	assert.Empty(t, locked.Validate(), "read-only fields are never invalid")
}

func TestCtx_ApplyControlValue(t *testing.T) {
	env := testEnv()
	e := order(1)
	fc := NewCtx(env, NewField("Order", "Notes", "", DefaultEdit()), e)
	fc.Control = NewValueControl("updated")

	target := e.Clone()
	fc.ApplyControlValue(target)
	assert.Equal(t, "updated", target.Value("Notes"))
	assert.Nil(t, e.Value("Notes"))
}

func TestNewCtx_Panics(t *testing.T) {
	require.Panics(t, func() { NewCtx(nil, NewField("Order", "Notes", "", DefaultEdit()), order(1)) })
}
