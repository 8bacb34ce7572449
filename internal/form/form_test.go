package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

type panel struct{ controls []field.Control }

func (p *panel) Add(c field.Control) { p.controls = append(p.controls, c) }

func env() *field.Env {
	s := schema.New(schema.Description{{Name: "Task", Fields: []*schema.FieldSchema{
		{Name: "TaskName", Type: schema.TypeString, Length: 10},
		{Name: "Notes", Type: schema.TypeString, AllowNull: true},
		{Name: "Secret", Type: schema.TypeString, AllowNull: true},
	}}})
	return field.NewEnv(s, nil)
}

func specs() []*field.Spec {
	hidden := field.DefaultEdit()
	hidden.ShowOnAdd = false
	hidden.ShowOnReadOnly = false
	return []*field.Spec{
		field.NewField("Task", "TaskName", "Name", field.DefaultEdit()),
		field.NewField("Task", "Notes", "Notes", field.DefaultEdit()),
		field.NewField("Task", "Secret", "Secret", hidden),
	}
}

func task(id int64) *types.Entity {
	e := types.NewEntity("Task", id)
	e.Set("TaskName", "write")
	return e
}

func TestNew_DuplicateField(t *testing.T) {
	s := append(specs(), field.NewField("Task", "Notes", "Again", field.DefaultEdit()))
	_, err := New(env(), task(1), s, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateField))
}

func TestForm_RenderAndDirty(t *testing.T) {
	f, err := New(env(), task(1), specs(), Options{})
	require.NoError(t, err)

	p := &panel{}
	require.NoError(t, f.Render(p))
	assert.Len(t, p.controls, 3)
	assert.False(t, f.IsDirty())

	notes, ok := f.Field("Notes")
	require.True(t, ok)
	notes.Control.SetValue("remember")
	assert.Equal(t, []string{"Notes"}, f.DirtyFields())

	out := f.Entity()
	assert.Equal(t, "remember", out.Value("Notes"))
	assert.Equal(t, "write", out.Value("TaskName"))
	assert.Nil(t, f.Original().Value("Notes"), "original is untouched")
}

func TestForm_Visible(t *testing.T) {
	f, err := New(env(), task(0), specs(), Options{})
	require.NoError(t, err)
	assert.Len(t, f.Visible(), 2, "hidden on add")

	f, err = New(env(), task(3), specs(), Options{ReadOnly: true})
	require.NoError(t, err)
	assert.Len(t, f.Visible(), 2, "hidden when read-only")

	f, err = New(env(), task(0), specs(), Options{Search: true})
	require.NoError(t, err)
	p := &panel{}
	require.NoError(t, f.Render(p))
	for _, c := range p.controls {
		assert.Nil(t, c.Value(), "search controls start empty")
	}
}

func TestForm_IgnoreDirty(t *testing.T) {
	s := specs()
	s[1].Edit.IgnoreDirty = true
	f, err := New(env(), task(1), s, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Render(&panel{}))

	fc, _ := f.Field("Notes")
	fc.Control.SetValue("changed")
	assert.False(t, f.IsDirty())
}

func TestForm_Validate(t *testing.T) {
	f, err := New(env(), task(1), specs(), Options{})
	require.NoError(t, err)
	assert.Empty(t, f.Validate(), "unrendered forms have nothing to check")

	require.NoError(t, f.Render(&panel{}))
	name, _ := f.Field("TaskName")
	name.Control.SetValue("")
	assert.Equal(t, map[string][]string{"TaskName": {"Name is required."}}, f.Validate())

	name.Control.SetValue("a name that is too long")
	assert.Equal(t, map[string][]string{"TaskName": {"Name must be 10 characters or less."}}, f.Validate())
}

func TestForm_Dispose(t *testing.T) {
	f, err := New(env(), task(1), specs(), Options{})
	require.NoError(t, err)
	require.NoError(t, f.Render(&panel{}))

	f.Dispose()
	for _, fc := range f.Fields() {
		assert.Nil(t, fc.Control)
	}
	assert.ErrorIs(t, f.Render(&panel{}), ErrDisposed)
}
