package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Customer", DefaultFactory("Customer")))

	f, err := r.Resolve("Customer")
	require.NoError(t, err)
	e, err := f(map[string]any{"ID": int64(3), "Name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.ID)
	assert.Equal(t, "Acme", e.Value("Name"))
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Customer", DefaultFactory("Customer")))
	err := r.Register("Customer", DefaultFactory("Customer"))
	assert.ErrorIs(t, err, ErrDuplicateType)
	assert.Panics(t, func() { r.MustRegister("Customer", DefaultFactory("Customer")) })
}

func TestRegistry_UnknownType(t *testing.T) {
	r := New()
	_, err := r.Resolve("Nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)

	var ute *UnknownTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "Nope", ute.Name)

	_, err = r.MaterializeJSON("Nope", []byte(`{"ID":1}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_MaterializeKeepsPrivateProperties(t *testing.T) {
	r := New()
	// factory that only keeps the identity
	r.MustRegister("Thin", func(raw map[string]any) (*types.Entity, error) {
		id, _ := types.AsInt(raw["ID"])
		return types.NewEntity("", id), nil
	})

	e, err := r.MaterializeJSON("Thin", []byte(`{"ID": 4, "Name": "x", "_dirty": true}`))
	require.NoError(t, err)
	assert.Equal(t, "Thin", e.Type)
	assert.Equal(t, int64(4), e.ID)
	assert.Equal(t, true, e.Value("_dirty"))
	assert.Nil(t, e.Value("Name"))
}

func TestRegistry_MaterializeAll(t *testing.T) {
	r := New()
	r.MustRegister("Customer", DefaultFactory("Customer"))

	list, err := r.MaterializeAll("Customer", []map[string]any{{"ID": int64(1)}, {"ID": int64(2)}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[1].ID)

	list, err = r.MaterializeJSONList("Customer", []byte(`[{"ID":5},{"ID":6}]`))
	require.NoError(t, err)
	assert.Equal(t, int64(6), list[1].ID)
}

func TestRegistry_FactoryError(t *testing.T) {
	r := New()
	r.MustRegister("Bad", func(map[string]any) (*types.Entity, error) {
		return nil, errors.New("boom")
	})
	_, err := r.Materialize("Bad", map[string]any{})
	assert.ErrorContains(t, err, "boom")
}

func TestRegistry_RegisterSchemaKeepsExplicitFactories(t *testing.T) {
	s := schema.New(schema.Description{{Name: "A"}, {Name: "B"}})
	r := New()
	called := false
	r.MustRegister("A", func(raw map[string]any) (*types.Entity, error) {
		called = true
		return types.NewEntity("A", 0), nil
	})
	r.RegisterSchema(s)

	assert.ElementsMatch(t, []string{"A", "B"}, r.Names())
	_, err := r.Materialize("A", map[string]any{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, r.Has("B"))
}
