package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_JSONRoundTripIsFlat(t *testing.T) {
	e := NewEntity("Customer", 7)
	e.Set("Name", "Acme")
	e.Set("Balance", 12.5)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ID":7,"Name":"Acme","Balance":12.5}`, string(data))

	var back Entity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, int64(7), back.ID)
	assert.Equal(t, "Acme", back.Fields["Name"])
	assert.Equal(t, 12.5, back.Fields["Balance"])
	_, hasID := back.Fields["ID"]
	assert.False(t, hasID)
}

func TestDecodeObject_NormalizesNumbers(t *testing.T) {
	m, err := DecodeObject([]byte(`{"a":3,"b":3.25,"c":[1,2.5],"d":{"e":4}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), m["a"])
	assert.Equal(t, 3.25, m["b"])
	assert.Equal(t, []any{int64(1), 2.5}, m["c"])
	assert.Equal(t, map[string]any{"e": int64(4)}, m["d"])
}

func TestDecodeObject_RejectsNonObject(t *testing.T) {
	_, err := DecodeObject([]byte(`null`))
	assert.Error(t, err)
	_, err = DecodeObject([]byte(`[1]`))
	assert.Error(t, err)
}

func TestEntity_IsNew(t *testing.T) {
	assert.True(t, NewEntity("T", 0).IsNew())
	assert.True(t, NewEntity("T", -3).IsNew())
	assert.False(t, NewEntity("T", 1).IsNew())
}

func TestEntity_GetSetID(t *testing.T) {
	e := NewEntity("T", 1)
	e.Set("ID", int64(9))
	assert.Equal(t, int64(9), e.ID)
	v, ok := e.Get("ID")
	assert.True(t, ok)
	assert.Equal(t, int64(9), v)
	assert.Equal(t, int64(0), e.Int("ParentID"))
	assert.Equal(t, "", e.String("Missing"))
}

func TestEntity_IDsSorted(t *testing.T) {
	e := NewEntity("T", 1)
	e.Set("ChildEntities", []any{int64(5), int64(2), 9.0})
	assert.Equal(t, []int64{2, 5, 9}, e.IDs("ChildEntities"))
}

func TestEntity_CloneIsDeep(t *testing.T) {
	e := NewEntity("T", 1)
	e.Set("Tags", []any{"a"})
	c := e.Clone()
	c.Fields["Tags"].([]any)[0] = "b"
	assert.Equal(t, "a", e.Fields["Tags"].([]any)[0])
	assert.True(t, e.Equal(e.Clone()))
}

func TestEntity_CopyFromKeepsPointer(t *testing.T) {
	e := NewEntity("T", 1)
	e.Set("Name", "old")
	held := e
	src := NewEntity("T", 1)
	src.Set("Name", "new")
	e.CopyFrom(src)
	assert.Equal(t, "new", held.String("Name"))
}

func TestEntity_Validate(t *testing.T) {
	var nilEntity *Entity
	assert.Error(t, nilEntity.Validate())
	assert.ErrorIs(t, (&Entity{}).Validate(), ErrMissingType)
	assert.NoError(t, NewEntity("T", 0).Validate())
}

func TestQuery_ID(t *testing.T) {
	assert.Equal(t, "Customer", Query{Type: "Customer"}.ID())
	q := Query{Type: "Customer", Filter: "Where(c => c.Active)"}
	assert.Equal(t, "Customer:Where(c => c.Active)", q.ID())

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"QueryId":"Customer:Where(c => c.Active)","Type":"Customer","Filter":"Where(c => c.Active)"}`, string(data))
}
