package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/types"
)

func testRegistry() *registry.Registry {
	r := registry.New()
	r.MustRegister("Customer", registry.DefaultFactory("Customer"))
	return r
}

func TestParseErrorBody(t *testing.T) {
	msg, ok := ParseErrorBody([]byte("ERROR:Name is required"))
	require.True(t, ok)
	assert.Equal(t, "Name is required", msg)

	msg, ok = ParseErrorBody([]byte("ERROR:first:second"))
	require.True(t, ok)
	assert.Equal(t, "first", msg)

	_, ok = ParseErrorBody([]byte(`{"lastUpdate":1}`))
	assert.False(t, ok)
}

func TestErrorBody_SurvivesParse(t *testing.T) {
	msg, ok := ParseErrorBody(ErrorBody("bad: value"))
	require.True(t, ok)
	assert.Equal(t, "bad - value", msg)
}

func TestDecodeResponse(t *testing.T) {
	body := `{
		"lastUpdate": 12,
		"Updates": [
			{"QueryId":"Customer","QueryLastUpdate":11,"UpdateType":"create","EntityId":1,"EntityType":"Customer","Entity":{"ID":1,"CustomerName":"Acme"}},
			{"QueryId":"Customer","QueryLastUpdate":12,"UpdateType":"delete","EntityId":2,"EntityType":"Customer","Entity":null}
		],
		"ResponseEntityType": "Customer",
		"ResponseEntity": "{\"ID\":1,\"CustomerName\":\"Acme\"}",
		"AjaxResponse": {"ok": true}
	}`
	resp, err := DecodeResponse([]byte(body), testRegistry())
	require.NoError(t, err)

	assert.Equal(t, int64(12), resp.LastUpdate)
	require.Len(t, resp.Updates, 2)
	assert.Equal(t, KindCreate, resp.Updates[0].Kind)
	require.NotNil(t, resp.Updates[0].Entity)
	assert.Equal(t, "Customer", resp.Updates[0].Entity.Type)
	assert.Equal(t, "Acme", resp.Updates[0].Entity.Value("CustomerName"))
	assert.Equal(t, KindDelete, resp.Updates[1].Kind)
	assert.Nil(t, resp.Updates[1].Entity)

	require.NotNil(t, resp.ResponseEntity)
	assert.Equal(t, int64(1), resp.ResponseEntity.ID)
	assert.JSONEq(t, `{"ok":true}`, string(resp.AuxiliaryData))
}

func TestDecodeResponse_EntityPresenceMustMatchKind(t *testing.T) {
	reg := testRegistry()
	_, err := DecodeResponse([]byte(`{"Updates":[{"UpdateType":"update","EntityId":1,"EntityType":"Customer"}]}`), reg)
	assert.Error(t, err)

	_, err = DecodeResponse([]byte(`{"Updates":[{"UpdateType":"delete","EntityId":1,"EntityType":"Customer","Entity":{"ID":1}}]}`), reg)
	assert.Error(t, err)

	_, err = DecodeResponse([]byte(`{"Updates":[{"UpdateType":"upsert","EntityId":1,"EntityType":"Customer","Entity":{"ID":1}}]}`), reg)
	assert.Error(t, err)
}

func TestDecodeResponse_UnknownType(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"Updates":[{"UpdateType":"create","EntityId":1,"EntityType":"Ghost","Entity":{"ID":1}}]}`), testRegistry())
	assert.ErrorIs(t, err, registry.ErrUnknownType)
}

func TestDecodeResponse_EntityIDFallsBackToUpdateID(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"Updates":[{"UpdateType":"update","EntityId":9,"EntityType":"Customer","Entity":{"CustomerName":"x"}}]}`), testRegistry())
	require.NoError(t, err)
	assert.Equal(t, int64(9), resp.Updates[0].Entity.ID)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	e := types.NewEntity("Customer", 3)
	e.Set("CustomerName", "Acme")
	resp := &Response{
		LastUpdate: 5,
		Updates: []Update{
			{QueryID: "Customer", QueryLastUpdate: 5, Kind: KindUpdate, EntityID: 3, EntityType: "Customer", Entity: e},
			{QueryID: "Customer", QueryLastUpdate: 5, Kind: KindDelete, EntityID: 4, EntityType: "Customer"},
		},
		ResponseEntity: e,
	}
	body, err := EncodeResponse(resp)
	require.NoError(t, err)

	back, err := DecodeResponse(body, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, resp.LastUpdate, back.LastUpdate)
	require.Len(t, back.Updates, 2)
	assert.True(t, e.Equal(back.Updates[0].Entity))
	assert.True(t, e.Equal(back.ResponseEntity))
}

func TestEncodeUpdate_RequiresEntity(t *testing.T) {
	_, err := EncodeUpdate(Update{Kind: KindCreate, EntityType: "Customer", EntityID: 1})
	assert.Error(t, err)
}

func TestDecodeQueryResults(t *testing.T) {
	aux, err := json.Marshal(map[string]QueryResult{
		"Customer:Where(c => c.ID > 1)": {Type: "Customer", Entities: json.RawMessage(`[{"ID":2},{"ID":3}]`)},
	})
	require.NoError(t, err)

	sets, err := DecodeQueryResults(&Response{AuxiliaryData: aux}, testRegistry())
	require.NoError(t, err)
	require.Len(t, sets["Customer:Where(c => c.ID > 1)"], 2)

	empty, err := DecodeQueryResults(&Response{}, testRegistry())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
