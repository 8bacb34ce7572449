package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	local, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	remote, err := Parse([]byte(`[
  {"name": "Customer", "fields": [
    {"name": "ID", "type": "Int64", "allowNull": false},
    {"name": "CustomerName", "type": "String", "allowNull": true, "length": 40},
    {"name": "Balance", "type": "Double", "allowNull": true},
    {"name": "Region", "type": "String", "allowNull": true}
  ]},
  {"name": "Invoice", "fields": []}
]`))
	require.NoError(t, err)

	got := Diff(local, remote)
	assert.Equal(t, []Drift{
		{Kind: DriftExtraType, Type: "Account"},
		{Kind: DriftFieldType, Type: "Customer", Field: "Balance", Local: TypeDecimal, Remote: TypeDouble},
		{Kind: DriftNullability, Type: "Customer", Field: "CustomerName", Local: "required", Remote: "nullable"},
		{Kind: DriftLength, Type: "Customer", Field: "CustomerName", Local: "10", Remote: "40"},
		{Kind: DriftExtraField, Type: "Customer", Field: "Notes"},
		{Kind: DriftMissingField, Type: "Customer", Field: "Region"},
		{Kind: DriftMissingType, Type: "Invoice"},
	}, got)

	assert.Equal(t, "missing-field: Customer.Region is not in the local schema", got[5].String())
	assert.Equal(t, "field-type: Customer.Balance local Decimal, server Double", got[1].String())
	assert.Empty(t, Diff(local, local))
}
