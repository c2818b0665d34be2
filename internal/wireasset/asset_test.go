package wireasset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
)

func TestFromResource_RoundTripsThroughProtobufWire(t *testing.T) {
	entry := &inventory.TypeEntry{TypeTag: "project", KeyStrategy: inventory.FieldKey("projectId")}
	reg := inventory.NewRegistryBuilder().Register(entry).Build()
	r, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a", "name": "Project A"}, nil, true, nil)
	require.NoError(t, err)

	asset, err := FromResource(r, "")
	require.NoError(t, err)
	assert.Equal(t, "project", asset.Type)
	assert.Equal(t, "proj-a", asset.Key)
	assert.Equal(t, "project/proj-a", asset.FullResourceName)

	wire, err := asset.MarshalData()
	require.NoError(t, err)
	assert.NotEmpty(t, wire)

	decoded, err := UnmarshalData(wire)
	require.NoError(t, err)
	assert.Equal(t, "Project A", decoded.Fields["name"].GetStringValue())
	assert.Equal(t, "proj-a", decoded.Fields["projectId"].GetStringValue())
}

func TestFromResource_RejectsNonJSONCompatibleData(t *testing.T) {
	entry := &inventory.TypeEntry{TypeTag: "project", KeyStrategy: inventory.FieldKey("projectId")}
	reg := inventory.NewRegistryBuilder().Register(entry).Build()
	r, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a", "bad": make(chan int)}, nil, true, nil)
	require.NoError(t, err)

	_, err = FromResource(r, "")
	assert.Error(t, err)
}
