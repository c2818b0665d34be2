package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

func testProjectEntry() *TypeEntry {
	return &TypeEntry{
		TypeTag:     "project",
		KeyStrategy: FieldKey("projectId"),
		RootFetch: func(ctx context.Context, client apiclient.Client, key string) (map[string]interface{}, map[string]interface{}, error) {
			item, err := client.(*fakeClient).FetchProject(ctx, key)
			return item.Data, item.Metadata, err
		},
	}
}

// Multiple configured root identifiers are wrapped in a synthetic composite
// root whose own iterator resolves and visits each one as a non-root
// sub-root, rather than the engine being driven by an external loop over
// root IDs.
func TestFromRootIDs_MultipleRootsWrapInCompositeRoot(t *testing.T) {
	reg := NewRegistryBuilder().
		Register(testOrgEntry()).
		Register(testProjectEntry()).
		Register(CompositeRootEntry()).
		Build()

	client := &fakeClient{
		fetchOrganization: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{Data: map[string]interface{}{"name": key}}, nil
		},
		fetchProject: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{Data: map[string]interface{}{"projectId": key}}, nil
		},
	}

	root, err := FromRootIDs(context.Background(), reg, client, []string{"organizations/111", "projects/222"})
	require.NoError(t, err)
	assert.Equal(t, "composite_root", root.Type())
	assert.True(t, root.IsRoot())

	visitor := newFakeVisitor(client, nil)
	require.NoError(t, root.Accept(context.Background(), visitor, reg, nil))

	assert.ElementsMatch(t, []string{
		"composite_root/Composite Root",
		"composite_root/Composite Root/organization/111",
		"composite_root/Composite Root/project/222",
	}, visitor.visited)
	assert.False(t, root.HasWarnings())
}

// A single configured root identifier resolves directly, with no composite
// wrapping — the synthetic root only exists to fan out several independent
// hierarchies in one run.
func TestFromRootIDs_SingleRootSkipsCompositeWrapping(t *testing.T) {
	reg := NewRegistryBuilder().Register(testOrgEntry()).Build()
	client := &fakeClient{
		fetchOrganization: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{Data: map[string]interface{}{"name": key}}, nil
		},
	}

	root, err := FromRootIDs(context.Background(), reg, client, []string{"organizations/111"})
	require.NoError(t, err)
	assert.Equal(t, "organization", root.Type())
	assert.True(t, root.IsRoot())
}

// A composite root's children still resolve through the same degraded-fetch
// placeholder path a standalone root would.
func TestFromRootIDs_DegradedChildProducesPlaceholderWarning(t *testing.T) {
	reg := NewRegistryBuilder().
		Register(testOrgEntry()).
		Register(testProjectEntry()).
		Register(CompositeRootEntry()).
		Build()

	client := &fakeClient{
		fetchOrganization: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{Data: map[string]interface{}{"name": key}}, nil
		},
		fetchProject: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{}, NewApiExecutionError("boom", nil)
		},
	}

	root, err := FromRootIDs(context.Background(), reg, client, []string{"organizations/111", "projects/222"})
	require.NoError(t, err)

	visitor := newFakeVisitor(client, nil)
	require.NoError(t, root.Accept(context.Background(), visitor, reg, nil))

	assert.Contains(t, visitor.warnings["composite_root/Composite Root/project/222"], "Unable to fetch Project from API")
}
