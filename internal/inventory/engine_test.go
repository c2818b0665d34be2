package inventory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// fakeClient is a minimal apiclient.Client double: each test wires up only
// the closures it needs and leaves the rest nil. A nil fetch closure panics
// if called; a nil iter closure yields nothing.
type fakeClient struct {
	fetchOrganization        func(ctx context.Context, key string) (apiclient.Item, error)
	fetchFolder              func(ctx context.Context, key string) (apiclient.Item, error)
	fetchProject             func(ctx context.Context, key string) (apiclient.Item, error)
	iterFolders              func(ctx context.Context, parentKey string, fn apiclient.PageFunc) error
	iterProjects             func(ctx context.Context, parentKey string, fn apiclient.PageFunc) error
	iterComputeInstances     func(ctx context.Context, projectID string, fn apiclient.PageFunc) error
	fetchBillingProjectInfo  func(ctx context.Context, projectID string) (apiclient.Item, error)
	fetchBillingCallCount    int
	fetchBillingCallCountMu  sync.Mutex
}

func (f *fakeClient) FetchOrganization(ctx context.Context, key string) (apiclient.Item, error) {
	return f.fetchOrganization(ctx, key)
}
func (f *fakeClient) FetchFolder(ctx context.Context, key string) (apiclient.Item, error) {
	return f.fetchFolder(ctx, key)
}
func (f *fakeClient) FetchProject(ctx context.Context, key string) (apiclient.Item, error) {
	return f.fetchProject(ctx, key)
}
func (f *fakeClient) IterFolders(ctx context.Context, parentKey string, fn apiclient.PageFunc) error {
	if f.iterFolders == nil {
		return nil
	}
	return f.iterFolders(ctx, parentKey, fn)
}
func (f *fakeClient) IterProjects(ctx context.Context, parentKey string, fn apiclient.PageFunc) error {
	if f.iterProjects == nil {
		return nil
	}
	return f.iterProjects(ctx, parentKey, fn)
}
func (f *fakeClient) IterComputeInstances(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	if f.iterComputeInstances == nil {
		return nil
	}
	return f.iterComputeInstances(ctx, projectID, fn)
}
func (f *fakeClient) IterGCSBuckets(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) IterBigQueryDatasets(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) IterServiceAccounts(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) IterKubernetesClusters(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) IterDataprocClusters(ctx context.Context, projectID, region string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) IterInstanceGroups(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) IterGroups(ctx context.Context, fn apiclient.PageFunc) error { return nil }
func (f *fakeClient) IterGroupMembers(ctx context.Context, groupKey string, fn apiclient.PageFunc) error {
	return nil
}
func (f *fakeClient) FetchIAMPolicy(ctx context.Context, resourceType, resourceKey string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchOrgPolicy(ctx context.Context, resourceType, resourceKey, constraint string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchAccessPolicy(ctx context.Context, organizationKey string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchGCSPolicy(ctx context.Context, bucketKey string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchDatasetPolicy(ctx context.Context, projectID, datasetID string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchBillingProjectInfo(ctx context.Context, projectID string) (apiclient.Item, error) {
	f.fetchBillingCallCountMu.Lock()
	f.fetchBillingCallCount++
	f.fetchBillingCallCountMu.Unlock()
	return f.fetchBillingProjectInfo(ctx, projectID)
}
func (f *fakeClient) FetchEnabledAPIs(ctx context.Context, projectID string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchServiceConfig(ctx context.Context, projectID, location, clusterName string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}
func (f *fakeClient) FetchInstanceGroupMemberURLs(ctx context.Context, projectID, zone, groupName string) (apiclient.Item, error) {
	return apiclient.Item{}, ErrResourceNotSupported
}

var _ apiclient.Client = (*fakeClient)(nil)

// fakeVisitor records every resource visited and every warning reported, and
// dispatches inline rather than onto a real pool — sufficient for asserting
// traversal order and warning accumulation without goroutine nondeterminism,
// except in the tests that set pool (S6 and the nested-dispatch test) to
// exercise real pool concurrency.
type fakeVisitor struct {
	mu        sync.Mutex
	visited   []string
	warnings  map[string]string
	client    apiclient.Client
	cfg       *Config
	pool      *DispatchPool
	dispatched bool
}

func newFakeVisitor(client apiclient.Client, cfg *Config) *fakeVisitor {
	if cfg == nil {
		cfg = &Config{}
	}
	return &fakeVisitor{client: client, cfg: cfg, warnings: make(map[string]string)}
}

func (v *fakeVisitor) Visit(ctx context.Context, resource *Resource) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visited = append(v.visited, resource.FullResourceName())
	return nil
}
func (v *fakeVisitor) Client() apiclient.Client { return v.client }
func (v *fakeVisitor) Dispatch(fn func(ctx context.Context) error) {
	v.mu.Lock()
	v.dispatched = true
	pool := v.pool
	v.mu.Unlock()
	if pool != nil {
		pool.Dispatch(fn)
		return
	}
	_ = fn(context.Background())
}
func (v *fakeVisitor) OnChildError(fullResourceName string, errOrWarning error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.warnings[fullResourceName] = errOrWarning.Error()
}
func (v *fakeVisitor) Config() *Config { return v.cfg }

var _ Visitor = (*fakeVisitor)(nil)

func testOrgEntry() *TypeEntry {
	return &TypeEntry{
		TypeTag:     "organization",
		KeyStrategy: FieldKey("name"),
		RootFetch: func(ctx context.Context, client apiclient.Client, key string) (map[string]interface{}, map[string]interface{}, error) {
			item, err := client.(*fakeClient).FetchOrganization(ctx, key)
			return item.Data, item.Metadata, err
		},
	}
}

// S1: an organization with no child folders or projects visits exactly the
// root and records no warnings.
func TestAccept_EmptyOrganization(t *testing.T) {
	entry := testOrgEntry()
	reg := NewRegistryBuilder().Register(entry).Build()

	client := &fakeClient{
		fetchOrganization: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{Data: map[string]interface{}{"name": key}}, nil
		},
	}

	root, err := FromRootID(context.Background(), reg, client, "organizations/111")
	require.NoError(t, err)

	visitor := newFakeVisitor(client, nil)
	require.NoError(t, root.Accept(context.Background(), visitor, reg, nil))

	assert.Equal(t, []string{"organization/111"}, visitor.visited)
	assert.Empty(t, visitor.warnings)
	assert.False(t, root.HasWarnings())
}

// S2: a root fetch failure produces a placeholder resource carrying a
// recorded warning, rather than aborting the crawl.
func TestFromRootID_DegradedFetchProducesPlaceholder(t *testing.T) {
	entry := testOrgEntry()
	reg := NewRegistryBuilder().Register(entry).Build()

	client := &fakeClient{
		fetchOrganization: func(ctx context.Context, key string) (apiclient.Item, error) {
			return apiclient.Item{}, NewApiExecutionError("boom", nil)
		},
	}

	root, err := FromRootID(context.Background(), reg, client, "organizations/111")
	require.NoError(t, err)
	assert.True(t, root.HasWarnings())
	assert.Contains(t, root.Warnings(), "Unable to fetch Organization from API")
	assert.Equal(t, "111", root.Key())
}

// S3: an exclusion matching "<type>/<key>" or, for projects, the project
// number, is visited by neither Visit nor its children.
func TestAccept_ExclusionSet(t *testing.T) {
	projectEntry := &TypeEntry{
		TypeTag:     "project",
		KeyStrategy: FieldKey("projectId"),
	}
	reg := NewRegistryBuilder().Register(projectEntry).Build()
	client := &fakeClient{}

	byID, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a"}, nil, true, nil)
	require.NoError(t, err)
	visitorByID := newFakeVisitor(client, &Config{ExcludedResources: map[string]struct{}{"project/proj-a": {}}})
	require.NoError(t, byID.Accept(context.Background(), visitorByID, reg, nil))
	assert.Empty(t, visitorByID.visited)

	byNumber, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-b", "projectNumber": "555"}, nil, true, nil)
	require.NoError(t, err)
	visitorByNumber := newFakeVisitor(client, &Config{ExcludedResources: map[string]struct{}{"project/555": {}}})
	require.NoError(t, byNumber.Accept(context.Background(), visitorByNumber, reg, nil))
	assert.Empty(t, visitorByNumber.visited)
}

// S4: an iterator returning a benign ApiExecutionError is swallowed without
// a warning; the parent's own visit still succeeds.
func TestAccept_BenignIteratorErrorSwallowed(t *testing.T) {
	childEntry := &TypeEntry{TypeTag: "compute_instance", KeyStrategy: FieldKey("name")}
	projectEntry := &TypeEntry{
		TypeTag:     "project",
		KeyStrategy: FieldKey("projectId"),
		ChildIteratorFactories: []IteratorFactory{
			SimpleIteratorSpec{
				ChildType: "compute_instance",
				ArgKeys:   ArgKeys{"projectId"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return NewApiExecutionError("Unknown project id: deleted mid-crawl", nil)
				},
			}.Factory(),
		},
	}
	reg := NewRegistryBuilder().Register(projectEntry).Register(childEntry).Build()

	project, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a"}, nil, true, nil)
	require.NoError(t, err)

	visitor := newFakeVisitor(&fakeClient{}, nil)
	require.NoError(t, project.Accept(context.Background(), visitor, reg, nil))

	assert.Equal(t, []string{"project/proj-a"}, visitor.visited)
	assert.Empty(t, visitor.warnings)
}

// S5: a side-band fetch is memoized after its first call, and paired
// side-effect values pre-populate sibling cache cells without triggering a
// second API call.
func TestResourceGet_MemoizesAndPairs(t *testing.T) {
	entry := &TypeEntry{
		TypeTag:     "project",
		KeyStrategy: FieldKey("projectId"),
		SideBandFetchers: map[string]SideBandFetcher{
			"billing_info": func(ctx context.Context, r *Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
				item, err := client.(*fakeClient).FetchBillingProjectInfo(ctx, r.Key())
				if err != nil {
					return nil, nil, err
				}
				return item.Data, map[string]interface{}{"billing_enabled": item.Data["billingEnabled"]}, nil
			},
		},
	}
	reg := NewRegistryBuilder().Register(entry).Build()
	project, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a"}, nil, true, nil)
	require.NoError(t, err)

	client := &fakeClient{
		fetchBillingProjectInfo: func(ctx context.Context, projectID string) (apiclient.Item, error) {
			return apiclient.Item{Data: map[string]interface{}{"billingEnabled": true}}, nil
		},
	}

	for i := 0; i < 3; i++ {
		_, err := project.Get(context.Background(), "billing_info", client)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, client.fetchBillingCallCount, "billing info must be fetched at most once")
	assert.True(t, project.fetchIsMemoized("billing_info"))
	assert.True(t, project.fetchIsMemoized("billing_enabled"), "paired side-effect should pre-populate its own cell")
}

// S6: two dispatchable children are each handed to the dispatch pool rather
// than visited inline, and both eventually complete under Wait.
func TestAccept_DispatchesDispatchableChildren(t *testing.T) {
	childEntry := &TypeEntry{TypeTag: "folder", KeyStrategy: FieldKey("name"), Dispatchable: true}
	orgEntry := &TypeEntry{
		TypeTag:     "organization",
		KeyStrategy: FieldKey("name"),
		ChildIteratorFactories: []IteratorFactory{
			SimpleIteratorSpec{
				ChildType: "folder",
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					for _, name := range []string{"f1", "f2"} {
						if err := fn(apiclient.Item{Data: map[string]interface{}{"name": name}}); err != nil {
							return err
						}
					}
					return nil
				},
			}.Factory(),
		},
	}
	reg := NewRegistryBuilder().Register(orgEntry).Register(childEntry).Build()

	org, err := reg.Construct("organization", map[string]interface{}{"name": "111"}, nil, true, nil)
	require.NoError(t, err)

	ctx := context.Background()
	pool := NewDispatchPool(ctx, 2)
	visitor := newFakeVisitor(&fakeClient{}, nil)
	visitor.pool = pool

	require.NoError(t, org.Accept(ctx, visitor, reg, nil))
	require.NoError(t, pool.Wait())

	assert.True(t, visitor.dispatched)
	visitor.mu.Lock()
	defer visitor.mu.Unlock()
	assert.ElementsMatch(t, []string{"organization/111", "organization/111/folder/f1", "organization/111/folder/f2"}, visitor.visited)
}

// Regression test for the recursive-dispatch deadlock: a dispatchable
// folder contains another dispatchable folder (three levels deep) and a
// dispatchable project at every level, crawled through a pool bounded to a
// single worker. A worker that held its slot for a dispatched subtree's
// entire lifetime — rather than just its own execution — would never free
// it to crawl the nested folder's own dispatchable children, and
// pool.Wait() would hang forever.
func TestAccept_NestedDispatchDoesNotDeadlock(t *testing.T) {
	const maxDepth = 2

	projectEntry := &TypeEntry{TypeTag: "project", KeyStrategy: FieldKey("projectId"), Dispatchable: true}
	folderEntry := &TypeEntry{
		TypeTag:      "folder",
		KeyStrategy:  FieldKey("name"),
		Dispatchable: true,
		ChildIteratorFactories: []IteratorFactory{
			SimpleIteratorSpec{
				ChildType: "folder",
				ArgKeys:   ArgKeys{"depth"},
				Predicate: func(parent *Resource) bool {
					depth, _ := parent.Data()["depth"].(int)
					return depth < maxDepth
				},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					depth, _ := strconv.Atoi(args[0])
					return fn(apiclient.Item{Data: map[string]interface{}{"name": "nested", "depth": depth + 1}})
				},
			}.Factory(),
			SimpleIteratorSpec{
				ChildType: "project",
				ArgKeys:   ArgKeys{"name"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return fn(apiclient.Item{Data: map[string]interface{}{"projectId": "proj-" + args[0]}})
				},
			}.Factory(),
		},
	}
	orgEntry := &TypeEntry{
		TypeTag:     "organization",
		KeyStrategy: FieldKey("name"),
		ChildIteratorFactories: []IteratorFactory{
			SimpleIteratorSpec{
				ChildType: "folder",
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return fn(apiclient.Item{Data: map[string]interface{}{"name": "root", "depth": 0}})
				},
			}.Factory(),
		},
	}
	reg := NewRegistryBuilder().Register(orgEntry).Register(folderEntry).Register(projectEntry).Build()

	org, err := reg.Construct("organization", map[string]interface{}{"name": "111"}, nil, true, nil)
	require.NoError(t, err)

	ctx := context.Background()
	pool := NewDispatchPool(ctx, 1) // a single worker forces every dispatch to nest under it
	visitor := newFakeVisitor(&fakeClient{}, nil)
	visitor.pool = pool

	require.NoError(t, org.Accept(ctx, visitor, reg, nil))

	done := make(chan error, 1)
	go func() { done <- pool.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Wait() did not return: nested dispatch deadlocked the pool")
	}

	visitor.mu.Lock()
	defer visitor.mu.Unlock()
	assert.ElementsMatch(t, []string{
		"organization/111",
		"organization/111/folder/root",
		"organization/111/folder/root/project/proj-root",
		"organization/111/folder/root/folder/nested",
		"organization/111/folder/root/folder/nested/project/proj-nested",
		"organization/111/folder/root/folder/nested/folder/nested",
		"organization/111/folder/root/folder/nested/folder/nested/project/proj-nested",
	}, visitor.visited)
}

// Invariant: a Resource's Stack() is unusable before Accept binds it.
func TestResourceStack_NotInitializedBeforeAccept(t *testing.T) {
	entry := &TypeEntry{TypeTag: "project", KeyStrategy: FieldKey("projectId")}
	reg := NewRegistryBuilder().Register(entry).Build()
	project, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a"}, nil, true, nil)
	require.NoError(t, err)

	_, err = project.Stack()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// Invariant: TryAccept recovers a panicking Accept and reports it through
// OnChildError under the failing resource's own full name rather than
// propagating it up the call stack.
func TestTryAccept_RecoversPanic(t *testing.T) {
	entry := &TypeEntry{TypeTag: "project", KeyStrategy: FieldKey("projectId")}
	reg := NewRegistryBuilder().Register(entry).Build()
	project, err := reg.Construct("project", map[string]interface{}{"projectId": "proj-a"}, nil, true, nil)
	require.NoError(t, err)

	visitor := newFakeVisitor(&fakeClient{}, nil)
	visitor.Visit(context.Background(), project) // prime nothing; panic comes from Visit override below
	panicker := &panicVisitor{fakeVisitor: visitor}

	assert.NotPanics(t, func() {
		project.TryAccept(context.Background(), panicker, reg, nil)
	})
	assert.Contains(t, panicker.warnings["project/proj-a"], "panic during accept")
}

type panicVisitor struct {
	*fakeVisitor
}

func (p *panicVisitor) Visit(ctx context.Context, resource *Resource) error {
	panic("simulated visit failure")
}
