// Package apiclient defines the narrow interface the crawl engine consumes
// to reach the cloud provider. The engine never constructs requests itself;
// it only calls methods on this interface and interprets the errors they
// return (inventory.ApiExecutionError, inventory.ErrResourceNotSupported).
//
// A concrete implementation (internal/gcpapi) wires these methods to
// google.golang.org/api clients, one call (plus pagination) per method,
// with no retry or circuit breaker around them. This interface is intentionally "fat" (one
// method per resource kind) rather than generic, matching the source
// system's per-kind dispatch and the teacher's per-kind repository methods.
package apiclient

import "context"

// Item is a single listed or fetched entity: opaque data plus a pass-through
// metadata side-channel (e.g. source timestamp), exactly as the cloud API
// returned it.
type Item struct {
	Data     map[string]interface{}
	Metadata map[string]interface{}
}

// PageFunc is called once per item yielded by an iterating method. Returning
// a non-nil error stops iteration and the error propagates to the caller.
type PageFunc func(Item) error

// Client is the interface the crawl engine depends on. Every method may
// return *inventory.ApiExecutionError or inventory.ErrResourceNotSupported;
// those are the only error shapes the engine interprets specially.
type Client interface {
	// Root fetches.
	FetchOrganization(ctx context.Context, key string) (Item, error)
	FetchFolder(ctx context.Context, key string) (Item, error)
	FetchProject(ctx context.Context, key string) (Item, error)

	// Hierarchy iteration.
	IterFolders(ctx context.Context, parentKey string, fn PageFunc) error
	IterProjects(ctx context.Context, parentKey string, fn PageFunc) error

	// Project-scoped child iteration.
	IterComputeInstances(ctx context.Context, projectID string, fn PageFunc) error
	IterGCSBuckets(ctx context.Context, projectID string, fn PageFunc) error
	IterBigQueryDatasets(ctx context.Context, projectID string, fn PageFunc) error
	IterServiceAccounts(ctx context.Context, projectID string, fn PageFunc) error
	IterKubernetesClusters(ctx context.Context, projectID string, fn PageFunc) error
	IterDataprocClusters(ctx context.Context, projectID, region string, fn PageFunc) error
	IterInstanceGroups(ctx context.Context, projectID string, fn PageFunc) error

	// Group iteration (no parent scope; top-level).
	IterGroups(ctx context.Context, fn PageFunc) error
	IterGroupMembers(ctx context.Context, groupKey string, fn PageFunc) error

	// Side-band fetches.
	FetchIAMPolicy(ctx context.Context, resourceType, resourceKey string) (Item, error)
	FetchOrgPolicy(ctx context.Context, resourceType, resourceKey, constraint string) (Item, error)
	FetchAccessPolicy(ctx context.Context, organizationKey string) (Item, error)
	FetchGCSPolicy(ctx context.Context, bucketKey string) (Item, error)
	FetchDatasetPolicy(ctx context.Context, projectID, datasetID string) (Item, error)
	FetchBillingProjectInfo(ctx context.Context, projectID string) (Item, error)
	FetchEnabledAPIs(ctx context.Context, projectID string) (Item, error)
	FetchServiceConfig(ctx context.Context, projectID, location, clusterName string) (Item, error)
	FetchInstanceGroupMemberURLs(ctx context.Context, projectID, zone, groupName string) (Item, error)
}
