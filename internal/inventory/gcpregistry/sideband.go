package gcpregistry

import (
	"context"
	"fmt"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// iamPolicyFetcher returns a SideBandFetcher that resolves "iam_policy" for
// a resource of the given GCP resource-type name via a generic IAM-policy
// call.
func iamPolicyFetcher(resourceType string) inventory.SideBandFetcher {
	return func(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
		item, err := client.FetchIAMPolicy(ctx, resourceType, r.Key())
		if err != nil {
			return nil, nil, err
		}
		return item.Data, nil, nil
	}
}

// orgPolicyFetcher resolves "org_policy" for hierarchy nodes (organization,
// folder, project).
func orgPolicyFetcher(resourceType string) inventory.SideBandFetcher {
	return func(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
		item, err := client.FetchOrgPolicy(ctx, resourceType, r.Key(), "")
		if err != nil {
			return nil, nil, err
		}
		return item.Data, nil, nil
	}
}

// accessPolicyFetcher resolves "access_policy" for an organization.
func accessPolicyFetcher(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
	item, err := client.FetchAccessPolicy(ctx, r.Key())
	if err != nil {
		return nil, nil, err
	}
	return item.Data, nil, nil
}

// gcsPolicyFetcher resolves "gcs_policy" for buckets.
func gcsPolicyFetcher(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
	item, err := client.FetchGCSPolicy(ctx, r.Key())
	if err != nil {
		return nil, nil, err
	}
	return item.Data, nil, nil
}

// datasetIAMAndPolicyFetcher resolves BigQuery's paired "iam_policy" /
// "dataset_policy" side-bands. A single API call yields both; whichever is
// requested first pre-populates the sibling's cache cell so the other is
// never separately fetched (SPEC_FULL.md §4.F, invariant 7).
func datasetIAMAndPolicyFetcher(siblingName string) inventory.SideBandFetcher {
	return func(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
		projectID, _ := r.Data()["projectId"].(string)
		datasetID := r.Key()
		item, err := client.FetchDatasetPolicy(ctx, projectID, datasetID)
		if err != nil {
			return nil, nil, err
		}
		return item.Data, map[string]interface{}{siblingName: item.Data}, nil
	}
}

// billingInfoFetcher resolves "billing_info" for a project and stashes a
// copy on the data map under a private key so the billing-enabled predicate
// can read it without re-fetching (predicates consult cached data, not the
// client).
func billingInfoFetcher(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
	projectID := r.Key()
	item, err := client.FetchBillingProjectInfo(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	r.Data()["__billing_info_cache__"] = item.Data
	return item.Data, nil, nil
}

// enabledAPIsFetcher resolves "enabled_apis" for a project, populating the
// membership set consulted by IsAPIEnabled-style predicates.
func enabledAPIsFetcher(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
	projectID := r.Key()
	item, err := client.FetchEnabledAPIs(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]struct{})
	if names, ok := item.Data["apis"].([]string); ok {
		for _, name := range names {
			set[name] = struct{}{}
		}
	}
	r.Data()["__enabled_apis_cache__"] = set
	return item.Data, nil, nil
}

// serviceConfigFetcher resolves "service_config" for a kubernetes cluster,
// extracting zone/location from the selfLink per the override rule in
// SPEC_FULL.md §4.G. Missing fragments are not an error; they yield an
// empty config.
func serviceConfigFetcher(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
	selfLink, _ := r.Data()["selfLink"].(string)
	zone, location := parseSelfLinkZoneLocation(selfLink)
	if location == "" {
		return map[string]interface{}{}, nil, nil
	}

	projectID, _ := r.Data()["__project_id__"].(string)
	clusterName, _ := r.Data()["name"].(string)
	item, err := client.FetchServiceConfig(ctx, projectID, location, clusterName)
	if err != nil {
		return nil, nil, err
	}
	config := map[string]interface{}{"zone": zone, "location": location}
	for k, v := range item.Data {
		config[k] = v
	}
	return config, nil, nil
}

// dataprocIAMPolicyFetcher reads the region out of a Dataproc cluster's
// label map before calling the generic IAM-policy endpoint; a missing label
// is downgraded to a warning rather than treated as a fetch failure.
func dataprocIAMPolicyFetcher(ctx context.Context, r *inventory.Resource, client apiclient.Client) (interface{}, map[string]interface{}, error) {
	region, err := dataprocRegionFromLabels(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	if region == "" {
		return nil, nil, nil
	}
	item, err := client.FetchIAMPolicy(ctx, fmt.Sprintf("dataproc_cluster/%s", region), r.Key())
	if err != nil {
		return nil, nil, err
	}
	return item.Data, nil, nil
}
