package gcpapi

import (
	"context"
	"fmt"

	"google.golang.org/api/accesscontextmanager/v1"
	"google.golang.org/api/cloudresourcemanager/v3"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/serviceusage/v1"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// FetchIAMPolicy dispatches to the getIamPolicy call of the right resource
// family. resourceType mirrors the registry type tags; only organization,
// folder, project, gcs_bucket and service_account have a call here. Any
// other type, including the "dataproc_cluster/<region>" shape
// dataprocIAMPolicyFetcher builds and compute_instance, returns an
// "unsupported resource type" error.
func (c *Client) FetchIAMPolicy(ctx context.Context, resourceType, resourceKey string) (apiclient.Item, error) {
	switch resourceType {
	case "organization":
		policy, err := c.crm.Organizations.GetIamPolicy("organizations/"+resourceKey, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
		if err != nil {
			return apiclient.Item{}, wrapErr("fetch organization iam policy", err)
		}
		return apiclient.Item{Data: toData(policy)}, nil
	case "folder":
		policy, err := c.crm.Folders.GetIamPolicy("folders/"+resourceKey, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
		if err != nil {
			return apiclient.Item{}, wrapErr("fetch folder iam policy", err)
		}
		return apiclient.Item{Data: toData(policy)}, nil
	case "project":
		policy, err := c.crm.Projects.GetIamPolicy("projects/"+resourceKey, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
		if err != nil {
			return apiclient.Item{}, wrapErr("fetch project iam policy", err)
		}
		return apiclient.Item{Data: toData(policy)}, nil
	case "gcs_bucket":
		policy, err := c.storage.Buckets.GetIamPolicy(resourceKey).Context(ctx).Do()
		if err != nil {
			return apiclient.Item{}, wrapErr("fetch bucket iam policy", err)
		}
		return apiclient.Item{Data: toData(policy)}, nil
	case "service_account":
		policy, err := c.iamSvc.Projects.ServiceAccounts.GetIamPolicy(resourceKey).Context(ctx).Do()
		if err != nil {
			return apiclient.Item{}, wrapErr("fetch service account iam policy", err)
		}
		return apiclient.Item{Data: toData(policy)}, nil
	default:
		return apiclient.Item{}, wrapErr(fmt.Sprintf("fetch iam policy for %s", resourceType), fmt.Errorf("unsupported resource type"))
	}
}

// FetchOrgPolicy lists every org policy set on a hierarchy node. The
// constraint argument is not consulted: the full list is always returned.
func (c *Client) FetchOrgPolicy(ctx context.Context, resourceType, resourceKey, constraint string) (apiclient.Item, error) {
	var parent string
	switch resourceType {
	case "organization":
		parent = "organizations/" + resourceKey
	case "folder":
		parent = "folders/" + resourceKey
	case "project":
		parent = "projects/" + resourceKey
	default:
		return apiclient.Item{}, wrapErr("fetch org policy", fmt.Errorf("unsupported resource type %s", resourceType))
	}
	resp, err := c.orgPolicy.Policies.List(parent).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch org policy", err)
	}
	return apiclient.Item{Data: toData(resp)}, nil
}

// FetchAccessPolicy reads the VPC Service Controls access policy scoped to
// an organization, via Access Context Manager.
func (c *Client) FetchAccessPolicy(ctx context.Context, organizationKey string) (apiclient.Item, error) {
	svc, err := accesscontextmanager.NewService(ctx)
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch access policy", err)
	}
	resp, err := svc.AccessPolicies.List().Parent("organizations/" + organizationKey).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch access policy", err)
	}
	return apiclient.Item{Data: toData(resp)}, nil
}

func (c *Client) FetchGCSPolicy(ctx context.Context, bucketKey string) (apiclient.Item, error) {
	bucket, err := c.storage.Buckets.Get(bucketKey).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch bucket policy", err)
	}
	policy := map[string]interface{}{
		"retentionPolicy":  toData(bucket.RetentionPolicy),
		"iamConfiguration": toData(bucket.IamConfiguration),
	}
	return apiclient.Item{Data: policy}, nil
}

func (c *Client) FetchDatasetPolicy(ctx context.Context, projectID, datasetID string) (apiclient.Item, error) {
	dataset, err := c.bigquery.Datasets.Get(projectID, datasetID).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch dataset policy", err)
	}
	return apiclient.Item{Data: map[string]interface{}{"access": toData(dataset.Access)}}, nil
}

func (c *Client) FetchBillingProjectInfo(ctx context.Context, projectID string) (apiclient.Item, error) {
	info, err := c.billing.Projects.GetBillingInfo("projects/" + projectID).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch billing info", err)
	}
	return apiclient.Item{Data: toData(info)}, nil
}

func (c *Client) FetchEnabledAPIs(ctx context.Context, projectID string) (apiclient.Item, error) {
	var names []string
	call := c.serviceUse.Services.List("projects/" + projectID).Filter("state:ENABLED")
	err := call.Pages(ctx, func(resp *serviceusage.ListServicesResponse) error {
		for _, svc := range resp.Services {
			names = append(names, svc.Config.Name)
		}
		return nil
	})
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch enabled apis", err)
	}
	return apiclient.Item{Data: map[string]interface{}{"apis": names}}, nil
}

// FetchInstanceGroupMemberURLs lists the member instance URLs of one
// instance group: the "augmenting" enrichment SPEC_FULL.md §4.C names as its
// worked example, since AggregatedList's instance-group entries do not
// themselves carry member URLs.
func (c *Client) FetchInstanceGroupMemberURLs(ctx context.Context, projectID, zone, groupName string) (apiclient.Item, error) {
	var members []string
	call := c.compute.InstanceGroups.ListInstances(projectID, zone, groupName, &compute.InstanceGroupsListInstancesRequest{})
	err := call.Pages(ctx, func(resp *compute.InstanceGroupsListInstances) error {
		for _, item := range resp.Items {
			members = append(members, item.Instance)
		}
		return nil
	})
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch instance group member urls", err)
	}
	return apiclient.Item{Data: map[string]interface{}{"members": members}}, nil
}

func (c *Client) FetchServiceConfig(ctx context.Context, projectID, location, clusterName string) (apiclient.Item, error) {
	name := fmt.Sprintf("projects/%s/locations/%s/clusters/%s", projectID, location, clusterName)
	cluster, err := c.container.Projects.Locations.Clusters.Get(name).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch service config", err)
	}
	return apiclient.Item{Data: map[string]interface{}{
		"currentMasterVersion": cluster.CurrentMasterVersion,
		"endpoint":             cluster.Endpoint,
		"masterAuth":           toData(cluster.MasterAuth),
	}}, nil
}
