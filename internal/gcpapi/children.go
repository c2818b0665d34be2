package gcpapi

import (
	"context"

	"google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/container/v1"
	"google.golang.org/api/dataproc/v1"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/storage/v1"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// IterComputeInstances pages across every zone in projectID; Compute's
// AggregatedList collapses that into one paginated call.
func (c *Client) IterComputeInstances(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	call := c.compute.Instances.AggregatedList(projectID)
	return call.Pages(ctx, func(resp *compute.InstanceAggregatedList) error {
		for _, scoped := range resp.Items {
			for _, inst := range scoped.Instances {
				if err := fn(apiclient.Item{Data: toData(inst)}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (c *Client) IterGCSBuckets(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	call := c.storage.Buckets.List(projectID)
	return call.Pages(ctx, func(resp *storage.Buckets) error {
		for _, b := range resp.Items {
			if err := fn(apiclient.Item{Data: toData(b)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) IterBigQueryDatasets(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	call := c.bigquery.Datasets.List(projectID)
	return call.Pages(ctx, func(resp *bigquery.DatasetList) error {
		for _, d := range resp.Datasets {
			if err := fn(apiclient.Item{Data: toData(d)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) IterServiceAccounts(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	call := c.iamSvc.Projects.ServiceAccounts.List("projects/" + projectID)
	return call.Pages(ctx, func(resp *iam.ListServiceAccountsResponse) error {
		for _, sa := range resp.Accounts {
			if err := fn(apiclient.Item{Data: toData(sa)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) IterKubernetesClusters(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	resp, err := c.container.Projects.Locations.Clusters.List("projects/" + projectID + "/locations/-").Context(ctx).Do()
	if err != nil {
		return wrapErr("list kubernetes clusters", err)
	}
	for _, cl := range resp.Clusters {
		if err := fn(apiclient.Item{Data: toData(cl)}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) IterDataprocClusters(ctx context.Context, projectID, region string, fn apiclient.PageFunc) error {
	call := c.dataproc.Projects.Regions.Clusters.List(projectID, region)
	return call.Pages(ctx, func(resp *dataproc.ListClustersResponse) error {
		for _, cl := range resp.Clusters {
			if err := fn(apiclient.Item{Data: toData(cl)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// IterInstanceGroups pages across every zone in projectID, mirroring
// IterComputeInstances's AggregatedList shape.
func (c *Client) IterInstanceGroups(ctx context.Context, projectID string, fn apiclient.PageFunc) error {
	call := c.compute.InstanceGroups.AggregatedList(projectID)
	return call.Pages(ctx, func(resp *compute.InstanceGroupAggregatedList) error {
		for _, scoped := range resp.Items {
			for _, ig := range scoped.InstanceGroups {
				if err := fn(apiclient.Item{Data: toData(ig)}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// IterGroups and IterGroupMembers reach Cloud Identity's Admin SDK Directory
// API; groups are top-level (no organization scoping parameter here, mirroring
// the source crawler which configures the customer ID once at client setup).
func (c *Client) IterGroups(ctx context.Context, fn apiclient.PageFunc) error {
	call := c.admin.Groups.List().Customer("my_customer")
	return call.Pages(ctx, func(resp *admin.Groups) error {
		for _, g := range resp.Groups {
			if err := fn(apiclient.Item{Data: toData(g)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) IterGroupMembers(ctx context.Context, groupKey string, fn apiclient.PageFunc) error {
	call := c.admin.Members.List(groupKey)
	return call.Pages(ctx, func(resp *admin.Members) error {
		for _, m := range resp.Members {
			if err := fn(apiclient.Item{Data: toData(m)}); err != nil {
				return err
			}
		}
		return nil
	})
}
