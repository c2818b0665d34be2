package gcpapi

import (
	"context"

	"google.golang.org/api/cloudresourcemanager/v3"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

func (c *Client) FetchOrganization(ctx context.Context, key string) (apiclient.Item, error) {
	org, err := c.crm.Organizations.Get("organizations/" + key).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch organization", err)
	}
	return apiclient.Item{Data: toData(org)}, nil
}

func (c *Client) FetchFolder(ctx context.Context, key string) (apiclient.Item, error) {
	folder, err := c.crm.Folders.Get("folders/" + key).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch folder", err)
	}
	return apiclient.Item{Data: toData(folder)}, nil
}

func (c *Client) FetchProject(ctx context.Context, key string) (apiclient.Item, error) {
	project, err := c.crm.Projects.Get("projects/" + key).Context(ctx).Do()
	if err != nil {
		return apiclient.Item{}, wrapErr("fetch project", err)
	}
	return apiclient.Item{Data: toData(project)}, nil
}

func (c *Client) IterFolders(ctx context.Context, parentKey string, fn apiclient.PageFunc) error {
	call := c.crm.Folders.List().Parent(parentKey)
	return call.Pages(ctx, func(resp *cloudresourcemanager.ListFoldersResponse) error {
		for _, f := range resp.Folders {
			if err := fn(apiclient.Item{Data: toData(f)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) IterProjects(ctx context.Context, parentKey string, fn apiclient.PageFunc) error {
	call := c.crm.Projects.List().Parent(parentKey)
	return call.Pages(ctx, func(resp *cloudresourcemanager.ListProjectsResponse) error {
		for _, p := range resp.Projects {
			if err := fn(apiclient.Item{Data: toData(p)}); err != nil {
				return err
			}
		}
		return nil
	})
}
