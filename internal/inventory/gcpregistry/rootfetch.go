package gcpregistry

import (
	"context"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

func organizationRootFetch(ctx context.Context, client apiclient.Client, key string) (map[string]interface{}, map[string]interface{}, error) {
	item, err := client.FetchOrganization(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return item.Data, item.Metadata, nil
}

func folderRootFetch(ctx context.Context, client apiclient.Client, key string) (map[string]interface{}, map[string]interface{}, error) {
	item, err := client.FetchFolder(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return item.Data, item.Metadata, nil
}

func projectRootFetch(ctx context.Context, client apiclient.Client, key string) (map[string]interface{}, map[string]interface{}, error) {
	item, err := client.FetchProject(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return item.Data, item.Metadata, nil
}

var _ inventory.RootFetcher = organizationRootFetch
