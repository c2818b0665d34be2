// Package gcpapi is the concrete apiclient.Client: every method here makes
// exactly one real GCP API call (plus pagination) and translates the
// response into the opaque apiclient.Item shape the crawl engine consumes.
// It never interprets resource semantics — that is the registry's job.
package gcpapi

import (
	"context"
	"fmt"

	"google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/cloudbilling/v1"
	"google.golang.org/api/cloudresourcemanager/v3"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/container/v1"
	"google.golang.org/api/dataproc/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/orgpolicy/v2"
	"google.golang.org/api/serviceusage/v1"
	"google.golang.org/api/storage/v1"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// Client wires the crawl engine's apiclient.Client interface to the real
// GCP REST APIs, one service client per API family.
type Client struct {
	crm        *cloudresourcemanager.Service
	compute    *compute.Service
	storage    *storage.Service
	bigquery   *bigquery.Service
	iamSvc     *iam.Service
	container  *container.Service
	dataproc   *dataproc.Service
	billing    *cloudbilling.Service
	serviceUse *serviceusage.Service
	orgPolicy  *orgpolicy.Service
	admin      *admin.Service
}

// New builds every service client with opts; without a credentials option,
// the clients use application-default credentials.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	crm, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: cloudresourcemanager client: %w", err)
	}
	computeSvc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: compute client: %w", err)
	}
	storageSvc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: storage client: %w", err)
	}
	bigquerySvc, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: bigquery client: %w", err)
	}
	iamSvc, err := iam.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: iam client: %w", err)
	}
	containerSvc, err := container.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: container client: %w", err)
	}
	dataprocSvc, err := dataproc.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: dataproc client: %w", err)
	}
	billingSvc, err := cloudbilling.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: cloudbilling client: %w", err)
	}
	serviceUseSvc, err := serviceusage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: serviceusage client: %w", err)
	}
	orgPolicySvc, err := orgpolicy.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: orgpolicy client: %w", err)
	}
	adminSvc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpapi: admin directory client: %w", err)
	}

	return &Client{
		crm:        crm,
		compute:    computeSvc,
		storage:    storageSvc,
		bigquery:   bigquerySvc,
		iamSvc:     iamSvc,
		container:  containerSvc,
		dataproc:   dataprocSvc,
		billing:    billingSvc,
		serviceUse: serviceUseSvc,
		orgPolicy:  orgPolicySvc,
		admin:      adminSvc,
	}, nil
}

var _ apiclient.Client = (*Client)(nil)

// wrapErr classifies googleapi.Error 404s as the crawler's benign "not
// found" phrase so inventory.isBenign absorbs them instead of logging a
// warning; every other failure is reported verbatim.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
		return inventory.NewApiExecutionError(fmt.Sprintf("%s: Not found", op), err)
	}
	return inventory.NewApiExecutionError(fmt.Sprintf("%s: %v", op, err), err)
}

func toData(v interface{}) map[string]interface{} {
	// Struct-to-map via JSON is the simplest faithful projection of the
	// generated API types' exported fields into the engine's opaque shape.
	data, err := structToMap(v)
	if err != nil {
		return map[string]interface{}{}
	}
	return data
}
