// Package crawlrun wires one crawl invocation's traversal to persistence,
// metrics, and logging: it is the concrete inventory.Visitor the engine
// drives.
package crawlrun

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
	"github.com/cloudkeep/inventory-crawler/internal/models"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/metrics"
	"github.com/cloudkeep/inventory-crawler/internal/repository"
	"github.com/cloudkeep/inventory-crawler/internal/wireasset"
)

// Visitor persists every resource the engine visits and every warning it
// accumulates, against one run ID. A Visitor is shared across all
// dispatch-pool goroutines for its run, so every method must be safe for
// concurrent use (SPEC_FULL.md §5) — repository calls are the only shared
// mutable state here, and *sql.DB is already safe for concurrent use.
type Visitor struct {
	runID  string
	repo   *repository.Repository
	client apiclient.Client
	pool   *inventory.DispatchPool
	cfg    *inventory.Config
	log    *slog.Logger
}

// New returns a Visitor for one run. pool must already be constructed with
// the run's dispatch concurrency; cfg carries the run's exclusion set.
func New(runID string, repo *repository.Repository, client apiclient.Client, pool *inventory.DispatchPool, cfg *inventory.Config, log *slog.Logger) *Visitor {
	return &Visitor{runID: runID, repo: repo, client: client, pool: pool, cfg: cfg, log: log}
}

// Visit persists one resource exactly once, strictly before any descendant.
// The resource's data map is stored as protobuf wire bytes (a structpb.Struct)
// rather than JSON, so a downstream consumer can decode crawled_resources.data
// without depending on this repository's Go types at all.
func (v *Visitor) Visit(ctx context.Context, resource *inventory.Resource) error {
	parentName := ""
	if parent := resource.Parent(); parent != nil && parent != resource {
		parentName = parent.FullResourceName()
	}

	asset, err := wireasset.FromResource(resource, parentName)
	if err != nil {
		return err
	}
	data, err := asset.MarshalData()
	if err != nil {
		return err
	}
	var metadata []byte
	if md := resource.Metadata(); md != nil {
		metadata, err = json.Marshal(md)
		if err != nil {
			return err
		}
	}

	record := &models.CrawledResource{
		RunID:            v.runID,
		FullResourceName: resource.FullResourceName(),
		Type:             resource.Type(),
		Key:              resource.Key(),
		ParentFullName:   parentName,
		Data:             data,
		Metadata:         metadata,
		Timestamp:        resource.Timestamp(),
	}
	if err := v.repo.Resource.SaveResource(ctx, record); err != nil {
		return err
	}
	metrics.ResourcesCrawledTotal.WithLabelValues(resource.Type()).Inc()
	return nil
}

// Client returns the API client iterators and side-band fetches use.
func (v *Visitor) Client() apiclient.Client { return v.client }

// Dispatch enqueues a dispatchable subtree's continuation on the run's pool,
// tracking in-flight dispatch depth for observability.
func (v *Visitor) Dispatch(fn func(ctx context.Context) error) {
	metrics.DispatchQueueDepth.Inc()
	v.pool.Dispatch(func(ctx context.Context) error {
		defer metrics.DispatchQueueDepth.Dec()
		return fn(ctx)
	})
}

// OnChildError records a warning against fullResourceName without aborting
// the run (invariant: partial failure never stops a crawl).
func (v *Visitor) OnChildError(fullResourceName string, errOrWarning error) {
	v.log.Warn("crawl warning", "resource", fullResourceName, "error", errOrWarning)
	warningType := typeFromFullName(fullResourceName)
	metrics.WarningsTotal.WithLabelValues(warningType).Inc()
	w := &models.Warning{
		RunID:            v.runID,
		FullResourceName: fullResourceName,
		Message:          errOrWarning.Error(),
	}
	if err := v.repo.Warning.SaveWarning(context.Background(), w); err != nil {
		v.log.Error("failed to persist warning", "resource", fullResourceName, "error", err)
	}
}

// Config returns the run's configuration, notably ExcludedResources.
func (v *Visitor) Config() *inventory.Config { return v.cfg }

var _ inventory.Visitor = (*Visitor)(nil)

// typeFromFullName extracts the trailing resource's type tag from a full
// resource name ("org/123/project/456" -> "project"), for warning-metric
// cardinality. Falls back to "unknown" for malformed names.
func typeFromFullName(fullResourceName string) string {
	segments := strings.Split(fullResourceName, "/")
	if len(segments) < 2 {
		return "unknown"
	}
	return segments[len(segments)-2]
}
