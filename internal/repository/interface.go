package repository

import (
	"context"

	"github.com/cloudkeep/inventory-crawler/internal/models"
)

// RunRepository tracks one crawl invocation end to end.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.CrawlRun) error
	UpdateRunStatus(ctx context.Context, runID, status, errorMessage string) error
	GetRun(ctx context.Context, runID string) (*models.CrawlRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.CrawlRun, error)
}

// ResourceRepository is the storage sink a Visitor persists resources to
// (SPEC_FULL.md §1). SaveResource is called at most once per resource,
// strictly after SaveResource of its parent.
type ResourceRepository interface {
	SaveResource(ctx context.Context, res *models.CrawledResource) error
	ListResources(ctx context.Context, runID string) ([]*models.CrawledResource, error)
}

// WarningRepository persists the warnings a run accumulates without
// aborting (invariant: partial failure never stops a crawl).
type WarningRepository interface {
	SaveWarning(ctx context.Context, w *models.Warning) error
	ListWarnings(ctx context.Context, runID string) ([]*models.Warning, error)
}

// Repository aggregates the three concerns a storage backend must serve.
type Repository struct {
	Run      RunRepository
	Resource ResourceRepository
	Warning  WarningRepository
}
