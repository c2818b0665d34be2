// Command crawl runs one inventory crawl against the configured root IDs
// and exits. It is the one-shot counterpart to cmd/server, which instead
// exposes crawl runs over a long-lived REST trigger surface.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/cloudkeep/inventory-crawler/internal/config"
	"github.com/cloudkeep/inventory-crawler/internal/crawlrun"
	"github.com/cloudkeep/inventory-crawler/internal/gcpapi"
	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/gcpregistry"
	"github.com/cloudkeep/inventory-crawler/internal/models"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/logger"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/metrics"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/tracing"
	"github.com/cloudkeep/inventory-crawler/internal/repository"
	"github.com/cloudkeep/inventory-crawler/migrations"
)

// backend is what a storage driver (SQLite or Postgres) must provide beyond
// the three repository.Repository interfaces: lifecycle and migrations.
type backend interface {
	repository.RunRepository
	repository.ResourceRepository
	repository.WarningRepository
	Close() error
	RunMigrations(migrationSQL string) error
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.RootIDs) == 0 {
		log.Fatal("crawl: no root ids configured (set INVENTORY_CRAWLER_ROOT_IDS)")
	}

	slogger := logger.StdLogger()
	slogger.Info("crawl starting", "root_ids", cfg.RootIDs, "dispatch_pool_size", cfg.DispatchPoolSize)

	if cfg.TracingEnabled {
		cleanup, err := tracing.Init(cfg.TracingServiceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
		if err != nil {
			slogger.Error("tracing init failed, continuing without tracing", "error", err)
		} else {
			defer cleanup()
		}
	}

	store, err := openBackend(cfg)
	if err != nil {
		slogger.Error("opening repository", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := applyMigrations(store); err != nil {
		slogger.Error("applying migrations", "error", err)
		os.Exit(1)
	}
	repo := &repository.Repository{Run: store, Resource: store, Warning: store}

	var clientOpts []option.ClientOption
	if cfg.GCPCredentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GCPCredentialsPath))
	}
	apiClient, err := gcpapi.New(ctx, clientOpts...)
	if err != nil {
		slogger.Error("constructing gcp api client", "error", err)
		os.Exit(1)
	}

	registry := gcpregistry.Build()
	exclusions := make(map[string]struct{}, len(cfg.ExcludedResources))
	for _, e := range cfg.ExcludedResources {
		exclusions[e] = struct{}{}
	}
	runCfg := &inventory.Config{ExcludedResources: exclusions}

	runID := uuid.New().String()
	started := time.Now()
	runRecord := &models.CrawlRun{ID: runID, RootIDs: cfg.RootIDs, Status: "running", StartedAt: started}
	if err := repo.Run.CreateRun(ctx, runRecord); err != nil {
		slogger.Error("creating run record", "error", err)
		os.Exit(1)
	}

	pool := inventory.NewDispatchPool(ctx, cfg.DispatchPoolSize)
	visitor := crawlrun.New(runID, repo, apiClient, pool, runCfg, slogger)

	failed := false
	root, err := inventory.FromRootIDs(ctx, registry, apiClient, cfg.RootIDs)
	if err != nil {
		slogger.Error("resolving root ids", "root_ids", cfg.RootIDs, "error", err)
		failed = true
	} else {
		root.TryAccept(ctx, visitor, registry, nil)
	}
	if err := pool.Wait(); err != nil {
		slogger.Error("dispatch pool drained with error", "error", err)
		failed = true
	}

	duration := time.Since(started)
	metrics.CrawlDurationSeconds.Observe(duration.Seconds())

	status := "succeeded"
	errMsg := ""
	if failed {
		status = "failed"
		errMsg = "one or more root ids failed to resolve or dispatched work returned an error"
	}
	if err := repo.Run.UpdateRunStatus(ctx, runID, status, errMsg); err != nil {
		slogger.Error("updating run status", "error", err)
	}

	slogger.Info("crawl finished", "run_id", runID, "status", status, "duration", duration)
	if failed {
		os.Exit(1)
	}
}

func openBackend(cfg *config.Config) (backend, error) {
	if cfg.DatabaseURL != "" {
		return repository.NewPostgresRepository(cfg.DatabaseURL)
	}
	return repository.NewSQLiteRepository(cfg.DatabasePath)
}

func applyMigrations(store backend) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		sql, err := migrations.FS.ReadFile(entry.Name())
		if err != nil {
			return err
		}
		if err := store.RunMigrations(string(sql)); err != nil {
			return err
		}
	}
	return nil
}
