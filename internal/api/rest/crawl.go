package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cloudkeep/inventory-crawler/internal/crawlrun"
	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
	"github.com/cloudkeep/inventory-crawler/internal/models"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/metrics"
	"github.com/cloudkeep/inventory-crawler/internal/repository"
)

// CrawlHandler exposes crawl runs over HTTP: POST /crawl starts one in the
// background, GET /crawl/{id} reports its status. The underlying engine run
// is identical to cmd/crawl's one-shot path; this handler just triggers it
// asynchronously and hands back a run ID immediately.
type CrawlHandler struct {
	repo             *repository.Repository
	registry         *inventory.Registry
	client           apiclient.Client
	dispatchPoolSize int
	excluded         map[string]struct{}
	log              *slog.Logger
}

// NewCrawlHandler builds a handler that triggers crawls against registry
// using client, persisting through repo.
func NewCrawlHandler(repo *repository.Repository, registry *inventory.Registry, client apiclient.Client, dispatchPoolSize int, excluded map[string]struct{}, log *slog.Logger) *CrawlHandler {
	return &CrawlHandler{repo: repo, registry: registry, client: client, dispatchPoolSize: dispatchPoolSize, excluded: excluded, log: log}
}

type startCrawlRequest struct {
	RootIDs []string `json:"root_ids"`
}

type startCrawlResponse struct {
	RunID string `json:"run_id"`
}

// PostCrawl handles POST /crawl: validates the request, records a "running"
// run, and launches the traversal on a detached goroutine so the HTTP
// response does not block for the crawl's full duration.
func (h *CrawlHandler) PostCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.RootIDs) == 0 {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "root_ids is required", "")
		return
	}

	runID := uuid.New().String()
	started := time.Now()
	run := &models.CrawlRun{ID: runID, RootIDs: req.RootIDs, Status: "running", StartedAt: started}
	if err := h.repo.Run.CreateRun(r.Context(), run); err != nil {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to record run", "")
		return
	}

	go h.runInBackground(runID, req.RootIDs)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(startCrawlResponse{RunID: runID})
}

func (h *CrawlHandler) runInBackground(runID string, rootIDs []string) {
	ctx := context.Background()
	pool := inventory.NewDispatchPool(ctx, h.dispatchPoolSize)
	runCfg := &inventory.Config{ExcludedResources: h.excluded}
	visitor := crawlrun.New(runID, h.repo, h.client, pool, runCfg, h.log)

	started := time.Now()
	failed := false
	root, err := inventory.FromRootIDs(ctx, h.registry, h.client, rootIDs)
	if err != nil {
		h.log.Error("resolving root ids", "run_id", runID, "root_ids", rootIDs, "error", err)
		failed = true
	} else {
		root.TryAccept(ctx, visitor, h.registry, nil)
	}
	if err := pool.Wait(); err != nil {
		h.log.Error("dispatch pool drained with error", "run_id", runID, "error", err)
		failed = true
	}
	metrics.CrawlDurationSeconds.Observe(time.Since(started).Seconds())

	status, errMsg := "succeeded", ""
	if failed {
		status, errMsg = "failed", "one or more root ids failed to resolve or dispatched work returned an error"
	}
	if err := h.repo.Run.UpdateRunStatus(ctx, runID, status, errMsg); err != nil {
		h.log.Error("updating run status", "run_id", runID, "error", err)
	}
}

// GetCrawlStatus handles GET /crawl/{id}: reports the run's current status
// plus how many resources and warnings it has recorded so far.
func (h *CrawlHandler) GetCrawlStatus(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	run, err := h.repo.Run.GetRun(r.Context(), runID)
	if err != nil {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to load run", "")
		return
	}
	if run == nil {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "run not found", "")
		return
	}
	resources, err := h.repo.Resource.ListResources(r.Context(), runID)
	if err != nil {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list resources", "")
		return
	}
	warnings, err := h.repo.Warning.ListWarnings(r.Context(), runID)
	if err != nil {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list warnings", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":         run.ID,
		"status":         run.Status,
		"root_ids":       run.RootIDs,
		"started_at":     run.StartedAt,
		"finished_at":    run.FinishedAt,
		"error_message":  run.ErrorMessage,
		"resource_count": len(resources),
		"warning_count":  len(warnings),
	})
}
