package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cloudkeep/inventory-crawler/internal/models"
)

// PostgresRepository implements Run/Resource/WarningRepository on
// PostgreSQL, for deployments that want a shared sink across multiple
// crawler processes rather than a per-process SQLite file.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository connects using connectionString and tunes the pool
// identically to SQLiteRepository.
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("repository: connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &PostgresRepository{db: db}, nil
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error { return r.db.Close() }

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// RunMigrations executes migrationSQL verbatim.
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

func (r *PostgresRepository) CreateRun(ctx context.Context, run *models.CrawlRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	rootIDs, err := json.Marshal(run.RootIDs)
	if err != nil {
		return fmt.Errorf("repository: marshaling root ids: %w", err)
	}
	return instrumentQueryContext(ctx, "create_run", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO crawl_runs (id, root_ids, status, started_at) VALUES ($1, $2, $3, $4)`,
			run.ID, rootIDs, run.Status, run.StartedAt)
		return err
	})
}

func (r *PostgresRepository) UpdateRunStatus(ctx context.Context, runID, status, errorMessage string) error {
	return instrumentQueryContext(ctx, "update_run_status", func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE crawl_runs SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4`,
			status, errorMessage, time.Now(), runID)
		return err
	})
}

func (r *PostgresRepository) GetRun(ctx context.Context, runID string) (*models.CrawlRun, error) {
	var row crawlRunRow
	err := instrumentQueryContext(ctx, "get_run", func() error {
		return r.db.GetContext(ctx, &row, `SELECT * FROM crawl_runs WHERE id = $1`, runID)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]*models.CrawlRun, error) {
	var rows []crawlRunRow
	err := instrumentQueryContext(ctx, "list_runs", func() error {
		return r.db.SelectContext(ctx, &rows, `SELECT * FROM crawl_runs ORDER BY started_at DESC LIMIT $1`, limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.CrawlRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (r *PostgresRepository) SaveResource(ctx context.Context, res *models.CrawledResource) error {
	return instrumentQueryContext(ctx, "save_resource", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO crawled_resources (run_id, full_resource_name, type, key, parent_full_name, data, metadata, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (run_id, full_resource_name) DO UPDATE SET data = excluded.data, metadata = excluded.metadata, timestamp = excluded.timestamp`,
			res.RunID, res.FullResourceName, res.Type, res.Key, res.ParentFullName, res.Data, res.Metadata, res.Timestamp)
		return err
	})
}

func (r *PostgresRepository) ListResources(ctx context.Context, runID string) ([]*models.CrawledResource, error) {
	var out []*models.CrawledResource
	err := instrumentQueryContext(ctx, "list_resources", func() error {
		return r.db.SelectContext(ctx, &out,
			`SELECT run_id, full_resource_name, type, key, parent_full_name, data, metadata, timestamp
			 FROM crawled_resources WHERE run_id = $1 ORDER BY timestamp ASC`, runID)
	})
	return out, err
}

func (r *PostgresRepository) SaveWarning(ctx context.Context, w *models.Warning) error {
	return instrumentQueryContext(ctx, "save_warning", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO crawl_warnings (run_id, full_resource_name, message, recorded_at) VALUES ($1, $2, $3, $4)`,
			w.RunID, w.FullResourceName, w.Message, w.RecordedAt)
		return err
	})
}

func (r *PostgresRepository) ListWarnings(ctx context.Context, runID string) ([]*models.Warning, error) {
	var out []*models.Warning
	err := instrumentQueryContext(ctx, "list_warnings", func() error {
		return r.db.SelectContext(ctx, &out,
			`SELECT run_id, full_resource_name, message, recorded_at FROM crawl_warnings WHERE run_id = $1 ORDER BY recorded_at ASC`, runID)
	})
	return out, err
}
