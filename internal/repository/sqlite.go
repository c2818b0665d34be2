package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cloudkeep/inventory-crawler/internal/models"
)

// SQLiteRepository implements Run/Resource/WarningRepository on SQLite,
// tuned the way a crawler's single-writer, many-reader workload needs.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens dbPath in WAL mode and tunes the connection pool
// for concurrent reads during an in-flight crawl.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: connecting to sqlite: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	var journalMode string
	if err := db.Get(&journalMode, "PRAGMA journal_mode"); err != nil {
		return nil, fmt.Errorf("repository: checking journal mode: %w", err)
	}
	if journalMode != "wal" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return nil, fmt.Errorf("repository: enabling WAL mode: %w", err)
		}
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying connection pool.
func (r *SQLiteRepository) Close() error { return r.db.Close() }

// Ping checks database connectivity.
func (r *SQLiteRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// RunMigrations executes migrationSQL verbatim, matching the embedded
// self-contained-binary migration approach (migrations/embed.go).
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *models.CrawlRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	rootIDs, err := json.Marshal(run.RootIDs)
	if err != nil {
		return fmt.Errorf("repository: marshaling root ids: %w", err)
	}
	return instrumentQueryContext(ctx, "create_run", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO crawl_runs (id, root_ids, status, started_at) VALUES (?, ?, ?, ?)`,
			run.ID, string(rootIDs), run.Status, run.StartedAt)
		return err
	})
}

func (r *SQLiteRepository) UpdateRunStatus(ctx context.Context, runID, status, errorMessage string) error {
	return instrumentQueryContext(ctx, "update_run_status", func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE crawl_runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
			status, errorMessage, time.Now(), runID)
		return err
	})
}

func (r *SQLiteRepository) GetRun(ctx context.Context, runID string) (*models.CrawlRun, error) {
	var row crawlRunRow
	err := instrumentQueryContext(ctx, "get_run", func() error {
		return r.db.GetContext(ctx, &row, `SELECT * FROM crawl_runs WHERE id = ?`, runID)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*models.CrawlRun, error) {
	var rows []crawlRunRow
	err := instrumentQueryContext(ctx, "list_runs", func() error {
		return r.db.SelectContext(ctx, &rows, `SELECT * FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit)
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

func (r *SQLiteRepository) SaveResource(ctx context.Context, res *models.CrawledResource) error {
	return instrumentQueryContext(ctx, "save_resource", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO crawled_resources (run_id, full_resource_name, type, key, parent_full_name, data, metadata, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, full_resource_name) DO UPDATE SET data = excluded.data, metadata = excluded.metadata, timestamp = excluded.timestamp`,
			res.RunID, res.FullResourceName, res.Type, res.Key, res.ParentFullName, res.Data, res.Metadata, res.Timestamp)
		return err
	})
}

func (r *SQLiteRepository) ListResources(ctx context.Context, runID string) ([]*models.CrawledResource, error) {
	var out []*models.CrawledResource
	err := instrumentQueryContext(ctx, "list_resources", func() error {
		return r.db.SelectContext(ctx, &out,
			`SELECT run_id, full_resource_name, type, key, parent_full_name, data, metadata, timestamp
			 FROM crawled_resources WHERE run_id = ? ORDER BY timestamp ASC`, runID)
	})
	return out, err
}

func (r *SQLiteRepository) SaveWarning(ctx context.Context, w *models.Warning) error {
	return instrumentQueryContext(ctx, "save_warning", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO crawl_warnings (run_id, full_resource_name, message, recorded_at) VALUES (?, ?, ?, ?)`,
			w.RunID, w.FullResourceName, w.Message, w.RecordedAt)
		return err
	})
}

func (r *SQLiteRepository) ListWarnings(ctx context.Context, runID string) ([]*models.Warning, error) {
	var out []*models.Warning
	err := instrumentQueryContext(ctx, "list_warnings", func() error {
		return r.db.SelectContext(ctx, &out,
			`SELECT run_id, full_resource_name, message, recorded_at FROM crawl_warnings WHERE run_id = ? ORDER BY recorded_at ASC`, runID)
	})
	return out, err
}

// crawlRunRow is the sqlx scan target for crawl_runs; RootIDs is stored as a
// JSON array and decoded back into the model on read.
type crawlRunRow struct {
	ID           string     `db:"id"`
	RootIDs      string     `db:"root_ids"`
	Status       string     `db:"status"`
	StartedAt    time.Time  `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	ErrorMessage *string    `db:"error_message"`
}

func (row crawlRunRow) toModel() (*models.CrawlRun, error) {
	var rootIDs []string
	if err := json.Unmarshal([]byte(row.RootIDs), &rootIDs); err != nil {
		return nil, fmt.Errorf("repository: decoding root ids: %w", err)
	}
	msg := ""
	if row.ErrorMessage != nil {
		msg = *row.ErrorMessage
	}
	return &models.CrawlRun{
		ID:           row.ID,
		RootIDs:      rootIDs,
		Status:       row.Status,
		StartedAt:    row.StartedAt,
		FinishedAt:   row.FinishedAt,
		ErrorMessage: msg,
	}, nil
}
