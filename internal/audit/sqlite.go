package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/graphmart/graphmart/internal/deploy"

	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps run records in a local SQLite database, so the audit
// trail survives even when the warehouse itself is unreachable.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite audit store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the SQLite database and runs pending migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping audit database: %w", err)
	}

	s.db = db
	s.path = path
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// AppendRun inserts one run record. Single insert, no update.
func (s *SQLiteStore) AppendRun(ctx context.Context, run deploy.RunRecord) error {
	if s.db == nil {
		return fmt.Errorf("audit database not opened")
	}

	modelIDs, err := json.Marshal(run.ModelIDs)
	if err != nil {
		return fmt.Errorf("failed to serialize model ids: %w", err)
	}
	events, err := json.Marshal(run.Events)
	if err != nil {
		return fmt.Errorf("failed to serialize events: %w", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	id := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployment_runs
		    (id, deployment_type, model_ids, events, summary, status, success_count, error_count, total_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.DeploymentType, string(modelIDs), string(events), string(summary),
		string(run.Status), run.SuccessCount, run.ErrorCount, run.TotalCount, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append run record: %w", err)
	}

	s.logger.Debug("audit record persisted",
		slog.String("id", id),
		slog.String("status", string(run.Status)))
	return nil
}

// ListRuns returns the most recent run records, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("audit database not opened")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, deployment_type, model_ids, events, summary, status, success_count, error_count, total_count, created_at
		 FROM deployment_runs
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var modelIDs, events, summary, status string
		if err := rows.Scan(&rec.ID, &rec.DeploymentType, &modelIDs, &events, &summary,
			&status, &rec.SuccessCount, &rec.ErrorCount, &rec.TotalCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		rec.Status = deploy.RunStatus(status)
		if err := json.Unmarshal([]byte(modelIDs), &rec.ModelIDs); err != nil {
			return nil, fmt.Errorf("run %s has malformed model ids: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(events), &rec.Events); err != nil {
			return nil, fmt.Errorf("run %s has malformed events: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(summary), &rec.Summary); err != nil {
			return nil, fmt.Errorf("run %s has malformed summary: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ensure SQLiteStore satisfies the run recorder contract
var _ deploy.Recorder = (*SQLiteStore)(nil)
