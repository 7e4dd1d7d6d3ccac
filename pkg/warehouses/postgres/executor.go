// Package postgres provides a PostgreSQL warehouse executor for graphmart.
//
// Postgres has no streams or tasks; blueprints deployed against it are
// limited to the table and view portion of the pipeline. It is primarily
// useful for local development and integration testing.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/graphmart/graphmart/pkg/warehouse"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Executor implements the warehouse.Executor interface for PostgreSQL.
type Executor struct {
	warehouse.BaseSQLExecutor
}

// New creates a new PostgreSQL executor instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		BaseSQLExecutor: warehouse.BaseSQLExecutor{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this executor.
func (e *Executor) DialectName() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (e *Executor) Connect(ctx context.Context, cfg warehouse.Config) error {
	dsn := buildPostgresDSN(cfg)

	e.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	e.DB = db
	e.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg warehouse.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// ObjectExists reports whether the named table or view exists.
func (e *Executor) ObjectExists(ctx context.Context, kind warehouse.ObjectType, database, schema, name string) (bool, error) {
	return e.ObjectExistsCommon(ctx, kind, database, schema, name)
}

// Ensure Executor implements warehouse.Executor interface
var _ warehouse.Executor = (*Executor)(nil)
