// Package duckdb provides a DuckDB warehouse executor for graphmart.
//
// DuckDB supports the table and view portion of the pipeline and is the
// default target for local development. Use ":memory:" as the path for an
// in-memory database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/graphmart/graphmart/pkg/warehouse"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Executor implements the warehouse.Executor interface for DuckDB.
type Executor struct {
	warehouse.BaseSQLExecutor
}

// New creates a new DuckDB executor instance.
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
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
func (e *Executor) Connect(ctx context.Context, cfg warehouse.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	e.DB = db
	e.Cfg = cfg
	return nil
}

// ObjectExists reports whether the named table or view exists.
func (e *Executor) ObjectExists(ctx context.Context, kind warehouse.ObjectType, database, schema, name string) (bool, error) {
	if e.DB == nil {
		return false, fmt.Errorf("warehouse connection not established")
	}

	var query string
	switch kind {
	case warehouse.ObjectView:
		query = "SELECT COUNT(*) FROM information_schema.views WHERE UPPER(table_schema) = UPPER(?) AND UPPER(table_name) = UPPER(?)"
	case warehouse.ObjectTable:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE UPPER(table_schema) = UPPER(?) AND UPPER(table_name) = UPPER(?)"
	default:
		return false, fmt.Errorf("object kind %s not supported by duckdb", kind)
	}

	schemaName := schema
	if schemaName == "" {
		schemaName = "main"
	}

	var count int
	if err := e.DB.QueryRowContext(ctx, query, schemaName, name).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence of %s: %w", name, err)
	}
	return count > 0, nil
}

// Ensure Executor implements warehouse.Executor interface
var _ warehouse.Executor = (*Executor)(nil)
