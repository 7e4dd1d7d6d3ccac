// Package warehouse provides the target-system executor contract used by
// graphmart's compiler and deployment orchestrator.
//
// This package contains the public contract that all warehouse executors must
// implement. Concrete implementations live in pkg/warehouses/ subdirectories
// and register themselves via init().
package warehouse

import (
	"context"
	"database/sql"
)

// Config holds connection configuration for a warehouse executor.
type Config struct {
	Type string `koanf:"type"` // snowflake, postgres, duckdb

	// File-based targets (DuckDB)
	Path string `koanf:"path"`

	// Network targets
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`

	// Snowflake-specific
	Account   string `koanf:"account"`
	Warehouse string `koanf:"warehouse"`
	Role      string `koanf:"role"`

	// PrivateKeyPath enables key-pair authentication when set.
	PrivateKeyPath string `koanf:"private_key_path"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// ObjectType identifies the kind of warehouse object a statement touches.
// The verb used for grants and existence checks varies by kind.
type ObjectType string

// Object type constants. ObjectRoutine marks load statements (the
// multi-table insert) that execute against tables but are not themselves
// grantable schema objects.
const (
	ObjectTable   ObjectType = "TABLE"
	ObjectView    ObjectType = "VIEW"
	ObjectStream  ObjectType = "STREAM"
	ObjectTask    ObjectType = "TASK"
	ObjectRoutine ObjectType = "ROUTINE"
)

// Rows wraps sql.Rows for executor query results.
type Rows struct {
	*sql.Rows
}

// Executor defines the interface all warehouse executors implement.
// One executor connection is shared for the duration of a deployment run and
// is not safe for concurrent use across runs.
type Executor interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a single SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// ExecScript executes a semicolon-delimited statement block, statement
	// by statement, stopping at the first failure.
	ExecScript(ctx context.Context, script string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// ObjectExists reports whether the named object exists in the given
	// database and schema.
	ObjectExists(ctx context.Context, kind ObjectType, database, schema, name string) (bool, error)

	// DialectName returns the SQL dialect name for this executor.
	DialectName() string
}
