package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// BaseSQLExecutor provides common database/sql functionality for executors.
// Embed this struct in concrete executor implementations to get standard
// Close, Exec, ExecScript, and Query implementations.
type BaseSQLExecutor struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLExecutor) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing warehouse connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLExecutor) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("warehouse connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// ExecScript executes a semicolon-delimited statement block, one statement at
// a time, stopping at the first failure.
func (b *BaseSQLExecutor) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range SplitStatements(script) {
		if err := b.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLExecutor) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("warehouse connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// IsConnected returns true if the warehouse connection is established.
func (b *BaseSQLExecutor) IsConnected() bool {
	return b.DB != nil
}

// ObjectExistsCommon provides a shared implementation of ObjectExists backed
// by information_schema. Streams and tasks are not represented there, so
// executors for targets with those object kinds override ObjectExists.
func (b *BaseSQLExecutor) ObjectExistsCommon(ctx context.Context, kind ObjectType, _, schema, name string) (bool, error) {
	if b.DB == nil {
		return false, fmt.Errorf("warehouse connection not established")
	}

	var query string
	switch kind {
	case ObjectView:
		query = "SELECT COUNT(*) FROM information_schema.views WHERE UPPER(table_schema) = UPPER($1) AND UPPER(table_name) = UPPER($2)"
	case ObjectTable:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE UPPER(table_schema) = UPPER($1) AND UPPER(table_name) = UPPER($2)"
	default:
		return false, fmt.Errorf("object kind %s not supported by this warehouse", kind)
	}

	var count int
	if err := b.DB.QueryRowContext(ctx, query, schema, name).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", strings.ToLower(string(kind)), err)
	}
	return count > 0, nil
}

// SplitStatements splits a SQL script on top-level semicolons. Semicolons
// inside single-quoted literals are preserved. Empty statements are dropped.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		current strings.Builder
		inQuote bool
	)
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'':
			// Doubled quotes inside a literal stay inside the literal.
			if inQuote && i+1 < len(script) && script[i+1] == '\'' {
				current.WriteByte(c)
				current.WriteByte(script[i+1])
				i++
				continue
			}
			inQuote = !inQuote
			current.WriteByte(c)
		case c == ';' && !inQuote:
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
