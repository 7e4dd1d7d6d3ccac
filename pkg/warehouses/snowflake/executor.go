// Package snowflake provides a Snowflake warehouse executor for graphmart.
package snowflake

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/graphmart/graphmart/pkg/warehouse"
	sf "github.com/snowflakedb/gosnowflake"
)

// Executor implements the warehouse.Executor interface for Snowflake.
type Executor struct {
	warehouse.BaseSQLExecutor
}

// New creates a new Snowflake executor instance.
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
	return "snowflake"
}

// Connect establishes a connection to Snowflake.
// Key-pair authentication is used when private_key_path is configured,
// otherwise password authentication.
func (e *Executor) Connect(ctx context.Context, cfg warehouse.Config) error {
	sfCfg := &sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	}

	if cfg.PrivateKeyPath != "" {
		key, err := loadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("failed to load private key: %w", err)
		}
		sfCfg.PrivateKey = key
		sfCfg.Authenticator = sf.AuthTypeJwt
	}

	dsn, err := sf.DSN(sfCfg)
	if err != nil {
		return fmt.Errorf("failed to build snowflake DSN: %w", err)
	}

	e.Logger.Debug("connecting to snowflake",
		slog.String("account", cfg.Account),
		slog.String("database", cfg.Database),
		slog.String("warehouse", cfg.Warehouse))

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping snowflake: %w", err)
	}

	e.DB = db
	e.Cfg = cfg
	return nil
}

// ObjectExists reports whether the named object exists using SHOW, which
// covers streams and tasks as well as tables and views.
func (e *Executor) ObjectExists(ctx context.Context, kind warehouse.ObjectType, database, schema, name string) (bool, error) {
	if e.DB == nil {
		return false, fmt.Errorf("warehouse connection not established")
	}

	plural := map[warehouse.ObjectType]string{
		warehouse.ObjectTable:  "TABLES",
		warehouse.ObjectView:   "VIEWS",
		warehouse.ObjectStream: "STREAMS",
		warehouse.ObjectTask:   "TASKS",
	}[kind]
	if plural == "" {
		return false, fmt.Errorf("unsupported object kind %q", kind)
	}

	// Identifier-safe: names are generated internally and uppercased.
	query := fmt.Sprintf("SHOW %s LIKE '%s' IN SCHEMA %s.%s",
		plural, strings.ToUpper(name), database, schema)

	rows, err := e.DB.QueryContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", strings.ToLower(string(kind)), err)
	}
	defer func() { _ = rows.Close() }()

	exists := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("error reading SHOW result: %w", err)
	}
	return exists, nil
}

// loadPrivateKey reads an unencrypted PKCS#8 RSA private key in PEM format.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM data found in %s", path)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// Ensure Executor implements warehouse.Executor interface
var _ warehouse.Executor = (*Executor)(nil)
