// Package config loads project configuration for graphmart. It is decoupled
// from CLI concerns so the API server and other tools can load the same
// configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// LocationConfig names one database.schema pair in the target warehouse.
type LocationConfig struct {
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`
}

// Location converts the configured pair to a qualifier.
func (l LocationConfig) Location() sqlgen.Location {
	return sqlgen.Location{Database: l.Database, Schema: l.Schema}
}

// Locations holds where each layer of deployed objects lives: staging
// objects (view, stream, task), graph tables, presentation views, and the
// configuration tables.
type Locations struct {
	Stage  LocationConfig `koanf:"stage"`
	Target LocationConfig `koanf:"target"`
	Model  LocationConfig `koanf:"model"`
	Config LocationConfig `koanf:"config"`
}

// TaskConfig holds scheduled-task settings for deployed blueprints.
type TaskConfig struct {
	Warehouse string `koanf:"warehouse"`
	Schedule  string `koanf:"schedule"`
}

// AuditConfig holds audit-trail settings.
type AuditConfig struct {
	// Path of the SQLite database holding run records.
	Path string `koanf:"path"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Config is the full project configuration.
type Config struct {
	// Source is the default source system blueprints are resolved under.
	Source string `koanf:"source"`

	Warehouse warehouse.Config `koanf:"warehouse"`
	Locations Locations        `koanf:"locations"`
	Task      TaskConfig       `koanf:"task"`
	Audit     AuditConfig      `koanf:"audit"`
	Server    ServerConfig     `koanf:"server"`

	Verbose bool `koanf:"verbose"`
}

// Validate checks that the configuration names a usable warehouse and
// complete object locations. The warehouse registry is the single source of
// truth for valid warehouse types.
func (c *Config) Validate() error {
	if c.Warehouse.Type == "" {
		return fmt.Errorf("warehouse type is required")
	}
	if !warehouse.IsRegistered(strings.ToLower(c.Warehouse.Type)) {
		return &warehouse.UnknownWarehouseError{
			Type:      c.Warehouse.Type,
			Available: warehouse.ListWarehouses(),
		}
	}

	for name, loc := range map[string]LocationConfig{
		"locations.stage":  c.Locations.Stage,
		"locations.target": c.Locations.Target,
		"locations.model":  c.Locations.Model,
		"locations.config": c.Locations.Config,
	} {
		if loc.Database == "" {
			return fmt.Errorf("%s.database is required", name)
		}
		if loc.Schema == "" {
			return fmt.Errorf("%s.schema is required", name)
		}
	}

	return nil
}
