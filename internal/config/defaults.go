package config

import "github.com/graphmart/graphmart/internal/sqlgen"

// Default configuration values.
const (
	DefaultAuditPath    = ".graphmart/runs.db"
	DefaultServerHost   = "127.0.0.1"
	DefaultServerPort   = 8090
	DefaultStageSchema  = "STAGE"
	DefaultTargetSchema = "GRAPH"
	DefaultModelSchema  = "MART"
	DefaultConfigSchema = "CONFIG"
)

// ApplyDefaults fills unset values. Location databases fall back to the
// warehouse database, so a minimal config only names the warehouse once.
func (c *Config) ApplyDefaults() {
	if c.Audit.Path == "" {
		c.Audit.Path = DefaultAuditPath
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Task.Warehouse == "" {
		c.Task.Warehouse = sqlgen.DefaultTaskWarehouse
	}
	if c.Task.Schedule == "" {
		c.Task.Schedule = sqlgen.DefaultTaskSchedule
	}

	applyLocationDefaults(&c.Locations.Stage, c.Warehouse.Database, DefaultStageSchema)
	applyLocationDefaults(&c.Locations.Target, c.Warehouse.Database, DefaultTargetSchema)
	applyLocationDefaults(&c.Locations.Model, c.Warehouse.Database, DefaultModelSchema)
	applyLocationDefaults(&c.Locations.Config, c.Warehouse.Database, DefaultConfigSchema)

	if c.Warehouse.Type == "postgres" && c.Warehouse.Port == 0 {
		c.Warehouse.Port = 5432
	}
}

func applyLocationDefaults(l *LocationConfig, database, schema string) {
	if l.Database == "" {
		l.Database = database
	}
	if l.Schema == "" {
		l.Schema = schema
	}
}
