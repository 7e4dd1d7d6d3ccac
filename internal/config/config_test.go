package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/graphmart/graphmart/pkg/warehouses/duckdb"
	_ "github.com/graphmart/graphmart/pkg/warehouses/snowflake"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads a full config file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, `
source: sap
warehouse:
  type: snowflake
  account: xy12345
  user: deployer
  database: DEV_DB
  warehouse: COMPUTE_WH
locations:
  stage:
    schema: STAGING
  target:
    database: PROD_DB
task:
  schedule: 10 MINUTE
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "sap", cfg.Source)
		assert.Equal(t, "snowflake", cfg.Warehouse.Type)

		// Explicit values survive; everything else is defaulted.
		assert.Equal(t, "STAGING", cfg.Locations.Stage.Schema)
		assert.Equal(t, "DEV_DB", cfg.Locations.Stage.Database)
		assert.Equal(t, "PROD_DB", cfg.Locations.Target.Database)
		assert.Equal(t, DefaultTargetSchema, cfg.Locations.Target.Schema)
		assert.Equal(t, DefaultModelSchema, cfg.Locations.Model.Schema)
		assert.Equal(t, "10 MINUTE", cfg.Task.Schedule)
		assert.Equal(t, DefaultAuditPath, cfg.Audit.Path)

		require.NoError(t, cfg.Validate())
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, `
warehouse:
  type: duckdb
  database: DEV_DB
`)
		t.Setenv("GRAPHMART_WAREHOUSE__PASSWORD", "secret")
		t.Setenv("GRAPHMART_SOURCE", "mes")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.Warehouse.Password)
		assert.Equal(t, "mes", cfg.Source)
	})

	t.Run("missing file path means defaults only", func(t *testing.T) {
		dir := t.TempDir()
		cwd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { _ = os.Chdir(cwd) })

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultServerPort, cfg.Server.Port)
		assert.Error(t, cfg.Validate())
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Warehouse.Type = "duckdb"
		cfg.Warehouse.Database = "DEV_DB"
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown warehouse type", func(t *testing.T) {
		cfg := base()
		cfg.Warehouse.Type = "oracle"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oracle")
	})

	t.Run("missing location database", func(t *testing.T) {
		cfg := base()
		cfg.Locations.Target.Database = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "locations.target.database")
	})
}

func TestFindProjectRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "warehouse:\n  type: duckdb\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	got := FindProjectRoot(nested)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, resolved, gotResolved)

	assert.Equal(t, "", FindProjectRoot(t.TempDir()))
}
