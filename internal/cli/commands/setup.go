// Package commands implements the graphmart CLI subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphmart/graphmart/internal/audit"
	"github.com/graphmart/graphmart/internal/config"
	"github.com/graphmart/graphmart/internal/configstore"
	"github.com/graphmart/graphmart/internal/deploy"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// loadProject loads the project configuration and builds the CLI logger.
func loadProject(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	flags := cmd.Root().PersistentFlags()
	cfgFile, _ := flags.GetString("config")
	verbose, _ := flags.GetBool("verbose")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Verbose = true
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return cfg, logger, nil
}

// Runtime bundles everything a deployment command needs: a connected
// warehouse executor, the config store reading from it, the audit trail, and
// the sequencer wired over all three.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Executor  warehouse.Executor
	Store     *configstore.WarehouseStore
	Audit     *audit.SQLiteStore
	Sequencer *deploy.Sequencer
}

// newRuntime connects the warehouse and opens the audit database. The
// returned cleanup closes both.
func newRuntime(ctx context.Context, cmd *cobra.Command) (*Runtime, func(), error) {
	cfg, logger, err := loadProject(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	exec, err := warehouse.New(cfg.Warehouse, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := exec.Connect(ctx, cfg.Warehouse); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	auditStore := audit.NewSQLiteStore(logger)
	if dir := filepath.Dir(cfg.Audit.Path); dir != "." && dir != "" && cfg.Audit.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			_ = exec.Close()
			return nil, nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	if err := auditStore.Open(cfg.Audit.Path); err != nil {
		_ = exec.Close()
		return nil, nil, err
	}

	store := configstore.NewWarehouseStore(exec, cfg.Locations.Config.Location(), configstore.Tables{}, logger)

	seq := deploy.NewSequencer(store, exec, auditStore, deploy.Targets{
		Stage:         cfg.Locations.Stage.Location(),
		Target:        cfg.Locations.Target.Location(),
		Model:         cfg.Locations.Model.Location(),
		TaskWarehouse: cfg.Task.Warehouse,
		TaskSchedule:  cfg.Task.Schedule,
	}, logger)

	cleanup := func() {
		_ = auditStore.Close()
		_ = exec.Close()
	}

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Executor:  exec,
		Store:     store,
		Audit:     auditStore,
		Sequencer: seq,
	}, cleanup, nil
}
