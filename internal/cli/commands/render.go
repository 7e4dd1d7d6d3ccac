package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmart/graphmart/internal/blueprint"
	"github.com/graphmart/graphmart/internal/sqlgen"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var (
		source      string
		replace     bool
		fullRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "render <blueprint-id>",
		Short: "Render the SQL a blueprint compiles to",
		Long: `Render every statement a blueprint deployment would execute, in pipeline
order, without touching the warehouse beyond reading the blueprint
definition. Useful for reviewing generated DDL before deploying.`,
		Example: `  # Render a blueprint's statements
  graphmart render bp-asset-register --source sap

  # Include the full-refresh backfill
  graphmart render bp-asset-register --source sap --full-refresh > backfill.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if source == "" {
				source = rt.Config.Source
			}

			rec, err := rt.Store.Blueprint(cmd.Context(), source, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no blueprint named %s for source %s", args[0], source)
			}

			model := blueprint.Normalize(*rec, source)
			if err := blueprint.Validate(model); err != nil {
				return err
			}

			cfg := rt.Config
			comp := sqlgen.New(model, sqlgen.Options{
				Stage:          cfg.Locations.Stage.Location(),
				Target:         cfg.Locations.Target.Location(),
				TaskWarehouse:  cfg.Task.Warehouse,
				TaskSchedule:   cfg.Task.Schedule,
				ReplaceObjects: replace,
			})

			var stmts []sqlgen.Statement
			stmts = append(stmts, comp.StageStatements()...)
			stmts = append(stmts, comp.KeyStorageStatements()...)
			stmts = append(stmts, comp.RelationshipStatements()...)
			stmts = append(stmts, comp.AttributeStatements()...)
			if fullRefresh {
				stmts = append(stmts, comp.FullRefreshStatements().Statements()...)
			}

			out := cmd.OutOrStdout()
			for _, stmt := range stmts {
				_, _ = fmt.Fprintf(out, "-- %s %s\n%s;\n\n", stmt.Kind, stmt.Object, stmt.SQL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source system the blueprint belongs to")
	cmd.Flags().BoolVar(&replace, "replace", false, "Render drop-and-recreate statements")
	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Also render the backfill statements")

	return cmd
}
