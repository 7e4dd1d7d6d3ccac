package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmart/graphmart/internal/deploy"
)

// NewDeployCommand creates the deploy command for blueprints.
func NewDeployCommand() *cobra.Command {
	var (
		source      string
		replace     bool
		fullRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <blueprint-id>...",
		Short: "Deploy blueprints to the warehouse",
		Long: `Deploy one or more blueprints through the staged pipeline: stage view,
change stream, scheduled task, node and edge tables, attribute history
table. Progress is printed per stage; the run is recorded in the audit
trail.`,
		Example: `  # Deploy two blueprints
  graphmart deploy bp-asset-register bp-work-orders --source sap

  # Recreate objects and backfill from the source tables
  graphmart deploy bp-asset-register --source sap --replace --full-refresh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if source == "" {
				source = rt.Config.Source
			}

			events := rt.Sequencer.DeployBlueprints(cmd.Context(), deploy.Request{
				Source:         source,
				ModelIDs:       args,
				ReplaceObjects: replace,
				FullRefresh:    fullRefresh,
			})
			return reportRun(cmd, events)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source system the blueprints belong to")
	cmd.Flags().BoolVar(&replace, "replace", false, "Drop and recreate existing objects")
	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Truncate and reload target tables from the source")

	return cmd
}

// NewDeployModelsCommand creates the deploy-models command for dimensional
// models.
func NewDeployModelsCommand() *cobra.Command {
	var (
		replace     bool
		fullRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "deploy-models <model-id>...",
		Short: "Deploy dimension and fact views",
		Long: `Deploy one or more dimensional models. Each model's underlying blueprint
runs through the staged pipeline first, then the dimension or fact view is
published with governance tags and access grants applied.`,
		Example: `  # Deploy a dimension and a fact
  graphmart deploy-models equipment maintenance`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			events := rt.Sequencer.DeployModels(cmd.Context(), deploy.Request{
				ModelIDs:       args,
				ReplaceObjects: replace,
				FullRefresh:    fullRefresh,
			})
			return reportRun(cmd, events)
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Drop and recreate existing objects")
	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Truncate and reload target tables from the source")

	return cmd
}

// reportRun prints a run's event stream and returns an error when the run
// did not fully succeed.
func reportRun(cmd *cobra.Command, events <-chan deploy.Event) error {
	out := cmd.OutOrStdout()
	var failed, total int
	var runErr string

	for ev := range events {
		switch data := ev.Data.(type) {
		case deploy.LogEntry:
			if data.Step == deploy.StageComplete || data.Level == deploy.SeverityError {
				_, _ = fmt.Fprintf(out, "[%s] %s\n", data.Level, data.Message)
			}
		case deploy.UnitStart:
			_, _ = fmt.Fprintf(out, "Deploying %s (%d/%d)...\n", data.ModelID, data.Index, data.Total)
		case deploy.Summary:
			total = data.Total
			failed = len(data.Failed)
			_, _ = fmt.Fprintf(out, "%s: %d succeeded, %d failed\n",
				data.Message, len(data.Successful), failed)
		case deploy.StreamError:
			runErr = data.Message
		}
	}

	if runErr != "" {
		return fmt.Errorf("deployment aborted: %s", runErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, total)
	}
	return nil
}
