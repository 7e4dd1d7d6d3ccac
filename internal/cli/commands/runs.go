package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmart/graphmart/internal/audit"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past deployment runs",
		Long:  `List deployment runs from the audit trail, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadProject(cmd)
			if err != nil {
				return err
			}

			store := audit.NewSQLiteStore(logger)
			if err := store.Open(cfg.Audit.Path); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(out, "No deployment runs recorded.")
				return nil
			}

			for _, run := range runs {
				_, _ = fmt.Fprintf(out, "%s  %-10s %-8s %d/%d succeeded  %v\n",
					run.CreatedAt.Format("2006-01-02 15:04:05"),
					run.DeploymentType,
					run.Status,
					run.SuccessCount,
					run.TotalCount,
					run.ModelIDs)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")

	return cmd
}
