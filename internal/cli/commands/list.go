package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmart/graphmart/internal/configstore"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:       "list {blueprints|dimensions|facts}",
		Short:     "List configured blueprints or dimensional models",
		Long:      `List the blueprints, dimensions, or facts defined in the configuration tables, with their last recorded deployment outcome.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"blueprints", "dimensions", "facts"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var entries []configstore.Entry
			switch args[0] {
			case "blueprints":
				if source == "" {
					source = rt.Config.Source
				}
				if source == "" {
					return fmt.Errorf("no source system given: use --source or set source in the project config")
				}
				entries, err = rt.Store.ListBlueprints(cmd.Context(), source)
			case "dimensions":
				entries, err = rt.Store.ListDimensions(cmd.Context())
			case "facts":
				entries, err = rt.Store.ListFacts(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, _ = fmt.Fprintf(out, "No %s configured.\n", args[0])
				return nil
			}

			for _, e := range entries {
				state := "not deployed"
				switch {
				case e.Error != "":
					state = "error: " + e.Error
				case e.Deployed != "":
					state = e.Deployed
				}
				_, _ = fmt.Fprintf(out, "%-32s %-32s %s\n", e.ID, e.Name, state)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source system (blueprints only)")

	return cmd
}
