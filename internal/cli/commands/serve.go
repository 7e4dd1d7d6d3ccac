package commands

import (
	"github.com/spf13/cobra"

	"github.com/graphmart/graphmart/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deployment API server",
		Long: `Start the HTTP API server exposing the deployment endpoints: streaming
deployments over server-sent events, synchronous deployments, and the run
history. The server holds one warehouse connection; deployments run one at
a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, cleanup, err := newRuntime(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := rt.Config
			if port == 0 {
				port = cfg.Server.Port
			}

			srv := api.NewServer(api.Config{
				Deployer: rt.Sequencer,
				Runs:     rt.Audit,
				Host:     cfg.Server.Host,
				Port:     port,
				Logger:   rt.Logger,
			})
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")

	return cmd
}
