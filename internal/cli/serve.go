package cli

import (
	"github.com/spf13/cobra"

	"github.com/specialistvlad/causalgrid/internal/app"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve PATH...",
		Short: "Serve the HTTP API over a corpus",
		Long: `Load a corpus and serve the query, simulation and metrics endpoints.

With --watch (the default) the corpus is reloaded when its files change. A
reload that fails validation keeps the previous graph.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd, args, func(cfg *app.Config) {
				if cmd.Flags().Changed("port") {
					cfg.Port = port
				}
				cfg.Watch = watch
			})
			if err != nil {
				return err
			}
			return a.Serve(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for the HTTP API.")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload the corpus when it changes.")
	return cmd
}
