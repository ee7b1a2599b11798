package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/causalgrid/internal/export"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		out       string
		toNeo4j   bool
		socketURL string
	)
	cmd := &cobra.Command{
		Use:   "export PATH...",
		Short: "Export the validated graph to a file, Neo4j or a Socket.IO dashboard",
		Long: `Load and validate a corpus, then write the snapshot to every requested sink.

--out writes JSON, or YAML when the file ends in .yaml or .yml.
--neo4j uses the neo4j block of the settings file, or NEO4J_URI, NEO4J_USER,
NEO4J_PASSWORD and NEO4J_DATABASE.
--socketio emits the snapshot to a dashboard namespace.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" && !toNeo4j && socketURL == "" {
				return usageError(fmt.Errorf("at least one of --out, --neo4j or --socketio is required"))
			}
			a, err := opts.loadApp(cmd, args, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := a.Context()

			var sinks []export.Sink
			if out != "" {
				sinks = append(sinks, &export.FileSink{Path: out})
			}
			if toNeo4j {
				cfg := a.Config().Neo4j
				if cfg.URI == "" {
					cfg = export.Neo4jConfigFromEnv()
				}
				sink, err := export.NewNeo4jSink(ctx, cfg)
				if err != nil {
					return err
				}
				defer sink.Close(ctx)
				sinks = append(sinks, sink)
			}
			if socketURL != "" {
				cfg := a.Config().SocketIO
				cfg.URL = socketURL
				pub, err := export.NewSocketIOPublisher(cfg)
				if err != nil {
					return usageError(err)
				}
				sinks = append(sinks, pub)
			}

			doc, err := a.Engine().ExportTo(ctx, sinks...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported snapshot %d (%s): %d nodes, %d mechanisms, checksum %s\n",
				doc.SnapshotVersion, doc.ID, len(doc.Nodes), len(doc.Mechanisms), doc.Checksum)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "Write the snapshot to this file.")
	f.BoolVar(&toNeo4j, "neo4j", false, "Mirror the snapshot into Neo4j.")
	f.StringVar(&socketURL, "socketio", "", "Emit the snapshot to this Socket.IO server URL.")
	return cmd
}
