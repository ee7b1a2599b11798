package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/causalgrid/internal/app"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/query"
)

type queryOptions struct {
	corpus []string
	depth  int
	limit  int
	asJSON bool
}

func (q *queryOptions) options() []query.Option {
	return []query.Option{query.WithMaxDepth(q.depth), query.WithLimit(q.limit)}
}

func newQueryCommand(opts *globalOptions) *cobra.Command {
	qo := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Ask structural questions about the graph",
		Long: `Commands for reachability, path and chain queries over a loaded corpus.

Subcommands:
  descendants  - Nodes downstream of a node
  ancestors    - Nodes upstream of a node
  paths        - Simple paths between two nodes
  strongest    - The path with the largest product of strengths
  chains       - Chains from one scale level to another

Examples:
  causalgrid query descendants minimum_wage --corpus ./corpus
  causalgrid query strongest minimum_wage food_insecurity --corpus ./corpus
  causalgrid query chains structural individual --corpus ./corpus --depth 4`,
	}
	pf := cmd.PersistentFlags()
	pf.StringSliceVarP(&qo.corpus, "corpus", "c", nil, "Corpus file or directory. Repeatable.")
	pf.IntVar(&qo.depth, "depth", 0, "Maximum traversal depth in hops. 0 uses the default.")
	pf.IntVar(&qo.limit, "limit", 0, "Maximum number of results. 0 uses the default.")
	pf.BoolVar(&qo.asJSON, "json", false, "Print results as JSON.")
	_ = cmd.MarkPersistentFlagRequired("corpus")

	// run loads the corpus and hands the app to fn.
	run := func(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd, qo.corpus, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, a, args)
		}
	}

	reach := func(descendants bool) func(*cobra.Command, *app.App, []string) error {
		return func(cmd *cobra.Command, a *app.App, args []string) error {
			find := a.Engine().Ancestors
			if descendants {
				find = a.Engine().Descendants
			}
			res, err := find(cmd.Context(), nodeid.ID(args[0]), qo.options()...)
			if err != nil {
				return err
			}
			if qo.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			for _, n := range res.Nodes {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", n.Depth, n.Node)
			}
			printTruncated(cmd.OutOrStdout(), res.Truncated)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "descendants NODE",
			Short: "Nodes downstream of NODE",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE:  run(reach(true)),
		},
		&cobra.Command{
			Use:   "ancestors NODE",
			Short: "Nodes upstream of NODE",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE:  run(reach(false)),
		},
		&cobra.Command{
			Use:   "paths FROM TO",
			Short: "Simple paths from FROM to TO",
			Args:  usageArgs(cobra.ExactArgs(2)),
			RunE: run(func(cmd *cobra.Command, a *app.App, args []string) error {
				res, err := a.Engine().FindPaths(cmd.Context(), nodeid.ID(args[0]), nodeid.ID(args[1]), qo.options()...)
				if err != nil {
					return err
				}
				if qo.asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				for _, p := range res.Paths {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatValue(p.Gain), joinIDs(p.Nodes))
				}
				printTruncated(cmd.OutOrStdout(), res.Truncated)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "strongest FROM TO",
			Short: "The strongest path from FROM to TO",
			Args:  usageArgs(cobra.ExactArgs(2)),
			RunE: run(func(cmd *cobra.Command, a *app.App, args []string) error {
				res, err := a.Engine().StrongestPath(cmd.Context(), nodeid.ID(args[0]), nodeid.ID(args[1]), qo.options()...)
				if err != nil {
					return err
				}
				if qo.asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "strength %s, gain %s\n%s\n", formatValue(res.Strength), formatValue(res.Gain), joinIDs(res.Nodes))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "chains FROM_SCALE TO_SCALE",
			Short: "Chains from one scale level to another",
			Long:  "Scales are given as 1-5 or by name: structural, institutional, individual, pathway, crisis.",
			Args:  usageArgs(cobra.ExactArgs(2)),
			RunE: run(func(cmd *cobra.Command, a *app.App, args []string) error {
				from, err := model.ParseScale(args[0])
				if err != nil {
					return usageError(err)
				}
				to, err := model.ParseScale(args[1])
				if err != nil {
					return usageError(err)
				}
				res, err := a.Engine().ScaleCrossingChains(cmd.Context(), from, to, qo.options()...)
				if err != nil {
					return err
				}
				if qo.asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				for _, c := range res.Chains {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatValue(c.Gain), joinIDs(c.Nodes))
				}
				printTruncated(cmd.OutOrStdout(), res.Truncated)
				return nil
			}),
		},
	)
	return cmd
}

func joinIDs(ids []nodeid.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

func printTruncated(w io.Writer, truncated bool) {
	if truncated {
		fmt.Fprintln(w, "(results truncated)")
	}
}
