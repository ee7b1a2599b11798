package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/causalgrid/internal/app"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/propagation"
)

type simulateOptions struct {
	intervention  string
	deltas        []string
	uncertainty   string
	samples       int
	seed          uint64
	damping       float64
	epsilon       float64
	maxIterations int
	timeout       time.Duration
	topK          int
	asJSON        bool
}

func newSimulateCommand(opts *globalOptions) *cobra.Command {
	so := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate PATH...",
		Short: "Propagate an intervention through the graph",
		Long: `Load a corpus and propagate an intervention to every downstream node.

The intervention is either one declared in the corpus (--intervention) or
built from --delta flags of the form node_id=value.

Examples:
  causalgrid simulate ./corpus --intervention raise_wage
  causalgrid simulate ./corpus --delta minimum_wage=2 --uncertainty montecarlo --samples 1000`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (so.intervention == "") == (len(so.deltas) == 0) {
				return usageError(fmt.Errorf("exactly one of --intervention or --delta is required"))
			}
			adhoc, err := parseDeltas(so.deltas)
			if err != nil {
				return usageError(err)
			}

			mode, err := propagation.ParseMode(so.uncertainty)
			if err != nil {
				return usageError(err)
			}
			a, err := opts.loadApp(cmd, args, func(cfg *app.Config) {
				so.apply(cmd, mode, &cfg.Simulation)
			})
			if err != nil {
				return err
			}
			defer a.Close()

			iv := adhoc
			if so.intervention != "" {
				if iv, err = a.Engine().Intervention(so.intervention); err != nil {
					return err
				}
			}
			report, err := a.Engine().Simulate(cmd.Context(), iv)
			if err != nil {
				return err
			}
			if so.asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printEffects(cmd.OutOrStdout(), report)
			return nil
		},
	}

	f := cmd.Flags()
	d := propagation.DefaultOptions()
	f.StringVarP(&so.intervention, "intervention", "i", "", "Name of an intervention declared in the corpus.")
	f.StringArrayVarP(&so.deltas, "delta", "d", nil, "Ad hoc perturbation node_id=value. Repeatable.")
	f.StringVar(&so.uncertainty, "uncertainty", string(d.Uncertainty), "Uncertainty mode: none, interval or montecarlo.")
	f.IntVar(&so.samples, "samples", d.Samples, "Monte Carlo sample count.")
	f.Uint64Var(&so.seed, "seed", d.Seed, "Monte Carlo seed.")
	f.Float64Var(&so.damping, "damping", d.Damping, "Relaxation damping factor in (0, 1].")
	f.Float64Var(&so.epsilon, "epsilon", d.Epsilon, "Convergence threshold.")
	f.IntVar(&so.maxIterations, "max-iterations", d.MaxIterations, "Iteration cap.")
	f.DurationVar(&so.timeout, "timeout", d.Timeout, "Wall-clock limit for one simulation.")
	f.IntVar(&so.topK, "top-k", d.TopK, "Contributing paths reported per node. 0 disables path attribution.")
	f.BoolVar(&so.asJSON, "json", false, "Print the effect report as JSON.")
	return cmd
}

// apply copies the explicitly set flags onto o so that settings-file values
// survive when a flag is left at its default.
func (so *simulateOptions) apply(cmd *cobra.Command, mode propagation.Mode, o *propagation.Options) {
	f := cmd.Flags()
	if f.Changed("uncertainty") {
		o.Uncertainty = mode
	}
	if f.Changed("samples") {
		o.Samples = so.samples
	}
	if f.Changed("seed") {
		o.Seed = so.seed
	}
	if f.Changed("damping") {
		o.Damping = so.damping
	}
	if f.Changed("epsilon") {
		o.Epsilon = so.epsilon
	}
	if f.Changed("max-iterations") {
		o.MaxIterations = so.maxIterations
	}
	if f.Changed("timeout") {
		o.Timeout = so.timeout
	}
	if f.Changed("top-k") {
		o.TopK = so.topK
	}
}

// parseDeltas reads node_id=value pairs into an ad hoc intervention.
func parseDeltas(raw []string) (*model.Intervention, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	iv := &model.Intervention{Name: "adhoc"}
	for _, r := range raw {
		id, value, ok := strings.Cut(r, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid --delta %q: want node_id=value", r)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --delta %q: %w", r, err)
		}
		iv.Perturbations = append(iv.Perturbations, model.Perturbation{NodeID: nodeid.ID(strings.TrimSpace(id)), Delta: v})
	}
	return iv, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func printEffects(w io.Writer, r *propagation.EffectReport) {
	state := "converged"
	switch {
	case r.TimedOut:
		state = "timed out"
	case !r.Converged:
		state = "did not converge"
	}
	fmt.Fprintf(w, "%s: %s after %d iterations (snapshot %d, mode %s)\n", r.Intervention, state, r.Iterations, r.SnapshotVersion, r.Mode)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tDELTA\tCLAMPED\tLOW\tHIGH\tSTATUS")
	for _, e := range r.Effects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Node, formatValue(e.Delta), formatValue(e.Clamped), formatValue(e.Low), formatValue(e.High), e.Status)
	}
	tw.Flush()

	if len(r.Diverged) > 0 {
		fmt.Fprintf(w, "diverged: %v\n", r.Diverged)
	}
	for _, e := range r.Effects {
		if len(e.Paths) == 0 || len(e.Paths[0].Nodes) < 2 {
			continue
		}
		top := e.Paths[0]
		ids := make([]string, len(top.Nodes))
		for i, id := range top.Nodes {
			ids[i] = string(id)
		}
		fmt.Fprintf(w, "%s via %s (%s)\n", e.Node, strings.Join(ids, " -> "), formatValue(top.Effect))
	}
}
