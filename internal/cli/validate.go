package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/causalgrid/internal/validation"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate PATH...",
		Short: "Load a corpus and report validation findings",
		Long: `Load every .hcl, .yaml and .yml file under the given paths as one graph
and run the validation engine over it.

Exits with status 3 when the report has errors. Warnings never fail.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd, args, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			report, loadErr := a.Load(a.Context())
			if report == nil {
				return loadErr
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			return loadErr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON.")
	return cmd
}

func printReport(w io.Writer, report *validation.Report) {
	for _, f := range report.Errors {
		fmt.Fprintln(w, f.String())
	}
	for _, f := range report.Warnings {
		fmt.Fprintln(w, f.String())
	}
	fmt.Fprintf(w, "%d errors, %d warnings\n", len(report.Errors), len(report.Warnings))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
