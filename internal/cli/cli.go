package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/causalgrid/internal/app"
	"github.com/specialistvlad/causalgrid/internal/engine"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitValidation = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

// usageArgs turns positional argument errors into usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	logLevel    string
	logFormat   string
	configPath  string
	storePath   string
	traceStdout bool
}

// NewRootCommand builds the command tree. Command output goes to out, logs
// to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "causalgrid",
		Short: "Causal graph of social and structural health determinants",
		Long: `causalgrid loads node and mechanism records from HCL or YAML files,
validates them as one causal graph, and answers questions about it:
what an intervention changes, what lies up- or downstream of a node,
and which chains connect structural causes to individual outcomes.

Examples:
  causalgrid validate ./corpus
  causalgrid simulate ./corpus --intervention raise_wage
  causalgrid query descendants minimum_wage --corpus ./corpus
  causalgrid serve ./corpus --port 8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML settings file.")
	pf.StringVar(&opts.storePath, "store-path", "", "Badger directory for node history. In-memory when empty.")
	pf.BoolVar(&opts.traceStdout, "trace-stdout", false, "Write OpenTelemetry spans to the log output.")

	root.AddCommand(
		newValidateCommand(opts),
		newSimulateCommand(opts),
		newQueryCommand(opts),
		newExportCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// Execute runs the command line and maps failures onto ExitError codes.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case errors.Is(err, engine.ErrValidationFailed):
		return &ExitError{Code: ExitValidation, Message: err.Error()}
	case strings.HasPrefix(err.Error(), "unknown command"), strings.HasPrefix(err.Error(), "required flag"):
		return usageError(err)
	default:
		return &ExitError{Code: ExitFailure, Message: err.Error()}
	}
}

// buildConfig layers defaults, the settings file and explicitly set flags,
// in that order, and validates the result.
func (o *globalOptions) buildConfig(cmd *cobra.Command, paths []string, apply func(*app.Config)) (*app.Config, error) {
	cfg := app.DefaultConfig()
	if o.configPath != "" {
		settings, err := app.LoadSettings(o.configPath)
		if err != nil {
			return nil, usageError(err)
		}
		settings.Apply(&cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || o.configPath == "" {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") || o.configPath == "" {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("store-path") {
		cfg.StorePath = o.storePath
	}
	if flags.Changed("trace-stdout") {
		cfg.TraceStdout = o.traceStdout
	}
	cfg.Paths = paths
	if apply != nil {
		apply(&cfg)
	}

	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError(err)
	}
	return validated, nil
}

// openApp builds the app with logs on the command's error stream.
func (o *globalOptions) openApp(cmd *cobra.Command, paths []string, apply func(*app.Config)) (*app.App, error) {
	cfg, err := o.buildConfig(cmd, paths, apply)
	if err != nil {
		return nil, err
	}
	return app.NewApp(cmd.ErrOrStderr(), cfg)
}

// loadApp opens the app and loads its corpus. The report of a failed load
// is printed before the error is returned.
func (o *globalOptions) loadApp(cmd *cobra.Command, paths []string, apply func(*app.Config)) (*app.App, error) {
	a, err := o.openApp(cmd, paths, apply)
	if err != nil {
		return nil, err
	}
	report, err := a.Load(a.Context())
	if err != nil {
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		_ = a.Close()
		return nil, err
	}
	return a, nil
}
