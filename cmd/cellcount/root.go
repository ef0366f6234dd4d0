package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cellcount/cellcount/internal/app"
	"github.com/cellcount/cellcount/internal/config"
	"github.com/cellcount/cellcount/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootOptions holds the persistent flags and the state built from them.
type rootOptions struct {
	configFile string
	dataDir    string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the cellcount command tree writing to stdout and
// stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "cellcount",
		Short: "cellcount - immune cell count loader and reports",
		Long: `cellcount loads per-sample immune cell counts from a CSV file into a
normalized SQLite database and reports on them.

  load         rebuild the database from the input CSV
  frequencies  write the per-sample relative frequency table
  cohort       count cohort samples by project, response and sex
  preview      show row counts and the first rows of every table

Configuration is read from --config (YAML or JSON), then CELLCOUNT_*
environment variables (a .env file in the working directory is honored),
then command line flags.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	rc.SetOut(stdout)
	rc.SetErr(stderr)

	flags := rc.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Base directory for the database and reports")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rc.AddCommand(
		newLoadCommand(opts),
		newFrequenciesCommand(opts),
		newCohortCommand(opts),
		newPreviewCommand(opts),
	)
	return rc
}

// setup loads configuration from file, environment, and command line flags,
// then builds the logger.
func (o *rootOptions) setup() error {
	var err error
	if o.configFile != "" {
		o.cfg, err = config.LoadFromFile(o.configFile)
		if err != nil {
			return err
		}
	} else {
		o.cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(o.cfg)

	if o.dataDir != "" {
		o.cfg.DataDir = o.dataDir
	}

	o.logger, err = logging.New(logging.Options{
		Level:       o.cfg.Log.Level,
		Verbose:     o.verbose,
		Development: o.cfg.Log.Development,
	})
	return err
}

// run opens the App, runs fn and closes the App on every path. Failures are
// logged with their category and code.
func (o *rootOptions) run(ctx context.Context, name string, fn func(context.Context, *app.App) error) error {
	logger := o.logger.With(zap.String("command", name))

	a, err := app.New(ctx, o.cfg, logger, o.stdout)
	if err != nil {
		logger.Error("command failed", logging.ErrorFields(err)...)
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		logger.Error("command failed", logging.ErrorFields(err)...)
		return err
	}
	return nil
}
