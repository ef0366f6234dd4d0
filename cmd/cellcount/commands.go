package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cellcount/cellcount/internal/app"
	"github.com/cellcount/cellcount/internal/cohort"
	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/cellcount/cellcount/internal/loader"
	"github.com/spf13/cobra"
)

func newLoadCommand(opts *rootOptions) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Rebuild the database from the input CSV",
		Long: `
Drops and recreates the projects, subjects and cell_counts tables, then loads
every record of the input CSV in a single transaction. Records whose subject
disagrees with an earlier record, duplicate samples and records the database
rejects are skipped and listed in load_summary.json.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			// A flag path is relative to the working directory, not the data
			// directory.
			if input != "" {
				abs, err := filepath.Abs(input)
				if err != nil {
					return cerrors.NewConfigError(cerrors.CodeInvalidConfig, "resolve input path "+input)
				}
				opts.cfg.Input.Path = abs
			}
			return opts.run(c.Context(), "load", func(ctx context.Context, a *app.App) error {
				summary, err := a.Load(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(opts.stdout, "Loaded %d of %d records (%d projects, %d subjects); %d subject conflicts, %d duplicate samples, %d rejected.\n",
					summary.SamplesInserted, summary.Records,
					summary.ProjectsCreated, summary.SubjectsCreated,
					summary.Count(loader.OutcomeSubjectConflict),
					summary.Count(loader.OutcomeDuplicateSample),
					summary.Count(loader.OutcomeRejected))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input CSV file, relative to the working directory")
	return cmd
}

func newFrequenciesCommand(opts *rootOptions) *cobra.Command {
	var printTable bool
	cmd := &cobra.Command{
		Use:   "frequencies",
		Short: "Write the per-sample relative frequency table",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			if printTable {
				opts.cfg.Report.Print = true
			}
			return opts.run(c.Context(), "frequencies", func(ctx context.Context, a *app.App) error {
				rows, err := a.Frequencies(ctx)
				if err != nil {
					return err
				}
				if !printTable {
					fmt.Fprintf(opts.stdout, "Cell frequencies for %d samples written to %s.\n", len(rows), opts.cfg.FrequencyPath())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&printTable, "print", "p", false, "Also print the table to stdout")
	return cmd
}

func newCohortCommand(opts *rootOptions) *cobra.Command {
	var (
		sampleType string
		condition  string
		treatment  string
		timepoint  int64
		groupBy    []string
	)
	cmd := &cobra.Command{
		Use:   "cohort",
		Short: "Count cohort samples by project, response and sex",
		Long: `
Selects samples of one sample type taken at one time point from subjects with
one condition and treatment, and prints how many fall in each group.
Subjects with no recorded response are grouped as "unknown".
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			flags := c.Flags()
			if flags.Changed("sample-type") {
				opts.cfg.Cohort.SampleType = sampleType
			}
			if flags.Changed("condition") {
				opts.cfg.Cohort.Condition = condition
			}
			if flags.Changed("treatment") {
				opts.cfg.Cohort.Treatment = treatment
			}
			if flags.Changed("time") {
				opts.cfg.Cohort.TimeFromTreatmentStart = timepoint
			}
			if flags.Changed("group-by") {
				opts.cfg.Cohort.GroupBy = groupBy
			}
			return opts.run(c.Context(), "cohort", func(ctx context.Context, a *app.App) error {
				groupBys, err := a.GroupBys()
				if err != nil {
					return err
				}
				if len(groupBys) == 0 {
					groupBys = []cohort.GroupBy{cohort.GroupNone}
				}
				_, err = a.Cohort(ctx, a.Filter(), groupBys)
				return err
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&sampleType, "sample-type", "", "Sample type, e.g. PBMC")
	flags.StringVar(&condition, "condition", "", "Subject condition, e.g. melanoma")
	flags.StringVar(&treatment, "treatment", "", "Subject treatment, e.g. miraclib")
	flags.Int64Var(&timepoint, "time", 0, "Time from treatment start (0 is baseline)")
	flags.StringSliceVar(&groupBy, "group-by", nil, "Dimensions to group by: project, response, sex or none")
	return cmd
}

func newPreviewCommand(opts *rootOptions) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show row counts and the first rows of every table",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return opts.run(c.Context(), "preview", func(ctx context.Context, a *app.App) error {
				limit := opts.cfg.Report.PreviewRows
				if c.Flags().Changed("rows") {
					limit = rows
				}
				return a.Preview(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 5, "Rows to show per table")
	return cmd
}
