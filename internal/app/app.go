// Package app wires configuration, the store, reports and archiving into the
// operations exposed by the cellcount commands.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cellcount/cellcount/internal/archive"
	"github.com/cellcount/cellcount/internal/cohort"
	"github.com/cellcount/cellcount/internal/config"
	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/cellcount/cellcount/internal/frequency"
	"github.com/cellcount/cellcount/internal/loader"
	"github.com/cellcount/cellcount/internal/observability"
	"github.com/cellcount/cellcount/internal/preview"
	"github.com/cellcount/cellcount/internal/schema"
	"github.com/cellcount/cellcount/internal/source"
	"github.com/cellcount/cellcount/internal/storage"
	"github.com/cellcount/cellcount/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// App holds the resources shared by one command invocation.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	stdout  io.Writer
	db      *sqlx.DB
	metrics *observability.LoadMetrics
	reports *observability.ReportMetrics
	archive *archive.Archive
}

// New resolves and validates cfg, creates the working directories and opens
// the store. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stdout == nil {
		stdout = io.Discard
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.Database.Path, store.Options{BusyTimeout: cfg.Database.BusyTimeout})
	if err != nil {
		return nil, err
	}

	metrics := observability.NewLoadMetrics()
	a := &App{
		cfg:     cfg,
		logger:  logger,
		stdout:  stdout,
		db:      db,
		metrics: metrics,
		reports: observability.NewReportMetrics(metrics.Registry()),
	}

	if cfg.Archive.Enabled {
		objects, err := storage.New(ctx, storage.Options{
			Type:   cfg.Archive.Type,
			Path:   cfg.Archive.Path,
			Bucket: cfg.Archive.S3.Bucket,
			S3: storage.S3Config{
				Region:       cfg.Archive.S3.Region,
				Endpoint:     cfg.Archive.S3.Endpoint,
				UsePathStyle: cfg.Archive.S3.Endpoint != "",
			},
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		a.archive = archive.New(objects)
	}

	logger.Debug("app ready",
		zap.String("database", cfg.Database.Path),
		zap.String("report_dir", cfg.Report.Dir),
		zap.Bool("archive", cfg.Archive.Enabled),
	)
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.db.Close()
}

// DB returns the store handle.
func (a *App) DB() *sqlx.DB {
	return a.db
}

// Metrics returns the load metrics of this invocation.
func (a *App) Metrics() *observability.LoadMetrics {
	return a.metrics
}

// Load rebuilds the schema and loads the configured input. The summary is
// written as JSON to the report directory, metrics to the configured
// textfile, and the summary is archived when archiving is enabled.
func (a *App) Load(ctx context.Context) (*loader.Summary, error) {
	// Open the input first so a missing file leaves the existing data alone.
	src, err := source.Open(a.cfg.Input.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := schema.Initialize(ctx, a.db); err != nil {
		return nil, err
	}

	l := loader.New(a.db, loader.WithLogger(a.logger), loader.WithMetrics(a.metrics))
	summary, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	summaryPath := a.cfg.SummaryPath()
	if err := writeJSON(summaryPath, summary); err != nil {
		return nil, err
	}
	if err := a.writeMetrics("load"); err != nil {
		return nil, err
	}
	if err := a.archiveReports(ctx, summary.RunID, summaryPath); err != nil {
		return nil, err
	}
	return summary, nil
}

// Frequencies computes the relative frequency table and writes it to the
// configured report file, echoing it to stdout when report printing is on.
func (a *App) Frequencies(ctx context.Context) ([]frequency.SampleFrequency, error) {
	path := a.cfg.FrequencyPath()
	f, err := os.Create(path)
	if err != nil {
		return nil, cerrors.NewStorageError(cerrors.CodeWriteFailed, "create "+path, err)
	}

	var sink io.Writer = f
	if a.cfg.Report.Print {
		sink = io.MultiWriter(f, a.stdout)
	}
	start := time.Now()
	rows, err := frequency.Compute(ctx, a.db, frequency.WithSink(sink))
	a.reports.Observe("frequency", len(rows), time.Since(start), err)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerrors.NewStorageError(cerrors.CodeWriteFailed, "close "+path, cerr)
	}
	if err != nil {
		return nil, err
	}
	if err := a.writeMetrics("frequencies"); err != nil {
		return nil, err
	}

	a.logger.Info("frequencies written", zap.String("path", path), zap.Int("samples", len(rows)))
	if err := a.archiveReports(ctx, a.LastRunID(), path); err != nil {
		return nil, err
	}
	return rows, nil
}

// LastRunID returns the run ID recorded in the load summary, so reports are
// archived next to the load that produced their data. A fresh ID is returned
// when no readable summary exists.
func (a *App) LastRunID() string {
	data, err := os.ReadFile(a.cfg.SummaryPath())
	if err != nil {
		return uuid.NewString()
	}
	var summary struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(data, &summary); err != nil || summary.RunID == "" {
		a.logger.Warn("load summary unreadable, using a new run id", zap.String("path", a.cfg.SummaryPath()))
		return uuid.NewString()
	}
	return summary.RunID
}

// Filter returns the configured cohort filter.
func (a *App) Filter() cohort.Filter {
	c := a.cfg.Cohort
	return cohort.Filter{
		SampleType:             c.SampleType,
		Condition:              c.Condition,
		Treatment:              c.Treatment,
		TimeFromTreatmentStart: c.TimeFromTreatmentStart,
	}
}

// GroupBys parses the configured cohort breakdowns.
func (a *App) GroupBys() ([]cohort.GroupBy, error) {
	out := make([]cohort.GroupBy, 0, len(a.cfg.Cohort.GroupBy))
	for _, s := range a.cfg.Cohort.GroupBy {
		g, err := cohort.ParseGroupBy(s)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Cohort prints the filter banner and one block of sentences per breakdown.
func (a *App) Cohort(ctx context.Context, f cohort.Filter, groupBys []cohort.GroupBy) ([]*cohort.Result, error) {
	if _, err := fmt.Fprintln(a.stdout, f.Describe()); err != nil {
		return nil, cerrors.NewInternalError("write cohort banner", err)
	}

	agg := cohort.New(a.db)
	results := make([]*cohort.Result, 0, len(groupBys))
	for _, g := range groupBys {
		start := time.Now()
		res, err := agg.Run(ctx, f, g)
		rows := 0
		if res != nil {
			rows = len(res.Groups) + len(res.Samples)
		}
		a.reports.Observe(reportName(g), rows, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if err := cohort.WriteSentences(a.stdout, res); err != nil {
			return nil, cerrors.NewInternalError("write cohort sentences", err)
		}
		a.logger.Debug("cohort computed", zap.String("group_by", string(g)), zap.Int64("samples", res.Total()))
		results = append(results, res)
	}
	if err := a.writeMetrics("cohort"); err != nil {
		return nil, err
	}
	return results, nil
}

func reportName(g cohort.GroupBy) string {
	if g == cohort.GroupNone {
		return "cohort"
	}
	return "cohort:" + string(g)
}

// Preview prints row counts and the first limit rows of every table.
func (a *App) Preview(ctx context.Context, limit int) error {
	start := time.Now()
	rendered, err := preview.Write(ctx, a.db, a.stdout, limit)
	a.reports.Observe("preview", rendered, time.Since(start), err)
	if err != nil {
		return err
	}
	return a.writeMetrics("preview")
}

// writeMetrics writes the registry to the textfile of command.
func (a *App) writeMetrics(command string) error {
	path := MetricsPath(a.cfg.Metrics.TextfilePath, command)
	if err := a.metrics.WriteTextfile(path); err != nil {
		return cerrors.NewStorageError(cerrors.CodeWriteFailed, "write metrics textfile", err)
	}
	return nil
}

func (a *App) archiveReports(ctx context.Context, runID string, paths ...string) error {
	if a.archive == nil {
		return nil
	}
	for _, p := range paths {
		objectPath, err := a.archive.Put(ctx, runID, p)
		if err != nil {
			return err
		}
		a.logger.Info("report archived", zap.String("run_id", runID), zap.String("object", objectPath))
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cerrors.NewInternalError("encode "+path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return cerrors.NewStorageError(cerrors.CodeWriteFailed, "write "+path, err)
	}
	return nil
}

// MetricsPath returns the textfile a command writes its metrics to. Load
// writes base itself; other commands insert "_<command>" before the
// extension, so cellcount.prom becomes cellcount_cohort.prom.
func MetricsPath(base, command string) string {
	if base == "" || command == "load" {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + command + ext
}
