// Package loader normalizes the flat record stream into projects, subjects
// and cell_counts rows.
//
// A load runs in a single transaction. Each record is processed by Step,
// which returns an explicit RecordOutcome: subject conflicts, duplicate
// samples and other constraint rejections skip that record only and are
// collected into the Summary. Malformed numbers and store failures are fatal
// and roll the whole load back.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/cellcount/cellcount/internal/observability"
	"github.com/cellcount/cellcount/internal/source"
	"github.com/cellcount/cellcount/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Loader writes records into a freshly initialized schema.
type Loader struct {
	db      *sqlx.DB
	logger  *zap.Logger
	metrics *observability.LoadMetrics
	now     func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger recoverable outcomes are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records per-record outcomes and load totals.
func WithMetrics(m *observability.LoadMetrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// New creates a Loader over db. The schema must already exist.
func New(db *sqlx.DB, opts ...Option) *Loader {
	l := &Loader{
		db:     db,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load consumes src to the end and commits once. The returned Summary lists
// every record that was skipped. On a fatal error nothing is committed.
func (l *Loader) Load(ctx context.Context, src source.Source) (_ *Summary, retErr error) {
	started := l.now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Outcomes:  []RecordOutcome{},
	}
	logger := l.logger.With(zap.String("run_id", summary.RunID))

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, cerrors.NewStorageError(cerrors.CodeStoreUnavailable, "begin load transaction", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	dg := newDigest()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		dg.add(rec)
		summary.Records++

		outcome, err := l.Step(ctx, tx, rec)
		if err != nil {
			logger.Error("load aborted", zap.Int("line", rec.Line), zap.String("sample", rec.Sample), zap.Error(err))
			return nil, err
		}
		l.metrics.RecordOutcome(string(outcome.Kind))

		if outcome.ProjectCreated {
			summary.ProjectsCreated++
		}
		if outcome.SubjectCreated {
			summary.SubjectsCreated++
		}
		if !outcome.Failed() {
			summary.SamplesInserted++
			continue
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		logOutcome(logger, outcome)
	}

	if err := tx.Commit(); err != nil {
		return nil, cerrors.NewStorageError(cerrors.CodeWriteFailed, "commit load transaction", err)
	}

	finished := l.now()
	summary.InputDigest = dg.String()
	summary.Duration = finished.Sub(started)
	l.metrics.ObserveLoad(summary.ProjectsCreated, summary.SubjectsCreated, summary.SamplesInserted, summary.Duration, finished)

	logger.Info("load committed",
		zap.Int("records", summary.Records),
		zap.Int("projects", summary.ProjectsCreated),
		zap.Int("subjects", summary.SubjectsCreated),
		zap.Int("samples", summary.SamplesInserted),
		zap.Int("subject_conflicts", summary.Count(OutcomeSubjectConflict)),
		zap.Int("duplicate_samples", summary.Count(OutcomeDuplicateSample)),
		zap.Int("rejected", summary.Count(OutcomeRejected)),
		zap.String("input_digest", summary.InputDigest),
		zap.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}

// Step loads a single record within tx. Integrity failures are reported in
// the returned outcome; the error is non-nil only for fatal conditions.
func (l *Loader) Step(ctx context.Context, tx *sqlx.Tx, rec source.Record) (RecordOutcome, error) {
	incoming, sample, err := parseRecord(rec)
	if err != nil {
		return RecordOutcome{}, err
	}

	out := RecordOutcome{
		Line:      rec.Line,
		SampleID:  rec.Sample,
		SubjectID: rec.Subject,
		Kind:      OutcomeInserted,
	}

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO projects (project_id) VALUES (?)`, incoming.ProjectID)
	if err != nil {
		if store.IsConstraintViolation(err) {
			return reject(out, rec, "insert project", err), nil
		}
		return RecordOutcome{}, cerrors.NewStorageError(cerrors.CodeWriteFailed, fmt.Sprintf("line %d: insert project", rec.Line), err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		out.ProjectCreated = true
	}

	stored, found, err := lookupSubject(ctx, tx, incoming.SubjectID)
	if err != nil {
		return RecordOutcome{}, cerrors.NewStorageError(cerrors.CodeWriteFailed, fmt.Sprintf("line %d: look up subject", rec.Line), err)
	}
	if found {
		if stored != incoming {
			out.Kind = OutcomeSubjectConflict
			out.Stored = &stored
			out.Incoming = &incoming
			out.Record = &rec
			out.Err = cerrors.NewIntegrityError(cerrors.CodeSubjectConflict,
				fmt.Sprintf("subject %s: stored %s, incoming %s", incoming.SubjectID, stored, incoming), nil).
				WithDetails(map[string]interface{}{
					"line":     rec.Line,
					"stored":   stored,
					"incoming": incoming,
				})
			out.Message = out.Err.Error()
			return out, nil
		}
	} else {
		if err := insertSubject(ctx, tx, incoming); err != nil {
			if store.IsConstraintViolation(err) {
				return reject(out, rec, "insert subject", err), nil
			}
			return RecordOutcome{}, cerrors.NewStorageError(cerrors.CodeWriteFailed, fmt.Sprintf("line %d: insert subject", rec.Line), err)
		}
		out.SubjectCreated = true
	}

	if err := insertSample(ctx, tx, sample); err != nil {
		switch store.ClassifyConstraint(err) {
		case store.ConstraintNone:
			return RecordOutcome{}, cerrors.NewStorageError(cerrors.CodeWriteFailed, fmt.Sprintf("line %d: insert cell counts", rec.Line), err)
		case store.ConstraintUnique:
			out.Kind = OutcomeDuplicateSample
			out.Record = &rec
			out.Err = cerrors.NewIntegrityError(cerrors.CodeDuplicateSample,
				fmt.Sprintf("failed to insert cell_counts for sample %s", sample.SampleID), err).
				WithDetails(map[string]interface{}{"line": rec.Line, "record": rec})
			out.Message = out.Err.Error()
			return out, nil
		default:
			return reject(out, rec, "insert cell counts", err), nil
		}
	}
	return out, nil
}

func reject(out RecordOutcome, rec source.Record, op string, cause error) RecordOutcome {
	out.Kind = OutcomeRejected
	out.Record = &rec
	out.Err = cerrors.NewIntegrityError(cerrors.CodeConstraintViolation,
		fmt.Sprintf("%s for sample %s", op, rec.Sample), cause).
		WithDetails(map[string]interface{}{
			"line":       rec.Line,
			"constraint": string(store.ClassifyConstraint(cause)),
			"record":     rec,
		})
	out.Message = out.Err.Error()
	return out
}

func logOutcome(logger *zap.Logger, o RecordOutcome) {
	fields := []zap.Field{
		zap.Int("line", o.Line),
		zap.String("sample", o.SampleID),
		zap.String("subject", o.SubjectID),
		zap.String("outcome", string(o.Kind)),
		zap.Error(o.Err),
	}
	if o.Stored != nil {
		fields = append(fields, zap.Stringer("stored", o.Stored), zap.Stringer("incoming", o.Incoming))
	} else if o.Record != nil {
		fields = append(fields, zap.Any("record", o.Record))
	}
	logger.Warn("record skipped", fields...)
}

type subjectRow struct {
	SubjectID string         `db:"subject_id"`
	Condition string         `db:"condition"`
	Age       int64          `db:"age"`
	Sex       string         `db:"sex"`
	Treatment string         `db:"treatment"`
	Response  sql.NullString `db:"response"`
	ProjectID string         `db:"project_id"`
}

func lookupSubject(ctx context.Context, tx *sqlx.Tx, subjectID string) (Subject, bool, error) {
	var row subjectRow
	err := tx.GetContext(ctx, &row, `
		SELECT subject_id, condition, age, sex, treatment, response, project_id
		FROM subjects WHERE subject_id = ?`, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, false, nil
	}
	if err != nil {
		return Subject{}, false, err
	}
	return Subject{
		SubjectID: row.SubjectID,
		Condition: row.Condition,
		Age:       row.Age,
		Sex:       row.Sex,
		Treatment: row.Treatment,
		Response:  row.Response.String,
		ProjectID: row.ProjectID,
	}, true, nil
}

func insertSubject(ctx context.Context, tx *sqlx.Tx, s Subject) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO subjects (subject_id, condition, age, sex, treatment, response, project_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.SubjectID, s.Condition, s.Age, s.Sex, s.Treatment, nullIfEmpty(s.Response), s.ProjectID)
	return err
}

func insertSample(ctx context.Context, tx *sqlx.Tx, s Sample) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cell_counts (
			sample_id, sample_type, time_from_treatment_start,
			b_cell, cd8_t_cell, cd4_t_cell, nk_cell, monocyte, subject_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SampleID, s.SampleType, s.TimeFromTreatmentStart,
		s.Counts.BCell, s.Counts.CD8TCell, s.Counts.CD4TCell, s.Counts.NKCell, s.Counts.Monocyte,
		s.SubjectID)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
