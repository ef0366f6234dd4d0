package cohort

import (
	"context"
	"fmt"
	"io"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/jmoiron/sqlx"
)

// GroupCount is the number of cohort samples sharing one dimension value.
type GroupCount struct {
	Value string `db:"value" json:"value"`
	Count int64  `db:"sample_count" json:"sample_count"`
}

// SampleRow is one cohort sample when no grouping is requested.
type SampleRow struct {
	SampleID  string `db:"sample_id" json:"sample_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	ProjectID string `db:"project_id" json:"project_id"`
	BCell     int64  `db:"b_cell" json:"b_cell"`
	CD8TCell  int64  `db:"cd8_t_cell" json:"cd8_t_cell"`
	CD4TCell  int64  `db:"cd4_t_cell" json:"cd4_t_cell"`
	NKCell    int64  `db:"nk_cell" json:"nk_cell"`
	Monocyte  int64  `db:"monocyte" json:"monocyte"`
}

// Result holds either grouped counts or raw samples, depending on Dimension.
type Result struct {
	Filter    Filter       `json:"filter"`
	Dimension GroupBy      `json:"dimension,omitempty"`
	Groups    []GroupCount `json:"groups,omitempty"`
	Samples   []SampleRow  `json:"samples,omitempty"`
}

// Total returns the number of samples the result covers.
func (r *Result) Total() int64 {
	if r.Dimension == GroupNone {
		return int64(len(r.Samples))
	}
	var n int64
	for _, g := range r.Groups {
		n += g.Count
	}
	return n
}

// Aggregator runs cohort queries. It holds no filter state, so one
// Aggregator can serve any number of filters.
type Aggregator struct {
	db sqlx.QueryerContext
}

// New creates an Aggregator reading from db.
func New(db sqlx.QueryerContext) *Aggregator {
	return &Aggregator{db: db}
}

// Run executes the cohort query for f broken down by g.
func (a *Aggregator) Run(ctx context.Context, f Filter, g GroupBy) (*Result, error) {
	query, args, err := BuildQuery(f, g)
	if err != nil {
		return nil, err
	}

	res := &Result{Filter: f, Dimension: g}
	if g == GroupNone {
		res.Samples = []SampleRow{}
		if err := sqlx.SelectContext(ctx, a.db, &res.Samples, query, args...); err != nil {
			return nil, cerrors.NewQueryError("select cohort samples", err)
		}
		return res, nil
	}

	res.Groups = []GroupCount{}
	if err := sqlx.SelectContext(ctx, a.db, &res.Groups, query, args...); err != nil {
		return nil, cerrors.NewQueryError(fmt.Sprintf("count cohort by %s", g), err)
	}
	return res, nil
}

// WriteSentences renders res one sentence per line. Grouped results give
// "For <dimension> of <value>, the sample_count is <n>."; ungrouped results
// give one sentence per sample with its total cell count.
func WriteSentences(w io.Writer, res *Result) error {
	if res.Dimension == GroupNone {
		for _, s := range res.Samples {
			total := s.BCell + s.CD8TCell + s.CD4TCell + s.NKCell + s.Monocyte
			if _, err := fmt.Fprintf(w, "For sample of %s, the total_count is %d.\n", s.SampleID, total); err != nil {
				return err
			}
		}
		return nil
	}
	for _, g := range res.Groups {
		if _, err := fmt.Fprintf(w, "For %s of %s, the sample_count is %d.\n", res.Dimension, g.Value, g.Count); err != nil {
			return err
		}
	}
	return nil
}
