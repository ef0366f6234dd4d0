// Package frequency computes the relative frequency of each cell population
// within every sample.
package frequency

import (
	"context"
	"io"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/jmoiron/sqlx"
)

// SampleFrequency is one sample's total count and the share of each
// population, as a percentage rounded to two decimals.
type SampleFrequency struct {
	Sample     string  `json:"sample"`
	TotalCount int64   `json:"total_count"`
	BCell      float64 `json:"b_cell_perc"`
	CD8TCell   float64 `json:"cd8_t_cell_perc"`
	CD4TCell   float64 `json:"cd4_t_cell_perc"`
	NKCell     float64 `json:"nk_cell_perc"`
	Monocyte   float64 `json:"monocyte_perc"`
}

// Percentages returns the five percentages in column order.
func (f SampleFrequency) Percentages() [5]float64 {
	return [5]float64{f.BCell, f.CD8TCell, f.CD4TCell, f.NKCell, f.Monocyte}
}

type countsRow struct {
	SampleID string `db:"sample_id"`
	BCell    int64  `db:"b_cell"`
	CD8TCell int64  `db:"cd8_t_cell"`
	CD4TCell int64  `db:"cd4_t_cell"`
	NKCell   int64  `db:"nk_cell"`
	Monocyte int64  `db:"monocyte"`
}

type options struct {
	sink io.Writer
}

// Option configures Compute.
type Option func(*options)

// WithSink writes the fixed-width table to w as well as returning it.
func WithSink(w io.Writer) Option {
	return func(o *options) { o.sink = w }
}

// Compute reads every sample in identifier order and derives its
// frequencies. A sample whose total is zero reports 0.0 for every population.
func Compute(ctx context.Context, db sqlx.QueryerContext, opts ...Option) ([]SampleFrequency, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var rows []countsRow
	err := sqlx.SelectContext(ctx, db, &rows, `
		SELECT sample_id, b_cell, cd8_t_cell, cd4_t_cell, nk_cell, monocyte
		FROM cell_counts
		ORDER BY sample_id`)
	if err != nil {
		return nil, cerrors.NewQueryError("select cell counts", err)
	}

	results := make([]SampleFrequency, 0, len(rows))
	for _, r := range rows {
		results = append(results, FromCounts(r.SampleID, r.BCell, r.CD8TCell, r.CD4TCell, r.NKCell, r.Monocyte))
	}

	if o.sink != nil {
		if err := WriteTable(o.sink, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// FromCounts builds the frequency record for one sample.
func FromCounts(sample string, bCell, cd8TCell, cd4TCell, nkCell, monocyte int64) SampleFrequency {
	total := bCell + cd8TCell + cd4TCell + nkCell + monocyte
	return SampleFrequency{
		Sample:     sample,
		TotalCount: total,
		BCell:      Percent(bCell, total),
		CD8TCell:   Percent(cd8TCell, total),
		CD4TCell:   Percent(cd4TCell, total),
		NKCell:     Percent(nkCell, total),
		Monocyte:   Percent(monocyte, total),
	}
}
