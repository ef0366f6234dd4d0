// Package cohort answers filtered, grouped sample-count questions over the
// normalized schema.
package cohort

import (
	"fmt"
	"strings"

	cerrors "github.com/cellcount/cellcount/internal/errors"
)

// Filter selects the samples of a cohort. All fields are equality
// predicates and all of them apply.
type Filter struct {
	SampleType             string `json:"sample_type" yaml:"sample_type"`
	Condition              string `json:"condition" yaml:"condition"`
	Treatment              string `json:"treatment" yaml:"treatment"`
	TimeFromTreatmentStart int64  `json:"time_from_treatment_start" yaml:"time_from_treatment_start"`
}

// Describe renders the filter as a sentence for report banners.
func (f Filter) Describe() string {
	when := "at baseline"
	if f.TimeFromTreatmentStart != 0 {
		when = fmt.Sprintf("at time %d", f.TimeFromTreatmentStart)
	}
	return fmt.Sprintf("Analyzing all %s %s samples %s from patients who have been treated with %s.",
		f.Condition, f.SampleType, when, f.Treatment)
}

// GroupBy is the dimension a cohort is broken down by.
type GroupBy string

const (
	GroupNone     GroupBy = ""
	GroupProject  GroupBy = "project"
	GroupResponse GroupBy = "response"
	GroupSex      GroupBy = "sex"
)

// Dimensions lists the grouping dimensions in report order.
var Dimensions = []GroupBy{GroupProject, GroupResponse, GroupSex}

// ParseGroupBy accepts "project", "response", "sex", or "" / "none" for no
// grouping. Anything else is a CONFIG:INVALID_GROUP_BY error.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupNone, "none":
		return GroupNone, nil
	case GroupProject, GroupResponse, GroupSex:
		return g, nil
	default:
		return "", cerrors.NewConfigError(cerrors.CodeInvalidGroupBy,
			fmt.Sprintf("invalid group-by dimension %q (must be project, response, sex or none)", s))
	}
}

// groupExpr maps a dimension to the column it groups on. Unknown responses
// are stored as NULL and grouped as "unknown".
var groupExpr = map[GroupBy]string{
	GroupProject:  "sub.project_id",
	GroupResponse: "COALESCE(sub.response, 'unknown')",
	GroupSex:      "sub.sex",
}

const cohortFrom = `
FROM cell_counts cc
JOIN subjects sub ON cc.subject_id = sub.subject_id
WHERE cc.sample_type = ?
  AND sub.condition = ?
  AND sub.treatment = ?
  AND cc.time_from_treatment_start = ?`

// BuildQuery returns the SQL and arguments for the cohort selected by f.
// Grouped queries yield (value, sample_count) rows ordered by value;
// ungrouped queries yield one row per sample ordered by sample_id.
func BuildQuery(f Filter, g GroupBy) (string, []interface{}, error) {
	args := []interface{}{f.SampleType, f.Condition, f.Treatment, f.TimeFromTreatmentStart}

	if g == GroupNone {
		q := `SELECT cc.sample_id, sub.subject_id, sub.project_id,
	cc.b_cell, cc.cd8_t_cell, cc.cd4_t_cell, cc.nk_cell, cc.monocyte` + cohortFrom + `
ORDER BY cc.sample_id`
		return q, args, nil
	}

	expr, ok := groupExpr[g]
	if !ok {
		return "", nil, cerrors.NewConfigError(cerrors.CodeInvalidGroupBy,
			fmt.Sprintf("invalid group-by dimension %q", string(g)))
	}
	q := `SELECT ` + expr + ` AS value, COUNT(*) AS sample_count` + cohortFrom + `
GROUP BY value
ORDER BY value`
	return q, args, nil
}
