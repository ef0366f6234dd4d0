package loader

import (
	"fmt"
	"strconv"
	"strings"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/cellcount/cellcount/internal/source"
)

// normalizeResponse maps a blank response to unknown ("") and trims the rest.
func normalizeResponse(raw string) string {
	return strings.TrimSpace(raw)
}

// parseRecord converts the raw text of rec into the rows it implies. A
// non-integer numeric field is a fatal VALIDATION:INVALID_NUMBER error.
func parseRecord(rec source.Record) (Subject, Sample, error) {
	var (
		nums [7]int64
		cols = [7]string{
			source.ColAge,
			source.ColTimeFromTreatmentStart,
			source.ColBCell,
			source.ColCD8TCell,
			source.ColCD4TCell,
			source.ColNKCell,
			source.ColMonocyte,
		}
	)
	for i, col := range cols {
		raw := rec.Get(col)
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Subject{}, Sample{}, cerrors.Wrap(cerrors.ErrCategoryValidation, cerrors.CodeInvalidNumber,
				fmt.Sprintf("line %d: column %s: %q is not an integer", rec.Line, col, raw), err).
				WithDetails(map[string]interface{}{
					"line":   rec.Line,
					"column": col,
					"value":  raw,
					"sample": rec.Sample,
				})
		}
		nums[i] = n
	}

	subject := Subject{
		SubjectID: rec.Subject,
		Condition: rec.Condition,
		Age:       nums[0],
		Sex:       rec.Sex,
		Treatment: rec.Treatment,
		Response:  normalizeResponse(rec.Response),
		ProjectID: rec.Project,
	}
	sample := Sample{
		SampleID:               rec.Sample,
		SampleType:             rec.SampleType,
		TimeFromTreatmentStart: nums[1],
		Counts: CellCounts{
			BCell:    nums[2],
			CD8TCell: nums[3],
			CD4TCell: nums[4],
			NKCell:   nums[5],
			Monocyte: nums[6],
		},
		SubjectID: rec.Subject,
	}
	return subject, sample, nil
}
