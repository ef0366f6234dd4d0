// Package source reads the flat per-sample cell-count export.
package source

import (
	"io"
)

// Column names required in the input header.
const (
	ColProject                = "project"
	ColSubject                = "subject"
	ColCondition              = "condition"
	ColAge                    = "age"
	ColSex                    = "sex"
	ColTreatment              = "treatment"
	ColResponse               = "response"
	ColSample                 = "sample"
	ColSampleType             = "sample_type"
	ColTimeFromTreatmentStart = "time_from_treatment_start"
	ColBCell                  = "b_cell"
	ColCD8TCell               = "cd8_t_cell"
	ColCD4TCell               = "cd4_t_cell"
	ColNKCell                 = "nk_cell"
	ColMonocyte               = "monocyte"
)

// RequiredColumns lists every column a valid export must carry.
var RequiredColumns = []string{
	ColProject, ColSubject, ColCondition, ColAge, ColSex, ColTreatment,
	ColResponse, ColSample, ColSampleType, ColTimeFromTreatmentStart,
	ColBCell, ColCD8TCell, ColCD4TCell, ColNKCell, ColMonocyte,
}

// Record is one input row, one per sample. Values are kept as the raw text
// found in the file; numeric parsing belongs to the loader.
type Record struct {
	// Line is the 1-based line number in the source (the header is line 1).
	Line int `json:"line"`

	Project                string `json:"project"`
	Subject                string `json:"subject"`
	Condition              string `json:"condition"`
	Age                    string `json:"age"`
	Sex                    string `json:"sex"`
	Treatment              string `json:"treatment"`
	Response               string `json:"response"`
	Sample                 string `json:"sample"`
	SampleType             string `json:"sample_type"`
	TimeFromTreatmentStart string `json:"time_from_treatment_start"`
	BCell                  string `json:"b_cell"`
	CD8TCell               string `json:"cd8_t_cell"`
	CD4TCell               string `json:"cd4_t_cell"`
	NKCell                 string `json:"nk_cell"`
	Monocyte               string `json:"monocyte"`
}

// Get returns the raw value of the named column.
func (r Record) Get(column string) string {
	switch column {
	case ColProject:
		return r.Project
	case ColSubject:
		return r.Subject
	case ColCondition:
		return r.Condition
	case ColAge:
		return r.Age
	case ColSex:
		return r.Sex
	case ColTreatment:
		return r.Treatment
	case ColResponse:
		return r.Response
	case ColSample:
		return r.Sample
	case ColSampleType:
		return r.SampleType
	case ColTimeFromTreatmentStart:
		return r.TimeFromTreatmentStart
	case ColBCell:
		return r.BCell
	case ColCD8TCell:
		return r.CD8TCell
	case ColCD4TCell:
		return r.CD4TCell
	case ColNKCell:
		return r.NKCell
	case ColMonocyte:
		return r.Monocyte
	}
	return ""
}

func (r *Record) set(column, value string) {
	switch column {
	case ColProject:
		r.Project = value
	case ColSubject:
		r.Subject = value
	case ColCondition:
		r.Condition = value
	case ColAge:
		r.Age = value
	case ColSex:
		r.Sex = value
	case ColTreatment:
		r.Treatment = value
	case ColResponse:
		r.Response = value
	case ColSample:
		r.Sample = value
	case ColSampleType:
		r.SampleType = value
	case ColTimeFromTreatmentStart:
		r.TimeFromTreatmentStart = value
	case ColBCell:
		r.BCell = value
	case ColCD8TCell:
		r.CD8TCell = value
	case ColCD4TCell:
		r.CD4TCell = value
	case ColNKCell:
		r.NKCell = value
	case ColMonocyte:
		r.Monocyte = value
	}
}

// Source yields records in file order. Next returns io.EOF once the input is
// exhausted.
type Source interface {
	Next() (Record, error)
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource creates a source over the given records. Records with a
// zero Line are numbered as if they followed a header row.
func NewSliceSource(records ...Record) *SliceSource {
	cp := make([]Record, len(records))
	for i, rec := range records {
		if rec.Line == 0 {
			rec.Line = i + 2
		}
		cp[i] = rec
	}
	return &SliceSource{records: cp}
}

// Next returns the next record or io.EOF.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
