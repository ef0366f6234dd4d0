package loader

import (
	"fmt"
	"time"

	"github.com/cellcount/cellcount/internal/source"
)

// ResponseUnknown is how an absent response is rendered. It is stored as NULL.
const ResponseUnknown = "unknown"

// Subject is the immutable attribute tuple a subject identifier denotes.
// An empty Response means unknown.
type Subject struct {
	SubjectID string `json:"subject_id"`
	Condition string `json:"condition"`
	Age       int64  `json:"age"`
	Sex       string `json:"sex"`
	Treatment string `json:"treatment"`
	Response  string `json:"response,omitempty"`
	ProjectID string `json:"project_id"`
}

// String renders the tuple for log and error messages.
func (s Subject) String() string {
	resp := s.Response
	if resp == "" {
		resp = ResponseUnknown
	}
	return fmt.Sprintf("(%s, %s, %d, %s, %s, %s, %s)",
		s.SubjectID, s.Condition, s.Age, s.Sex, s.Treatment, resp, s.ProjectID)
}

// CellCounts holds the five measured populations of one sample.
type CellCounts struct {
	BCell    int64 `json:"b_cell"`
	CD8TCell int64 `json:"cd8_t_cell"`
	CD4TCell int64 `json:"cd4_t_cell"`
	NKCell   int64 `json:"nk_cell"`
	Monocyte int64 `json:"monocyte"`
}

// Total is the sum of all five populations. It may be zero.
func (c CellCounts) Total() int64 {
	return c.BCell + c.CD8TCell + c.CD4TCell + c.NKCell + c.Monocyte
}

// Sample is one cell_counts row.
type Sample struct {
	SampleID               string     `json:"sample_id"`
	SampleType             string     `json:"sample_type"`
	TimeFromTreatmentStart int64      `json:"time_from_treatment_start"`
	Counts                 CellCounts `json:"counts"`
	SubjectID              string     `json:"subject_id"`
}

// OutcomeKind classifies what happened to one input record.
type OutcomeKind string

const (
	// OutcomeInserted means the record's sample row was written.
	OutcomeInserted OutcomeKind = "inserted"
	// OutcomeSubjectConflict means the record disagreed with the stored
	// tuple for its subject; nothing from the record past the project was written.
	OutcomeSubjectConflict OutcomeKind = "subject_conflict"
	// OutcomeDuplicateSample means a sample with the same identifier was
	// already loaded; the first one is kept.
	OutcomeDuplicateSample OutcomeKind = "duplicate_sample"
	// OutcomeRejected means the store refused the subject or sample row for
	// another constraint (e.g. sex outside M/F, negative count).
	OutcomeRejected OutcomeKind = "rejected"
)

// RecordOutcome is the result of loading one record.
type RecordOutcome struct {
	Line      int         `json:"line"`
	SampleID  string      `json:"sample_id"`
	SubjectID string      `json:"subject_id"`
	Kind      OutcomeKind `json:"kind"`

	// Set when the record created the row.
	ProjectCreated bool `json:"project_created,omitempty"`
	SubjectCreated bool `json:"subject_created,omitempty"`

	// Stored and Incoming are filled for subject conflicts.
	Stored   *Subject `json:"stored,omitempty"`
	Incoming *Subject `json:"incoming,omitempty"`

	// Record is the offending input for every non-inserted outcome.
	Record *source.Record `json:"record,omitempty"`

	Err     error  `json:"-"`
	Message string `json:"message,omitempty"`
}

// Failed reports whether the record's sample was not written.
func (o RecordOutcome) Failed() bool {
	return o.Kind != OutcomeInserted
}

// Summary reports a whole load.
type Summary struct {
	RunID       string        `json:"run_id"`
	InputDigest string        `json:"input_digest"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`

	Records         int `json:"records"`
	ProjectsCreated int `json:"projects_created"`
	SubjectsCreated int `json:"subjects_created"`
	SamplesInserted int `json:"samples_inserted"`

	// Outcomes holds every record that was not inserted, in input order.
	Outcomes []RecordOutcome `json:"outcomes"`
}

// Count returns how many failed outcomes have the given kind.
func (s *Summary) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Failed returns the number of records whose sample was not written.
func (s *Summary) Failed() int {
	return len(s.Outcomes)
}
