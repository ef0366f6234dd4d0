// Package schema declares the normalized cell-count schema and recreates it
// from scratch before every full load.
package schema

// Table names.
const (
	TableProjects   = "projects"
	TableSubjects   = "subjects"
	TableCellCounts = "cell_counts"

	// tableLegacySamples is the superseded subject-per-sample layout. It is
	// dropped on reset and never created.
	tableLegacySamples = "samples"
)

// CreateProjectsTableSQL creates the projects table. A project is only an
// identifier; rows are created on first reference and never updated.
const CreateProjectsTableSQL = `
CREATE TABLE projects (
    project_id TEXT PRIMARY KEY
)`

// CreateSubjectsTableSQL creates the subjects table. One row per subject
// identifier; response is NULL when unknown.
const CreateSubjectsTableSQL = `
CREATE TABLE subjects (
    subject_id TEXT PRIMARY KEY,
    condition TEXT NOT NULL,
    age INTEGER NOT NULL CHECK (age >= 0),
    sex TEXT NOT NULL CHECK (sex IN ('M', 'F')),
    treatment TEXT NOT NULL,
    response TEXT CHECK (response IN ('yes', 'no')) DEFAULT NULL,
    project_id TEXT NOT NULL,
    FOREIGN KEY (project_id) REFERENCES projects(project_id)
)`

// CreateCellCountsTableSQL creates the per-sample table. A sample's time
// offset may be zero or negative (at or before treatment start).
const CreateCellCountsTableSQL = `
CREATE TABLE cell_counts (
    sample_id TEXT PRIMARY KEY,
    sample_type TEXT NOT NULL,
    time_from_treatment_start INTEGER NOT NULL,
    b_cell INTEGER NOT NULL CHECK (b_cell >= 0),
    cd8_t_cell INTEGER NOT NULL CHECK (cd8_t_cell >= 0),
    cd4_t_cell INTEGER NOT NULL CHECK (cd4_t_cell >= 0),
    nk_cell INTEGER NOT NULL CHECK (nk_cell >= 0),
    monocyte INTEGER NOT NULL CHECK (monocyte >= 0),
    subject_id TEXT NOT NULL,
    FOREIGN KEY (subject_id) REFERENCES subjects(subject_id)
)`

// CreateIndexesSQL creates the join and cohort-filter indexes.
var CreateIndexesSQL = []string{
	`CREATE INDEX idx_subjects_project ON subjects(project_id)`,
	`CREATE INDEX idx_cell_counts_subject ON cell_counts(subject_id)`,
	`CREATE INDEX idx_cell_counts_cohort ON cell_counts(sample_type, time_from_treatment_start)`,
}

// DropTablesSQL drops every table the pipeline has ever created, children
// first so foreign keys never dangle mid-reset.
var DropTablesSQL = []string{
	`DROP TABLE IF EXISTS ` + TableCellCounts,
	`DROP TABLE IF EXISTS ` + tableLegacySamples,
	`DROP TABLE IF EXISTS ` + TableSubjects,
	`DROP TABLE IF EXISTS ` + TableProjects,
}

// AllSchemaSQL returns every statement needed to reset the database, in
// execution order.
func AllSchemaSQL() []string {
	statements := make([]string, 0, len(DropTablesSQL)+3+len(CreateIndexesSQL))
	statements = append(statements, DropTablesSQL...)
	statements = append(statements,
		CreateProjectsTableSQL,
		CreateSubjectsTableSQL,
		CreateCellCountsTableSQL,
	)
	statements = append(statements, CreateIndexesSQL...)
	return statements
}
