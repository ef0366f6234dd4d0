package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cerrors "github.com/cellcount/cellcount/internal/errors"
)

const testCSV = `project,subject,condition,age,sex,treatment,response,sample,sample_type,time_from_treatment_start,b_cell,cd8_t_cell,cd4_t_cell,nk_cell,monocyte
prj1,sbj1,melanoma,57,M,miraclib,yes,s1,PBMC,0,100,50,50,0,0
prj2,sbj2,melanoma,61,F,miraclib,no,s2,PBMC,0,10,10,10,10,10
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rc := NewRootCommand(&out, &errOut)
	rc.SetArgs(args)
	err := rc.Execute()
	return out.String(), err
}

func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cell-count.csv"), []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"Usage:", "Available Commands:", "load", "frequencies", "cohort", "preview"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadThenReports(t *testing.T) {
	dir := dataDir(t)

	out, err := execute(t, "load", "--data-dir", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(out, "Loaded 2 of 2 records (2 projects, 2 subjects)") {
		t.Fatalf("unexpected load output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "load_summary.json")); err != nil {
		t.Fatalf("summary not written: %v", err)
	}

	out, err = execute(t, "frequencies", "--data-dir", dir, "--print")
	if err != nil {
		t.Fatalf("frequencies: %v", err)
	}
	if !strings.HasPrefix(out, "sample       total_count") || !strings.Contains(out, "s2           50           20.0") {
		t.Fatalf("unexpected frequency table:\n%s", out)
	}

	out, err = execute(t, "cohort", "--data-dir", dir, "--group-by", "response")
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}
	want := "Analyzing all melanoma PBMC samples at baseline from patients who have been treated with miraclib.\n" +
		"For response of no, the sample_count is 1.\n" +
		"For response of yes, the sample_count is 1.\n"
	if out != want {
		t.Fatalf("cohort output = %q, want %q", out, want)
	}

	out, err = execute(t, "preview", "--data-dir", dir, "-n", "1")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "subjects: 2 rows") {
		t.Fatalf("unexpected preview output:\n%s", out)
	}
}

func TestLoad_MissingInput(t *testing.T) {
	_, err := execute(t, "load", "--data-dir", t.TempDir(), "--input", "nope.csv")
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if cerrors.GetCode(err) != cerrors.CodeInputNotFound {
		t.Fatalf("code = %s, want %s", cerrors.GetCode(err), cerrors.CodeInputNotFound)
	}
}

func TestLoad_RelativeInputUsesWorkingDirectory(t *testing.T) {
	work := t.TempDir()
	if err := os.MkdirAll(filepath.Join(work, "exports"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(work, "exports", "x.csv"), []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })

	out, err := execute(t, "load", "--data-dir", "out", "-i", filepath.Join("exports", "x.csv"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(out, "Loaded 2 of 2 records") {
		t.Fatalf("unexpected load output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(work, "out", "cell_counts.db")); err != nil {
		t.Fatalf("database not written under data dir: %v", err)
	}
}

func TestCohort_InvalidGroupBy(t *testing.T) {
	_, err := execute(t, "cohort", "--data-dir", t.TempDir(), "--group-by", "age")
	if cerrors.GetCode(err) != cerrors.CodeInvalidGroupBy {
		t.Fatalf("expected INVALID_GROUP_BY, got %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	dir := dataDir(t)
	cfgPath := filepath.Join(t.TempDir(), "cellcount.yaml")
	content := "data_dir: " + dir + "\ncohort:\n  group_by: [sex]\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "load", "--config", cfgPath); err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := execute(t, "cohort", "--config", cfgPath)
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}
	if !strings.Contains(out, "For sex of F, the sample_count is 1.\nFor sex of M, the sample_count is 1.\n") {
		t.Fatalf("unexpected cohort output: %q", out)
	}
}
