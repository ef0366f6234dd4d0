package cohort

import (
	"strings"
	"testing"

	cerrors "github.com/cellcount/cellcount/internal/errors"
)

func TestParseGroupBy(t *testing.T) {
	tests := []struct {
		in      string
		want    GroupBy
		wantErr bool
	}{
		{"project", GroupProject, false},
		{"response", GroupResponse, false},
		{"sex", GroupSex, false},
		{" Sex ", GroupSex, false},
		{"", GroupNone, false},
		{"none", GroupNone, false},
		{"age", "", true},
		{"sample_type", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGroupBy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseGroupBy(%q) expected error", tt.in)
			}
			if cerrors.GetCode(err) != cerrors.CodeInvalidGroupBy {
				t.Fatalf("ParseGroupBy(%q) code = %s, want %s", tt.in, cerrors.GetCode(err), cerrors.CodeInvalidGroupBy)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseGroupBy(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseGroupBy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildQuery_BindsFilterAsArguments(t *testing.T) {
	f := Filter{SampleType: "PBMC", Condition: "x' OR '1'='1", Treatment: "miraclib", TimeFromTreatmentStart: 0}

	q, args, err := BuildQuery(f, GroupSex)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if strings.Contains(q, "x' OR") {
		t.Fatalf("filter value leaked into SQL: %s", q)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[1] != f.Condition {
		t.Fatalf("args[1] = %v, want %q", args[1], f.Condition)
	}
	for _, want := range []string{"COUNT(*)", "GROUP BY value", "ORDER BY value", "sub.sex"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query missing %q: %s", want, q)
		}
	}
}

func TestBuildQuery_ResponseCoalescesNull(t *testing.T) {
	q, _, err := BuildQuery(Filter{}, GroupResponse)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(q, "COALESCE(sub.response, 'unknown')") {
		t.Fatalf("response grouping does not coalesce NULL: %s", q)
	}
}

func TestBuildQuery_Ungrouped(t *testing.T) {
	q, _, err := BuildQuery(Filter{}, GroupNone)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if strings.Contains(q, "GROUP BY") {
		t.Fatalf("ungrouped query has GROUP BY: %s", q)
	}
	if !strings.Contains(q, "ORDER BY cc.sample_id") {
		t.Fatalf("ungrouped query not ordered by sample: %s", q)
	}
}

func TestDescribe(t *testing.T) {
	got := Filter{SampleType: "PBMC", Condition: "melanoma", Treatment: "miraclib"}.Describe()
	want := "Analyzing all melanoma PBMC samples at baseline from patients who have been treated with miraclib."
	if got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}

	got = Filter{SampleType: "WB", Condition: "carcinoma", Treatment: "phauximab", TimeFromTreatmentStart: 14}.Describe()
	want = "Analyzing all carcinoma WB samples at time 14 from patients who have been treated with phauximab."
	if got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
}
