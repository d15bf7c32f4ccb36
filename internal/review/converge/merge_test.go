package converge

import (
	"strings"
	"testing"

	"convergence/internal/review"
)

func finding(id, file string, start, end, severity int) review.Finding {
	return review.Finding{
		ID:          id,
		FilePath:    file,
		LineStart:   start,
		LineEnd:     end,
		Severity:    severity,
		Category:    "cat-" + id,
		Title:       "title " + id,
		Description: "desc " + id,
		Suggestion:  "fix " + id,
		Confidence:  0.9,
	}
}

func TestLocationKey(t *testing.T) {
	f := finding("sec-001", "app/auth.py", 10, 12, 4)
	if got := LocationKey(f); got != "app/auth.py:10-12" {
		t.Fatalf("location key: got=%s", got)
	}
}

func TestOverlaps(t *testing.T) {
	a := finding("a", "f.go", 10, 20, 3)
	b := finding("b", "f.go", 20, 25, 3)
	c := finding("c", "f.go", 21, 25, 3)
	d := finding("d", "other.go", 10, 20, 3)

	if !Overlaps(a, b) {
		t.Fatalf("expected touching ranges to overlap")
	}
	if Overlaps(a, c) {
		t.Fatalf("expected disjoint ranges not to overlap")
	}
	if Overlaps(a, d) {
		t.Fatalf("expected different files not to overlap")
	}
}

func TestMergeKeepsSingleFindings(t *testing.T) {
	merged := Merge(map[string][]review.Finding{
		"security": {finding("sec-001", "a.py", 5, 5, 3)},
	})
	if len(merged) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(merged))
	}
	f := merged[0]
	if f.Merged {
		t.Fatalf("single finding must not be marked merged")
	}
	if len(f.Sources) != 1 || f.Sources[0] != "security" {
		t.Fatalf("sources: got=%v", f.Sources)
	}
	if f.Severity != 3 {
		t.Fatalf("severity must be unchanged, got %d", f.Severity)
	}
}

func TestMergeGroupsByExactLocation(t *testing.T) {
	// Same file, overlapping but different ranges: no merge.
	merged := Merge(map[string][]review.Finding{
		"security":    {finding("sec-001", "a.py", 10, 12, 3)},
		"performance": {finding("per-001", "a.py", 10, 13, 3)},
	})
	if len(merged) != 2 {
		t.Fatalf("overlapping ranges must stay distinct, got %d findings", len(merged))
	}
	for _, f := range merged {
		if f.Merged {
			t.Fatalf("finding %s must not be merged", f.ID)
		}
	}
}

func TestMergeBoostsSeverity(t *testing.T) {
	merged := Merge(map[string][]review.Finding{
		"security":    {finding("sec-001", "a.py", 10, 12, 3)},
		"performance": {finding("per-001", "a.py", 10, 12, 4)},
	})
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged finding, got %d", len(merged))
	}
	f := merged[0]
	if !f.Merged {
		t.Fatalf("expected merged finding")
	}
	if f.Severity != 5 {
		t.Fatalf("severity: got=%d want=5", f.Severity)
	}
	if f.OriginalSeverity != 4 {
		t.Fatalf("original severity: got=%d want=4", f.OriginalSeverity)
	}
	if f.ID != "merged-per-001" {
		t.Fatalf("id: got=%s", f.ID)
	}
	if !strings.HasPrefix(f.Title, "[PER+SEC] ") {
		t.Fatalf("title prefix: got=%s", f.Title)
	}
	if f.FindingCount != 2 {
		t.Fatalf("finding count: got=%d", f.FindingCount)
	}
	if len(f.Sources) != 2 || f.Sources[0] != "performance" || f.Sources[1] != "security" {
		t.Fatalf("sources must be sorted: got=%v", f.Sources)
	}
}

func TestMergeSeverityCappedAtFive(t *testing.T) {
	merged := Merge(map[string][]review.Finding{
		"security":    {finding("sec-001", "a.py", 1, 1, 5)},
		"performance": {finding("per-001", "a.py", 1, 1, 5)},
	})
	if merged[0].Severity != 5 {
		t.Fatalf("severity must cap at 5, got %d", merged[0].Severity)
	}
}

func TestMergeCombinesCategoriesAndSuggestions(t *testing.T) {
	a := finding("sec-001", "a.py", 1, 1, 3)
	a.Category = "sql-injection"
	a.Suggestion = "use parameters"
	b := finding("per-001", "a.py", 1, 1, 3)
	b.Category = "n-plus-one"
	b.Suggestion = "batch the query"

	merged := Merge(map[string][]review.Finding{
		"security":    {a},
		"performance": {b},
	})
	f := merged[0]
	if !strings.Contains(f.Category, "+") {
		t.Fatalf("category union: got=%s", f.Category)
	}
	if !strings.Contains(f.Suggestion, " | ") {
		t.Fatalf("suggestion join: got=%s", f.Suggestion)
	}
	if !strings.Contains(f.Description, "**[Security]**") || !strings.Contains(f.Description, "**[Performance]**") {
		t.Fatalf("description attribution: got=%s", f.Description)
	}
	if f.Confidence != review.DefaultConfidence {
		t.Fatalf("merged confidence: got=%v", f.Confidence)
	}
}

func TestMergeOrdering(t *testing.T) {
	merged := Merge(map[string][]review.Finding{
		"security": {
			finding("sec-001", "b.py", 5, 5, 3),
			finding("sec-002", "a.py", 9, 9, 3),
			finding("sec-003", "a.py", 2, 2, 3),
			finding("sec-004", "z.py", 1, 1, 5),
		},
	})
	want := []string{"sec-004", "sec-003", "sec-002", "sec-001"}
	for i, id := range want {
		if merged[i].ID != id {
			t.Fatalf("position %d: got=%s want=%s", i, merged[i].ID, id)
		}
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if got := Merge(map[string][]review.Finding{}); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := Merge(map[string][]review.Finding{"security": nil}); got != nil {
		t.Fatalf("expected nil when all agents report nothing, got %v", got)
	}
}

func TestMergeDeterministic(t *testing.T) {
	byAgent := map[string][]review.Finding{
		"security":    {finding("sec-001", "a.py", 1, 1, 3)},
		"performance": {finding("per-001", "a.py", 1, 1, 3)},
		"testing":     {finding("tes-001", "b.py", 2, 2, 3)},
	}
	first := Merge(byAgent)
	for i := 0; i < 20; i++ {
		again := Merge(byAgent)
		if len(again) != len(first) {
			t.Fatalf("length drift: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if again[j].ID != first[j].ID || again[j].Title != first[j].Title {
				t.Fatalf("run %d position %d: got=%s want=%s", i, j, again[j].ID, first[j].ID)
			}
		}
	}
}
