package review

import (
	"strings"
	"testing"
)

func change(path string, additions int) FileChange {
	return FileChange{Path: path, Status: "modified", Additions: additions}
}

func TestPrioritizeFilesOrdering(t *testing.T) {
	files := []FileChange{
		change("docs/config.md", 1),
		change("app/tests/test_user.py", 1),
		change("app/services/billing.py", 1),
		change("app/auth/login.py", 1),
		change("app/api/routes.py", 1),
		change("app/repository/users.py", 1),
	}
	got := PrioritizeFiles(files)
	want := []string{
		"app/auth/login.py",
		"app/services/billing.py",
		"app/api/routes.py",
		"app/repository/users.py",
		"app/tests/test_user.py",
		"docs/config.md",
	}
	for i, path := range want {
		if got[i].Path != path {
			t.Fatalf("position %d: got=%s want=%s", i, got[i].Path, path)
		}
	}
}

func TestPrioritizeFilesTieBreaksOnChangeSize(t *testing.T) {
	files := []FileChange{
		change("app/auth/small.py", 2),
		change("app/auth/big.py", 50),
	}
	got := PrioritizeFiles(files)
	if got[0].Path != "app/auth/big.py" {
		t.Fatalf("larger change must come first: got=%s", got[0].Path)
	}
}

func TestPrioritizeFilesDoesNotMutateInput(t *testing.T) {
	files := []FileChange{
		change("z/config.yaml", 1),
		change("app/auth/login.py", 1),
	}
	_ = PrioritizeFiles(files)
	if files[0].Path != "z/config.yaml" {
		t.Fatalf("input mutated: %v", files)
	}
}

func TestChunkFilesForContext(t *testing.T) {
	small := FileChange{Path: "a.py", Patch: strings.Repeat("x", 400)}  // ~150 tokens
	big := FileChange{Path: "big.py", Patch: strings.Repeat("x", 60000)} // over any limit

	chunks := ChunkFilesForContext([]FileChange{small, big, small}, 1000)
	if len(chunks) != 3 {
		t.Fatalf("chunks: got=%d want=3", len(chunks))
	}
	if len(chunks[1]) != 1 || chunks[1][0].Path != "big.py" {
		t.Fatalf("oversized file must get its own chunk: %v", chunks[1])
	}

	if got := ChunkFilesForContext(nil, 1000); got != nil {
		t.Fatalf("empty input: got=%v", got)
	}
}

func TestChunkFilesGroupsUnderLimit(t *testing.T) {
	f := FileChange{Path: "a.py", Patch: strings.Repeat("x", 400)}
	chunks := ChunkFilesForContext([]FileChange{f, f, f}, 8000)
	if len(chunks) != 1 {
		t.Fatalf("small files must share a chunk: got=%d", len(chunks))
	}
	if len(chunks[0]) != 3 {
		t.Fatalf("chunk size: got=%d", len(chunks[0]))
	}
}

func TestShouldChunk(t *testing.T) {
	var many []FileChange
	for i := 0; i < 11; i++ {
		many = append(many, change("f.py", 1))
	}
	if !ShouldChunk(many) {
		t.Fatalf("more than 10 files must chunk")
	}
	if ShouldChunk([]FileChange{change("f.py", 10)}) {
		t.Fatalf("small change set must not chunk")
	}
	if !ShouldChunk([]FileChange{{Path: "f.py", Additions: 20000}}) {
		t.Fatalf("large change volume must chunk")
	}
}

func TestFileSummary(t *testing.T) {
	if got := FileSummary(nil); got != "No files" {
		t.Fatalf("empty summary: got=%q", got)
	}
	files := []FileChange{
		change("a/one.py", 1), change("b/two.py", 1), change("c/three.py", 1),
		change("d/four.py", 1), change("e/five.py", 1), change("f/six.py", 1),
	}
	got := FileSummary(files)
	if !strings.Contains(got, "6 files:") || !strings.Contains(got, "(+1 more)") {
		t.Fatalf("summary: got=%q", got)
	}
}
