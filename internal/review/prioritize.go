package review

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Priority buckets for changed files, lower first. Security-sensitive paths
// lead, tests and config trail.
var priorityPatterns = []struct {
	score    int
	patterns []*regexp.Regexp
}{
	{1, compilePatterns(
		`auth`, `login`, `password`, `token`, `jwt`, `session`,
		`crypto`, `encrypt`, `decrypt`, `hash`, `secret`,
		`input`, `validation`, `sanitize`, `escape`, `csrf`,
		`permission`, `role`, `access`, `security`,
	)},
	{2, compilePatterns(
		`service`, `business`, `logic`, `domain`, `core`,
		`model`, `entity`, `aggregate`, `use.case`,
	)},
	{3, compilePatterns(
		`controller`, `endpoint`, `route`, `handler`, `api`,
		`rest`, `graphql`, `view`, `servlet`,
	)},
	{4, compilePatterns(
		`repository`, `dao`, `db`, `database`, `query`,
		`migration`, `schema`, `orm`, `sql`,
	)},
	{5, compilePatterns(`test`, `spec`, `fixture`, `mock`, `stub`)},
	{6, compilePatterns(
		`config`, `setting`, `env`, `constant`, `static`,
		`asset`, `public`, `resource`, `locale`,
	)},
}

const defaultPriority = 3

func compilePatterns(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func priorityScore(path string) int {
	lower := strings.ToLower(path)
	for _, bucket := range priorityPatterns {
		for _, re := range bucket.patterns {
			if re.MatchString(lower) {
				return bucket.score
			}
		}
	}
	return defaultPriority
}

// PrioritizeFiles orders changed files for review: security-sensitive
// paths first, then business logic, API surface, database code, tests, and
// config last. Ties break toward larger changes.
func PrioritizeFiles(files []FileChange) []FileChange {
	out := make([]FileChange, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := priorityScore(out[i].Path), priorityScore(out[j].Path)
		if si != sj {
			return si < sj
		}
		return out[i].Additions+out[i].Deletions > out[j].Additions+out[j].Deletions
	})
	return out
}

// estimateTokens approximates the prompt cost of one file: roughly four
// characters per token, plus metadata overhead.
func estimateTokens(f FileChange) int {
	return (len(f.Patch) + 200) / 4
}

// ChunkFilesForContext splits a change set into chunks that fit the model
// context window. A file larger than maxTokens gets a chunk to itself.
func ChunkFilesForContext(files []FileChange, maxTokens int) [][]FileChange {
	if len(files) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = 8000
	}

	var chunks [][]FileChange
	var current []FileChange
	currentTokens := 0

	for _, f := range files {
		tokens := estimateTokens(f)

		if tokens > maxTokens {
			if len(current) > 0 {
				chunks = append(chunks, current)
				current = nil
				currentTokens = 0
			}
			chunks = append(chunks, []FileChange{f})
			continue
		}

		if currentTokens+tokens > maxTokens && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}

		current = append(current, f)
		currentTokens += tokens
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// ShouldChunk reports whether a change set is large enough to need
// chunking: more than 10 files or more than 15k changed lines.
func ShouldChunk(files []FileChange) bool {
	totalChanges := 0
	for _, f := range files {
		totalChanges += f.Additions + f.Deletions
	}
	return len(files) > 10 || totalChanges > 15000
}

// FileSummary renders a short change-set description for logs.
func FileSummary(files []FileChange) string {
	if len(files) == 0 {
		return "No files"
	}
	names := make([]string, 0, 5)
	for _, f := range files[:min(len(files), 5)] {
		parts := strings.Split(f.Path, "/")
		names = append(names, parts[len(parts)-1])
	}
	if len(files) > 5 {
		return fmt.Sprintf("%d files: %s ... (+%d more)", len(files), strings.Join(names, ", "), len(files)-5)
	}
	return fmt.Sprintf("%d files: %s", len(files), strings.Join(names, ", "))
}
