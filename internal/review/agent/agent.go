// Package agent holds the fixed set of review agents and the dispatcher
// that fans them out over a change set.
package agent

import (
	"fmt"
	"sort"
	"strings"

	"convergence/internal/review"
)

// Agent is one analyzer role. The set of kinds is fixed and known in
// advance; implementations only differ in their instruction set.
type Agent interface {
	Kind() string
	SystemPrompt() string
}

// Registry maps agent kind to its implementation.
var Registry = map[string]Agent{
	"security":      securityAgent{},
	"performance":   performanceAgent{},
	"testing":       testingAgent{},
	"architecture":  architectureAgent{},
	"documentation": documentationAgent{},
}

// Kinds returns all registered agent kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(Registry))
	for k := range Registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildPrompt assembles the full instruction string for one agent run:
// system prompt, PR context, diffs, and the output contract.
func BuildPrompt(a Agent, gh review.GitHubContext, files []review.FileChange) string {
	var sb strings.Builder
	sb.WriteString("System instructions: ")
	sb.WriteString(a.SystemPrompt())
	sb.WriteString("\n\n")

	var diffs []string
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		diffs = append(diffs, fmt.Sprintf("### File: %s\nStatus: %s (+%d/-%d)\n```diff\n%s\n```\n",
			f.Path, f.Status, f.Additions, f.Deletions, f.Patch))
	}
	filesStr := "No file changes to review."
	if len(diffs) > 0 {
		filesStr = strings.Join(diffs, "\n")
	}

	kind := a.Kind()
	fmt.Fprintf(&sb, `Review this pull request for %s issues.

**Repository:** %s/%s
**PR Title:** %s

**Files Changed:**

%s

Analyze each file carefully. Return your findings as a JSON object with this exact structure:
{
  "findings": [
    {
      "id": "%s-001",
      "file_path": "path/to/file.py",
      "line_start": 10,
      "line_end": 10,
      "severity": 3,
      "category": "category-name",
      "title": "Short descriptive title",
      "description": "Detailed explanation of the issue",
      "suggestion": "How to fix this issue",
      "code_snippet": "the problematic code",
      "confidence": 0.95,
      "reasoning": "Why you are flagging this issue"
    }
  ],
  "summary": "1-2 sentence overall assessment"
}

Rules:
- Only report genuine %s concerns, not style issues
- Be specific with line numbers from the diff
- severity: 1=info, 2=low, 3=medium, 4=high, 5=critical
- Return empty findings array if no issues found
- Return ONLY valid JSON, no markdown code blocks`,
		kind, gh.RepoOwner, gh.RepoName, gh.PRTitle, filesStr, IDPrefix(kind), kind)

	return sb.String()
}

// IDPrefix is the three-letter prefix used for deterministic finding ids.
func IDPrefix(kind string) string {
	if len(kind) > 3 {
		return kind[:3]
	}
	return kind
}
