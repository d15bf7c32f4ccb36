package converge

import (
	"fmt"
	"strings"

	"convergence/internal/review"
)

// Severity buckets for the rendered report.
const (
	criticalThreshold = 4
	mediumThreshold   = 2
)

var severityGlyph = map[int]string{
	5: "🔴",
	4: "🟠",
	3: "🟡",
	2: "🔵",
	1: "⚪",
}

// CriticalCount counts findings in the critical/high bucket.
func CriticalCount(findings []review.Finding) int {
	n := 0
	for _, f := range findings {
		if f.Severity >= criticalThreshold {
			n++
		}
	}
	return n
}

// Disposition maps the adjusted findings to the review event posted to the
// report sink.
func Disposition(findings []review.Finding) string {
	if CriticalCount(findings) > 0 {
		return "REQUEST_CHANGES"
	}
	return "COMMENT"
}

// Synthesize renders the final review markdown. Pure and deterministic:
// findings render in the order given, partitioned into buckets without
// re-sorting.
func Synthesize(prTitle, prURL string, findings []review.Finding, agentsCompleted []string, durationMS int64) string {
	lines := []string{
		"## 🔍 Convergence Code Review",
		"",
		fmt.Sprintf("**PR:** [%s](%s)", prTitle, prURL),
		fmt.Sprintf("**Analyzed by:** %d agents in %.1fs", len(agentsCompleted), float64(durationMS)/1000),
		"",
		"---",
		"",
	}

	var critical, medium, low []review.Finding
	for _, f := range findings {
		switch {
		case f.Severity >= criticalThreshold:
			critical = append(critical, f)
		case f.Severity >= mediumThreshold:
			medium = append(medium, f)
		default:
			low = append(low, f)
		}
	}

	if len(critical) > 0 {
		lines = append(lines, fmt.Sprintf("### 🚨 Critical Issues (%d)", len(critical)), "")
		for _, f := range critical {
			lines = append(lines, formatFinding(f)...)
		}
	}
	if len(medium) > 0 {
		lines = append(lines, fmt.Sprintf("### ⚠️ Recommendations (%d)", len(medium)), "")
		for _, f := range medium {
			lines = append(lines, formatFinding(f)...)
		}
	}
	if len(low) > 0 {
		lines = append(lines, fmt.Sprintf("### 💡 Suggestions (%d)", len(low)), "")
		for _, f := range low {
			lines = append(lines, formatFinding(f)...)
		}
	}
	if len(findings) == 0 {
		lines = append(lines,
			"### ✅ No Issues Found",
			"",
			"This PR looks good! No significant issues detected by our analysis.",
			"",
		)
	}

	agents := make([]string, len(agentsCompleted))
	for i, a := range agentsCompleted {
		agents[i] = titleCase(a)
	}

	lines = append(lines,
		"---",
		"",
		"### 📊 Summary",
		"",
		"| Severity | Count |",
		"|----------|-------|",
		fmt.Sprintf("| 🚨 Critical/High | %d |", len(critical)),
		fmt.Sprintf("| ⚠️ Medium | %d |", len(medium)),
		fmt.Sprintf("| 💡 Low/Info | %d |", len(low)),
		fmt.Sprintf("| **Total** | **%d** |", len(findings)),
		"",
		"---",
		"",
		fmt.Sprintf("<sub>🤖 Reviewed by **Convergence** • Agents: [%s] • %.1fs</sub>",
			strings.Join(agents, ", "), float64(durationMS)/1000),
	)

	return strings.Join(lines, "\n")
}

func formatFinding(f review.Finding) []string {
	sources := f.Sources
	if len(sources) == 0 {
		sources = []string{"unknown"}
	}

	glyph, ok := severityGlyph[f.Severity]
	if !ok {
		glyph = "⚪"
	}

	// Merged titles already carry their source prefix.
	title := f.Title
	if !strings.HasPrefix(title, "[") {
		title = fmt.Sprintf("[%s] %s", sourcePrefix(sources), title)
	}

	confidence := f.Confidence
	if confidence <= 0 {
		confidence = review.DefaultConfidence
	}
	confidenceStr := fmt.Sprintf(" (%.0f%% confidence)", confidence*100)

	marker := ""
	if f.ConsensusAdjusted {
		marker = " ⚡"
	}

	lineInfo := fmt.Sprintf("Line %d", f.LineStart)
	if f.LineEnd != f.LineStart {
		lineInfo = fmt.Sprintf("Lines %d-%d", f.LineStart, f.LineEnd)
	}

	lines := []string{
		fmt.Sprintf("#### %s %s%s%s", glyph, title, confidenceStr, marker),
		fmt.Sprintf("📁 `%s` • %s", f.FilePath, lineInfo),
		"",
	}

	if f.Description != "" {
		lines = append(lines, f.Description, "")
	}
	if f.Reasoning != "" {
		lines = append(lines, fmt.Sprintf("**🧠 Reasoning:** %s", f.Reasoning), "")
	}
	if f.CodeSnippet != "" {
		lines = append(lines, "```", f.CodeSnippet, "```", "")
	}
	if f.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("**💡 Suggestion:** %s", f.Suggestion), "")
	}

	if f.Merged {
		count := f.FindingCount
		if count == 0 {
			count = len(sources)
		}
		lines = append(lines, fmt.Sprintf("*⚡ Flagged by %d agents: %s*", count, strings.Join(sources, ", ")), "")
	}
	if f.ConsensusAdjusted {
		lines = append(lines, fmt.Sprintf("*📈 Severity adjusted by consensus: %d → %d*", f.OriginalSeverity, f.Severity), "")
	}

	lines = append(lines, "---", "")
	return lines
}
