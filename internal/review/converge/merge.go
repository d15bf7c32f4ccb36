// Package converge turns per-agent raw findings into one consolidated,
// deduplicated, severity-ranked result: location merge, cross-validation,
// consensus adjustment, and report synthesis.
package converge

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"convergence/internal/review"
)

// LocationKey identifies the exact code location a finding reports.
// Grouping is by exact (start, end) pair; overlapping-but-different ranges
// are distinct groups.
func LocationKey(f review.Finding) string {
	return fmt.Sprintf("%s:%d-%d", f.FilePath, f.LineStart, f.LineEnd)
}

// Overlaps reports whether two findings touch overlapping line ranges in
// the same file. Used for pairwise checks only, never for grouping.
func Overlaps(a, b review.Finding) bool {
	if a.FilePath != b.FilePath {
		return false
	}
	return a.LineEnd >= b.LineStart && b.LineEnd >= a.LineStart
}

// Merge flattens per-agent findings, groups them by exact location, merges
// multi-agent groups with a severity boost, and returns a totally ordered
// list: severity descending, then file path, then line start. The sort is
// stable, so groups with equal keys keep their flatten order.
func Merge(byAgent map[string][]review.Finding) []review.Finding {
	// Flatten in sorted agent order so the output is deterministic.
	kinds := make([]string, 0, len(byAgent))
	for kind := range byAgent {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var flat []review.Finding
	for _, kind := range kinds {
		for _, f := range byAgent[kind] {
			f.Sources = []string{kind}
			flat = append(flat, f)
		}
	}
	if len(flat) == 0 {
		return nil
	}

	// Group by exact location key, preserving first-encounter group order.
	groups := make(map[string][]review.Finding, len(flat))
	var order []string
	for _, f := range flat {
		key := LocationKey(f)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	merged := make([]review.Finding, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			f := group[0]
			f.Merged = false
			merged = append(merged, f)
			continue
		}
		merged = append(merged, mergeGroup(group))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.LineStart < b.LineStart
	})

	log.Printf("[merge] merged %d findings into %d unique issues", len(flat), len(merged))
	return merged
}

// mergeGroup collapses same-location findings from multiple agents into
// one finding: highest severity as base, boosted by one (cap 5), with
// combined provenance.
func mergeGroup(group []review.Finding) review.Finding {
	base := group[0]
	for _, f := range group[1:] {
		if f.Severity > base.Severity {
			base = f
		}
	}

	var sources []string
	seenSource := make(map[string]bool)
	for _, f := range group {
		for _, s := range f.Sources {
			if !seenSource[s] {
				seenSource[s] = true
				sources = append(sources, s)
			}
		}
	}
	sort.Strings(sources)

	var categories []string
	seenCat := make(map[string]bool)
	for _, f := range group {
		if f.Category != "" && !seenCat[f.Category] {
			seenCat[f.Category] = true
			categories = append(categories, f.Category)
		}
	}
	category := base.Category
	if len(categories) > 1 {
		category = strings.Join(categories, "+")
	}

	var descriptions []string
	seenDesc := make(map[string]bool)
	for _, f := range group {
		if f.Description == "" || seenDesc[f.Description] {
			continue
		}
		seenDesc[f.Description] = true
		source := "unknown"
		if len(f.Sources) > 0 {
			source = f.Sources[0]
		}
		descriptions = append(descriptions, fmt.Sprintf("**[%s]** %s", titleCase(source), f.Description))
	}

	var suggestions []string
	seenSug := make(map[string]bool)
	for _, f := range group {
		if f.Suggestion != "" && !seenSug[f.Suggestion] {
			seenSug[f.Suggestion] = true
			suggestions = append(suggestions, f.Suggestion)
		}
	}
	suggestion := base.Suggestion
	if len(suggestions) > 0 {
		suggestion = strings.Join(suggestions, " | ")
	}

	return review.Finding{
		ID:               "merged-" + base.ID,
		FilePath:         base.FilePath,
		LineStart:        base.LineStart,
		LineEnd:          base.LineEnd,
		Severity:         review.ClampSeverity(base.Severity + 1),
		OriginalSeverity: base.Severity,
		Category:         category,
		Title:            fmt.Sprintf("[%s] %s", sourcePrefix(sources), base.Title),
		Description:      strings.Join(descriptions, "\n\n"),
		Suggestion:       suggestion,
		CodeSnippet:      base.CodeSnippet,
		Confidence:       review.DefaultConfidence,
		Sources:          sources,
		Merged:           true,
		FindingCount:     len(group),
	}
}

// sourcePrefix builds the "[SEC+PER]" style marker from sorted source
// kinds.
func sourcePrefix(sources []string) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		if len(s) > 3 {
			s = s[:3]
		}
		parts[i] = strings.ToUpper(s)
	}
	return strings.Join(parts, "+")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
