package review

import "time"

// Relationship is the judgment one agent makes about another agent's finding.
type Relationship string

const (
	RelReinforce Relationship = "reinforce"
	RelExtend    Relationship = "extend"
	RelConflict  Relationship = "conflict"
)

// DefaultConfidence is assumed when the model omits a confidence score.
const DefaultConfidence = 0.8

// Finding is a single code review issue reported by an agent, or the merge
// of several same-location issues. Severity is always within [1,5].
type Finding struct {
	ID          string  `json:"id"`
	FilePath    string  `json:"file_path"`
	LineStart   int     `json:"line_start"`
	LineEnd     int     `json:"line_end"`
	Severity    int     `json:"severity"`
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Suggestion  string  `json:"suggestion,omitempty"`
	CodeSnippet string  `json:"code_snippet,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Reasoning   string  `json:"reasoning,omitempty"`

	// Merge and consensus provenance. Sources has one entry unless merged.
	Sources           []string `json:"sources,omitempty"`
	Merged            bool     `json:"merged,omitempty"`
	FindingCount      int      `json:"finding_count,omitempty"`
	OriginalSeverity  int      `json:"original_severity,omitempty"`
	ConsensusAdjusted bool     `json:"consensus_adjusted,omitempty"`
}

// ClampSeverity forces a raw severity into the valid [1,5] range.
func ClampSeverity(s int) int {
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}

// Normalize applies the invariants every stored finding must satisfy:
// severity in range, line_end >= line_start, confidence defaulted.
func (f *Finding) Normalize() {
	f.Severity = ClampSeverity(f.Severity)
	if f.LineEnd < f.LineStart {
		f.LineEnd = f.LineStart
	}
	if f.Confidence <= 0 {
		f.Confidence = DefaultConfidence
	}
}

// AgentResult is one agent's raw output for a session, persisted keyed by
// (session, agent kind). A degraded run has empty findings and an error
// message in Summary.
type AgentResult struct {
	SessionID string    `json:"session_id"`
	AgentKind string    `json:"agent_kind"`
	Findings  []Finding `json:"findings"`
	Summary   string    `json:"summary"`
	ModelUsed string    `json:"model_used,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// CrossReference is an append-only judgment against a specific finding id.
// Target ids are stored as reported; ids that match no merged finding are
// simply inert during consensus.
type CrossReference struct {
	SessionID       string       `json:"session_id"`
	SourceAgent     string       `json:"source_agent"`
	TargetFindingID string       `json:"target_finding_id"`
	Relationship    Relationship `json:"relationship"`
	Comment         string       `json:"comment"`
	Confidence      float64      `json:"confidence"`
	CreatedAt       time.Time    `json:"created_at"`
}
