package converge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"convergence/internal/llm"
	"convergence/internal/review"
	"convergence/internal/store"
	"convergence/internal/util/jsonutil"
)

// CrossValidator runs the round where each agent judges the other agents'
// findings. Judgments are append-only; the findings themselves are never
// touched here.
type CrossValidator struct {
	Store *store.Store
	LLM   llm.Client
}

// CrossValidationResult summarizes one round.
type CrossValidationResult struct {
	CrossReferences []review.CrossReference `json:"cross_references"`
	Summary         string                  `json:"summary"`
}

type crossRefEnvelope struct {
	CrossReferences []struct {
		TargetFindingID string  `json:"target_finding_id"`
		Relationship    string  `json:"relationship"`
		Comment         string  `json:"comment"`
		Confidence      float64 `json:"confidence"`
	} `json:"cross_references"`
}

// Run executes the cross-validation round for a session. Requires at least
// two stored agent results; with fewer there is nothing to judge. Each
// agent's pass is independent, so a failed or unparseable pass is logged
// and skipped while the others still count.
func (v *CrossValidator) Run(ctx context.Context, sessionID string) (CrossValidationResult, error) {
	results, err := v.Store.ListAgentResults(ctx, sessionID)
	if err != nil {
		return CrossValidationResult{}, fmt.Errorf("converge: list agent results: %w", err)
	}

	if len(results) < 2 {
		log.Printf("[crossref] session %s: not enough agents for cross-reference", sessionID)
		return CrossValidationResult{Summary: "Not enough agents for cross-reference"}, nil
	}

	byKind := make(map[string][]review.Finding, len(results))
	for _, res := range results {
		byKind[res.AgentKind] = res.Findings
	}

	var created []review.CrossReference
	for _, res := range results {
		refs := v.runAgentPass(ctx, sessionID, res.AgentKind, byKind)
		if len(refs) == 0 {
			continue
		}
		if err := v.Store.AppendCrossReferences(ctx, refs); err != nil {
			return CrossValidationResult{}, fmt.Errorf("converge: append cross-references: %w", err)
		}
		created = append(created, refs...)
	}

	log.Printf("[crossref] session %s: created %d cross-references", sessionID, len(created))
	return CrossValidationResult{
		CrossReferences: created,
		Summary:         fmt.Sprintf("Generated %d cross-references between agents", len(created)),
	}, nil
}

// runAgentPass has one agent judge every other agent's findings. Any
// failure degrades to no judgments from this agent.
func (v *CrossValidator) runAgentPass(ctx context.Context, sessionID, sourceAgent string, byKind map[string][]review.Finding) []review.CrossReference {
	prompt, ok := buildCrossRefPrompt(sourceAgent, byKind)
	if !ok {
		return nil
	}

	ctx = llm.WithAgentKind(ctx, sourceAgent)
	raw, err := v.LLM.GenerateJSON(ctx, prompt)
	if err != nil {
		log.Printf("[%s] error in cross-reference analysis: %v", sourceAgent, err)
		return nil
	}

	var env crossRefEnvelope
	if err := jsonutil.UnmarshalRaw(raw, &env); err != nil {
		log.Printf("[%s] failed to parse cross-reference JSON: %v", sourceAgent, err)
		return nil
	}

	now := time.Now().UTC()
	refs := make([]review.CrossReference, 0, len(env.CrossReferences))
	for _, cr := range env.CrossReferences {
		rel := review.Relationship(cr.Relationship)
		switch rel {
		case review.RelReinforce, review.RelExtend, review.RelConflict:
		default:
			log.Printf("[%s] skipping cross-reference with unknown relationship %q", sourceAgent, cr.Relationship)
			continue
		}
		confidence := cr.Confidence
		if confidence <= 0 {
			confidence = review.DefaultConfidence
		}
		refs = append(refs, review.CrossReference{
			SessionID:       sessionID,
			SourceAgent:     sourceAgent,
			TargetFindingID: cr.TargetFindingID,
			Relationship:    rel,
			Comment:         cr.Comment,
			Confidence:      confidence,
			CreatedAt:       now,
		})
		log.Printf("[crossref] %s -> %s (%s)", sourceAgent, cr.TargetFindingID, rel)
	}
	return refs
}

// buildCrossRefPrompt renders the other agents' findings as a reviewable
// digest plus the judgment contract. Returns false when every other agent
// came back empty, in which case there is nothing to send.
func buildCrossRefPrompt(sourceAgent string, byKind map[string][]review.Finding) (string, bool) {
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		if kind != sourceAgent {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)

	var sections []string
	for _, kind := range kinds {
		var b strings.Builder
		fmt.Fprintf(&b, "## %s Agent Findings:\n", titleCase(kind))
		for _, f := range byKind[kind] {
			fmt.Fprintf(&b, "- **%s** (%d/5) in %s:%d\n", f.Title, f.Severity, f.FilePath, f.LineStart)
			fmt.Fprintf(&b, "  Category: %s\n", f.Category)
			fmt.Fprintf(&b, "  Description: %s\n", jsonutil.Truncate(f.Description, 200))
			if f.Confidence > 0 {
				fmt.Fprintf(&b, "  Confidence: %g\n", f.Confidence)
			}
			fmt.Fprintf(&b, "  ID: %s\n\n", f.ID)
		}
		sections = append(sections, b.String())
	}
	if len(sections) == 0 {
		return "", false
	}

	prompt := fmt.Sprintf(`You are a %s expert reviewing findings from other agents in this code review.

Your task: Review the findings below and provide cross-references when you can:
- **reinforce**: You agree with this finding and can add supporting evidence
- **extend**: You can add additional context or related concerns to this finding
- **conflict**: You disagree with this finding based on your expertise

Findings from other agents:
%s

Respond with JSON:
{
  "cross_references": [
    {
      "target_finding_id": "sec-001",
      "relationship": "reinforce|extend|conflict",
      "comment": "Detailed explanation of your position",
      "confidence": 0.9
    }
  ]
}

Guidelines:
- Only provide cross-references for findings you can meaningfully contribute to
- Be specific and provide technical reasoning
- confidence: 0.0-1.0 how confident you are in this cross-reference
- Return empty array if you don't have meaningful contributions
- Return ONLY valid JSON, no markdown`, sourceAgent, strings.Join(sections, "\n"))

	return prompt, true
}
