package converge

import (
	"log"

	"convergence/internal/review"
)

// ApplyConsensus recomputes severity from the judgments targeting each
// merged finding and returns derived copies; the input is never mutated.
//
// Rule, in priority order:
//   - any conflict vetoes a boost (and never lowers severity)
//   - 3+ reinforcements: +2
//   - 2 reinforcements: +1
//   - 2+ extensions: +1
//
// Each boost is clamped to 5. OriginalSeverity records the value this step
// started from, which may already include a merge boost.
func ApplyConsensus(findings []review.Finding, refs []review.CrossReference) []review.Finding {
	adjusted := make([]review.Finding, 0, len(findings))
	for _, f := range findings {
		prior := f.Severity
		next := consensusSeverity(f, refs)

		f.OriginalSeverity = prior
		f.Severity = next
		if next != prior {
			f.ConsensusAdjusted = true
			log.Printf("[consensus] adjustment: %s %d -> %d", f.ID, prior, next)
		}
		adjusted = append(adjusted, f)
	}
	return adjusted
}

func consensusSeverity(f review.Finding, refs []review.CrossReference) int {
	var reinforce, extend, conflict int
	for _, ref := range refs {
		if ref.TargetFindingID != f.ID {
			continue
		}
		switch ref.Relationship {
		case review.RelReinforce:
			reinforce++
		case review.RelExtend:
			extend++
		case review.RelConflict:
			conflict++
		}
	}

	if conflict > 0 {
		log.Printf("[consensus] finding %s: %d conflicts, keeping severity %d", f.ID, conflict, f.Severity)
		return f.Severity
	}
	switch {
	case reinforce >= 3:
		return review.ClampSeverity(f.Severity + 2)
	case reinforce >= 2:
		return review.ClampSeverity(f.Severity + 1)
	case extend >= 2:
		return review.ClampSeverity(f.Severity + 1)
	}
	return f.Severity
}
