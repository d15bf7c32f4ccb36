package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"convergence/internal/llm"
	"convergence/internal/review"
	"convergence/internal/store"
	"convergence/internal/util/jsonutil"
)

// Runner dispatches agent tasks over one change set. Each task runs
// independently; a failure degrades that task to an empty result and never
// aborts siblings.
type Runner struct {
	Store *store.Store
	LLM   llm.Client
}

// findingsEnvelope is the JSON contract the agents are instructed to emit.
type findingsEnvelope struct {
	Findings []review.Finding `json:"findings"`
	Summary  string           `json:"summary"`
}

// RunAgent runs a single agent against the session's change set, persists
// its raw output, and marks the kind completed. The returned result is
// always well-formed; backend or parse failures degrade it to empty
// findings with the error captured in Summary.
func (r *Runner) RunAgent(ctx context.Context, sess review.Session, kind string) (review.AgentResult, error) {
	a, ok := Registry[kind]
	if !ok {
		return review.AgentResult{}, fmt.Errorf("agent: unknown kind %q", kind)
	}

	log.Printf("[%s] starting analysis for session %s", kind, sess.ID)
	start := time.Now()

	prompt := BuildPrompt(a, sess.GitHub, sess.Files)
	ctx = llm.WithAgentKind(ctx, kind)

	var env findingsEnvelope
	raw, err := r.LLM.GenerateJSON(ctx, prompt)
	if err != nil {
		log.Printf("[%s] backend call failed: %v", kind, err)
		env = findingsEnvelope{Summary: fmt.Sprintf("Error: %v", err)}
	} else if perr := jsonutil.UnmarshalRaw(raw, &env); perr != nil {
		log.Printf("[%s] failed to parse response: %v (raw: %s)", kind, perr, jsonutil.Truncate(string(raw), 500))
		env = findingsEnvelope{Summary: fmt.Sprintf("Error parsing response: %v", perr)}
	}

	normalizeFindings(kind, env.Findings)

	res := review.AgentResult{
		SessionID: sess.ID,
		AgentKind: kind,
		Findings:  env.Findings,
		Summary:   env.Summary,
		ModelUsed: r.LLM.Name(),
		LatencyMS: time.Since(start).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}

	if err := r.Store.PutAgentResult(ctx, res); err != nil {
		return review.AgentResult{}, fmt.Errorf("agent: persist %s result: %w", kind, err)
	}
	if err := r.Store.MarkAgentCompleted(ctx, sess.ID, kind); err != nil {
		return review.AgentResult{}, fmt.Errorf("agent: mark %s completed: %w", kind, err)
	}

	log.Printf("[%s] completed in %dms, found %d issues", kind, res.LatencyMS, len(res.Findings))
	return res, nil
}

// RunAll fans out one task per kind concurrently and waits for all of them
// to settle. The returned mapping is total over the requested kinds; a task
// whose persistence failed is degraded here rather than propagated.
func (r *Runner) RunAll(ctx context.Context, sess review.Session, kinds []string) (map[string]review.AgentResult, error) {
	if len(kinds) == 0 {
		kinds = Kinds()
	}

	_, err := r.Store.UpdateSession(ctx, sess.ID, func(s *review.Session) {
		s.Status = review.StatusAnalyzing
		s.AgentsDispatched = append([]string(nil), kinds...)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[dispatch] dispatching %d agents for session %s", len(kinds), sess.ID)

	// Each task writes only its own slot; no shared mutable state.
	type slot struct {
		res review.AgentResult
		err error
	}
	slots := make([]slot, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind string) {
			defer wg.Done()
			slots[i].res, slots[i].err = r.RunAgent(ctx, sess, kind)
		}(i, kind)
	}
	wg.Wait()

	results := make(map[string]review.AgentResult, len(kinds))
	for i, kind := range kinds {
		if slots[i].err != nil {
			log.Printf("[dispatch] agent %s failed: %v", kind, slots[i].err)
			results[kind] = review.AgentResult{
				SessionID: sess.ID,
				AgentKind: kind,
				Summary:   fmt.Sprintf("Error: %v", slots[i].err),
				CreatedAt: time.Now().UTC(),
			}
			continue
		}
		results[kind] = slots[i].res
	}
	return results, nil
}

// normalizeFindings assigns deterministic ids to findings missing one and
// enforces the data-model invariants.
func normalizeFindings(kind string, findings []review.Finding) {
	for i := range findings {
		if findings[i].ID == "" {
			findings[i].ID = fmt.Sprintf("%s-%03d", IDPrefix(kind), i+1)
		}
		findings[i].Normalize()
	}
}
