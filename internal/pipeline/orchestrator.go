// Package pipeline runs a review session end to end: agent fan-out,
// cross-validation, merge, consensus, report synthesis, and the optional
// post back to the pull request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"convergence/internal/archive"
	"convergence/internal/llm"
	"convergence/internal/metrics"
	"convergence/internal/review"
	"convergence/internal/review/agent"
	"convergence/internal/review/converge"
	"convergence/internal/store"
	"convergence/internal/vcs"
)

// Orchestrator wires the pipeline's collaborators. Archive and Metrics are
// optional; a nil archive skips report archival and a nil recorder is a
// no-op.
type Orchestrator struct {
	Store   *store.Store
	LLM     llm.Client
	GitHub  *vcs.Client
	Archive *archive.Store
	Metrics *metrics.Recorder
}

// Result is what one full run produces.
type Result struct {
	Status          string   `json:"status"`
	SessionID       string   `json:"session_id"`
	Reason          string   `json:"reason,omitempty"`
	FindingsCount   int      `json:"findings_count"`
	CriticalCount   int      `json:"critical_count"`
	AgentsCompleted []string `json:"agents_completed,omitempty"`
	DurationMS      int64    `json:"duration_ms"`
	GitHubReviewID  int64    `json:"github_review_id,omitempty"`
	ReviewMarkdown  string   `json:"review_markdown,omitempty"`
}

// Run executes the whole pipeline for an existing session. Fatal failures
// move the session to the error state before returning; a failed post to
// the report sink is logged and the computed report kept.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, postToGitHub bool) (Result, error) {
	res, err := o.run(ctx, sessionID, postToGitHub)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		o.failSession(ctx, sessionID, err)
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, postToGitHub bool) (Result, error) {
	start := time.Now()

	sess, err := o.Store.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	log.Printf("[pipeline] loaded session %s (%s/%s#%d)", sess.ID, sess.GitHub.RepoOwner, sess.GitHub.RepoName, sess.GitHub.PRNumber)

	if len(sess.Files) == 0 {
		log.Printf("[pipeline] session %s has no files to review", sess.ID)
		_, err := o.Store.UpdateSession(ctx, sess.ID, func(s *review.Session) {
			s.Status = review.StatusComplete
			s.Error = "No reviewable files"
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Status: "skipped", SessionID: sess.ID, Reason: "No reviewable files"}, nil
	}

	// Agent fan-out. Every requested kind settles; failed tasks degrade to
	// empty results inside the runner.
	runner := &agent.Runner{Store: o.Store, LLM: o.LLM}
	agentResults, err := runner.RunAll(ctx, sess, nil)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: run agents: %w", err)
	}
	for kind, res := range agentResults {
		o.Metrics.AgentLatency(ctx, sess.ID, kind, res.LatencyMS)
		o.Metrics.FindingsByAgent(ctx, sess.ID, kind, len(res.Findings))
	}

	sess, err = o.Store.UpdateSession(ctx, sess.ID, func(s *review.Session) {
		s.Status = review.StatusConverging
	})
	if err != nil {
		return Result{}, err
	}
	agentsCompleted := append([]string(nil), sess.AgentsCompleted...)

	// Cross-validation round: agents judge each other's findings.
	validator := &converge.CrossValidator{Store: o.Store, LLM: o.LLM}
	crossRes, err := validator.Run(ctx, sess.ID)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: cross-validation: %w", err)
	}
	o.Metrics.CrossReferenceCount(ctx, sess.ID, len(crossRes.CrossReferences))

	// Convergence: merge same-location findings, then apply consensus.
	log.Printf("[pipeline] running convergence pass for session %s", sess.ID)
	byAgent := make(map[string][]review.Finding, len(agentResults))
	for kind, res := range agentResults {
		byAgent[kind] = res.Findings
	}
	findings := converge.Merge(byAgent)
	findings = converge.ApplyConsensus(findings, crossRes.CrossReferences)
	o.Metrics.SeverityDistribution(ctx, sess.ID, findings)

	durationMS := time.Since(start).Milliseconds()
	markdown := converge.Synthesize(sess.GitHub.PRTitle, sess.GitHub.PRURL, findings, agentsCompleted, durationMS)

	var reviewID int64
	if postToGitHub && o.GitHub != nil {
		reviewID, err = o.GitHub.PostReview(ctx, sess.GitHub.RepoOwner, sess.GitHub.RepoName, sess.GitHub.PRNumber, markdown, converge.Disposition(findings))
		if err != nil {
			// The report stays valid; only delivery failed.
			log.Printf("[pipeline] failed to post review to GitHub: %v", err)
			reviewID = 0
		}
	}

	if o.Archive != nil {
		if err := o.Archive.PutReport(ctx, sess.ID, markdown); err != nil {
			log.Printf("[pipeline] failed to archive report for session %s: %v", sess.ID, err)
		}
	}

	criticalCount := converge.CriticalCount(findings)
	now := time.Now().UTC()
	_, err = o.Store.UpdateSession(ctx, sess.ID, func(s *review.Session) {
		s.Status = review.StatusComplete
		s.CompletedAt = &now
		s.FinalReview = &review.FinalReview{
			Summary:        markdown,
			FindingsCount:  len(findings),
			CriticalCount:  criticalCount,
			DurationMS:     durationMS,
			PostedAt:       now,
			GitHubReviewID: reviewID,
		}
	})
	if err != nil {
		return Result{}, err
	}
	o.Metrics.ReviewDuration(ctx, sess.ID, durationMS, len(findings))

	log.Printf("[pipeline] review complete for session %s: %d findings in %dms", sess.ID, len(findings), durationMS)
	return Result{
		Status:          "complete",
		SessionID:       sess.ID,
		FindingsCount:   len(findings),
		CriticalCount:   criticalCount,
		AgentsCompleted: agentsCompleted,
		DurationMS:      durationMS,
		GitHubReviewID:  reviewID,
		ReviewMarkdown:  markdown,
	}, nil
}

// CreateSessionFromPR builds a session for a pull request head, fetching
// context and the change set from GitHub. Re-deliveries of the same head
// return the existing session.
func (o *Orchestrator) CreateSessionFromPR(ctx context.Context, owner, repo string, prNumber int) (string, error) {
	gh, err := o.GitHub.GetPRContext(ctx, owner, repo, prNumber)
	if err != nil {
		return "", fmt.Errorf("pipeline: fetch PR context: %w", err)
	}
	return o.CreateSessionFromContext(ctx, gh)
}

// CreateSessionFromContext builds a session from an already-known PR
// context, as delivered in a webhook payload. Only the change set is
// fetched.
func (o *Orchestrator) CreateSessionFromContext(ctx context.Context, gh review.GitHubContext) (string, error) {
	if existing, ok := o.Store.FindSessionByHead(ctx, gh.RepoOwner, gh.RepoName, gh.PRNumber, gh.HeadSHA); ok {
		log.Printf("[pipeline] reusing session %s for %s/%s#%d@%s", existing.ID, gh.RepoOwner, gh.RepoName, gh.PRNumber, gh.HeadSHA)
		return existing.ID, nil
	}

	files, err := o.GitHub.ListPRFiles(ctx, gh.RepoOwner, gh.RepoName, gh.PRNumber)
	if err != nil {
		return "", fmt.Errorf("pipeline: fetch PR files: %w", err)
	}
	files = review.PrioritizeFiles(files)
	log.Printf("[pipeline] change set for %s/%s#%d: %s", gh.RepoOwner, gh.RepoName, gh.PRNumber, review.FileSummary(files))

	id, err := o.Store.CreateSession(ctx, review.Session{
		GitHub: gh,
		Files:  files,
		Status: review.StatusPending,
	})
	if err != nil {
		return "", fmt.Errorf("pipeline: create session: %w", err)
	}
	log.Printf("[pipeline] created session %s", id)
	return id, nil
}

// failSession moves the session to the terminal error state. Best effort;
// the original error is what the caller sees.
func (o *Orchestrator) failSession(ctx context.Context, sessionID string, cause error) {
	_, err := o.Store.UpdateSession(ctx, sessionID, func(s *review.Session) {
		s.Status = review.StatusError
		s.Error = cause.Error()
	})
	if err != nil {
		log.Printf("[pipeline] failed to mark session %s errored: %v", sessionID, err)
	}
}
