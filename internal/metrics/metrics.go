// Package metrics records pipeline measurements through the store. Metric
// writes are observability only: every recorder logs failures and returns,
// so a broken metrics table can never fail a review.
package metrics

import (
	"context"
	"log"

	"convergence/internal/review"
	"convergence/internal/store"
)

type Recorder struct {
	Store *store.Store
}

func (r *Recorder) record(ctx context.Context, name string, value float64, tags map[string]any) {
	if r == nil || r.Store == nil {
		return
	}
	if err := r.Store.RecordMetric(ctx, name, value, tags); err != nil {
		log.Printf("[metrics] failed to record %s: %v", name, err)
	}
}

// AgentLatency records one agent task's wall time.
func (r *Recorder) AgentLatency(ctx context.Context, sessionID, kind string, latencyMS int64) {
	r.record(ctx, "agent_latency_ms", float64(latencyMS), map[string]any{
		"agent_type": kind,
		"session_id": sessionID,
	})
}

// FindingsByAgent records how many findings one agent reported.
func (r *Recorder) FindingsByAgent(ctx context.Context, sessionID, kind string, count int) {
	r.record(ctx, "findings_per_agent", float64(count), map[string]any{
		"agent_type": kind,
		"session_id": sessionID,
	})
}

// ReviewDuration records a whole review run.
func (r *Recorder) ReviewDuration(ctx context.Context, sessionID string, durationMS int64, findingsCount int) {
	r.record(ctx, "total_review_time_ms", float64(durationMS), map[string]any{
		"session_id":     sessionID,
		"findings_count": findingsCount,
	})
}

// CrossReferenceCount records how many judgments the cross-validation round
// produced.
func (r *Recorder) CrossReferenceCount(ctx context.Context, sessionID string, count int) {
	r.record(ctx, "cross_reference_count", float64(count), map[string]any{
		"session_id": sessionID,
	})
}

// SeverityDistribution records one sample per severity level present in the
// final findings.
func (r *Recorder) SeverityDistribution(ctx context.Context, sessionID string, findings []review.Finding) {
	counts := make(map[int]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	for severity, count := range counts {
		r.record(ctx, "severity_distribution", float64(count), map[string]any{
			"severity":   severity,
			"session_id": sessionID,
		})
	}
}
