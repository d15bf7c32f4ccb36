package metrics

import (
	"context"
	"math"
	"time"

	"convergence/internal/review/agent"
)

// Stats aggregates one metric name over a window.
type Stats struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// AgentStats is the per-agent performance breakdown.
type AgentStats struct {
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	AvgFindings   float64 `json:"avg_findings"`
	TotalFindings int     `json:"total_findings"`
	ReviewCount   int     `json:"review_count"`
}

// Summary aggregates recorded metrics over the trailing window for the
// dashboard endpoint.
func (r *Recorder) Summary(ctx context.Context, window time.Duration) (map[string]Stats, error) {
	since := time.Now().UTC().Add(-window)
	ms, err := r.Store.ListMetricsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := make(map[string]Stats)
	for _, m := range ms {
		st, ok := summary[m.Name]
		if !ok {
			st = Stats{Min: math.Inf(1), Max: math.Inf(-1)}
		}
		st.Avg += m.Value
		st.Min = math.Min(st.Min, m.Value)
		st.Max = math.Max(st.Max, m.Value)
		st.Count++
		summary[m.Name] = st
	}
	for name, st := range summary {
		st.Avg = round2(st.Avg / float64(st.Count))
		summary[name] = st
	}
	return summary, nil
}

// AgentPerformance breaks latency and findings down by agent kind.
func (r *Recorder) AgentPerformance(ctx context.Context, window time.Duration) (map[string]AgentStats, error) {
	since := time.Now().UTC().Add(-window)
	ms, err := r.Store.ListMetricsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	type acc struct {
		latencySum   float64
		latencyCount int
		findingsSum  float64
		reviewCount  int
	}
	byKind := make(map[string]*acc)
	for _, m := range ms {
		kind, _ := m.Tags["agent_type"].(string)
		if kind == "" {
			continue
		}
		a, ok := byKind[kind]
		if !ok {
			a = &acc{}
			byKind[kind] = a
		}
		switch m.Name {
		case "agent_latency_ms":
			a.latencySum += m.Value
			a.latencyCount++
		case "findings_per_agent":
			a.findingsSum += m.Value
			a.reviewCount++
		}
	}

	performance := make(map[string]AgentStats, len(agent.Registry))
	for _, kind := range agent.Kinds() {
		st := AgentStats{}
		if a, ok := byKind[kind]; ok {
			if a.latencyCount > 0 {
				st.AvgLatencyMS = round2(a.latencySum / float64(a.latencyCount))
			}
			if a.reviewCount > 0 {
				st.AvgFindings = round2(a.findingsSum / float64(a.reviewCount))
			}
			st.TotalFindings = int(a.findingsSum)
			st.ReviewCount = a.reviewCount
		}
		performance[kind] = st
	}
	return performance, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
