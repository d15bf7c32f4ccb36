package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convergence/internal/review"
)

func TestSessionLifecycle(t *testing.T) {
	st := New()
	ctx := context.Background()

	id, err := st.CreateSession(ctx, review.Session{
		GitHub: review.GitHubContext{RepoOwner: "acme", RepoName: "app", PRNumber: 1, HeadSHA: "abc123"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := st.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, review.StatusPending, sess.Status)
	require.False(t, sess.CreatedAt.IsZero())

	updated, err := st.UpdateSession(ctx, id, func(s *review.Session) {
		s.Status = review.StatusAnalyzing
	})
	require.NoError(t, err)
	require.Equal(t, review.StatusAnalyzing, updated.Status)
	require.True(t, !updated.UpdatedAt.Before(sess.UpdatedAt))

	require.NoError(t, st.DeleteSession(ctx, id))
	_, err = st.GetSession(ctx, id)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSessionNotFound(t *testing.T) {
	st := New()
	_, err := st.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = st.GetSession(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFindSessionByHead(t *testing.T) {
	st := New()
	ctx := context.Background()

	id, err := st.CreateSession(ctx, review.Session{
		GitHub: review.GitHubContext{RepoOwner: "acme", RepoName: "app", PRNumber: 7, HeadSHA: "abc123"},
	})
	require.NoError(t, err)

	found, ok := st.FindSessionByHead(ctx, "acme", "app", 7, "abc123")
	require.True(t, ok)
	require.Equal(t, id, found.ID)

	_, ok = st.FindSessionByHead(ctx, "acme", "app", 7, "def456")
	require.False(t, ok)
}

func TestMarkAgentCompletedIdempotent(t *testing.T) {
	st := New()
	ctx := context.Background()
	id, err := st.CreateSession(ctx, review.Session{})
	require.NoError(t, err)

	require.NoError(t, st.MarkAgentCompleted(ctx, id, "security"))
	require.NoError(t, st.MarkAgentCompleted(ctx, id, "security"))
	require.NoError(t, st.MarkAgentCompleted(ctx, id, "performance"))

	sess, err := st.GetSession(ctx, id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"security", "performance"}, sess.AgentsCompleted)
}

func TestPutAgentResultUpserts(t *testing.T) {
	st := New()
	ctx := context.Background()

	first := review.AgentResult{SessionID: "s1", AgentKind: "security", Summary: "first"}
	require.NoError(t, st.PutAgentResult(ctx, first))

	second := review.AgentResult{SessionID: "s1", AgentKind: "security", Summary: "second"}
	require.NoError(t, st.PutAgentResult(ctx, second))

	res, ok, err := st.GetAgentResult(ctx, "s1", "security")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", res.Summary)

	all, err := st.ListAgentResults(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestListAgentResultsSortedByKind(t *testing.T) {
	st := New()
	ctx := context.Background()
	for _, kind := range []string{"testing", "security", "performance"} {
		require.NoError(t, st.PutAgentResult(ctx, review.AgentResult{SessionID: "s1", AgentKind: kind}))
	}
	all, err := st.ListAgentResults(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "performance", all[0].AgentKind)
	require.Equal(t, "security", all[1].AgentKind)
	require.Equal(t, "testing", all[2].AgentKind)
}

func TestCrossReferencesAppendOnly(t *testing.T) {
	st := New()
	ctx := context.Background()

	ref := review.CrossReference{
		SessionID:       "s1",
		SourceAgent:     "security",
		TargetFindingID: "per-001",
		Relationship:    review.RelReinforce,
	}
	require.NoError(t, st.AppendCrossReferences(ctx, []review.CrossReference{ref}))
	require.NoError(t, st.AppendCrossReferences(ctx, []review.CrossReference{ref}))

	refs, err := st.ListCrossReferences(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, refs, 2, "duplicates are allowed, judgments are append-only")
	require.False(t, refs[0].CreatedAt.IsZero())
}

func TestListSessionsNewestFirst(t *testing.T) {
	st := New()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := st.CreateSession(ctx, review.Session{})
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	sessions, err := st.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, ids[2], sessions[0].ID)
	require.Equal(t, ids[1], sessions[1].ID)
}

func TestMetrics(t *testing.T) {
	st := New()
	ctx := context.Background()

	require.NoError(t, st.RecordMetric(ctx, "agent_latency_ms", 120, map[string]any{"agent_type": "security"}))
	require.NoError(t, st.RecordMetric(ctx, "agent_latency_ms", 80, nil))

	ms, err := st.ListMetricsSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, ms, 2)
	require.Equal(t, "agent_latency_ms", ms[0].Name)

	ms, err = st.ListMetricsSince(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, ms)
}
