// Package store is the document store for review sessions, per-agent raw
// findings, cross-reference judgments, and metrics. It runs against
// Postgres when a DSN is configured and falls back to an in-memory backend
// otherwise (local runs, tests).
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"convergence/internal/review"
)

var ErrSessionNotFound = errors.New("store: session not found")

// Metric is one recorded measurement.
type Metric struct {
	Name      string         `json:"name"`
	Value     float64        `json:"value"`
	Tags      map[string]any `json:"tags,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	sessionCache *lru.Cache[string, review.Session]

	// In-memory backend.
	mu        sync.RWMutex
	sessions  map[string]review.Session
	results   map[string]map[string]review.AgentResult
	crossRefs map[string][]review.CrossReference
	metrics   []Metric
}

// New returns an in-memory store.
func New() *Store {
	return &Store{
		sessions:  make(map[string]review.Session),
		results:   make(map[string]map[string]review.AgentResult),
		crossRefs: make(map[string][]review.CrossReference),
	}
}

// NewPostgres returns a store backed by Postgres via the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, review.Session](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, sessionCache: cache}, nil
}

// NewFromEnv picks Postgres when STORE_PG_DSN is set, memory otherwise.
func NewFromEnv() *Store {
	dsn := strings.TrimSpace(os.Getenv("STORE_PG_DSN"))
	if dsn == "" {
		return New()
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New()
	}
	return s
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the backing database is reachable. The in-memory backend is
// always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// CreateSession persists a new session and returns its id. The caller sets
// GitHub context and files; the store owns id and timestamps.
func (s *Store) CreateSession(ctx context.Context, sess review.Session) (string, error) {
	now := time.Now().UTC()
	sess.ID = newSessionID()
	if sess.Status == "" {
		sess.Status = review.StatusPending
	}
	sess.CreatedAt = now
	sess.UpdatedAt = now
	if s.db != nil {
		if err := s.putSessionDB(ctx, sess); err != nil {
			return "", err
		}
		s.sessionCache.Add(sess.ID, sess)
		return sess.ID, nil
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.ID, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (review.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return review.Session{}, ErrSessionNotFound
	}
	if s.db != nil {
		if cached, ok := s.sessionCache.Get(id); ok {
			return cached, nil
		}
		return s.getSessionDB(ctx, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return review.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// FindSessionByHead returns an existing session for the same PR head, used
// to dedupe webhook deliveries.
func (s *Store) FindSessionByHead(ctx context.Context, owner, repo string, prNumber int, headSHA string) (review.Session, bool) {
	if s.db != nil {
		return s.findSessionByHeadDB(ctx, owner, repo, prNumber, headSHA)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		gh := sess.GitHub
		if gh.RepoOwner == owner && gh.RepoName == repo && gh.PRNumber == prNumber && gh.HeadSHA == headSHA {
			return sess, true
		}
	}
	return review.Session{}, false
}

// UpdateSession applies update under the store's lock (or a row lock on
// Postgres) and bumps UpdatedAt. Only the orchestrating flow calls this.
func (s *Store) UpdateSession(ctx context.Context, id string, update func(*review.Session)) (review.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return review.Session{}, ErrSessionNotFound
	}
	if s.db != nil {
		sess, err := s.updateSessionDB(ctx, id, update)
		if err == nil {
			s.sessionCache.Add(id, sess)
		}
		return sess, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return review.Session{}, ErrSessionNotFound
	}
	update(&sess)
	sess.ID = id
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return sess, nil
}

// MarkAgentCompleted adds kind to the session's completed set. Add-to-set is
// commutative and idempotent, so concurrent agent tasks may call it in any
// order.
func (s *Store) MarkAgentCompleted(ctx context.Context, id, kind string) error {
	_, err := s.UpdateSession(ctx, id, func(sess *review.Session) {
		for _, k := range sess.AgentsCompleted {
			if k == kind {
				return
			}
		}
		sess.AgentsCompleted = append(sess.AgentsCompleted, kind)
	})
	return err
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]review.Session, error) {
	if limit <= 0 {
		limit = 10
	}
	if s.db != nil {
		return s.listSessionsDB(ctx, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]review.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sortSessionsByCreatedDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteSession removes the session and everything hanging off it.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionNotFound
	}
	if s.db != nil {
		s.sessionCache.Remove(id)
		return s.deleteSessionDB(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.results, id)
	delete(s.crossRefs, id)
	return nil
}

// PutAgentResult upserts one agent's raw output, keyed (session, kind).
// The write is idempotent so a retried task cannot duplicate results.
func (s *Store) PutAgentResult(ctx context.Context, res review.AgentResult) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if s.db != nil {
		return s.putAgentResultDB(ctx, res)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.results[res.SessionID]
	if !ok {
		byKind = make(map[string]review.AgentResult)
		s.results[res.SessionID] = byKind
	}
	byKind[res.AgentKind] = res
	return nil
}

func (s *Store) GetAgentResult(ctx context.Context, sessionID, kind string) (review.AgentResult, bool, error) {
	if s.db != nil {
		return s.getAgentResultDB(ctx, sessionID, kind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[sessionID][kind]
	return res, ok, nil
}

// ListAgentResults returns all persisted agent outputs for a session,
// ordered by agent kind for determinism.
func (s *Store) ListAgentResults(ctx context.Context, sessionID string) ([]review.AgentResult, error) {
	if s.db != nil {
		return s.listAgentResultsDB(ctx, sessionID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKind := s.results[sessionID]
	out := make([]review.AgentResult, 0, len(byKind))
	for _, res := range byKind {
		out = append(out, res)
	}
	sortAgentResultsByKind(out)
	return out, nil
}

// AppendCrossReferences stores judgments append-only; no uniqueness
// constraint applies.
func (s *Store) AppendCrossReferences(ctx context.Context, refs []review.CrossReference) error {
	now := time.Now().UTC()
	for i := range refs {
		if refs[i].CreatedAt.IsZero() {
			refs[i].CreatedAt = now
		}
	}
	if s.db != nil {
		return s.appendCrossReferencesDB(ctx, refs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		s.crossRefs[ref.SessionID] = append(s.crossRefs[ref.SessionID], ref)
	}
	return nil
}

func (s *Store) ListCrossReferences(ctx context.Context, sessionID string) ([]review.CrossReference, error) {
	if s.db != nil {
		return s.listCrossReferencesDB(ctx, sessionID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.crossRefs[sessionID]
	out := make([]review.CrossReference, len(refs))
	copy(out, refs)
	return out, nil
}

// RecordMetric stores one measurement. Metrics are observability only;
// failures are returned but callers generally log and move on.
func (s *Store) RecordMetric(ctx context.Context, name string, value float64, tags map[string]any) error {
	m := Metric{Name: name, Value: value, Tags: tags, Timestamp: time.Now().UTC()}
	if s.db != nil {
		return s.recordMetricDB(ctx, m)
	}
	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
	return nil
}

// ListMetricsSince returns all metrics recorded at or after since.
func (s *Store) ListMetricsSince(ctx context.Context, since time.Time) ([]Metric, error) {
	if s.db != nil {
		return s.listMetricsSinceDB(ctx, since)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Metric
	for _, m := range s.metrics {
		if !m.Timestamp.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}
