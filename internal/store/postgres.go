package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"convergence/internal/review"
)

// Sessions are stored as JSON documents with the lookup keys lifted into
// columns; agent findings and cross-references follow the same shape.
func (s *Store) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS review_sessions (
  session_id TEXT PRIMARY KEY,
  repo_owner TEXT NOT NULL DEFAULT '',
  repo_name TEXT NOT NULL DEFAULT '',
  pr_number INTEGER NOT NULL DEFAULT 0,
  head_sha TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  doc TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_review_sessions_pr ON review_sessions (repo_owner, repo_name, pr_number);
CREATE INDEX IF NOT EXISTS idx_review_sessions_created ON review_sessions (created_at DESC);

CREATE TABLE IF NOT EXISTS agent_findings (
  session_id TEXT NOT NULL,
  agent_kind TEXT NOT NULL,
  doc TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  UNIQUE (session_id, agent_kind)
);
CREATE INDEX IF NOT EXISTS idx_agent_findings_session ON agent_findings (session_id);

CREATE TABLE IF NOT EXISTS cross_references (
  id SERIAL PRIMARY KEY,
  session_id TEXT NOT NULL,
  doc TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_cross_references_session ON cross_references (session_id);

CREATE TABLE IF NOT EXISTS metrics (
  id SERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL,
  tags TEXT NOT NULL DEFAULT '{}',
  recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *Store) putSessionDB(ctx context.Context, sess review.Session) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	doc, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO review_sessions (session_id, repo_owner, repo_name, pr_number, head_sha, status, doc, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (session_id)
DO UPDATE SET status=EXCLUDED.status, doc=EXCLUDED.doc`,
		sess.ID, sess.GitHub.RepoOwner, sess.GitHub.RepoName, sess.GitHub.PRNumber,
		sess.GitHub.HeadSHA, string(sess.Status), string(doc), sess.CreatedAt)
	return err
}

func scanSessionDoc(row interface{ Scan(...any) error }) (review.Session, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return review.Session{}, ErrSessionNotFound
		}
		return review.Session{}, err
	}
	var sess review.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return review.Session{}, err
	}
	return sess, nil
}

func (s *Store) getSessionDB(ctx context.Context, id string) (review.Session, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return review.Session{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM review_sessions WHERE session_id = $1`, id)
	return scanSessionDoc(row)
}

func (s *Store) findSessionByHeadDB(ctx context.Context, owner, repo string, prNumber int, headSHA string) (review.Session, bool) {
	if err := s.ensureSchema(ctx); err != nil {
		return review.Session{}, false
	}
	row := s.db.QueryRowContext(ctx, `
SELECT doc FROM review_sessions
WHERE repo_owner = $1 AND repo_name = $2 AND pr_number = $3 AND head_sha = $4
LIMIT 1`, owner, repo, prNumber, headSHA)
	sess, err := scanSessionDoc(row)
	if err != nil {
		return review.Session{}, false
	}
	return sess, true
}

func (s *Store) updateSessionDB(ctx context.Context, id string, update func(*review.Session)) (review.Session, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return review.Session{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return review.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT doc FROM review_sessions WHERE session_id = $1 FOR UPDATE`, id)
	sess, err := scanSessionDoc(row)
	if err != nil {
		return review.Session{}, err
	}
	update(&sess)
	sess.ID = id
	sess.UpdatedAt = nowUTC()
	doc, err := json.Marshal(sess)
	if err != nil {
		return review.Session{}, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE review_sessions SET status=$2, doc=$3 WHERE session_id=$1`,
		id, string(sess.Status), string(doc))
	if err != nil {
		return review.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return review.Session{}, err
	}
	return sess, nil
}

func (s *Store) listSessionsDB(ctx context.Context, limit int) ([]review.Session, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT doc FROM review_sessions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []review.Session
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			continue
		}
		var sess review.Session
		if err := json.Unmarshal([]byte(doc), &sess); err != nil {
			continue
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) deleteSessionDB(ctx context.Context, id string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_sessions WHERE session_id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM agent_findings WHERE session_id = $1`, id)
	_, _ = s.db.ExecContext(ctx, `DELETE FROM cross_references WHERE session_id = $1`, id)
	return nil
}

func (s *Store) putAgentResultDB(ctx context.Context, res review.AgentResult) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	doc, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO agent_findings (session_id, agent_kind, doc, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (session_id, agent_kind)
DO UPDATE SET doc=EXCLUDED.doc, created_at=EXCLUDED.created_at`,
		res.SessionID, res.AgentKind, string(doc), res.CreatedAt)
	return err
}

func (s *Store) getAgentResultDB(ctx context.Context, sessionID, kind string) (review.AgentResult, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return review.AgentResult{}, false, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT doc FROM agent_findings WHERE session_id = $1 AND agent_kind = $2`, sessionID, kind)
	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return review.AgentResult{}, false, nil
		}
		return review.AgentResult{}, false, err
	}
	var res review.AgentResult
	if err := json.Unmarshal([]byte(doc), &res); err != nil {
		return review.AgentResult{}, false, err
	}
	return res, true, nil
}

func (s *Store) listAgentResultsDB(ctx context.Context, sessionID string) ([]review.AgentResult, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT doc FROM agent_findings WHERE session_id = $1 ORDER BY agent_kind`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []review.AgentResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			continue
		}
		var res review.AgentResult
		if err := json.Unmarshal([]byte(doc), &res); err != nil {
			continue
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *Store) appendCrossReferencesDB(ctx context.Context, refs []review.CrossReference) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	for _, ref := range refs {
		doc, err := json.Marshal(ref)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `
INSERT INTO cross_references (session_id, doc, created_at) VALUES ($1,$2,$3)`,
			ref.SessionID, string(doc), ref.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) listCrossReferencesDB(ctx context.Context, sessionID string) ([]review.CrossReference, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT doc FROM cross_references WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []review.CrossReference
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			continue
		}
		var ref review.CrossReference
		if err := json.Unmarshal([]byte(doc), &ref); err != nil {
			continue
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *Store) recordMetricDB(ctx context.Context, m Metric) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		tags = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO metrics (name, value, tags, recorded_at) VALUES ($1,$2,$3,$4)`,
		m.Name, m.Value, string(tags), m.Timestamp)
	return err
}

func (s *Store) listMetricsSinceDB(ctx context.Context, since time.Time) ([]Metric, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT name, value, tags, recorded_at FROM metrics WHERE recorded_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Metric
	for rows.Next() {
		var m Metric
		var tags string
		if err := rows.Scan(&m.Name, &m.Value, &tags, &m.Timestamp); err != nil {
			continue
		}
		_ = json.Unmarshal([]byte(tags), &m.Tags)
		out = append(out, m)
	}
	return out, rows.Err()
}

func sortSessionsByCreatedDesc(sessions []review.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

func sortAgentResultsByKind(results []review.AgentResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return strings.Compare(results[i].AgentKind, results[j].AgentKind) < 0
	})
}
