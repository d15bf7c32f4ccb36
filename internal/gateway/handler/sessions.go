package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"convergence/internal/review/agent"
	"convergence/internal/store"
)

// HandleSessions serves GET /sessions (list, ?limit=N).
func (s *Service) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.Store.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleSession serves /sessions/{id} and its sub-resources: GET and
// DELETE on the session itself, GET {id}/status, {id}/report,
// {id}/stream, {id}/ws.
func (s *Service) HandleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	sessionID := strings.TrimSpace(parts[0])
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "status":
			s.handleSessionStatus(w, r, sessionID)
		case "report":
			s.HandleSessionReport(w, r, sessionID)
		case "stream":
			s.HandleSessionStream(w, r, sessionID)
		case "ws":
			s.HandleSessionWS(w, r, sessionID)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		sess, err := s.Store.GetSession(r.Context(), sessionID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	case http.MethodDelete:
		if err := s.Store.DeleteSession(r.Context(), sessionID); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": sessionID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSessionStatus reports per-agent progress without streaming.
func (s *Service) handleSessionStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, err := s.Store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	completed := make(map[string]bool, len(sess.AgentsCompleted))
	for _, kind := range sess.AgentsCompleted {
		completed[kind] = true
	}

	agentStatuses := make(map[string]any, len(agent.Registry))
	for _, kind := range agent.Kinds() {
		res, ok, err := s.Store.GetAgentResult(r.Context(), sessionID, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		switch {
		case ok:
			agentStatuses[kind] = map[string]any{
				"status":         "completed",
				"findings_count": len(res.Findings),
				"latency_ms":     res.LatencyMS,
			}
		case completed[kind]:
			agentStatuses[kind] = map[string]any{"status": "completed", "findings_count": 0}
		default:
			agentStatuses[kind] = map[string]any{"status": "pending"}
		}
	}

	refs, err := s.Store.ListCrossReferences(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":             sessionID,
		"status":                 sess.Status,
		"agents":                 agentStatuses,
		"cross_references_count": len(refs),
		"final_review":           sess.FinalReview,
		"created_at":             sess.CreatedAt,
		"updated_at":             sess.UpdatedAt,
	})
}

// HandleSessionReport serves the archived report markdown for a session.
func (s *Service) HandleSessionReport(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := s.Store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if sess.FinalReview == nil {
		writeError(w, http.StatusNotFound, "review not complete")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(sess.FinalReview.Summary))
}

func (s *Service) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
