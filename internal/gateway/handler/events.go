package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"convergence/internal/review"
	"convergence/internal/util/jsonutil"
)

// Progress event names pushed to stream clients.
const (
	eventAgentCompleted     = "agent_completed"
	eventCrossReference     = "cross_reference"
	eventConvergenceStarted = "convergence_started"
	eventReviewComplete     = "review_complete"
	eventStreamComplete     = "stream_complete"
	eventHeartbeat          = "heartbeat"
	eventError              = "error"
)

const streamPollInterval = 2 * time.Second

type progressEvent struct {
	Event string
	Data  map[string]any
}

// watchSession polls the session and pushes the diff since the last poll
// through emit. Returns when the session reaches a terminal state, emit
// fails, or the context is done.
func (s *Service) watchSession(ctx context.Context, sessionID string, emit func(progressEvent) error) {
	sentAgents := make(map[string]bool)
	sentCrossRefs := 0
	convergenceStarted := false

	for {
		sess, err := s.Store.GetSession(ctx, sessionID)
		if err != nil {
			_ = emit(progressEvent{eventError, map[string]any{"error": "Session not found"}})
			return
		}

		for _, kind := range sess.AgentsCompleted {
			if sentAgents[kind] {
				continue
			}
			findingsCount := 0
			var latencyMS int64
			if res, ok, err := s.Store.GetAgentResult(ctx, sessionID, kind); err == nil && ok {
				findingsCount = len(res.Findings)
				latencyMS = res.LatencyMS
			}
			if err := emit(progressEvent{eventAgentCompleted, map[string]any{
				"agent":          kind,
				"findings_count": findingsCount,
				"latency_ms":     latencyMS,
			}}); err != nil {
				return
			}
			sentAgents[kind] = true
		}

		if sess.Status == review.StatusConverging || sess.Status == review.StatusComplete {
			refs, err := s.Store.ListCrossReferences(ctx, sessionID)
			if err == nil {
				// Judgments are append-only, so the diff is just the tail.
				for _, ref := range refs[min(sentCrossRefs, len(refs)):] {
					if err := emit(progressEvent{eventCrossReference, map[string]any{
						"source":       ref.SourceAgent,
						"target":       ref.TargetFindingID,
						"relationship": ref.Relationship,
						"comment":      jsonutil.Truncate(ref.Comment, 100),
					}}); err != nil {
						return
					}
				}
				if len(refs) > sentCrossRefs {
					sentCrossRefs = len(refs)
				}
			}
		}

		if sess.Status == review.StatusConverging && !convergenceStarted {
			if err := emit(progressEvent{eventConvergenceStarted, map[string]any{}}); err != nil {
				return
			}
			convergenceStarted = true
		}

		if sess.Status == review.StatusComplete {
			data := map[string]any{
				"findings_count":   0,
				"critical_count":   0,
				"duration_ms":      int64(0),
				"github_review_id": int64(0),
			}
			if fr := sess.FinalReview; fr != nil {
				data["findings_count"] = fr.FindingsCount
				data["critical_count"] = fr.CriticalCount
				data["duration_ms"] = fr.DurationMS
				data["github_review_id"] = fr.GitHubReviewID
			}
			if err := emit(progressEvent{eventReviewComplete, data}); err != nil {
				return
			}
			_ = emit(progressEvent{eventStreamComplete, map[string]any{"message": "Review complete"}})
			return
		}

		if sess.Status == review.StatusError {
			errMsg := sess.Error
			if errMsg == "" {
				errMsg = "Unknown error"
			}
			_ = emit(progressEvent{eventError, map[string]any{"error": errMsg}})
			return
		}

		if err := emit(progressEvent{eventHeartbeat, map[string]any{"timestamp": time.Now().UnixMilli()}}); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamPollInterval):
		}
	}
}

// HandleSessionStream streams progress as server-sent events.
func (s *Service) HandleSessionStream(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.Store.GetSession(r.Context(), sessionID); err != nil {
		s.writeStoreError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.watchSession(r.Context(), sessionID, func(evt progressEvent) error {
		payload, err := json.Marshal(evt.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var sessionWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsOutbound struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// HandleSessionWS streams the same progress events over a websocket for
// clients that cannot hold an SSE connection.
func (s *Service) HandleSessionWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, err := s.Store.GetSession(r.Context(), sessionID); err != nil {
		s.writeStoreError(w, err)
		return
	}

	conn, err := sessionWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("[events] session ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Reader goroutine only services pongs and detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	s.watchSession(ctx, sessionID, func(evt progressEvent) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case writeCh <- wsOutbound{Event: evt.Event, Data: evt.Data}:
			return nil
		}
	})

	cancel()
	<-writerDone
}
