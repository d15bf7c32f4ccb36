package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-github/v47/github"

	"convergence/internal/llm"
	"convergence/internal/metrics"
	"convergence/internal/pipeline"
	"convergence/internal/store"
	"convergence/internal/vcs"
)

const testSecret = "hunter2"

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	// Stub GitHub API serving one reviewable file.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/files"):
			fmt.Fprint(w, `[{"filename": "app/auth.py", "status": "modified", "patch": "+x", "additions": 1}]`)
		case strings.Contains(r.URL.Path, "/pulls/"):
			fmt.Fprint(w, `{"number": 7, "title": "Add login", "html_url": "https://example.com/pr/7",
				"head": {"sha": "abc123"}, "user": {"login": "dev"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	gh := github.NewClient(nil)
	base, _ := url.Parse(srv.URL + "/")
	gh.BaseURL = base

	st := store.New()
	orch := &pipeline.Orchestrator{
		Store:   st,
		LLM:     llm.NewFakeClient(),
		GitHub:  vcs.NewFromGitHub(gh),
		Metrics: &metrics.Recorder{Store: st},
	}
	return NewService(st, orch, testSecret, false), st
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func prEventBody(action string) []byte {
	return []byte(fmt.Sprintf(`{
		"action": %q,
		"pull_request": {
			"number": 7,
			"title": "Add login",
			"html_url": "https://example.com/pr/7",
			"head": {"sha": "abc123"},
			"user": {"login": "dev"}
		},
		"repository": {"name": "app", "owner": {"login": "acme"}}
	}`, action))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _ := newTestService(t)

	body := prEventBody("opened")
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()

	svc.HandleGitHubWebhook(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got=%d want=%d", rec.Code, http.StatusUnauthorized)
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	svc, _ := newTestService(t)

	body := []byte(`{"zen": "Design for failure."}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()

	svc.HandleGitHubWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d", rec.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "ignored" {
		t.Fatalf("response: %v", out)
	}
}

func TestWebhookIgnoresClosedAction(t *testing.T) {
	svc, _ := newTestService(t)

	body := prEventBody("closed")
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()

	svc.HandleGitHubWebhook(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "ignored" {
		t.Fatalf("response: %v", out)
	}
}

func TestWebhookCreatesSession(t *testing.T) {
	svc, st := newTestService(t)

	body := prEventBody("opened")
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()

	svc.HandleGitHubWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "processing" {
		t.Fatalf("response: %v", out)
	}
	sessionID, _ := out["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session id: %v", out)
	}

	sess, err := st.GetSession(req.Context(), sessionID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.GitHub.RepoOwner != "acme" || sess.GitHub.PRNumber != 7 || sess.GitHub.HeadSHA != "abc123" {
		t.Fatalf("session context: %+v", sess.GitHub)
	}
	if len(sess.Files) != 1 || sess.Files[0].Path != "app/auth.py" {
		t.Fatalf("session files: %+v", sess.Files)
	}
}

func TestWebhookDeduplicatesSameHead(t *testing.T) {
	svc, _ := newTestService(t)

	var ids []string
	for i := 0; i < 2; i++ {
		body := prEventBody("synchronize")
		req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
		req.Header.Set("X-GitHub-Event", "pull_request")
		req.Header.Set("X-Hub-Signature-256", sign(body))
		rec := httptest.NewRecorder()
		svc.HandleGitHubWebhook(rec, req)

		var out map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		id, _ := out["session_id"].(string)
		ids = append(ids, id)
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("same head must reuse the session: %v", ids)
	}
}

func TestWebhookNoSecretSkipsVerification(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WebhookSecret = ""

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "ping")
	rec := httptest.NewRecorder()

	svc.HandleGitHubWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d", rec.Code)
	}
}
