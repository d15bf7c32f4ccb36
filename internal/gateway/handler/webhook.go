package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"convergence/internal/review"
)

// prPayload is the slice of the GitHub pull_request event the pipeline
// needs.
type prPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		Head    struct {
			SHA string `json:"sha"`
		} `json:"head"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"pull_request"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

// verifySignature checks the X-Hub-Signature-256 HMAC. With no secret
// configured verification is skipped.
func (s *Service) verifySignature(body []byte, signature string) bool {
	if s.WebhookSecret == "" {
		log.Printf("[webhook] no webhook secret configured, skipping verification")
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// HandleGitHubWebhook ingests pull_request events. Reviewable actions
// create (or find) a session and kick off the pipeline in the background;
// everything else is acknowledged and ignored.
func (s *Service) HandleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !s.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	log.Printf("[webhook] received GitHub event: %s", eventType)

	if eventType != "pull_request" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "event": eventType})
		return
	}

	var payload prPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	switch payload.Action {
	case "opened", "synchronize", "reopened":
	default:
		log.Printf("[webhook] ignoring PR action: %s", payload.Action)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "event": eventType})
		return
	}

	log.Printf("[webhook] processing PR #%d (action: %s)", payload.PullRequest.Number, payload.Action)

	gh := review.GitHubContext{
		RepoOwner: payload.Repository.Owner.Login,
		RepoName:  payload.Repository.Name,
		PRNumber:  payload.PullRequest.Number,
		PRTitle:   payload.PullRequest.Title,
		PRURL:     payload.PullRequest.HTMLURL,
		HeadSHA:   payload.PullRequest.Head.SHA,
		Author:    payload.PullRequest.User.Login,
	}

	sessionID, err := s.Orchestrator.CreateSessionFromContext(r.Context(), gh)
	if err != nil {
		log.Printf("[webhook] failed to create session: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Run the review detached from the webhook request.
	go func() {
		if _, err := s.Orchestrator.Run(context.WithoutCancel(r.Context()), sessionID, s.PostToGitHub); err != nil {
			log.Printf("[webhook] review failed for session %s: %v", sessionID, err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "processing",
		"event":      eventType,
		"action":     payload.Action,
		"pr_number":  payload.PullRequest.Number,
		"session_id": sessionID,
	})
}

// HandleTestPR manually triggers a review:
// POST /webhook/test-pr?owner=acme&repo=backend&pr_number=123
func (s *Service) HandleTestPR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	repo := strings.TrimSpace(r.URL.Query().Get("repo"))
	prNumber, err := strconv.Atoi(r.URL.Query().Get("pr_number"))
	if owner == "" || repo == "" || err != nil {
		writeError(w, http.StatusBadRequest, "owner, repo and pr_number are required")
		return
	}

	sessionID, err := s.Orchestrator.CreateSessionFromPR(r.Context(), owner, repo, prNumber)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	sess, err := s.Store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(sess.Files) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "skipped",
			"reason": "No reviewable files found",
		})
		return
	}

	go func() {
		if _, err := s.Orchestrator.Run(context.WithoutCancel(r.Context()), sessionID, s.PostToGitHub); err != nil {
			log.Printf("[webhook] review failed for session %s: %v", sessionID, err)
		}
	}()

	paths := make([]string, len(sess.Files))
	for i, f := range sess.Files {
		paths[i] = f.Path
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "created",
		"session_id":  sessionID,
		"pr_title":    sess.GitHub.PRTitle,
		"files_count": len(sess.Files),
		"files":       paths,
	})
}
