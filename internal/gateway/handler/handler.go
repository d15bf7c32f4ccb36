// Package handler exposes the review pipeline over HTTP: the GitHub
// webhook, session CRUD, progress streams, and health.
package handler

import (
	"encoding/json"
	"net/http"

	"convergence/internal/pipeline"
	"convergence/internal/store"
)

// Service holds the handlers' shared dependencies.
type Service struct {
	Store         *store.Store
	Orchestrator  *pipeline.Orchestrator
	WebhookSecret string
	PostToGitHub  bool
}

func NewService(st *store.Store, orch *pipeline.Orchestrator, webhookSecret string, postToGitHub bool) *Service {
	return &Service{
		Store:         st,
		Orchestrator:  orch,
		WebhookSecret: webhookSecret,
		PostToGitHub:  postToGitHub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
