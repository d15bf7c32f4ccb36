package server

import (
	"net/http"

	"convergence/internal/gateway/handler"
	"convergence/internal/gateway/middleware"
)

func NewMux(svc *handler.Service) http.Handler {
	mux := http.NewServeMux()

	// Webhook ingress
	mux.HandleFunc("/webhook/github", svc.HandleGitHubWebhook)
	mux.HandleFunc("/webhook/test-pr", svc.HandleTestPR)

	// Session API (list, get, delete, status, report, stream, ws)
	mux.HandleFunc("/sessions", svc.HandleSessions)
	mux.HandleFunc("/sessions/", svc.HandleSession)

	// Observability
	mux.HandleFunc("/metrics/summary", svc.HandleMetricsSummary)
	mux.HandleFunc("/health", svc.HandleHealth)

	return middleware.CORS(mux)
}
