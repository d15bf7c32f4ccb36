package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"
)

// HandleHealth reports service liveness plus store reachability.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	dbStatus := "connected"
	if err := s.Store.Ping(r.Context()); err != nil {
		log.Printf("[health] store ping failed: %v", err)
		dbStatus = "disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": dbStatus,
	})
}

// HandleMetricsSummary serves aggregated metrics for the dashboard:
// GET /metrics/summary?hours=24
func (s *Service) HandleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	window := time.Duration(hours) * time.Hour

	rec := s.Orchestrator.Metrics
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not configured")
		return
	}

	summary, err := rec.Summary(r.Context(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	performance, err := rec.AgentPerformance(r.Context(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":           summary,
		"agent_performance": performance,
		"hours":             hours,
	})
}
