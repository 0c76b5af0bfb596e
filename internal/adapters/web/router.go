package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes mirrors the teacher's SetupRoutes shape
// (internal/adapters/web/router.go in lcalzada-xor-wmap), narrowed to
// the minimal operator ops surface SPEC_FULL.md names: health, metrics
// passthrough, audit summary, and /sessions/{id}, which returns the
// running session's summary whatever the id. No dashboard
// routes, no auth middleware — this is ops plumbing (spec §1's
// non-goals explicitly exclude a built dashboard).
func setupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/audit/summary", s.handleAuditSummary).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/feed", s.feed.HandleWebSocket)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
