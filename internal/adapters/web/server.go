// Package web is AEGIS's minimal operator HTTP surface (SPEC_FULL.md §B):
// /healthz, /metrics passthrough, /audit/summary, /sessions/{id}, plus
// the live decision feed at /feed. Grounded on the teacher's
// Server{Addr, srv *http.Server}/SetupRoutes shape
// (internal/adapters/web/server.go, router.go), stripped of the
// teacher's auth/session/attack-control routes — AEGIS exposes ops
// plumbing, not a dashboard backend.
package web

import (
	"context"
	"net/http"

	"github.com/aegis-gateway/aegis/internal/adapters/web/eventstream"
	"github.com/aegis-gateway/aegis/internal/core/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Gateway is the subset of *app.Application the web surface needs. Kept
// as a local interface (rather than importing internal/app directly) to
// avoid an import cycle, since internal/app constructs this Server.
type Gateway interface {
	SessionID() string
	Summary() domain.SessionSummary
}

// Server serves the operator HTTP surface.
type Server struct {
	addr string
	gw   Gateway
	feed *eventstream.Broadcaster
	srv  *http.Server
}

func NewServer(addr string, gw Gateway) *Server {
	s := &Server{addr: addr, gw: gw, feed: eventstream.New()}
	instrumented := otelhttp.NewHandler(setupRoutes(s), "aegis-gateway")
	s.srv = &http.Server{Addr: addr, Handler: instrumented}
	return s
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Broadcast pushes one Decision onto the live feed.
func (s *Server) Broadcast(d domain.Decision) {
	s.feed.BroadcastDecision(d)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.gw.SessionID()})
}

func (s *Server) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.Summary())
}

// handleSession returns the running session's summary. The {id} path
// segment is not consulted; other sessions are not served.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	summary := s.gw.Summary()
	writeJSON(w, http.StatusOK, summary)
}
