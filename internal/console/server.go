// Package console exposes the HTTP surface consumed by the operations
// console UI: availability, health, metrics, and a generic passthrough
// to the gateway client facade.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsgate/console/internal/core/domain"
	"github.com/opsgate/console/internal/infra/gateway"
)

// Server provides HTTP endpoints for the console UI.
type Server struct {
	dispatcher *gateway.Dispatcher
	cache      *gateway.HealthCache
	tracker    *gateway.Tracker
	server     *http.Server
}

// NewServer creates a new console API server.
func NewServer(dispatcher *gateway.Dispatcher, cache *gateway.HealthCache, tracker *gateway.Tracker, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		dispatcher: dispatcher,
		cache:      cache,
		tracker:    tracker,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/cached", s.handleCachedHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/", s.handleAPI)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealthz reports the tracker's availability flag. It never
// triggers a probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.tracker.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "unavailable",
			"state":  s.tracker.State(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"state":  s.tracker.State(),
	})
}

// handleHealth serves the cached, deduplicated health snapshot.
// ?force=true invalidates the cache and probes fresh.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	snap, err := s.cache.GetHealth(r.Context(), force)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(snap)
}

// handleCachedHealth is the passive read: it never probes.
func (s *Server) handleCachedHealth(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.cache.Cached()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// handleAPI forwards a console request through the client facade. The
// UI never learns whether the real gateway or the test double served
// it.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	if path == "" {
		path = "/"
	}

	var body any
	if r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if len(raw) > 0 {
			body = raw
		}
	}

	req := gateway.Request{
		Method: r.Method,
		Path:   path,
		Body:   body,
		Options: gateway.Options{
			Operation: r.URL.Query().Get("op"),
			TenantID:  r.Header.Get("X-Tenant-ID"),
			UserID:    r.Header.Get("X-User-ID"),
			RequestID: r.Header.Get("X-Request-ID"),
			Query:     queryWithoutOp(r),
		},
	}

	outcome := s.dispatcher.Dispatch(r.Context(), req)
	writeOutcome(w, req, outcome)
}

func queryWithoutOp(r *http.Request) (q map[string][]string) {
	q = r.URL.Query()
	delete(q, "op")
	return q
}

func writeOutcome(w http.ResponseWriter, req gateway.Request, outcome domain.Outcome) {
	op := req.Options.Operation
	if op == "" {
		op = gateway.InferOperation(req.Method, req.Path)
	}

	switch outcome.Kind {
	case domain.OutcomeTimeout:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		json.NewEncoder(w).Encode(map[string]string{"error": "gateway timeout"})
		return
	case domain.OutcomeTransportError:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "gateway unreachable"})
		return
	}

	// Export payloads are relayed verbatim so a decode/encode cycle
	// cannot alter the downloaded file.
	if op == "export" && outcome.Success() {
		contentType := outcome.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(outcome.Status)
		w.Write(outcome.Raw)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	status := outcome.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(outcome.Body)
}
