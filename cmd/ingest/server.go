package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"canonical-trade-ingest/internal/ingestion"
	"canonical-trade-ingest/internal/observability"
	"canonical-trade-ingest/internal/outbox"
	"canonical-trade-ingest/internal/parser"
)

// sweepBatch bounds the number of PENDING events retried per sweep.
const sweepBatch = 500

// server exposes health, metrics, status and on-demand processing over HTTP
// and owns the PENDING event sweep.
type server struct {
	runner  *ingestion.Runner
	outbox  *outbox.Service
	logger  *log.Logger
	started time.Time

	mu          sync.Mutex
	lastSweep   time.Time
	republished int
}

func newServer(runner *ingestion.Runner, svc *outbox.Service, logger *log.Logger) *server {
	return &server{
		runner:  runner,
		outbox:  svc,
		logger:  logger,
		started: time.Now(),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /process/{file}", s.handleProcess)

	return mux
}

// statusResponse is the JSON response for the /status endpoint.
type statusResponse struct {
	Status      string                `json:"status"`
	Uptime      string                `json:"uptime"`
	Started     time.Time             `json:"started"`
	Runner      ingestion.RunnerStats `json:"runner"`
	LastSweep   *time.Time            `json:"lastSweep,omitempty"`
	Republished int                   `json:"republished"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := statusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Started:     s.started,
		Runner:      s.runner.Stats(),
		Republished: s.republished,
	}
	if !s.lastSweep.IsZero() {
		last := s.lastSweep
		resp.LastSweep = &last
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleProcess processes one file from the input directory synchronously,
// including files processed before.
func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !parser.IsSupported(name) {
		writeError(w, http.StatusBadRequest, "unsupported file format: "+name)
		return
	}

	result, err := s.runner.ProcessNow(r.Context(), name)
	switch {
	case errors.Is(err, ingestion.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Printf("On-demand processing of %s failed: %v", name, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// runSweeper retries PENDING events every interval until ctx is done. Events
// younger than one interval are left to the publish that created them.
func (s *server) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Printf("Retrying PENDING events every %v", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, interval)
		}
	}
}

func (s *server) sweep(ctx context.Context, minAge time.Duration) int {
	n, err := s.outbox.RepublishPending(ctx, sweepBatch, minAge)
	if err != nil && ctx.Err() == nil {
		s.logger.Printf("Error retrying PENDING events: %v", err)
	}
	if n > 0 {
		s.logger.Printf("Republished %d PENDING events", n)
	}

	s.mu.Lock()
	s.lastSweep = time.Now()
	s.republished += n
	s.mu.Unlock()
	return n
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
