// Package api exposes the core over HTTP: ingestion, simulation
// submission and retrieval, and a Prometheus scrape endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratumgrid/resilience-core/internal/coordinator"
	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/ingest"
	"github.com/stratumgrid/resilience-core/internal/scoring"
	"github.com/stratumgrid/resilience-core/pkg/logger"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// Server wires the ingestion pipeline, criticality scorer, and job
// coordinator behind a plain net/http.ServeMux.
type Server struct {
	mux         *http.ServeMux
	pipeline    *ingest.Pipeline
	coordinator *coordinator.Coordinator
	store       *graph.Store
	scores      *scoring.Cache
}

// New builds a Server routing requests to pipeline, coord, store, and
// scores.
func New(pipeline *ingest.Pipeline, coord *coordinator.Coordinator, store *graph.Store, scores *scoring.Cache) *Server {
	s := &Server{mux: http.NewServeMux(), pipeline: pipeline, coordinator: coord, store: store, scores: scores}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/ingest", s.handleIngest)
	s.mux.HandleFunc("/v1/ingest/batch", s.handleIngestBatch)
	s.mux.HandleFunc("/v1/simulations", s.handleSimulations)
	s.mux.HandleFunc("/v1/simulations/", s.handleSimulationByHandle)
	s.mux.HandleFunc("/v1/criticality", s.handleCriticality)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleIngest handles POST /v1/ingest, offering a single record.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var rec models.IngestRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.pipeline.Ingest(r.Context(), rec); err != nil {
		s.writeModelError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// handleIngestBatch handles POST /v1/ingest/batch.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var records []models.IngestRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	summary := s.pipeline.IngestBatch(r.Context(), records)
	s.writeJSON(w, http.StatusOK, summary)
}

// handleSimulations handles POST /v1/simulations, submitting a new
// cascade simulation request.
func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req models.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	handle, err := s.coordinator.Submit(r.Context(), &req)
	if err != nil {
		s.writeModelError(w, err)
		return
	}
	logger.Component("api").Info("simulation submitted", "handle", string(handle))
	s.writeJSON(w, http.StatusAccepted, map[string]any{"handle": string(handle)})
}

// handleSimulationByHandle handles /v1/simulations/{handle}: GET
// blocks until the result is ready (or the request context ends), and
// DELETE detaches the caller from the job.
func (s *Server) handleSimulationByHandle(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimPrefix(r.URL.Path, "/v1/simulations/")
	if handle == "" {
		s.writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		result, err := s.coordinator.Await(r.Context(), coordinator.Handle(handle))
		if err != nil {
			s.writeModelError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	case http.MethodDelete:
		if err := s.coordinator.Cancel(coordinator.Handle(handle)); err != nil {
			s.writeModelError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCriticality handles GET /v1/criticality?limit=N, returning the
// N most critical nodes in the current graph, most critical first. An
// absent or zero limit returns every scored node; a negative or
// non-numeric limit is rejected with 400.
func (s *Server) handleCriticality(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snap := s.store.Snapshot()
	scores, err := s.scores.Scores(r.Context(), snap)
	if err != nil {
		s.writeModelError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"graph_version": snap.Version,
		"nodes":         scoring.TopN(scores, limit),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Component("api").Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

// writeModelError maps a *models.Error's Kind onto an HTTP status,
// matching the error handling design's caller-visible vocabulary.
func (s *Server) writeModelError(w http.ResponseWriter, err error) {
	kind, ok := models.KindOf(err)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusInternalServerError
	switch kind {
	case models.KindInvalidRequest:
		status = http.StatusBadRequest
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindConflict, models.KindStale:
		status = http.StatusConflict
	case models.KindLowQuality:
		status = http.StatusUnprocessableEntity
	case models.KindBackpressure, models.KindOverloaded:
		status = http.StatusServiceUnavailable
	case models.KindBudgetExceeded:
		status = http.StatusRequestEntityTooLarge
	case models.KindCancelled:
		status = http.StatusRequestTimeout
	case models.KindPartial:
		status = http.StatusOK
	case models.KindInternal:
		status = http.StatusInternalServerError
	}
	s.writeError(w, status, err.Error())
}
