package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"d3fend-graphx/internal/builder"
	"d3fend-graphx/internal/catalog"
	"d3fend-graphx/internal/graph"
	"d3fend-graphx/internal/neo4j"
	"d3fend-graphx/internal/rag"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/runner"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
	Graph   *graph.Graph `json:"graph"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backends := make(map[string]bool)
	for _, b := range resultset.Backends() {
		backends[string(b)] = s.pipeline.Configured(b)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"backends": backends,
		"rag":      s.asker != nil,
	})
}

// handleDomains handles GET /api/domains
func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.pipeline.Catalog.Domains())
}

// handleQueries handles GET /api/domains/{domain}/queries
func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.pipeline.Catalog.Queries(mux.Vars(r)["domain"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summaries)
}

// handleQuery handles GET /api/domains/{domain}/queries/{id}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q, err := s.pipeline.Catalog.Query(vars["domain"], vars["id"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

// handleRun handles POST /api/domains/{domain}/queries/{id}/run?backend=
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := r.URL.Query().Get("backend")
	if name == "" {
		name = string(resultset.GraphDB)
	}
	backend, err := resultset.ParseBackend(name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.pipeline.Run(r.Context(), runner.Request{Domain: vars["domain"], QueryID: vars["id"], Backend: backend})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

type cypherResponse struct {
	Keys []string         `json:"keys"`
	Data []map[string]any `json:"data"`
}

// handleRawQuery handles POST /api/graphdb/query and /api/neo4j/query,
// returning the backend payload unchanged.
func (s *Server) handleRawQuery(backend resultset.Backend, label string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if !s.decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			s.respondError(w, http.StatusBadRequest, "Missing query parameter", "")
			return
		}

		raw, err := s.pipeline.Raw(r.Context(), backend, req.Query)
		if err != nil {
			s.logger.Warn("Raw query failed", zap.String("backend", string(backend)), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "Failed to connect to "+label, err.Error())
			return
		}
		if backend == resultset.GraphDB {
			s.respondJSON(w, http.StatusOK, raw)
			return
		}
		resp := cypherResponse{Keys: raw.Keys, Data: raw.Data}
		if resp.Keys == nil {
			resp.Keys = []string{}
		}
		if resp.Data == nil {
			resp.Data = []map[string]any{}
		}
		s.respondJSON(w, http.StatusOK, resp)
	}
}

// handleExpand handles GET /api/neo4j/nodes/{id}/expand?rel=&limit=
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit", v)
			return
		}
		limit = n
	}

	g, err := s.pipeline.Expand(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("rel"), limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, g)
}

// handleAsk handles POST /api/ask
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.asker == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Question answering is not configured", "")
		return
	}
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}

	ans, err := s.asker.Ask(r.Context(), req.Question)
	s.metrics.ObserveQuestion(err)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, askResponse{
		Answer:  ans.Answer,
		Sources: ans.Sources,
		Graph:   builder.Build(ans.Rows(), s.pipeline.Builder),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, details string) {
	s.respondJSON(w, status, errorResponse{Error: message, Details: details})
}

// statusFor maps pipeline errors to HTTP status codes and a public message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrDomainNotFound):
		return http.StatusNotFound, "Domain not found"
	case errors.Is(err, catalog.ErrQueryNotFound):
		return http.StatusNotFound, "Query not found"
	case errors.Is(err, catalog.ErrNoQueryText):
		return http.StatusBadRequest, "Query not available for this backend"
	case errors.Is(err, resultset.ErrUnknownBackend):
		return http.StatusBadRequest, "Unknown backend"
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest, "Missing question"
	case errors.Is(err, neo4j.ErrInvalidRelation):
		return http.StatusBadRequest, "Invalid relationship type"
	case errors.Is(err, resultset.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "Backend unavailable"
	}
	return http.StatusInternalServerError, "Query failed"
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
	}
	s.respondError(w, status, message, err.Error())
}
