package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/metrics"
	"github.com/siherrmann/roofrag/model"
)

const maxRequestBytes = 64 << 10

// Answerer answers a RAG query. retrieval.Assistant implements it.
type Answerer interface {
	Answer(ctx context.Context, request model.QueryRequest) (*model.QueryResponse, error)
}

// StatsReader returns knowledge base statistics. retrieval.Engine implements it.
type StatsReader interface {
	Stats(ctx context.Context) (*model.Stats, error)
}

// Server exposes the query API over HTTP
type Server struct {
	answerer Answerer
	stats    StatsReader
	metrics  *metrics.Metrics
	logger   *slog.Logger
	router   *mux.Router
}

// New creates the HTTP server. Metrics are optional, /metrics is only
// routed when they are set.
func New(answerer Answerer, stats StatsReader, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	s := &Server{
		answerer: answerer,
		stats:    stats,
		metrics:  m,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rag", s.handleRAG).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/knowledge/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Serving query API", "addr", addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return helper.NewError("serve", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down query API")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return helper.NewError("shutdown", err)
	}
	return nil
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var request model.QueryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object with a message")
		return
	}

	response, err := s.answerer.Answer(r.Context(), request)
	if err != nil {
		if errors.Is(err, model.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Failed to answer message", "session_id", request.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to answer message")
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to read knowledge stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read knowledge stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
