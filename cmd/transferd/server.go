package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/transferd/transferd/internal/accounts"
	"github.com/transferd/transferd/internal/engine"
	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/metrics"
	"github.com/transferd/transferd/pkg/types"
)

// defaultListLimit bounds GET /v1/transfers and /v1/transfers/errors when
// the caller doesn't pass ?limit=.
const defaultListLimit = 100

// server is the HTTP rendition of spec §6's engine control surface
// (SPEC_FULL.md §6.1), routed with gorilla/mux the way the pack's
// service-shaped repos route their admin APIs.
type server struct {
	engine    *engine.Engine
	resolver  *accounts.Resolver
	collector *metrics.Collector
	log       *logging.Logger
}

func newServer(e *engine.Engine, resolver *accounts.Resolver, collector *metrics.Collector, log *logging.Logger) *server {
	return &server{engine: e, resolver: resolver, collector: collector, log: log}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/enqueue", s.handleEnqueue).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/shutdown", s.handleShutdown).Methods(http.MethodPost)
	api.HandleFunc("/transfers", s.handleListTransfers).Methods(http.MethodGet)
	api.HandleFunc("/transfers/errors", s.handleListErrors).Methods(http.MethodGet)

	api.Use(s.loggingMiddleware)

	if s.collector != nil {
		r.Handle("/metrics", s.collector.Handler()).Methods(http.MethodGet)
	}

	return r
}

// enqueueEntry names one source file or folder by the account kind and
// literal path it lives at; the server resolves it to an account-rooted
// Adapter the same way internal/feeder resolves a persisted row, rather
// than accepting raw credentials over HTTP.
type enqueueEntry struct {
	Kind types.BackendKind `json:"kind"`
	Path string            `json:"path"`
}

type enqueueRequest struct {
	Files            []enqueueEntry `json:"files"`
	Folders          []enqueueEntry `json:"folders"`
	Destinations     []enqueueEntry `json:"destinations"`
	Recursive        bool           `json:"recursive"`
	BatchSize        int            `json:"batch_size"`
	StartImmediately bool           `json:"start_immediately"`
}

type enqueueResponse struct {
	Enqueued int64 `json:"enqueued"`
}

func (s *server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	files, err := s.resolveAdapters(req.Files)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "failed to resolve one or more files", err)
		return
	}
	folders, err := s.resolveAdapters(req.Folders)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "failed to resolve one or more folders", err)
		return
	}
	destinations, err := s.resolveAdapters(req.Destinations)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "failed to resolve one or more destinations", err)
		return
	}

	n, err := s.engine.Enqueue(r.Context(), engine.EnqueueRequest{
		Files:            files,
		Folders:          folders,
		Destinations:     destinations,
		Recursive:        req.Recursive,
		BatchSize:        req.BatchSize,
		StartImmediately: req.StartImmediately,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "enqueue failed", err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, enqueueResponse{Enqueued: n})
}

func (s *server) resolveAdapters(entries []enqueueEntry) ([]types.Adapter, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	adapters := make([]types.Adapter, 0, len(entries))
	for _, e := range entries {
		adapter, ok := s.resolver.Resolve(e.Kind, e.Path)
		if !ok {
			return nil, errors.NewError(errors.ErrCodeRowSkipped, "no account matches path").
				WithDetail("kind", string(e.Kind)).WithDetail("path", e.Path)
		}
		adapters = append(adapters, adapter.WithRoot(e.Path))
	}
	return adapters, nil
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(r.Context()); err != nil {
		s.writeError(w, http.StatusConflict, "stop failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Shutdown(r.Context()); err != nil {
		s.writeError(w, http.StatusConflict, "shutdown failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "shutdown"})
}

func (s *server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.ListTransfers(r.Context(), nil, listLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list transfers", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	status := types.StatusError
	rows, err := s.engine.ListTransfers(r.Context(), &status, listLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list errored transfers", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func listLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func (s *server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && s.log != nil {
		s.log.Warn("failed to encode JSON response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]interface{}{"error": message, "timestamp": time.Now().UTC().Format(time.RFC3339)}
	if err != nil {
		body["details"] = err.Error()
	}
	s.writeJSON(w, status, body)
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		if s.log != nil {
			s.log.Info("http request", map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rw.status,
				"duration": time.Since(start).String(),
			})
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// newServerRunner wires an *http.Server around routes(), matching the
// Server.Shutdown-on-context-cancel shape used throughout the pack's
// admin-API entry points.
func newServerRunner(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func shutdownServer(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
