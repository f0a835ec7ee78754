// Package server is a thin HTTP front end over a kvstore.DB. It forwards
// every request directly to the Core API and adds no semantics of its
// own.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"emberdb/pkg/kvstore"
)

// Server is the HTTP front end for one kvstore.DB.
type Server struct {
	db         *kvstore.DB
	router     *mux.Router
	httpServer *http.Server
	log        *slog.Logger
	startTime  time.Time
}

// New builds a Server that forwards requests to db.
func New(db *kvstore.DB) *Server {
	s := &Server{
		db:        db,
		router:    mux.NewRouter(),
		log:       slog.Default().With("component", "server"),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware(s.log))
	s.router.Use(recoveryMiddleware(s.log))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/kv/{key}", s.handleGet).Methods("GET")
	s.router.HandleFunc("/kv/{key}", s.handlePut).Methods("PUT", "POST")
	s.router.HandleFunc("/kv/{key}", s.handleDelete).Methods("DELETE")
	s.router.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
}

// Router returns the underlying mux router, for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start begins serving HTTP requests on addr. It blocks until the server
// stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, closer, err := s.db.Get(r.Context(), kvstore.ReadOptions{}, []byte(key))
	if err != nil {
		writeDBError(w, err)
		return
	}
	defer closer.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}
	defer r.Body.Close()

	if err := s.db.PutWithOptions(r.Context(), kvstore.WriteOptions{}, []byte(key), value); err != nil {
		writeDBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": key})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := s.db.DeleteWithOptions(r.Context(), kvstore.WriteOptions{}, []byte(key)); err != nil {
		writeDBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": key})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.db.NewSnapshot()
	if err != nil {
		writeDBError(w, err)
		return
	}
	defer snap.Close()

	it, err := snap.NewIterator()
	if err != nil {
		writeDBError(w, err)
		return
	}
	defer it.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id": snap.ID(),
		"file_ids":    it.FileIDs(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDBError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": err.Error()})
		return
	}
	// The Core API reports a missing key as a NotFound-kind status error;
	// its message is the only signal available at this boundary.
	msg := err.Error()
	if len(msg) >= len("NotFound") && msg[:len("NotFound")] == "NotFound" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

func loggingMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func recoveryMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered", "panic", fmt.Sprint(rec))
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
