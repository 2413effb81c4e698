package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/engram/internal/engine"
	"github.com/lazypower/engram/internal/history"
)

// Server is the engram HTTP API server.
type Server struct {
	eng     *engine.Engine
	history *history.DB
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the engine. The history DB may be nil.
func New(eng *engine.Engine, hist *history.DB, version string) *Server {
	s := &Server{
		eng:     eng,
		history: hist,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/memories", s.handleAddMemory)
		r.Get("/memories/{id}", s.handleGetMemory)
		r.Get("/memories/{id}/connections", s.handleConnections)
		r.Post("/memories/{id}/recall", s.handleReinforce)
		r.Post("/connections", s.handleConnect)

		r.Get("/recall", s.handleRecall)
		r.Get("/recent", s.handleRecent)
		r.Get("/stats", s.handleStats)
		r.Get("/patterns", s.handlePatterns)
		r.Get("/history", s.handleHistory)

		r.Post("/snapshot", s.handleSnapshot)
		r.Post("/consolidate", s.handleConsolidate)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	histOK := true
	if s.history != nil {
		if err := s.history.Ping(); err != nil {
			histOK = false
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"history": histOK,
	})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
