package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lazypower/synapse/internal/engine"
	"github.com/lazypower/synapse/internal/store"
)

// Server is the synapse HTTP API server.
type Server struct {
	db           *store.DB
	engine       *engine.Engine
	log          *zap.SugaredLogger
	router       chi.Router
	version      string
	summarizeMin int
	started      time.Time
}

// New creates a new Server. summarizeMin is the smallest session the
// summarize endpoint will condense, matching the scheduled path; values
// below 1 are clamped. A nil logger is replaced with a no-op.
func New(db *store.DB, eng *engine.Engine, log *zap.SugaredLogger, version string, summarizeMin int) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if summarizeMin < 1 {
		summarizeMin = 1
	}
	s := &Server{
		db:           db,
		engine:       eng,
		log:          log,
		version:      version,
		summarizeMin: summarizeMin,
		started:      time.Now(),
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

		r.Post("/messages", s.handleAddMessage)
		r.Post("/ingest", s.handleIngest)
		r.Get("/recall", s.handleRecall)
		r.Get("/session", s.handleSession)
		r.Post("/summarize", s.handleSummarize)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	nodes, _ := s.db.CountNodes()
	edges, _ := s.db.CountEdges()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"nodes":   nodes,
		"edges":   edges,
	})
}
