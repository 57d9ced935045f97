// Package api exposes the acquisition pipeline over a small HTTP surface.
// Handlers stay thin: they validate input, call one component and encode the
// result. Per-URL pipeline failures ride inside payloads, never as 5xx.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/source"
	"github.com/coverwire/harvester/internal/store"
	"github.com/coverwire/harvester/internal/telemetry"
)

// ContentService is the cache-aside surface. Satisfied by *store.Cache.
type ContentService interface {
	GetOrExtract(ctx context.Context, rawURL string, force bool) (news.Article, news.Origin, error)
}

// Ingestor runs one candidate batch. Satisfied by *ingest.Orchestrator.
type Ingestor interface {
	Run(ctx context.Context, candidates []news.Candidate, force bool) news.Summary
}

// Server routes HTTP traffic into the pipeline.
type Server struct {
	router   chi.Router
	content  ContentService
	store    store.ArticleStore
	ingestor Ingestor
	adapters map[string]source.Adapter
	logger   *zap.Logger
}

// NewServer wires the routes. adapters may be empty; /news then only reports
// that no sources are configured.
func NewServer(content ContentService, st store.ArticleStore, ing Ingestor, adapters []source.Adapter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		content:  content,
		store:    st,
		ingestor: ing,
		adapters: make(map[string]source.Adapter, len(adapters)),
		logger:   logger,
	}
	for _, a := range adapters {
		s.adapters[a.Name()] = a
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Get("/news", s.handleNews)
	r.Get("/articles", s.handleListArticles)
	r.Get("/articles/stats", s.handleStats)
	r.Get("/extract-article", s.handleExtractArticle)
	r.Post("/transcripts", s.handleUpsertTranscript)
	r.Get("/transcripts", s.handleGetTranscript)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
