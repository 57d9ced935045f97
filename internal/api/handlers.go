package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/source"
	"github.com/coverwire/harvester/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// newsResponse wraps an ingestion run. Individual adapter failures are
// reported per source so one dead provider does not fail the request.
type newsResponse struct {
	Summary      news.Summary      `json:"summary"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := source.Params{
		Query:    q.Get("query"),
		Category: q.Get("category"),
		Language: q.Get("lang"),
		Limit:    intParam(q.Get("limit")),
	}
	force := boolParam(q.Get("force"))

	selected := s.selectAdapters(q.Get("source"))
	if len(selected) == 0 {
		s.writeError(w, http.StatusBadRequest, "no matching source adapter configured")
		return
	}

	var candidates []news.Candidate
	sourceErrors := map[string]string{}
	for _, a := range selected {
		cands, _, err := a.FetchCandidates(r.Context(), params)
		if err != nil {
			s.logger.Warn("source adapter failed",
				zap.String("adapter", a.Name()), zap.Error(err))
			sourceErrors[a.Name()] = err.Error()
			continue
		}
		candidates = append(candidates, cands...)
	}

	summary := s.ingestor.Run(r.Context(), candidates, force)
	resp := newsResponse{Summary: summary}
	if len(sourceErrors) > 0 {
		resp.SourceErrors = sourceErrors
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) selectAdapters(name string) []source.Adapter {
	if name != "" {
		if a, ok := s.adapters[name]; ok {
			return []source.Adapter{a}
		}
		return nil
	}
	out := make([]source.Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, a)
	}
	return out
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	articles, err := s.store.ListArticles(r.Context(), store.ListFilter{
		SourceAPI: q.Get("source_api"),
		Domain:    q.Get("domain"),
		Search:    q.Get("search"),
		Limit:     intParam(q.Get("limit")),
	})
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if articles == nil {
		articles = []news.Article{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"articles": articles, "count": len(articles)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// extractResponse reports where the record came from alongside the record
// itself; origin "error" still carries the persisted attempt.
type extractResponse struct {
	Article news.Article `json:"article"`
	Origin  news.Origin  `json:"origin"`
}

func (s *Server) handleExtractArticle(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	force := boolParam(r.URL.Query().Get("force"))

	article, origin, err := s.content.GetOrExtract(r.Context(), rawURL, force)
	if err != nil {
		if news.KindOf(err) == news.KindInvalidInput {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("extract failed", zap.String("url", rawURL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, extractResponse{Article: article, Origin: origin})
}

type transcriptRequest struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Language string `json:"language"`
}

func (s *Server) handleUpsertTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "url and content are required")
		return
	}

	tr, inserted, err := s.store.UpsertTranscript(r.Context(), news.Transcript{
		URL:      req.URL,
		Title:    req.Title,
		Content:  req.Content,
		Source:   req.Source,
		Language: req.Language,
	})
	if err != nil {
		if news.KindOf(err) == news.KindInvalidInput {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("transcript upsert failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, tr)
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	tr, err := s.store.FindTranscriptByURL(r.Context(), rawURL)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "transcript not found")
		return
	}
	if err != nil {
		s.logger.Error("transcript lookup failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, tr)
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func boolParam(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
