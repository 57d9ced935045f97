package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/source"
	"github.com/coverwire/harvester/internal/store"
)

type stubContent struct {
	article news.Article
	origin  news.Origin
	err     error
}

func (s *stubContent) GetOrExtract(_ context.Context, _ string, _ bool) (news.Article, news.Origin, error) {
	return s.article, s.origin, s.err
}

type stubStore struct {
	articles    []news.Article
	transcripts map[string]news.Transcript
	listErr     error
}

func (s *stubStore) FindArticleByURL(context.Context, string) (news.Article, error) {
	return news.Article{}, store.ErrNotFound
}

func (s *stubStore) UpsertArticle(_ context.Context, a news.Article) (news.Article, bool, error) {
	return a, true, nil
}

func (s *stubStore) ListArticles(context.Context, store.ListFilter) ([]news.Article, error) {
	return s.articles, s.listErr
}

func (s *stubStore) Stats(context.Context) (store.Stats, error) {
	return store.Stats{Total: int64(len(s.articles))}, nil
}

func (s *stubStore) FindTranscriptByURL(_ context.Context, url string) (news.Transcript, error) {
	tr, ok := s.transcripts[url]
	if !ok {
		return news.Transcript{}, store.ErrNotFound
	}
	return tr, nil
}

func (s *stubStore) UpsertTranscript(_ context.Context, tr news.Transcript) (news.Transcript, bool, error) {
	if s.transcripts == nil {
		s.transcripts = map[string]news.Transcript{}
	}
	_, existed := s.transcripts[tr.URL]
	tr.ID = int64(len(s.transcripts) + 1)
	s.transcripts[tr.URL] = tr
	return tr, !existed, nil
}

type stubIngestor struct {
	got []news.Candidate
}

func (s *stubIngestor) Run(_ context.Context, candidates []news.Candidate, _ bool) news.Summary {
	s.got = candidates
	return news.Summary{BatchID: "batch-1", Inserted: len(candidates)}
}

type stubAdapter struct {
	name  string
	cands []news.Candidate
	err   error
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) FetchCandidates(context.Context, source.Params) ([]news.Candidate, news.Meta, error) {
	return s.cands, nil, s.err
}

func newTestServer(t *testing.T, content ContentService, st store.ArticleStore, ing Ingestor, adapters ...source.Adapter) *httptest.Server {
	t.Helper()
	if content == nil {
		content = &stubContent{}
	}
	if st == nil {
		st = &stubStore{}
	}
	if ing == nil {
		ing = &stubIngestor{}
	}
	srv := httptest.NewServer(NewServer(content, st, ing, adapters, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExtractArticle(t *testing.T) {
	content := &stubContent{
		article: news.Article{URL: "https://example.com/a", Content: "body"},
		origin:  news.OriginWeb,
	}
	srv := newTestServer(t, content, nil, nil)

	resp, err := http.Get(srv.URL + "/extract-article?url=https://example.com/a")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got extractResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, news.OriginWeb, got.Origin)
	assert.Equal(t, "body", got.Article.Content)
}

func TestExtractArticleMissingURL(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	resp, err := http.Get(srv.URL + "/extract-article")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtractArticleInvalidInput(t *testing.T) {
	content := &stubContent{err: news.NewFetchError(news.KindInvalidInput, "junk", 0, errors.New("no host"))}
	srv := newTestServer(t, content, nil, nil)

	resp, err := http.Get(srv.URL + "/extract-article?url=junk")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtractArticlePipelineFailureIsNot5xx(t *testing.T) {
	content := &stubContent{
		article: news.Article{URL: "https://example.com/down", ExtractionError: "network: connect refused"},
		origin:  news.OriginError,
	}
	srv := newTestServer(t, content, nil, nil)

	resp, err := http.Get(srv.URL + "/extract-article?url=https://example.com/down")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got extractResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, news.OriginError, got.Origin)
	assert.NotEmpty(t, got.Article.ExtractionError)
}

func TestNewsRunsAdaptersThroughIngest(t *testing.T) {
	ing := &stubIngestor{}
	good := &stubAdapter{name: "good", cands: []news.Candidate{{URL: "https://example.com/a"}}}
	dead := &stubAdapter{name: "dead", err: errors.New("provider down")}
	srv := newTestServer(t, nil, nil, ing, good, dead)

	resp, err := http.Get(srv.URL + "/news")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "a dead provider must not fail the request")

	var got newsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 1, got.Summary.Inserted)
	assert.Contains(t, got.SourceErrors, "dead")
	require.Len(t, ing.got, 1)
}

func TestNewsUnknownSource(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, &stubAdapter{name: "rss"})
	resp, err := http.Get(srv.URL + "/news?source=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListArticles(t *testing.T) {
	st := &stubStore{articles: []news.Article{{URL: "https://example.com/a"}}}
	srv := newTestServer(t, nil, st, nil)

	resp, err := http.Get(srv.URL + "/articles?source_api=rss")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 1, got.Count)
}

func TestTranscriptRoundTrip(t *testing.T) {
	st := &stubStore{}
	srv := newTestServer(t, nil, st, nil)

	body, _ := json.Marshal(transcriptRequest{
		URL:     "https://example.com/ep1",
		Content: "Full transcript text",
		Source:  "podcast",
	})
	resp, err := http.Post(srv.URL+"/transcripts", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	get, err := http.Get(srv.URL + "/transcripts?url=https://example.com/ep1")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestTranscriptValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	resp, err := http.Post(srv.URL+"/transcripts", "application/json", bytes.NewReader([]byte(`{"url":""}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	missing, err := http.Get(srv.URL + "/transcripts?url=https://example.com/none")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
