package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverwire/harvester/internal/news"
)

// fakePipeline tracks which candidates reached the store and which triggered
// extraction.
type fakePipeline struct {
	mu           sync.Mutex
	rows         map[string]news.Article
	ingestCalls  int
	saveCalls    int
	failURL      string
	nextID       int64
	maxInFlight  int
	inFlight     int
	blockPerCall time.Duration
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{rows: map[string]news.Article{}}
}

func (f *fakePipeline) upsert(cand news.Candidate) (news.Article, bool) {
	existing, ok := f.rows[cand.URL]
	if ok {
		existing.UpdatedAt = existing.UpdatedAt.Add(time.Second)
		f.rows[cand.URL] = existing
		return existing, false
	}
	f.nextID++
	a := news.Article{
		ID:          f.nextID,
		URL:         cand.URL,
		Domain:      news.DeriveDomain(cand.URL),
		Title:       cand.Title,
		Content:     cand.Content,
		PublishedAt: cand.PublishedAt,
		SourceAPI:   cand.SourceAPI,
	}
	f.rows[cand.URL] = a
	return a, true
}

func (f *fakePipeline) IngestCandidate(_ context.Context, cand news.Candidate, _ bool) (news.Article, news.Origin, bool, error) {
	f.mu.Lock()
	f.ingestCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block := f.blockPerCall
	f.mu.Unlock()

	if block > 0 {
		time.Sleep(block)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if cand.URL == f.failURL {
		return news.Article{}, news.OriginError, false, errors.New("boom")
	}
	if cand.Content == "" {
		cand.Content = "extracted body for " + cand.URL
	}
	a, inserted := f.upsert(cand)
	return a, news.OriginWeb, inserted, nil
}

func (f *fakePipeline) SaveCandidate(_ context.Context, cand news.Candidate) (news.Article, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	a, inserted := f.upsert(cand)
	return a, inserted, nil
}

func TestRunScenarioExclusionAndInsert(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{
		Concurrency:      1,
		ExcludedDomains:  []string{"excluded.com"},
		MinContentLength: 200,
	}, nil)

	candidates := []news.Candidate{
		{URL: "https://example.com/a", Content: strings.Repeat("x", 1200)},
		{URL: "https://excluded.com/b"},
	}
	summary := o.Run(context.Background(), candidates, false)

	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Errors)
	require.Len(t, p.rows, 1)
	_, ok := p.rows["https://example.com/a"]
	assert.True(t, ok)
	assert.Zero(t, p.ingestCalls, "pre-known content must not trigger extraction")
}

func TestRunExcludesSubdomains(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{ExcludedDomains: []string{"youtube.com"}}, nil)

	summary := o.Run(context.Background(), []news.Candidate{
		{URL: "https://www.youtube.com/watch?v=1"},
		{URL: "https://music.youtube.com/track"},
		{URL: "https://notyoutube.com/story"},
	}, false)

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, p.ingestCalls, "excluded candidates must never reach the pipeline")
	assert.Zero(t, p.saveCalls)
}

func TestRunSkipsMalformedURLs(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{Concurrency: 2}, nil)

	summary := o.Run(context.Background(), []news.Candidate{
		{URL: "::not a url::"},
		{URL: ""},
		{URL: "/relative/path"},
	}, false)

	assert.Equal(t, 3, summary.Skipped, "unusable urls are skipped, not errored")
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, 0, summary.Inserted)
	assert.Zero(t, p.ingestCalls+p.saveCalls, "unusable urls must never reach the pipeline")
	assert.Empty(t, p.rows)
}

func TestRunContentFloorCountsCharacters(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{Concurrency: 1, MinContentLength: 200}, nil)

	// 150 two-byte characters: 300 bytes but only 150 characters, below the
	// floor. A byte count would wrongly accept it.
	summary := o.Run(context.Background(), []news.Candidate{
		{URL: "https://example.com/multibyte", Content: strings.Repeat("ü", 150)},
		{URL: "https://example.com/long", Content: strings.Repeat("ü", 250)},
	}, false)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Inserted)
	assert.Zero(t, p.ingestCalls, "content clearing the floor is saved without extraction")
	assert.Equal(t, 1, p.saveCalls)
	_, ok := p.rows["https://example.com/long"]
	assert.True(t, ok)
}

func TestRunSkipsBelowContentFloor(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{MinContentLength: 200}, nil)

	summary := o.Run(context.Background(), []news.Candidate{
		{URL: "https://example.com/thin", Content: "too short"},
	}, false)

	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, p.rows)
}

func TestRunSameURLConcurrently(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{Concurrency: 8}, nil)

	candidates := make([]news.Candidate, 20)
	for i := range candidates {
		candidates[i] = news.Candidate{URL: "https://example.com/same"}
	}
	summary := o.Run(context.Background(), candidates, false)

	assert.Equal(t, 1, summary.Inserted, "exactly one insert for a repeated url")
	assert.Equal(t, 19, summary.Updated)
	assert.Len(t, p.rows, 1)
}

func TestRunBoundsConcurrency(t *testing.T) {
	p := newFakePipeline()
	p.blockPerCall = 20 * time.Millisecond
	o := New(p, Config{Concurrency: 3}, nil)

	candidates := make([]news.Candidate, 12)
	for i := range candidates {
		candidates[i] = news.Candidate{URL: "https://example.com/" + string(rune('a'+i))}
	}
	o.Run(context.Background(), candidates, false)

	assert.LessOrEqual(t, p.maxInFlight, 3)
}

func TestRunIsolatesFailures(t *testing.T) {
	p := newFakePipeline()
	p.failURL = "https://example.com/bad"
	o := New(p, Config{Concurrency: 2}, nil)

	summary := o.Run(context.Background(), []news.Candidate{
		{URL: "https://example.com/bad"},
		{URL: "https://example.com/good"},
	}, false)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Inserted)
	require.Len(t, summary.Articles, 1)
	assert.Equal(t, "https://example.com/good", summary.Articles[0].URL)
}

func TestRunSortsByPublishedAtDescending(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{Concurrency: 4}, nil)

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	summary := o.Run(context.Background(), []news.Candidate{
		{URL: "https://example.com/old", PublishedAt: &old},
		{URL: "https://example.com/undated"},
		{URL: "https://example.com/new", PublishedAt: &newer},
	}, false)

	require.Len(t, summary.Articles, 3)
	assert.Equal(t, "https://example.com/new", summary.Articles[0].URL)
	assert.Equal(t, "https://example.com/old", summary.Articles[1].URL)
	assert.Equal(t, "https://example.com/undated", summary.Articles[2].URL)
}

func TestRunIdempotentRerun(t *testing.T) {
	p := newFakePipeline()
	o := New(p, Config{Concurrency: 2}, nil)

	candidates := []news.Candidate{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b"},
	}
	first := o.Run(context.Background(), candidates, false)
	assert.Equal(t, 2, first.Inserted)

	second := o.Run(context.Background(), candidates, false)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)
	assert.Len(t, p.rows, 2)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}
