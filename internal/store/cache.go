package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/extract"
	"github.com/coverwire/harvester/internal/fetch"
	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/telemetry"
)

// Fetcher retrieves a page politely. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Result, error)
}

// Extractor pulls article fields out of raw HTML. Satisfied by
// *extract.Extractor.
type Extractor interface {
	Extract(html []byte, encoding string) (extract.Fields, error)
}

// Cache is the cache-aside layer: stored content with a non-empty body is
// served without touching the network; anything else goes through
// fetch -> extract -> upsert.
type Cache struct {
	store     ArticleStore
	fetcher   Fetcher
	extractor Extractor
	logger    *zap.Logger
}

// NewCache wires the cache-aside layer over a store and the fetch/extract
// pipeline.
func NewCache(st ArticleStore, f Fetcher, ex Extractor, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: st, fetcher: f, extractor: ex, logger: logger}
}

// GetOrExtract returns the article for rawURL. When force is false and a
// stored row with non-empty content exists, it is returned with origin cache
// and no network activity. Otherwise the page is fetched, extracted and
// upserted; pipeline failures are recorded on the row (extraction_error,
// origin error) rather than surfaced as an error, so one bad URL never
// aborts a caller's batch. Only invalid input and storage failures return a
// non-nil error.
func (c *Cache) GetOrExtract(ctx context.Context, rawURL string, force bool) (news.Article, news.Origin, error) {
	canonical, err := canonicalKey(rawURL)
	if err != nil {
		return news.Article{}, news.OriginError, err
	}
	if !force {
		if a, ok, err := c.lookup(ctx, canonical); err != nil {
			return news.Article{}, news.OriginError, err
		} else if ok {
			return a, news.OriginCache, nil
		}
	}
	a, origin, _, err := c.refresh(ctx, canonical, news.Candidate{URL: canonical})
	return a, origin, err
}

// IngestCandidate is the orchestrator entry point. A cache hit still merges
// the candidate's metadata into the row (refreshing updated_at) but performs
// no fetch. The bool reports whether a new row was inserted.
func (c *Cache) IngestCandidate(ctx context.Context, cand news.Candidate, force bool) (news.Article, news.Origin, bool, error) {
	canonical, err := canonicalKey(cand.URL)
	if err != nil {
		return news.Article{}, news.OriginError, false, err
	}
	cand.URL = canonical
	if !force {
		if _, ok, err := c.lookup(ctx, canonical); err != nil {
			return news.Article{}, news.OriginError, false, err
		} else if ok {
			stored, inserted, err := c.store.UpsertArticle(ctx, articleFromCandidate(cand))
			if err != nil {
				return news.Article{}, news.OriginError, false, err
			}
			return stored, news.OriginCache, inserted, nil
		}
	}
	return c.refresh(ctx, canonical, cand)
}

// SaveCandidate persists a candidate's own metadata and content without any
// fetch or extraction, for candidates whose source already supplied the full
// body.
func (c *Cache) SaveCandidate(ctx context.Context, cand news.Candidate) (news.Article, bool, error) {
	canonical, err := canonicalKey(cand.URL)
	if err != nil {
		return news.Article{}, false, err
	}
	cand.URL = canonical
	return c.store.UpsertArticle(ctx, articleFromCandidate(cand))
}

func canonicalKey(rawURL string) (string, error) {
	canonical, err := news.CanonicalizeURL(rawURL)
	if err != nil {
		return "", news.NewFetchError(news.KindInvalidInput, rawURL, 0, err)
	}
	if news.DeriveDomain(canonical) == "" {
		return "", news.NewFetchError(news.KindInvalidInput, rawURL, 0, errors.New("url has no host"))
	}
	return canonical, nil
}

// lookup reports a usable cached row: present and with non-empty content.
func (c *Cache) lookup(ctx context.Context, canonical string) (news.Article, bool, error) {
	a, err := c.store.FindArticleByURL(ctx, canonical)
	if errors.Is(err, ErrNotFound) {
		return news.Article{}, false, nil
	}
	if err != nil {
		return news.Article{}, false, err
	}
	if a.Content == "" {
		return news.Article{}, false, nil
	}
	telemetry.ObserveCacheLookup(string(news.OriginCache))
	c.logger.Debug("cache hit", zap.String("url", canonical))
	return a, true, nil
}

// refresh runs the fetch -> extract -> upsert path. The row is written even
// when fetch or extraction fails so the attempt and its error are recorded.
func (c *Cache) refresh(ctx context.Context, canonical string, cand news.Candidate) (news.Article, news.Origin, bool, error) {
	article := articleFromCandidate(cand)

	res, ferr := c.fetcher.Fetch(ctx, canonical)
	if ferr != nil {
		article.ExtractionError = ferr.Error()
		return c.persist(ctx, article, news.OriginError)
	}

	// Redirects settle on the publisher URL; key the row by where the fetch
	// actually landed.
	if final, err := news.CanonicalizeURL(res.FinalURL); err == nil && news.DeriveDomain(final) != "" {
		article.URL = final
		article.Domain = news.DeriveDomain(final)
	}

	fields, xerr := c.extractor.Extract(res.Body, res.Encoding)
	if xerr != nil {
		article.ExtractionError = xerr.Error()
		return c.persist(ctx, article, news.OriginError)
	}
	mergeFields(&article, fields)
	if article.Content == "" {
		article.ExtractionError = "extraction produced no content"
		return c.persist(ctx, article, news.OriginError)
	}
	article.ExtractionError = ""
	return c.persist(ctx, article, news.OriginWeb)
}

func (c *Cache) persist(ctx context.Context, a news.Article, origin news.Origin) (news.Article, news.Origin, bool, error) {
	stored, inserted, err := c.store.UpsertArticle(ctx, a)
	if err != nil {
		return news.Article{}, news.OriginError, false, err
	}
	telemetry.ObserveCacheLookup(string(origin))
	if origin == news.OriginError {
		c.logger.Warn("pipeline failure recorded",
			zap.String("url", stored.URL),
			zap.String("error", a.ExtractionError))
	}
	return stored, origin, inserted, nil
}

func articleFromCandidate(cand news.Candidate) news.Article {
	return news.Article{
		URL:         cand.URL,
		Domain:      news.DeriveDomain(cand.URL),
		Title:       cand.Title,
		Content:     cand.Content,
		Summary:     cand.Description,
		Author:      cand.Author,
		Language:    cand.Language,
		PublishedAt: cand.PublishedAt,
		Source:      cand.Source,
		SourceAPI:   cand.SourceAPI,
		Categories:  cand.Categories,
	}
}

// mergeFields lets extracted values win over candidate metadata, but never
// replaces something with nothing.
func mergeFields(a *news.Article, f extract.Fields) {
	if f.Title != "" {
		a.Title = f.Title
	}
	if f.Content != "" {
		a.Content = f.Content
	}
	if f.Summary != "" {
		a.Summary = f.Summary
	}
	if f.Author != "" {
		a.Author = f.Author
	}
}
