package source

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/fetch"
	"github.com/coverwire/harvester/internal/memcache"
	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/resolver"
)

const googleNewsBaseURL = "https://news.google.com"

// topicCacheKey holds the discovered category links so repeat pulls skip the
// home-page round trip.
const topicCacheKey = "googlenews:topics"

// maxClusterPages bounds how many "Full coverage" clusters one pull expands.
const maxClusterPages = 2

// Fetcher is the polite-fetch dependency. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Result, error)
}

// GoogleNews scrapes news.google.com listing pages through the polite
// fetcher, decoding redirector links into publisher URLs where possible.
type GoogleNews struct {
	fetcher Fetcher
	cache   *memcache.Cache
	baseURL string
	logger  *zap.Logger
}

// NewGoogleNews builds the adapter. cache holds discovered category links;
// baseURL overrides are for tests.
func NewGoogleNews(f Fetcher, cache *memcache.Cache, baseURL string, logger *zap.Logger) *GoogleNews {
	if baseURL == "" {
		baseURL = googleNewsBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleNews{fetcher: f, cache: cache, baseURL: baseURL, logger: logger}
}

func (a *GoogleNews) Name() string { return "googlenews" }

// FetchCandidates scrapes the listing page for the requested category (or the
// front page) and expands a bounded number of story clusters.
func (a *GoogleNews) FetchCandidates(ctx context.Context, p Params) ([]news.Candidate, news.Meta, error) {
	listing := a.baseURL
	if p.Category != "" {
		link, err := a.categoryLink(ctx, p.Category)
		if err != nil {
			return nil, nil, err
		}
		if link != "" {
			listing = link
		}
	}

	doc, err := a.fetchDoc(ctx, listing)
	if err != nil {
		return nil, nil, err
	}

	dedup := resolver.NewDeduper()
	limit := p.limit()
	candidates := a.parseListing(doc, dedup, limit)

	// Story clusters hold the same headline from multiple publishers.
	clusters := collectLinks(doc, "./stories/", a.baseURL)
	for i, cluster := range clusters {
		if i >= maxClusterPages || len(candidates) >= limit {
			break
		}
		clusterDoc, err := a.fetchDoc(ctx, cluster)
		if err != nil {
			a.logger.Warn("cluster page failed", zap.String("url", cluster), zap.Error(err))
			continue
		}
		candidates = append(candidates, a.parseListing(clusterDoc, dedup, limit-len(candidates))...)
	}

	return candidates, news.Meta{"listing": listing, "returned": len(candidates)}, nil
}

// categoryLink finds the topic URL whose label matches category, discovering
// and caching the topic list from the front page on first use.
func (a *GoogleNews) categoryLink(ctx context.Context, category string) (string, error) {
	var topics map[string]string
	if a.cache != nil {
		if v, ok := a.cache.Get(topicCacheKey); ok {
			topics = v.(map[string]string)
		}
	}
	if topics == nil {
		doc, err := a.fetchDoc(ctx, a.baseURL)
		if err != nil {
			return "", err
		}
		topics = map[string]string{}
		doc.Find(`a[href^="./topics/"]`).Each(func(_ int, s *goquery.Selection) {
			label := strings.ToLower(strings.TrimSpace(s.Text()))
			href, _ := s.Attr("href")
			if label != "" && href != "" {
				topics[label] = absoluteURL(a.baseURL, href)
			}
		})
		if a.cache != nil {
			a.cache.Set(topicCacheKey, topics)
		}
	}
	want := strings.ToLower(strings.TrimSpace(category))
	if link, ok := topics[want]; ok {
		return link, nil
	}
	for label, link := range topics {
		if strings.Contains(label, want) {
			return link, nil
		}
	}
	a.logger.Debug("category not found", zap.String("category", category))
	return "", nil
}

func (a *GoogleNews) fetchDoc(ctx context.Context, rawURL string) (*goquery.Document, error) {
	res, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, news.NewFetchError(news.KindParse, rawURL, res.StatusCode, err)
	}
	return doc, nil
}

// parseListing walks <article> blocks, resolving each redirector link to a
// publisher URL when the token decodes. Links that stay opaque keep the
// redirector URL; the fetch path settles them by following redirects.
func (a *GoogleNews) parseListing(doc *goquery.Document, dedup *resolver.Deduper, limit int) []news.Candidate {
	var out []news.Candidate
	doc.Find("article").EachWithBreak(func(_ int, art *goquery.Selection) bool {
		link := art.Find(`a[href^="./articles/"], a[href^="./read/"]`).First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		abs := absoluteURL(a.baseURL, href)
		target := abs
		if decoded, ok := resolver.DecodePublisherURL(abs); ok {
			target = decoded
		}
		if !dedup.MarkIfNew(target) {
			return true
		}

		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(art.Find("h3, h4").First().Text())
		}
		cand := news.Candidate{
			URL:       target,
			Title:     title,
			SourceAPI: a.Name(),
		}
		if dt, ok := art.Find("time").First().Attr("datetime"); ok {
			cand.PublishedAt = parseTimestamp(dt)
		}
		if src := strings.TrimSpace(art.Find("[data-n-tid]").First().Text()); src != "" {
			cand.Source = src
		}
		out = append(out, cand)
		return len(out) < limit
	})
	return out
}

func collectLinks(doc *goquery.Document, prefix, base string) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find(`a[href^="` + prefix + `"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := absoluteURL(base, href)
		if abs != "" && !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out
}

func absoluteURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := url.Parse(strings.TrimPrefix(href, "."))
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}
