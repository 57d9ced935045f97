package source

import (
	"context"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/news"
)

// RSS pulls candidates from a fixed set of feeds. One unreachable feed is
// reported in Meta and does not abort the others.
type RSS struct {
	feeds  []string
	parser *gofeed.Parser
	logger *zap.Logger
}

// NewRSS builds the adapter over the configured feed URLs.
func NewRSS(feeds []string, logger *zap.Logger) *RSS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSS{feeds: feeds, parser: gofeed.NewParser(), logger: logger}
}

func (a *RSS) Name() string { return "rss" }

// FetchCandidates parses every configured feed and flattens the items.
func (a *RSS) FetchCandidates(ctx context.Context, p Params) ([]news.Candidate, news.Meta, error) {
	var candidates []news.Candidate
	var failed []string
	limit := p.limit()

	for _, feedURL := range a.feeds {
		feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			a.logger.Warn("feed unreachable", zap.String("feed", feedURL), zap.Error(err))
			failed = append(failed, feedURL)
			continue
		}
		for _, item := range feed.Items {
			if item.Link == "" {
				continue
			}
			cand := news.Candidate{
				URL:         item.Link,
				Title:       item.Title,
				Description: item.Description,
				PublishedAt: item.PublishedParsed,
				Source:      feed.Title,
				SourceAPI:   a.Name(),
				Categories:  item.Categories,
			}
			if item.Author != nil {
				cand.Author = item.Author.Name
			}
			candidates = append(candidates, cand)
			if len(candidates) >= limit {
				break
			}
		}
		if len(candidates) >= limit {
			break
		}
	}
	meta := news.Meta{"feeds": len(a.feeds), "returned": len(candidates)}
	if len(failed) > 0 {
		meta["failed_feeds"] = failed
	}
	return candidates, meta, nil
}
