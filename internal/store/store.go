// Package store persists articles and transcripts and implements the
// cache-aside layer on top of the fetch/extract pipeline.
package store

import (
	"context"
	"errors"

	"github.com/coverwire/harvester/internal/news"
)

// ErrNotFound is returned when no row exists for the requested key.
var ErrNotFound = errors.New("store: not found")

// ListFilter narrows ListArticles results.
type ListFilter struct {
	SourceAPI string
	Domain    string
	Search    string
	Limit     int
}

// Stats summarizes the stored corpus.
type Stats struct {
	Total       int64            `json:"total"`
	WithContent int64            `json:"with_content"`
	BySourceAPI map[string]int64 `json:"by_source_api"`
}

// ArticleStore is the persistence contract consumed by the cache-aside layer
// and the ingestion orchestrator. Implementations must hold a unique
// constraint on url and resolve concurrent upserts for the same url as
// update-on-conflict, never duplicate-insert.
type ArticleStore interface {
	FindArticleByURL(ctx context.Context, url string) (news.Article, error)
	// UpsertArticle inserts or updates by url and returns the stored row and
	// whether the call inserted a new one.
	UpsertArticle(ctx context.Context, a news.Article) (news.Article, bool, error)
	ListArticles(ctx context.Context, f ListFilter) ([]news.Article, error)
	Stats(ctx context.Context) (Stats, error)

	FindTranscriptByURL(ctx context.Context, url string) (news.Transcript, error)
	UpsertTranscript(ctx context.Context, tr news.Transcript) (news.Transcript, bool, error)
}
