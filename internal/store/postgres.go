package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/news"
)

// querier is the slice of pgxpool.Pool the store actually uses, so tests can
// substitute pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the pgx-backed ArticleStore.
type Postgres struct {
	db     querier
	logger *zap.Logger
}

var _ ArticleStore = (*Postgres)(nil)

// NewPostgres wraps an existing pool. The caller owns the pool lifecycle.
func NewPostgres(db querier, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, logger: logger}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const articleColumns = `id, url, domain, title, content, summary, author, language,
	published_at, source, source_api, categories, extraction_error, created_at, updated_at`

func scanArticle(row pgx.Row) (news.Article, error) {
	var a news.Article
	var publishedAt *time.Time
	err := row.Scan(&a.ID, &a.URL, &a.Domain, &a.Title, &a.Content, &a.Summary,
		&a.Author, &a.Language, &publishedAt, &a.Source, &a.SourceAPI,
		&a.Categories, &a.ExtractionError, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return news.Article{}, err
	}
	a.PublishedAt = publishedAt
	return a, nil
}

// FindArticleByURL returns the row for the exact url, or ErrNotFound.
func (s *Postgres) FindArticleByURL(ctx context.Context, url string) (news.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE url = $1`, articleColumns)
	a, err := scanArticle(s.db.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Article{}, ErrNotFound
	}
	if err != nil {
		return news.Article{}, fmt.Errorf("find article: %w", err)
	}
	return a, nil
}

// upsertArticleSQL merges an incoming row into an existing one. Empty incoming
// fields never clobber populated stored ones, so a failed forced refresh
// cannot erase previously extracted content. extraction_error always takes the
// newest value since it describes the latest attempt.
const upsertArticleSQL = `
INSERT INTO articles
    (url, domain, title, content, summary, author, language, published_at,
     source, source_api, categories, extraction_error)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (url) DO UPDATE SET
    domain           = CASE WHEN EXCLUDED.domain <> '' THEN EXCLUDED.domain ELSE articles.domain END,
    title            = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE articles.title END,
    content          = CASE WHEN EXCLUDED.content <> '' THEN EXCLUDED.content ELSE articles.content END,
    summary          = CASE WHEN EXCLUDED.summary <> '' THEN EXCLUDED.summary ELSE articles.summary END,
    author           = CASE WHEN EXCLUDED.author <> '' THEN EXCLUDED.author ELSE articles.author END,
    language         = CASE WHEN EXCLUDED.language <> '' THEN EXCLUDED.language ELSE articles.language END,
    published_at     = COALESCE(EXCLUDED.published_at, articles.published_at),
    source           = CASE WHEN EXCLUDED.source <> '' THEN EXCLUDED.source ELSE articles.source END,
    source_api       = CASE WHEN EXCLUDED.source_api <> '' THEN EXCLUDED.source_api ELSE articles.source_api END,
    categories       = CASE WHEN cardinality(EXCLUDED.categories) > 0 THEN EXCLUDED.categories ELSE articles.categories END,
    extraction_error = EXCLUDED.extraction_error,
    updated_at       = now()
RETURNING ` + articleColumns + `, (xmax = 0) AS inserted`

// UpsertArticle inserts or merges by url and reports whether a new row was
// created. Concurrent calls for the same url serialize on the unique index;
// exactly one inserts, the rest update.
func (s *Postgres) UpsertArticle(ctx context.Context, a news.Article) (news.Article, bool, error) {
	if a.URL == "" {
		return news.Article{}, false, news.NewFetchError(news.KindInvalidInput, "", 0, errors.New("empty url"))
	}
	if a.Domain == "" {
		a.Domain = news.DeriveDomain(a.URL)
	}
	if a.Categories == nil {
		a.Categories = []string{}
	}
	row := s.db.QueryRow(ctx, upsertArticleSQL,
		a.URL, a.Domain, a.Title, a.Content, a.Summary, a.Author, a.Language,
		a.PublishedAt, a.Source, a.SourceAPI, a.Categories, a.ExtractionError)

	var stored news.Article
	var publishedAt *time.Time
	var inserted bool
	err := row.Scan(&stored.ID, &stored.URL, &stored.Domain, &stored.Title,
		&stored.Content, &stored.Summary, &stored.Author, &stored.Language,
		&publishedAt, &stored.Source, &stored.SourceAPI, &stored.Categories,
		&stored.ExtractionError, &stored.CreatedAt, &stored.UpdatedAt, &inserted)
	if err != nil {
		return news.Article{}, false, fmt.Errorf("upsert article: %w", err)
	}
	stored.PublishedAt = publishedAt
	s.logger.Debug("article upserted",
		zap.String("url", stored.URL),
		zap.Bool("inserted", inserted))
	return stored, inserted, nil
}

// ListArticles returns rows matching the filter, newest published first.
func (s *Postgres) ListArticles(ctx context.Context, f ListFilter) ([]news.Article, error) {
	b := psql.Select(articleColumns).
		From("articles").
		OrderBy("published_at DESC NULLS LAST", "created_at DESC")
	if f.SourceAPI != "" {
		b = b.Where(sq.Eq{"source_api": f.SourceAPI})
	}
	if f.Domain != "" {
		b = b.Where(sq.Eq{"domain": f.Domain})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		b = b.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"content": pattern}})
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	b = b.Limit(uint64(limit))

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []news.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("list articles: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stats reports corpus-level counts.
func (s *Postgres) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySourceAPI: map[string]int64{}}
	row := s.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE content <> '') FROM articles`)
	if err := row.Scan(&st.Total, &st.WithContent); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT source_api, count(*) FROM articles GROUP BY source_api`)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var api string
		var n int64
		if err := rows.Scan(&api, &n); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
		st.BySourceAPI[api] = n
	}
	return st, rows.Err()
}

// FindTranscriptByURL returns the transcript for the exact url, or ErrNotFound.
func (s *Postgres) FindTranscriptByURL(ctx context.Context, url string) (news.Transcript, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, url, title, content, source, language, created_at, updated_at
		   FROM transcripts WHERE url = $1`, url)
	var tr news.Transcript
	err := row.Scan(&tr.ID, &tr.URL, &tr.Title, &tr.Content, &tr.Source, &tr.Language, &tr.CreatedAt, &tr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Transcript{}, ErrNotFound
	}
	if err != nil {
		return news.Transcript{}, fmt.Errorf("find transcript: %w", err)
	}
	return tr, nil
}

const upsertTranscriptSQL = `
INSERT INTO transcripts (url, title, content, source, language)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO UPDATE SET
    title      = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE transcripts.title END,
    content    = CASE WHEN EXCLUDED.content <> '' THEN EXCLUDED.content ELSE transcripts.content END,
    source     = CASE WHEN EXCLUDED.source <> '' THEN EXCLUDED.source ELSE transcripts.source END,
    language   = CASE WHEN EXCLUDED.language <> '' THEN EXCLUDED.language ELSE transcripts.language END,
    updated_at = now()
RETURNING id, url, title, content, source, language, created_at, updated_at, (xmax = 0) AS inserted`

// UpsertTranscript inserts or merges a transcript by url.
func (s *Postgres) UpsertTranscript(ctx context.Context, tr news.Transcript) (news.Transcript, bool, error) {
	if tr.URL == "" {
		return news.Transcript{}, false, news.NewFetchError(news.KindInvalidInput, "", 0, errors.New("empty url"))
	}
	row := s.db.QueryRow(ctx, upsertTranscriptSQL, tr.URL, tr.Title, tr.Content, tr.Source, tr.Language)
	var stored news.Transcript
	var inserted bool
	err := row.Scan(&stored.ID, &stored.URL, &stored.Title, &stored.Content,
		&stored.Source, &stored.Language, &stored.CreatedAt, &stored.UpdatedAt, &inserted)
	if err != nil {
		return news.Transcript{}, false, fmt.Errorf("upsert transcript: %w", err)
	}
	return stored, inserted, nil
}
