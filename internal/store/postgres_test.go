package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/news"
)

var articleCols = []string{
	"id", "url", "domain", "title", "content", "summary", "author", "language",
	"published_at", "source", "source_api", "categories", "extraction_error",
	"created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock, zap.NewNop()), mock
}

func articleRow(mock pgxmock.PgxPoolIface, url string) *pgxmock.Rows {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return mock.NewRows(articleCols).AddRow(
		int64(1), url, news.DeriveDomain(url), "Title", "Body text", "Summary",
		"Jane Doe", "en", (*time.Time)(nil), "Example", "thenewsapi",
		[]string{"business"}, "", now, now,
	)
}

func TestFindArticleByURL(t *testing.T) {
	s, mock := newMockStore(t)
	url := "https://example.com/story"

	mock.ExpectQuery(`FROM articles WHERE url = \$1`).
		WithArgs(url).
		WillReturnRows(articleRow(mock, url))

	a, err := s.FindArticleByURL(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, url, a.URL)
	assert.Equal(t, "example.com", a.Domain)
	assert.Equal(t, "Body text", a.Content)
	assert.Nil(t, a.PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindArticleByURLNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM articles WHERE url = \$1`).
		WithArgs("https://example.com/missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindArticleByURL(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertArticleInsert(t *testing.T) {
	s, mock := newMockStore(t)
	url := "https://example.com/story"
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := mock.NewRows(append(articleCols, "inserted")).AddRow(
		int64(7), url, "example.com", "Title", "Body text", "Summary",
		"", "", (*time.Time)(nil), "", "gnews", []string{}, "", now, now, true,
	)
	mock.ExpectQuery(`INSERT INTO articles`).
		WithArgs(url, "example.com", "Title", "Body text", "Summary", "", "",
			(*time.Time)(nil), "", "gnews", []string{}, "").
		WillReturnRows(rows)

	stored, inserted, err := s.UpsertArticle(context.Background(), news.Article{
		URL:       url,
		Title:     "Title",
		Content:   "Body text",
		Summary:   "Summary",
		SourceAPI: "gnews",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(7), stored.ID)
	// Domain was derived from the url before the write.
	assert.Equal(t, "example.com", stored.Domain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertArticleUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	url := "https://example.com/story"
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	rows := mock.NewRows(append(articleCols, "inserted")).AddRow(
		int64(7), url, "example.com", "Title", "Old body survives", "", "", "",
		(*time.Time)(nil), "", "", []string{}, "fetch failed", created, updated, false,
	)
	mock.ExpectQuery(`INSERT INTO articles`).
		WithArgs(url, "example.com", "", "", "", "", "",
			(*time.Time)(nil), "", "", []string{}, "fetch failed").
		WillReturnRows(rows)

	stored, inserted, err := s.UpsertArticle(context.Background(), news.Article{
		URL:             url,
		ExtractionError: "fetch failed",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "Old body survives", stored.Content)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertArticleEmptyURL(t *testing.T) {
	s, _ := newMockStore(t)
	_, _, err := s.UpsertArticle(context.Background(), news.Article{})
	require.Error(t, err)
	assert.Equal(t, news.KindInvalidInput, news.KindOf(err))
}

func TestListArticlesFiltered(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM articles WHERE source_api = \$1`).
		WithArgs("rss").
		WillReturnRows(articleRow(mock, "https://example.com/a"))

	got, err := s.ListArticles(context.Background(), ListFilter{SourceAPI: "rss"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/a", got[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\), count\(\*\) FILTER`).
		WillReturnRows(mock.NewRows([]string{"total", "with_content"}).AddRow(int64(10), int64(8)))
	mock.ExpectQuery(`GROUP BY source_api`).
		WillReturnRows(mock.NewRows([]string{"source_api", "count"}).
			AddRow("rss", int64(6)).
			AddRow("gnews", int64(4)))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Total)
	assert.Equal(t, int64(8), st.WithContent)
	assert.Equal(t, int64(6), st.BySourceAPI["rss"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTranscript(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO transcripts`).
		WithArgs("https://example.com/ep1", "Episode 1", "Full text", "podcast", "en").
		WillReturnRows(mock.NewRows([]string{"id", "url", "title", "content", "source", "language", "created_at", "updated_at", "inserted"}).
			AddRow(int64(3), "https://example.com/ep1", "Episode 1", "Full text", "podcast", "en", now, now, true))

	tr, inserted, err := s.UpsertTranscript(context.Background(), news.Transcript{
		URL:      "https://example.com/ep1",
		Title:    "Episode 1",
		Content:  "Full text",
		Source:   "podcast",
		Language: "en",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(3), tr.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTranscriptByURLNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM transcripts WHERE url = \$1`).
		WithArgs("https://example.com/none").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindTranscriptByURL(context.Background(), "https://example.com/none")
	assert.ErrorIs(t, err, ErrNotFound)
}
