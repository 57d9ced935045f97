package store

import "context"

// Schema is applied idempotently at startup. The url unique indexes are what
// turn concurrent same-url writes into update-on-conflict instead of
// duplicate rows.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    id               BIGSERIAL PRIMARY KEY,
    url              TEXT        NOT NULL,
    domain           TEXT        NOT NULL DEFAULT '',
    title            TEXT        NOT NULL DEFAULT '',
    content          TEXT        NOT NULL DEFAULT '',
    summary          TEXT        NOT NULL DEFAULT '',
    author           TEXT        NOT NULL DEFAULT '',
    language         TEXT        NOT NULL DEFAULT '',
    published_at     TIMESTAMPTZ,
    source           TEXT        NOT NULL DEFAULT '',
    source_api       TEXT        NOT NULL DEFAULT '',
    categories       TEXT[]      NOT NULL DEFAULT '{}',
    extraction_error TEXT        NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS articles_url_key ON articles (url);
CREATE INDEX IF NOT EXISTS articles_domain_idx ON articles (domain);
CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at DESC NULLS LAST);

CREATE TABLE IF NOT EXISTS transcripts (
    id         BIGSERIAL PRIMARY KEY,
    url        TEXT        NOT NULL,
    title      TEXT        NOT NULL DEFAULT '',
    content    TEXT        NOT NULL DEFAULT '',
    source     TEXT        NOT NULL DEFAULT '',
    language   TEXT        NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS transcripts_url_key ON transcripts (url);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}
