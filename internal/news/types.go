// Package news defines the core types shared across the acquisition pipeline.
package news

import (
	"net/url"
	"strings"
	"time"
)

// Article is the persisted record for a single story, keyed by canonical URL.
type Article struct {
	ID              int64      `json:"id"`
	URL             string     `json:"url"`
	Domain          string     `json:"domain"`
	Title           string     `json:"title,omitempty"`
	Content         string     `json:"content,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Author          string     `json:"author,omitempty"`
	Language        string     `json:"language,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Source          string     `json:"source,omitempty"`
	SourceAPI       string     `json:"source_api,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	ExtractionError string     `json:"extraction_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Transcript is the sibling record for caller-supplied transcript content.
// Same uniqueness and upsert rules as Article, but content is never extracted.
type Transcript struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate is a normalized article reference produced by a source adapter,
// before extraction and persistence.
type Candidate struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	Author      string     `json:"author,omitempty"`
	Language    string     `json:"language,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Source      string     `json:"source,omitempty"`
	SourceAPI   string     `json:"source_api,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
}

// Origin reports where a cache-aside lookup got its result from.
type Origin string

// Origin values returned by the cache-aside store.
const (
	OriginCache Origin = "cache"
	OriginWeb   Origin = "web"
	OriginError Origin = "error"
)

// Outcome classifies what happened to a single ingested candidate.
type Outcome string

// Outcome values aggregated into a batch Summary.
const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeError    Outcome = "error"
)

// Summary aggregates the result of one ingestion batch.
type Summary struct {
	BatchID  string    `json:"batch_id"`
	Inserted int       `json:"inserted"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
	Articles []Article `json:"articles"`
}

// Add records an outcome in the summary counters.
func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeError:
		s.Errors++
	}
}

// Meta carries source-adapter bookkeeping returned alongside candidates.
type Meta map[string]any

// DeriveDomain extracts the registrable host from a URL for exclusion checks
// and analytics. The host is lowercased and a leading "www." is stripped so
// that "www.example.com" and "example.com" collapse to the same domain.
func DeriveDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// CanonicalizeURL standardizes a URL so equivalent forms dedup to one key.
// It lowercases scheme and host and drops the fragment.
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}
