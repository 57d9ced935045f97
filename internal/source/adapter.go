// Package source provides the pluggable adapters producing ingestion
// candidates, from paid news APIs, RSS feeds and scraped listing pages.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coverwire/harvester/internal/news"
)

// Params narrows a candidate request. Adapters ignore fields they cannot map.
type Params struct {
	Query    string
	Category string
	Language string
	Limit    int
}

const defaultLimit = 20

func (p Params) limit() int {
	if p.Limit <= 0 {
		return defaultLimit
	}
	return p.Limit
}

// Adapter produces a normalized candidate list. The orchestrator treats all
// adapters uniformly.
type Adapter interface {
	Name() string
	FetchCandidates(ctx context.Context, p Params) ([]news.Candidate, news.Meta, error)
}

const requestTimeout = 15 * time.Second

// getJSON issues a GET and decodes the body, converting HTTP-level failures
// into the pipeline's typed errors.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return news.NewFetchError(news.KindInvalidInput, url, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return news.NewFetchError(news.KindNetwork, url, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return news.NewFetchError(news.KindRateLimited, url, resp.StatusCode, fmt.Errorf("provider throttled"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return news.NewFetchError(news.KindForbidden, url, resp.StatusCode, fmt.Errorf("provider rejected credentials"))
	case resp.StatusCode != http.StatusOK:
		return news.NewFetchError(news.KindNetwork, url, resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return news.NewFetchError(news.KindNetwork, url, resp.StatusCode, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return news.NewFetchError(news.KindParse, url, resp.StatusCode, err)
	}
	return nil
}

// parseTimestamp accepts the timestamp shapes the providers actually emit.
func parseTimestamp(s string) *time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
