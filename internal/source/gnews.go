package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/coverwire/harvester/internal/news"
)

const gnewsBaseURL = "https://gnews.io/api/v4/search"

// GNews queries the gnews.io search API.
type GNews struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGNews builds the adapter. baseURL overrides are for tests.
func NewGNews(apiKey, baseURL string) *GNews {
	if baseURL == "" {
		baseURL = gnewsBaseURL
	}
	return &GNews{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (a *GNews) Name() string { return "gnews" }

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// FetchCandidates runs one search query.
func (a *GNews) FetchCandidates(ctx context.Context, p Params) ([]news.Candidate, news.Meta, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	q := url.Values{}
	q.Set("apikey", a.apiKey)
	q.Set("max", strconv.Itoa(p.limit()))
	if p.Query != "" {
		q.Set("q", p.Query)
	} else if p.Category != "" {
		q.Set("q", p.Category)
	}
	if p.Language != "" {
		q.Set("lang", p.Language)
	}

	var resp gnewsResponse
	if err := getJSON(ctx, a.client, a.baseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, nil, err
	}

	candidates := make([]news.Candidate, 0, len(resp.Articles))
	for _, art := range resp.Articles {
		if art.URL == "" {
			continue
		}
		candidates = append(candidates, news.Candidate{
			URL:         art.URL,
			Title:       art.Title,
			Description: art.Description,
			Content:     art.Content,
			Language:    p.Language,
			PublishedAt: parseTimestamp(art.PublishedAt),
			Source:      art.Source.Name,
			SourceAPI:   a.Name(),
		})
	}
	return candidates, news.Meta{"total": resp.TotalArticles}, nil
}
