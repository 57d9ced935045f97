package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/coverwire/harvester/internal/news"
)

const theNewsAPIBaseURL = "https://api.thenewsapi.com/v1/news/top"

// TheNewsAPI pulls top stories from api.thenewsapi.com.
type TheNewsAPI struct {
	token   string
	baseURL string
	client  *http.Client
	// Free-tier quota is tight; one request per second keeps a batch of
	// category pulls inside it.
	limiter *rate.Limiter
}

// NewTheNewsAPI builds the adapter. baseURL overrides are for tests; pass ""
// for the real endpoint.
func NewTheNewsAPI(token, baseURL string) *TheNewsAPI {
	if baseURL == "" {
		baseURL = theNewsAPIBaseURL
	}
	return &TheNewsAPI{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (a *TheNewsAPI) Name() string { return "thenewsapi" }

type theNewsAPIResponse struct {
	Meta struct {
		Found    int `json:"found"`
		Returned int `json:"returned"`
	} `json:"meta"`
	Data []struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Snippet     string   `json:"snippet"`
		URL         string   `json:"url"`
		Language    string   `json:"language"`
		PublishedAt string   `json:"published_at"`
		Source      string   `json:"source"`
		Categories  []string `json:"categories"`
	} `json:"data"`
}

// FetchCandidates pulls one page of top stories.
func (a *TheNewsAPI) FetchCandidates(ctx context.Context, p Params) ([]news.Candidate, news.Meta, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	q := url.Values{}
	q.Set("api_token", a.token)
	q.Set("limit", strconv.Itoa(p.limit()))
	if p.Language != "" {
		q.Set("language", p.Language)
	}
	if p.Category != "" {
		q.Set("categories", p.Category)
	}
	if p.Query != "" {
		q.Set("search", p.Query)
	}

	var resp theNewsAPIResponse
	if err := getJSON(ctx, a.client, a.baseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, nil, err
	}

	candidates := make([]news.Candidate, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		candidates = append(candidates, news.Candidate{
			URL:         d.URL,
			Title:       d.Title,
			Description: d.Description,
			Content:     d.Snippet,
			Language:    d.Language,
			PublishedAt: parseTimestamp(d.PublishedAt),
			Source:      d.Source,
			SourceAPI:   a.Name(),
			Categories:  d.Categories,
		})
	}
	return candidates, news.Meta{"found": resp.Meta.Found, "returned": resp.Meta.Returned}, nil
}
