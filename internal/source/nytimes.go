package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/coverwire/harvester/internal/news"
)

const nytimesBaseURL = "https://api.nytimes.com/svc/search/v2/articlesearch.json"

// NYTimes queries the Article Search API. The provider allows roughly five
// requests per minute on the public tier.
type NYTimes struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewNYTimes builds the adapter. baseURL overrides are for tests.
func NewNYTimes(apiKey, baseURL string) *NYTimes {
	if baseURL == "" {
		baseURL = nytimesBaseURL
	}
	return &NYTimes{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(12*time.Second), 1),
	}
}

func (a *NYTimes) Name() string { return "nytimes" }

type nytimesResponse struct {
	Response struct {
		Docs []struct {
			WebURL        string `json:"web_url"`
			Abstract      string `json:"abstract"`
			LeadParagraph string `json:"lead_paragraph"`
			PubDate       string `json:"pub_date"`
			SectionName   string `json:"section_name"`
			Headline      struct {
				Main string `json:"main"`
			} `json:"headline"`
			Byline struct {
				Original string `json:"original"`
			} `json:"byline"`
		} `json:"docs"`
	} `json:"response"`
}

// FetchCandidates runs one article search.
func (a *NYTimes) FetchCandidates(ctx context.Context, p Params) ([]news.Candidate, news.Meta, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	q := url.Values{}
	q.Set("api-key", a.apiKey)
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.Category != "" {
		q.Set("fq", `section_name:("`+p.Category+`")`)
	}

	var resp nytimesResponse
	if err := getJSON(ctx, a.client, a.baseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, nil, err
	}

	limit := p.limit()
	candidates := make([]news.Candidate, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		if doc.WebURL == "" {
			continue
		}
		var categories []string
		if doc.SectionName != "" {
			categories = []string{strings.ToLower(doc.SectionName)}
		}
		candidates = append(candidates, news.Candidate{
			URL:         doc.WebURL,
			Title:       doc.Headline.Main,
			Description: doc.Abstract,
			Content:     doc.LeadParagraph,
			Author:      strings.TrimPrefix(doc.Byline.Original, "By "),
			PublishedAt: parseTimestamp(doc.PubDate),
			Source:      "The New York Times",
			SourceAPI:   a.Name(),
			Categories:  categories,
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, news.Meta{"returned": len(candidates)}, nil
}
