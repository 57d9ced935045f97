package fetch

import (
	"math/rand"
	"net/http"
	"sync"
)

// identity is the browser persona presented on a single request.
type identity struct {
	UserAgent      string
	AcceptLanguage string
	Referer        string
}

// Rotation pools. Rotating the full header set per request avoids the
// fixed-fingerprint pattern that trips anti-bot heuristics on some hosts.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0",
}

var defaultReferers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://www.reddit.com/",
	"https://twitter.com/",
	"https://www.linkedin.com/",
}

var defaultAcceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.8",
}

// identityPool hands out a pseudo-random identity per request.
type identityPool struct {
	mu         sync.Mutex
	rng        *rand.Rand
	userAgents []string
	referers   []string
	languages  []string
}

func newIdentityPool(seed int64) *identityPool {
	return &identityPool{
		rng:        rand.New(rand.NewSource(seed)),
		userAgents: defaultUserAgents,
		referers:   defaultReferers,
		languages:  defaultAcceptLanguages,
	}
}

func (p *identityPool) pick() identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return identity{
		UserAgent:      p.userAgents[p.rng.Intn(len(p.userAgents))],
		AcceptLanguage: p.languages[p.rng.Intn(len(p.languages))],
		Referer:        p.referers[p.rng.Intn(len(p.referers))],
	}
}

// jitter returns a uniform duration in [minD, maxD].
func (p *identityPool) jitter(minD, maxD float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if maxD <= minD {
		return minD
	}
	return minD + p.rng.Float64()*(maxD-minD)
}

func (id identity) apply(h http.Header) {
	h.Set("User-Agent", id.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", id.AcceptLanguage)
	h.Set("Referer", id.Referer)
}
