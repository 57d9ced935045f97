// Package fetch implements the polite HTTP fetcher: per-domain rate
// discipline, rotated request identity, randomized think-time, and
// status-aware cooldowns on hostile responses.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/ratelimit"
	"github.com/coverwire/harvester/internal/telemetry"
)

// Config controls fetcher behavior.
type Config struct {
	Timeout              time.Duration
	MaxRetries           int
	MinDelay             time.Duration
	MaxDelay             time.Duration
	ForbiddenCooldownMin time.Duration
	ForbiddenCooldownMax time.Duration
	ThrottledCooldownMin time.Duration
	ThrottledCooldownMax time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ForbiddenCooldownMax < c.ForbiddenCooldownMin {
		c.ForbiddenCooldownMax = c.ForbiddenCooldownMin
	}
	if c.ThrottledCooldownMax < c.ThrottledCooldownMin {
		c.ThrottledCooldownMax = c.ThrottledCooldownMin
	}
}

// Result is a successful fetch: the raw bytes, the terminal URL after all
// redirects (the canonical URL for storage), and the detected text encoding.
type Result struct {
	Body        []byte
	FinalURL    string
	StatusCode  int
	ContentType string
	Encoding    string
}

// Client issues polite GETs through a shared Colly collector, one clone per
// request.
type Client struct {
	cfg     Config
	limiter *ratelimit.Limiter
	retry   *exponentialRetryPolicy
	ids     *identityPool
	base    *colly.Collector
	logger  *zap.Logger
}

// New builds a Client around the given rate limiter.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(colly.Async(false))
	base.IgnoreRobotsTxt = true
	base.AllowURLRevisit = true
	base.SetRequestTimeout(cfg.Timeout)
	base.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	})

	return &Client{
		cfg:     cfg,
		limiter: limiter,
		retry:   newRetryPolicy(cfg.MaxRetries),
		ids:     newIdentityPool(time.Now().UnixNano()),
		base:    base,
		logger:  logger,
	}
}

// Fetch GETs url and returns the body, terminal URL and detected encoding.
// Failures come back as typed *news.FetchError values; transport errors are
// retried with exponential backoff up to the configured attempt budget.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Result, error) {
	domain := news.DeriveDomain(rawURL)
	if domain == "" {
		telemetry.ObserveFetch("unknown", "invalid")
		return Result{}, news.NewFetchError(news.KindInvalidInput, rawURL, 0, errors.New("url has no host"))
	}

	for attempt := 1; ; attempt++ {
		if err := c.thinkTime(ctx); err != nil {
			return Result{}, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, domain); err != nil {
				return Result{}, err
			}
		}

		res, err := c.do(ctx, rawURL)
		if err == nil {
			telemetry.ObserveFetch(domain, "ok")
			return res, nil
		}

		switch news.KindOf(err) {
		case news.KindForbidden:
			telemetry.ObserveFetch(domain, "forbidden")
			c.cooldown(ctx, domain, c.cfg.ForbiddenCooldownMin, c.cfg.ForbiddenCooldownMax)
			return Result{}, err
		case news.KindRateLimited:
			telemetry.ObserveFetch(domain, "throttled")
			c.cooldown(ctx, domain, c.cfg.ThrottledCooldownMin, c.cfg.ThrottledCooldownMax)
			return Result{}, err
		}

		if !c.retry.shouldRetry(err, attempt) {
			telemetry.ObserveFetch(domain, "network")
			return Result{}, err
		}

		wait := c.retry.backoff(attempt, func(min, max float64) float64 {
			return c.ids.jitter(min, max)
		})
		c.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return Result{}, err
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL string) (Result, error) {
	collector := c.base.Clone()
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	id := c.ids.pick()
	collector.UserAgent = id.UserAgent

	var (
		result   Result
		gotBody  bool
		status   int
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		id.apply(*r.Headers)
	})
	collector.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		body := append([]byte(nil), r.Body...)
		_, encName, _ := charset.DetermineEncoding(body, contentType)
		result = Result{
			Body:        body,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Encoding:    encName,
		}
		gotBody = true
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	var visitErr error
	select {
	case <-ctx.Done():
		return Result{}, news.NewFetchError(news.KindNetwork, rawURL, 0, ctx.Err())
	case visitErr = <-done:
	}

	switch {
	case status == http.StatusForbidden:
		return Result{}, news.NewFetchError(news.KindForbidden, rawURL, status, errors.New("server refused the request"))
	case status == http.StatusTooManyRequests:
		return Result{}, news.NewFetchError(news.KindRateLimited, rawURL, status, errors.New("server throttled the request"))
	case fetchErr != nil:
		return Result{}, news.NewFetchError(news.KindNetwork, rawURL, status, fetchErr)
	case visitErr != nil:
		return Result{}, news.NewFetchError(news.KindNetwork, rawURL, 0, visitErr)
	case !gotBody:
		return Result{}, news.NewFetchError(news.KindNetwork, rawURL, 0, errors.New("no response received"))
	}
	return result, nil
}

// thinkTime sleeps a uniform random delay before each dispatch, independent
// of rate limiting, so request intervals do not form a fixed fingerprint.
func (c *Client) thinkTime(ctx context.Context) error {
	if c.cfg.MaxDelay <= 0 {
		return nil
	}
	d := time.Duration(c.ids.jitter(float64(c.cfg.MinDelay), float64(c.cfg.MaxDelay)))
	return sleepCtx(ctx, d)
}

// cooldown parks the caller after a hostile response to lower suspicion for
// subsequent requests. It is applied before returning the failure, not as a
// retry.
func (c *Client) cooldown(ctx context.Context, domain string, minD, maxD time.Duration) {
	if maxD <= 0 {
		return
	}
	d := time.Duration(c.ids.jitter(float64(minD), float64(maxD)))
	c.logger.Warn("cooling down after hostile response",
		zap.String("domain", domain),
		zap.Duration("cooldown", d),
	)
	_ = sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch delay interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
