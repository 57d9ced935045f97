// Package app assembles the configured pipeline: one place that turns a
// Config into wired components with shared lifecycles.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/api"
	"github.com/coverwire/harvester/internal/config"
	"github.com/coverwire/harvester/internal/extract"
	"github.com/coverwire/harvester/internal/fetch"
	"github.com/coverwire/harvester/internal/ingest"
	"github.com/coverwire/harvester/internal/logging"
	"github.com/coverwire/harvester/internal/memcache"
	"github.com/coverwire/harvester/internal/ratelimit"
	"github.com/coverwire/harvester/internal/source"
	"github.com/coverwire/harvester/internal/store"
)

// topicCacheTTL bounds how long discovered listing categories stay fresh.
const topicCacheTTL = 30 * time.Minute

// App owns every long-lived component.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Pool         *pgxpool.Pool
	Store        *store.Postgres
	Cache        *store.Cache
	Orchestrator *ingest.Orchestrator
	Adapters     []source.Adapter
	Server       *api.Server
}

// New loads configuration, connects the database and wires the pipeline.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	st := store.NewPostgres(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	limiter := ratelimit.New(cfg.Fetch.DomainInterval())
	fetcher := fetch.New(fetch.Config{
		Timeout:              cfg.Fetch.Timeout(),
		MaxRetries:           cfg.Fetch.MaxRetries,
		MinDelay:             time.Duration(cfg.Fetch.MinDelayMs) * time.Millisecond,
		MaxDelay:             time.Duration(cfg.Fetch.MaxDelayMs) * time.Millisecond,
		ForbiddenCooldownMin: secs(cfg.Fetch.ForbiddenCooldownSecMin),
		ForbiddenCooldownMax: secs(cfg.Fetch.ForbiddenCooldownSecMax),
		ThrottledCooldownMin: secs(cfg.Fetch.ThrottledCooldownSecMin),
		ThrottledCooldownMax: secs(cfg.Fetch.ThrottledCooldownSecMax),
	}, limiter, logger)

	extractor := extract.New(extract.Config{
		MinContentLength:   cfg.Extract.MinContentLength,
		MinParagraphLength: cfg.Extract.MinParagraphLength,
		SummaryLength:      cfg.Extract.SummaryLength,
	})

	cache := store.NewCache(st, fetcher, extractor, logger)
	orch := ingest.New(cache, ingest.Config{
		Concurrency:      cfg.Ingest.Concurrency,
		ExcludedDomains:  cfg.Ingest.ExcludedDomains,
		MinContentLength: cfg.Ingest.MinContentLength,
	}, logger)

	adapters := buildAdapters(cfg, fetcher, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Store:        st,
		Cache:        cache,
		Orchestrator: orch,
		Adapters:     adapters,
		Server:       api.NewServer(cache, st, orch, adapters, logger),
	}, nil
}

// buildAdapters enables each source that has credentials; the scraped
// listing adapter is always available since it needs none.
func buildAdapters(cfg config.Config, fetcher *fetch.Client, logger *zap.Logger) []source.Adapter {
	var adapters []source.Adapter
	if cfg.Sources.TheNewsAPIToken != "" {
		adapters = append(adapters, source.NewTheNewsAPI(cfg.Sources.TheNewsAPIToken, ""))
	}
	if cfg.Sources.GNewsAPIKey != "" {
		adapters = append(adapters, source.NewGNews(cfg.Sources.GNewsAPIKey, ""))
	}
	if cfg.Sources.NYTimesAPIKey != "" {
		adapters = append(adapters, source.NewNYTimes(cfg.Sources.NYTimesAPIKey, ""))
	}
	if len(cfg.Sources.RSSFeeds) > 0 {
		adapters = append(adapters, source.NewRSS(cfg.Sources.RSSFeeds, logger))
	}
	adapters = append(adapters, source.NewGoogleNews(fetcher, memcache.New(topicCacheTTL), "", logger))
	return adapters
}

// Close releases shared resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
