// Package ingest fans batches of candidate articles through exclusion and
// quality filters and into the cache-aside store under bounded concurrency.
package ingest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/telemetry"
)

// Pipeline is what the orchestrator dispatches accepted candidates into.
// Satisfied by *store.Cache.
type Pipeline interface {
	// IngestCandidate runs the cache-aside path for a candidate that needs
	// extraction. The bool reports whether a new row was inserted.
	IngestCandidate(ctx context.Context, cand news.Candidate, force bool) (news.Article, news.Origin, bool, error)
	// SaveCandidate persists a candidate whose content is already known,
	// without any network activity.
	SaveCandidate(ctx context.Context, cand news.Candidate) (news.Article, bool, error)
}

// Config tunes one orchestrator instance.
type Config struct {
	// Concurrency bounds in-flight extractions across the whole batch.
	Concurrency int
	// ExcludedDomains are hosts that must never be fetched or stored; a
	// candidate matches on the exact host or any subdomain of it.
	ExcludedDomains []string
	// MinContentLength is the quality floor applied to pre-known content.
	MinContentLength int
}

const defaultConcurrency = 10

// Orchestrator runs ingestion batches.
type Orchestrator struct {
	pipeline Pipeline
	cfg      Config
	excluded []string
	logger   *zap.Logger
}

// New builds an orchestrator. Exclusion entries are normalized once here so
// per-candidate checks are plain string comparisons.
func New(p Pipeline, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	excluded := make([]string, 0, len(cfg.ExcludedDomains))
	for _, d := range cfg.ExcludedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			excluded = append(excluded, d)
		}
	}
	return &Orchestrator{pipeline: p, cfg: cfg, excluded: excluded, logger: logger}
}

// Run processes one batch. Every candidate is resolved independently: a
// failure for one records an error outcome and never aborts its siblings.
// Accepted articles come back sorted by published_at descending regardless of
// completion order.
func (o *Orchestrator) Run(ctx context.Context, candidates []news.Candidate, force bool) news.Summary {
	summary := news.Summary{BatchID: uuid.NewString()}
	log := o.logger.With(zap.String("batch_id", summary.BatchID))
	log.Info("ingestion batch started",
		zap.Int("candidates", len(candidates)),
		zap.Int("concurrency", o.cfg.Concurrency),
		zap.Bool("force", force))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.cfg.Concurrency)
	)
	record := func(outcome news.Outcome, a *news.Article) {
		telemetry.ObserveIngestOutcome(string(outcome))
		mu.Lock()
		defer mu.Unlock()
		summary.Add(outcome)
		if a != nil {
			summary.Articles = append(summary.Articles, *a)
		}
	}

	for _, cand := range candidates {
		// Validation, exclusion and quality filters run before any slot is
		// taken: a filtered candidate costs no network call and writes no row.
		if news.DeriveDomain(cand.URL) == "" {
			log.Debug("candidate url unusable", zap.String("url", cand.URL))
			record(news.OutcomeSkipped, nil)
			continue
		}
		if o.isExcluded(cand.URL) {
			log.Debug("candidate excluded", zap.String("url", cand.URL))
			record(news.OutcomeSkipped, nil)
			continue
		}
		if length := utf8.RuneCountInString(cand.Content); cand.Content != "" && length < o.cfg.MinContentLength {
			log.Debug("candidate below content floor",
				zap.String("url", cand.URL),
				zap.Int("length", length))
			record(news.OutcomeSkipped, nil)
			continue
		}

		wg.Add(1)
		go func(cand news.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, article := o.process(ctx, cand, force)
			if outcome == news.OutcomeError {
				log.Warn("candidate failed", zap.String("url", cand.URL))
			}
			record(outcome, article)
		}(cand)
	}
	wg.Wait()

	sort.SliceStable(summary.Articles, func(i, j int) bool {
		pi, pj := summary.Articles[i].PublishedAt, summary.Articles[j].PublishedAt
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return pi.After(*pj)
		}
	})

	log.Info("ingestion batch finished",
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors))
	return summary
}

// process dispatches one accepted candidate and classifies the result.
func (o *Orchestrator) process(ctx context.Context, cand news.Candidate, force bool) (news.Outcome, *news.Article) {
	// Content that already clears the floor skips the fetch entirely.
	if !force && o.cfg.MinContentLength > 0 && utf8.RuneCountInString(cand.Content) >= o.cfg.MinContentLength {
		a, inserted, err := o.pipeline.SaveCandidate(ctx, cand)
		if err != nil {
			return news.OutcomeError, nil
		}
		if inserted {
			return news.OutcomeInserted, &a
		}
		return news.OutcomeUpdated, &a
	}

	a, origin, inserted, err := o.pipeline.IngestCandidate(ctx, cand, force)
	if err != nil || origin == news.OriginError {
		return news.OutcomeError, nil
	}
	if inserted {
		return news.OutcomeInserted, &a
	}
	return news.OutcomeUpdated, &a
}

// isExcluded reports whether the candidate's domain equals, or is a subdomain
// of, any excluded host.
func (o *Orchestrator) isExcluded(rawURL string) bool {
	domain := news.DeriveDomain(rawURL)
	if domain == "" {
		return false
	}
	for _, excl := range o.excluded {
		if domain == excl || strings.HasSuffix(domain, "."+excl) {
			return true
		}
	}
	return false
}
