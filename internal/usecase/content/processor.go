// Package content implements the Scheduler's optional C5 stage: filling in
// full article text for sources whose fetched summary is too short to
// enrich well. Grounded on internal/usecase/fetch/service.go's
// enhanceContent (threshold check, fetch, length-compare, RSS fallback),
// generalised from RSS-only FeedItem.Content to any entity.Article.
package content

import (
	"context"
	"log/slog"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

// Fetcher is the infra port: full-text extraction from a URL. Implemented
// by internal/infra/fetcher.ReadabilityFetcher.
type Fetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Config mirrors fetch.ContentFetchConfig's threshold knob.
type Config struct {
	Threshold int // minimum existing content length before fetching is skipped
}

func DefaultConfig() Config {
	return Config{Threshold: 1500}
}

// Processor implements schedule.ContentProcessor.
type Processor struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger
}

func NewProcessor(logger *slog.Logger, cfg Config, fetcher Fetcher) *Processor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	return &Processor{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Process fills article.Content with full article text when the fetched
// summary is too short, falling back to the existing content on any
// fetch error or on a fetch that turns out shorter than what's already
// there. Never returns an error: a content-enhancement failure must not
// abort the pipeline for an article that is otherwise perfectly usable.
func (p *Processor) Process(ctx context.Context, article *entity.Article) error {
	if p.fetcher == nil {
		return nil
	}

	existing := article.Content
	if existing == "" {
		existing = article.Summary
	}
	if len(existing) >= p.cfg.Threshold {
		return nil
	}

	fetched, err := p.fetcher.FetchContent(ctx, article.URL)
	if err != nil {
		p.logger.Debug("content fetch failed, keeping existing content",
			slog.String("url", article.URL), slog.Any("error", err))
		return nil
	}

	if len(fetched) > len(existing) {
		article.Content = fetched
	}
	return nil
}
