// Package publish implements the Selector and TieredPusher (C8): an
// optional subjective-relevance filter followed by tiered, batched
// delivery to a messaging platform.
package publish

import (
	"context"
	"fmt"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

// Scored pairs an article with its priority score from the
// PriorityScorer (C7).
type Scored struct {
	Article entity.Article
	Score   float64
}

// Tier buckets articles by score: high >= 80, 50 <= mid < 80, low < 50.
type Tier string

const (
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
)

func tierFor(score float64) Tier {
	switch {
	case score >= 80:
		return TierHigh
	case score >= 50:
		return TierMid
	default:
		return TierLow
	}
}

// Selector narrows the candidate set by subjective relevance (e.g. an
// LLM-assisted pass). The default Selector is an identity filter: every
// component wiring a SmartSelector does so by providing a non-identity
// implementation of this interface (see DESIGN.md Open Question 2).
type Selector interface {
	Filter(ctx context.Context, articles []Scored) ([]Scored, error)
}

// IdentitySelector passes every candidate through unfiltered.
type IdentitySelector struct{}

func (IdentitySelector) Filter(ctx context.Context, articles []Scored) ([]Scored, error) {
	return articles, nil
}

// Messenger is the outbound messaging platform port (spec §6, a
// Lark/Feishu-style bot API): text, rich-post, and interactive-card sends.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string) error
	SendRichPost(ctx context.Context, chatID, title string, paragraphs []string) error
}

// Config controls batching.
type Config struct {
	BatchSize int // articles per message, default 10
}

func DefaultConfig() Config {
	return Config{BatchSize: 10}
}

// TieredPusher partitions survivors into score tiers, formats each tier's
// batches as rich posts, and dispatches them to the Messenger.
type TieredPusher struct {
	selector  Selector
	messenger Messenger
	cfg       Config
}

func New(selector Selector, messenger Messenger, cfg Config) *TieredPusher {
	if selector == nil {
		selector = IdentitySelector{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &TieredPusher{selector: selector, messenger: messenger, cfg: cfg}
}

// PushResult reports, per batch, whether dispatch succeeded. Callers use
// Pushed to mark only the successfully delivered articles as pushed;
// checkpoints for failed batches are preserved so the next run retries.
type PushResult struct {
	Pushed []entity.Article
	Errors []error
}

// Push filters the candidate set, groups survivors by tier, and dispatches
// each tier in BatchSize-sized rich-post batches. A batch's dispatch
// failure does not stop the remaining batches or tiers; its articles are
// simply excluded from Pushed.
func (p *TieredPusher) Push(ctx context.Context, chatID string, candidates []Scored) (PushResult, error) {
	survivors, err := p.selector.Filter(ctx, candidates)
	if err != nil {
		return PushResult{}, fmt.Errorf("push: selector: %w", err)
	}

	tiers := map[Tier][]Scored{}
	var order []Tier
	for _, s := range survivors {
		t := tierFor(s.Score)
		if _, ok := tiers[t]; !ok {
			order = append(order, t)
		}
		tiers[t] = append(tiers[t], s)
	}

	var result PushResult
	for _, tier := range []Tier{TierHigh, TierMid, TierLow} {
		items, ok := tiers[tier]
		if !ok {
			continue
		}
		for start := 0; start < len(items); start += p.cfg.BatchSize {
			end := start + p.cfg.BatchSize
			if end > len(items) {
				end = len(items)
			}
			batch := items[start:end]

			title, paragraphs := formatBatch(tier, batch)
			if err := p.messenger.SendRichPost(ctx, chatID, title, paragraphs); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("push: tier %s batch [%d:%d]: %w", tier, start, end, err))
				continue
			}

			for _, s := range batch {
				result.Pushed = append(result.Pushed, s.Article)
			}
		}
	}

	return result, nil
}

func formatBatch(tier Tier, batch []Scored) (string, []string) {
	title := fmt.Sprintf("今日精选 [%s]", tierLabel(tier))
	paragraphs := make([]string, 0, len(batch))
	for _, s := range batch {
		paragraphs = append(paragraphs, fmt.Sprintf("%s\n%s", s.Article.Title, s.Article.URL))
	}
	return title, paragraphs
}

func tierLabel(t Tier) string {
	switch t {
	case TierHigh:
		return "重点"
	case TierMid:
		return "常规"
	default:
		return "参考"
	}
}
