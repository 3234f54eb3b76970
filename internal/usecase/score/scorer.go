// Package score implements the PriorityScorer (C7): baseline scoring by
// source_type weight, optionally blended with an LLM-provided signal.
package score

import (
	"context"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

const baseline = 50.0

// defaultWeights are the per-source_type multipliers named in spec §4.7.
var defaultWeights = map[string]float64{
	entity.SourceTypeKEV:         1.5,
	entity.SourceTypeDBLP:        1.3,
	entity.SourceTypeNVD:         1.2,
	entity.SourceTypeHuggingFace: 1.1,
	entity.SourceTypePwC:         1.1,
	entity.SourceTypeArxiv:       1.0,
	entity.SourceTypeBlog:        1.0,
	entity.SourceTypeRSS:         0.8,
}

// Result carries the final score and the reasons behind it, for logging
// and for an eventual UI.
type Result struct {
	Score   float64
	Reasons []string
}

// LLMSigner is the optional AI-assisted relevance signal. It returns an
// integer in [0,100]; implementations typically wrap the Enricher's LLM
// client with a scoring-specific prompt.
type LLMSigner interface {
	Score(ctx context.Context, article *entity.Article) (int, error)
}

// Scorer computes a 0-100 priority for an article.
type Scorer struct {
	weights map[string]float64
	llm     LLMSigner // nil disables the AI blend
}

type Option func(*Scorer)

func WithWeights(w map[string]float64) Option {
	return func(s *Scorer) { s.weights = w }
}

func WithLLMSigner(l LLMSigner) Option {
	return func(s *Scorer) { s.llm = l }
}

func New(opts ...Option) *Scorer {
	s := &Scorer{weights: defaultWeights}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score computes the priority for one article. If an LLMSigner is
// configured and it returns successfully, the final score blends
// 0.6*base + 0.4*llm; otherwise the base score alone is used (clamped).
func (s *Scorer) Score(ctx context.Context, article *entity.Article) Result {
	weight, ok := s.weights[article.SourceType]
	if !ok {
		weight = 1.0
	}
	base := clamp(baseline * weight)
	reasons := []string{weightReason(article.SourceType, weight)}

	if s.llm == nil {
		return Result{Score: base, Reasons: reasons}
	}

	llmScore, err := s.llm.Score(ctx, article)
	if err != nil {
		reasons = append(reasons, "llm signal unavailable, using baseline only")
		return Result{Score: base, Reasons: reasons}
	}

	final := clamp(0.6*base + 0.4*float64(llmScore))
	reasons = append(reasons, "blended with llm relevance signal")
	return Result{Score: final, Reasons: reasons}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func weightReason(sourceType string, weight float64) string {
	return "source_type=" + sourceType + " weight applied"
}
