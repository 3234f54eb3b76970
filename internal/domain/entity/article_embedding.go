package entity

import (
	"errors"
	"fmt"
	"time"
)

// EmbeddingType identifies which part of an article a vector represents.
type EmbeddingType string

const (
	EmbeddingTypeTitle   EmbeddingType = "title"
	EmbeddingTypeContent EmbeddingType = "content"
	EmbeddingTypeSummary EmbeddingType = "summary"
)

// IsValid reports whether et is one of the recognised embedding types.
func (et EmbeddingType) IsValid() bool {
	switch et {
	case EmbeddingTypeTitle, EmbeddingTypeContent, EmbeddingTypeSummary:
		return true
	}
	return false
}

// EmbeddingProvider identifies which embedding service produced a vector.
type EmbeddingProvider string

const (
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
	EmbeddingProviderVoyage EmbeddingProvider = "voyage"
)

// IsValid reports whether ep is one of the recognised embedding providers.
func (ep EmbeddingProvider) IsValid() bool {
	switch ep {
	case EmbeddingProviderOpenAI, EmbeddingProviderVoyage:
		return true
	}
	return false
}

// Sentinel errors for ArticleEmbedding validation.
var (
	ErrInvalidEmbeddingType      = errors.New("invalid embedding type")
	ErrInvalidEmbeddingProvider  = errors.New("invalid embedding provider")
	ErrEmptyEmbedding            = errors.New("embedding vector is empty")
	ErrInvalidEmbeddingDimension = errors.New("embedding dimension does not match vector length")
)

// ArticleEmbedding is a whole-article vector used for article-to-article
// similarity (e.g. the admin API's "related articles" feature). It is
// distinct from the chunk-level KnowledgeDocument vectors the QA knowledge
// base indexes — one article has at most one embedding per (type,
// provider, model) tuple, while a KnowledgeDocument is one of many chunks.
type ArticleEmbedding struct {
	ID            int64
	ArticleID     int64
	EmbeddingType EmbeddingType
	Provider      EmbeddingProvider
	Model         string
	Dimension     int32
	Embedding     []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks that the embedding is well-formed before persistence.
func (e *ArticleEmbedding) Validate() error {
	if e.ArticleID <= 0 {
		return &ValidationError{Field: "ArticleID", Message: "must be a positive integer"}
	}
	if !e.EmbeddingType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEmbeddingType, e.EmbeddingType)
	}
	if !e.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEmbeddingProvider, e.Provider)
	}
	if len(e.Embedding) == 0 {
		return ErrEmptyEmbedding
	}
	if int(e.Dimension) != len(e.Embedding) {
		return fmt.Errorf("%w: dimension=%d vector_len=%d", ErrInvalidEmbeddingDimension, e.Dimension, len(e.Embedding))
	}
	return nil
}
