package repository

import (
	"context"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

// KnowledgeFilters narrows a semantic search to documents matching the
// given criteria. A nil/zero field is treated as "no constraint". Multiple
// non-zero fields are conjoined.
type KnowledgeFilters struct {
	SourceTypes []string // scalar filter is a single-element slice
	Category    string
}

// KnowledgeMatch is one scored search result.
type KnowledgeMatch struct {
	DocID    string
	Content  string
	Score    float64 // similarity in [0,1], 1 - cosine_distance
	Metadata map[string]any
}

// KnowledgeRepository stores and searches chunk-level article embeddings
// for the QA engine's knowledge base (C11).
type KnowledgeRepository interface {
	// InsertChunks atomically stores all chunks of one article. Callers
	// must have already filtered out chunks with empty embeddings.
	InsertChunks(ctx context.Context, docs []*entity.KnowledgeDocument) error

	// Search performs cosine-similarity nearest-neighbour search, applying
	// filters conjunctively. Returns at most nResults matches ordered by
	// descending score.
	Search(ctx context.Context, queryEmbedding []float32, nResults int, filters KnowledgeFilters) ([]KnowledgeMatch, error)

	// DeleteByArticleID removes every chunk belonging to an article.
	DeleteByArticleID(ctx context.Context, articleID int64) (int64, error)

	// Rebuild drops all stored chunks. The caller is responsible for
	// re-ingesting articles afterward.
	Rebuild(ctx context.Context) error

	// Count returns the total number of stored chunks.
	Count(ctx context.Context) (int64, error)
}
