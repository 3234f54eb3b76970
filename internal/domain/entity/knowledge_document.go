package entity

import (
	"fmt"
	"time"
)

// KnowledgeDocument is one chunk of an article's text, embedded and stored
// for semantic search by the QA engine's knowledge base (C11). It is
// distinct from ArticleEmbedding, which holds one whole-article vector
// per (type, provider, model); a KnowledgeDocument holds one vector per
// chunk of one article's combined title+content.
type KnowledgeDocument struct {
	ID        string // "<article_id>_<chunk_index>"
	ArticleID int64
	ChunkIndex int

	Content   string
	Embedding []float32

	Title         string
	URL           string
	SourceType    string
	PublishedDate string
	Category      string

	CreatedAt time.Time
}

func (d *KnowledgeDocument) Validate() error {
	if d.ArticleID <= 0 {
		return fmt.Errorf("knowledge document: article_id must be positive, got %d", d.ArticleID)
	}
	if d.Content == "" {
		return fmt.Errorf("knowledge document: content is required")
	}
	if len(d.Embedding) == 0 {
		return fmt.Errorf("knowledge document: embedding is required")
	}
	return nil
}
