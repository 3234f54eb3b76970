package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/repository"
	"github.com/vigilfeed/vigilfeed/internal/usecase/qa/retrieve"
)

// Embedder is the port onto the EmbeddingClient (C10).
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestArticle is the subset of entity.Article fields needed for
// chunking and storage; callers pass entity.Article values directly.
type IngestArticle struct {
	ID            int64
	Title         string
	Content       string
	URL           string
	SourceType    string
	PublishedDate string
	Category      string
}

// KnowledgeBase implements C11: chunked ingest, semantic search, rebuild.
type KnowledgeBase struct {
	repo     repository.KnowledgeRepository
	embedder Embedder
	chunkCfg ChunkConfig
}

func New(repo repository.KnowledgeRepository, embedder Embedder, chunkCfg ChunkConfig) *KnowledgeBase {
	return &KnowledgeBase{repo: repo, embedder: embedder, chunkCfg: chunkCfg}
}

// AddArticles chunks, embeds, and stores each article, returning the total
// number of chunks inserted. An article with no content or whose chunks
// all yield empty embeddings is skipped without failing the batch.
func (kb *KnowledgeBase) AddArticles(ctx context.Context, articles []IngestArticle) (int, error) {
	added := 0
	for _, a := range articles {
		if a.ID <= 0 || a.Content == "" {
			continue
		}

		fullText := a.Content
		if a.Title != "" {
			fullText = a.Title + "\n\n" + a.Content
		}

		chunks := ChunkText(fullText, kb.chunkCfg)
		if len(chunks) == 0 {
			continue
		}

		embeddings, err := kb.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			return added, fmt.Errorf("AddArticles: embed article %d: %w", a.ID, err)
		}

		docs := make([]*entity.KnowledgeDocument, 0, len(chunks))
		for i, chunk := range chunks {
			if len(embeddings[i]) == 0 {
				continue
			}
			docs = append(docs, &entity.KnowledgeDocument{
				ID:            fmt.Sprintf("%d_%d", a.ID, i),
				ArticleID:     a.ID,
				ChunkIndex:    i,
				Content:       chunk,
				Embedding:     embeddings[i],
				Title:         a.Title,
				URL:           a.URL,
				SourceType:    a.SourceType,
				PublishedDate: a.PublishedDate,
				Category:      a.Category,
			})
		}

		if len(docs) == 0 {
			continue
		}

		if err := kb.repo.InsertChunks(ctx, docs); err != nil {
			return added, fmt.Errorf("AddArticles: insert article %d: %w", a.ID, err)
		}
		added += len(docs)
	}

	return added, nil
}

// Search performs semantic search. It satisfies retrieve.Searcher so a
// KnowledgeBase can be handed directly to the EnhancedRetriever (C14).
func (kb *KnowledgeBase) Search(ctx context.Context, q string, nResults int, filters map[string]any) ([]retrieve.Result, error) {
	if q == "" {
		return nil, nil
	}

	vector, err := kb.embedder.EmbedText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("Search: embed query: %w", err)
	}

	matches, err := kb.repo.Search(ctx, vector, nResults, buildFilters(filters))
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	results := make([]retrieve.Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, retrieve.Result{
			DocID:     m.DocID,
			ArticleID: articleIDFromMetadata(m.Metadata),
			Content:   m.Content,
			Score:     m.Score,
			Metadata:  m.Metadata,
		})
	}
	return results, nil
}

// Rebuild drops all stored chunks. The caller is responsible for
// re-adding articles via AddArticles afterward.
func (kb *KnowledgeBase) Rebuild(ctx context.Context) error {
	return kb.repo.Rebuild(ctx)
}

func (kb *KnowledgeBase) Count(ctx context.Context) (int64, error) {
	return kb.repo.Count(ctx)
}

func buildFilters(filters map[string]any) repository.KnowledgeFilters {
	var kf repository.KnowledgeFilters
	if filters == nil {
		return kf
	}
	if v, ok := filters["source_type"]; ok {
		switch t := v.(type) {
		case string:
			kf.SourceTypes = []string{t}
		case []string:
			kf.SourceTypes = t
		}
	}
	if v, ok := filters["category"].(string); ok {
		kf.Category = v
	}
	return kf
}

func articleIDFromMetadata(md map[string]any) string {
	v, ok := md["article_id"]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case string:
		return id
	default:
		return ""
	}
}
