package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/repository"
)

// KnowledgeRepo implements repository.KnowledgeRepository for PostgreSQL,
// storing chunk-level vectors in knowledge_documents.
type KnowledgeRepo struct {
	db *sql.DB
}

func NewKnowledgeRepo(db *sql.DB) repository.KnowledgeRepository {
	return &KnowledgeRepo{db: db}
}

func (r *KnowledgeRepo) InsertChunks(ctx context.Context, docs []*entity.KnowledgeDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertChunks: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO knowledge_documents (doc_id, article_id, chunk_index, content, embedding, title, url, source_type, published_date, category, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
ON CONFLICT (doc_id) DO UPDATE SET
	content = EXCLUDED.content,
	embedding = EXCLUDED.embedding,
	title = EXCLUDED.title,
	url = EXCLUDED.url,
	source_type = EXCLUDED.source_type,
	published_date = EXCLUDED.published_date,
	category = EXCLUDED.category`

	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("InsertChunks: %w", err)
		}
		vector := pgvector.NewVector(d.Embedding)
		if _, err := tx.ExecContext(ctx, query,
			d.ID, d.ArticleID, d.ChunkIndex, d.Content, vector,
			d.Title, d.URL, d.SourceType, d.PublishedDate, d.Category,
		); err != nil {
			return fmt.Errorf("InsertChunks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertChunks: commit: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) Search(ctx context.Context, queryEmbedding []float32, nResults int, filters repository.KnowledgeFilters) ([]repository.KnowledgeMatch, error) {
	if nResults <= 0 {
		nResults = 5
	}

	vector := pgvector.NewVector(queryEmbedding)
	where, args := buildWhereFilter(filters)

	query := fmt.Sprintf(`
SELECT doc_id, content, 1 - (embedding <=> $1) AS score, title, url, source_type, published_date, category, article_id, chunk_index
FROM knowledge_documents
%s
ORDER BY embedding <=> $1
LIMIT $%d`, where, len(args)+2)

	allArgs := append([]any{vector}, args...)
	allArgs = append(allArgs, nResults)

	rows, err := r.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []repository.KnowledgeMatch
	for rows.Next() {
		var m repository.KnowledgeMatch
		var title, url, sourceType, publishedDate, category sql.NullString
		var articleID int64
		var chunkIndex int

		if err := rows.Scan(&m.DocID, &m.Content, &m.Score, &title, &url, &sourceType, &publishedDate, &category, &articleID, &chunkIndex); err != nil {
			return nil, fmt.Errorf("Search: scan: %w", err)
		}
		if m.Score < 0 {
			m.Score = 0
		}
		if m.Score > 1 {
			m.Score = 1
		}
		m.Metadata = map[string]any{
			"title":          title.String,
			"url":            url.String,
			"source_type":    sourceType.String,
			"published_date": publishedDate.String,
			"category":       category.String,
			"article_id":     articleID,
			"chunk_index":    chunkIndex,
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	return results, nil
}

func (r *KnowledgeRepo) DeleteByArticleID(ctx context.Context, articleID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE article_id = $1`, articleID)
	if err != nil {
		return 0, fmt.Errorf("DeleteByArticleID: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteByArticleID: RowsAffected: %w", err)
	}
	return n, nil
}

func (r *KnowledgeRepo) Rebuild(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE knowledge_documents`); err != nil {
		return fmt.Errorf("Rebuild: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// buildWhereFilter conjoins source_type (scalar or set membership) and
// category constraints. Parameter placeholders start at $2 since $1 is
// reserved for the query vector.
func buildWhereFilter(f repository.KnowledgeFilters) (string, []any) {
	var clauses []string
	var args []any
	next := 2

	if len(f.SourceTypes) == 1 {
		clauses = append(clauses, fmt.Sprintf("source_type = $%d", next))
		args = append(args, f.SourceTypes[0])
		next++
	} else if len(f.SourceTypes) > 1 {
		clauses = append(clauses, fmt.Sprintf("source_type = ANY($%d)", next))
		args = append(args, pq.Array(f.SourceTypes))
		next++
	}

	if f.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", next))
		args = append(args, f.Category)
		next++
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
