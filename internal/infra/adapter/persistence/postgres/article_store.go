package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

// ArticleStore implements schedule.ArticleStore against the articles table,
// covering the columns ArticleRepo's original CRUD methods never touch
// (source_type, content, zh_summary, category, is_pushed, extras). It is a
// separate type rather than an extension of ArticleRepo because the two
// serve different callers: ArticleRepo backs the admin API's read/search
// surface, ArticleStore backs the scheduler's fetch-dedup-push pipeline.
type ArticleStore struct{ db *sql.DB }

func NewArticleStore(db *sql.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// ExistingURLs loads every URL already on file, for the scheduler's
// pre-fetch dedup pass. One round trip regardless of fetch volume.
func (s *ArticleStore) ExistingURLs(ctx context.Context) (map[string]bool, error) {
	const query = `SELECT url FROM articles WHERE url <> ''`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ExistingURLs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("ExistingURLs: Scan: %w", err)
		}
		result[url] = true
	}
	return result, rows.Err()
}

// Save inserts a fetched article, or updates it in place on a URL
// conflict (a re-fetch of an article the enrich/score stage has since
// touched should not regress is_pushed or overwrite an enriched
// zh_summary/category with blanks). Extras is stored as jsonb.
func (s *ArticleStore) Save(ctx context.Context, article *entity.Article) error {
	var sourceID sql.NullInt64
	if article.SourceID != 0 {
		sourceID = sql.NullInt64{Int64: article.SourceID, Valid: true}
	}

	extrasJSON, err := json.Marshal(article.Extras)
	if err != nil {
		return fmt.Errorf("Save: marshal extras: %w", err)
	}

	const query = `
INSERT INTO articles
	(source_id, title, url, summary, published_at, created_at,
	 source, source_type, published_date, fetched_at, content,
	 zh_summary, category, is_pushed, extras)
VALUES ($1, $2, $3, $4, $5, now(),
	$6, $7, $8, $9, $10,
	$11, $12, $13, $14)
ON CONFLICT (url) DO UPDATE SET
	title          = EXCLUDED.title,
	summary        = EXCLUDED.summary,
	published_at   = EXCLUDED.published_at,
	source         = EXCLUDED.source,
	source_type    = EXCLUDED.source_type,
	published_date = EXCLUDED.published_date,
	fetched_at     = EXCLUDED.fetched_at,
	content        = EXCLUDED.content,
	extras         = EXCLUDED.extras
RETURNING id`

	return s.db.QueryRowContext(ctx, query,
		sourceID, article.Title, article.URL, article.Summary, article.PublishedAt,
		article.Source, article.SourceType, article.PublishedDate, article.FetchedAt, article.Content,
		article.ZhSummary, article.Category, article.IsPushed, extrasJSON,
	).Scan(&article.ID)
}

// Unpushed returns every article awaiting a push, exploiting the partial
// index on is_pushed = FALSE so the scan stays cheap as the table grows.
func (s *ArticleStore) Unpushed(ctx context.Context) ([]entity.Article, error) {
	const query = `
SELECT id, source_id, title, url, summary, published_at, created_at,
       source, source_type, published_date, fetched_at, content,
       zh_summary, category, is_pushed, extras
FROM articles
WHERE is_pushed = FALSE
ORDER BY published_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Unpushed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []entity.Article
	for rows.Next() {
		var a entity.Article
		var sourceID sql.NullInt64
		var extrasJSON []byte
		if err := rows.Scan(&a.ID, &sourceID, &a.Title, &a.URL, &a.Summary, &a.PublishedAt, &a.CreatedAt,
			&a.Source, &a.SourceType, &a.PublishedDate, &a.FetchedAt, &a.Content,
			&a.ZhSummary, &a.Category, &a.IsPushed, &extrasJSON); err != nil {
			return nil, fmt.Errorf("Unpushed: Scan: %w", err)
		}
		a.SourceID = sourceID.Int64
		if len(extrasJSON) > 0 {
			if err := json.Unmarshal(extrasJSON, &a.Extras); err != nil {
				return nil, fmt.Errorf("Unpushed: unmarshal extras: %w", err)
			}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// MarkPushed flips is_pushed for a batch of article IDs in one statement.
func (s *ArticleStore) MarkPushed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE articles SET is_pushed = TRUE WHERE id = ANY($1)`
	_, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("MarkPushed: %w", err)
	}
	return nil
}
