package article

import (
	"context"
	"fmt"

	"github.com/vigilfeed/vigilfeed/internal/common/pagination"
	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/repository"
)

// Service provides article management use cases.
// It handles business logic for article operations and delegates persistence to the repository.
type Service struct {
	Repo repository.ArticleRepository
}

// PaginatedResult represents the result of a paginated query.
// It contains both the data and pagination metadata.
type PaginatedResult struct {
	Data       []repository.ArticleWithSource
	Pagination pagination.Metadata
}

// List retrieves all articles from the repository.
// Returns an error if the repository operation fails.
func (s *Service) List(ctx context.Context) ([]*entity.Article, error) {
	articles, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// ListWithSource retrieves all articles with their source names.
// Returns an error if the repository operation fails.
func (s *Service) ListWithSource(ctx context.Context) ([]repository.ArticleWithSource, error) {
	articles, err := s.Repo.ListWithSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles with source: %w", err)
	}
	return articles, nil
}

// ListWithSourcePaginated retrieves articles with pagination support.
// It calculates the appropriate offset, retrieves the data and total count,
// and returns a PaginatedResult with both data and metadata.
func (s *Service) ListWithSourcePaginated(ctx context.Context, params pagination.Params) (*PaginatedResult, error) {
	// Calculate offset using pagination utilities
	offset := pagination.CalculateOffset(params.Page, params.Limit)

	// Get total count for metadata
	total, err := s.Repo.CountArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	// Get paginated data
	articles, err := s.Repo.ListWithSourcePaginated(ctx, offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list articles with source paginated: %w", err)
	}

	// Calculate total pages using pagination utilities
	totalPages := pagination.CalculateTotalPages(total, params.Limit)

	return &PaginatedResult{
		Data: articles,
		Pagination: pagination.Metadata{
			Total:      total,
			Page:       params.Page,
			Limit:      params.Limit,
			TotalPages: totalPages,
		},
	}, nil
}

// Get retrieves a single article by its ID.
// Returns ErrInvalidArticleID if the ID is not positive.
// Returns ErrArticleNotFound if the article does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Article, error) {
	if id <= 0 {
		return nil, ErrInvalidArticleID
	}

	article, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	if article == nil {
		return nil, ErrArticleNotFound
	}
	return article, nil
}

// GetWithSource retrieves a single article by its ID along with the source name.
// Returns ErrInvalidArticleID if the ID is not positive.
// Returns ErrArticleNotFound if the article does not exist.
func (s *Service) GetWithSource(ctx context.Context, id int64) (*entity.Article, string, error) {
	if id <= 0 {
		return nil, "", ErrInvalidArticleID
	}

	article, sourceName, err := s.Repo.GetWithSource(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get article with source: %w", err)
	}
	if article == nil {
		return nil, "", ErrArticleNotFound
	}
	return article, sourceName, nil
}

// Search finds articles matching the given keyword.
// The search is performed against article titles and summaries.
// Returns an error if the repository operation fails.
func (s *Service) Search(ctx context.Context, kw string) ([]*entity.Article, error) {
	articles, err := s.Repo.Search(ctx, kw)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return articles, nil
}

// SearchWithFilters searches articles with multi-keyword support and optional filters.
// Keywords are space-separated and use AND logic (all keywords must match).
// Filters are optional and applied if provided.
// Returns an error if the repository operation fails.
func (s *Service) SearchWithFilters(ctx context.Context, keywords []string, filters repository.ArticleSearchFilters) ([]*entity.Article, error) {
	articles, err := s.Repo.SearchWithFilters(ctx, keywords, filters)
	if err != nil {
		return nil, fmt.Errorf("search articles with filters: %w", err)
	}
	return articles, nil
}

// SearchWithFiltersPaginated searches articles with multi-keyword support and
// optional filters, returning a page of results alongside pagination metadata.
// Keywords are space-separated and use AND logic (all keywords must match).
func (s *Service) SearchWithFiltersPaginated(ctx context.Context, keywords []string, filters repository.ArticleSearchFilters, page, limit int) (*PaginatedResult, error) {
	offset := pagination.CalculateOffset(page, limit)

	total, err := s.Repo.CountArticlesWithFilters(ctx, keywords, filters)
	if err != nil {
		return nil, fmt.Errorf("count articles with filters: %w", err)
	}

	articles, err := s.Repo.SearchWithFiltersPaginated(ctx, keywords, filters, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("search articles with filters paginated: %w", err)
	}

	totalPages := pagination.CalculateTotalPages(total, limit)

	return &PaginatedResult{
		Data: articles,
		Pagination: pagination.Metadata{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}
