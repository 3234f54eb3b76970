package article

import (
	"log/slog"
	"net/http"

	"github.com/vigilfeed/vigilfeed/internal/common/pagination"
	hhttp "github.com/vigilfeed/vigilfeed/internal/handler/http"
	"github.com/vigilfeed/vigilfeed/internal/handler/http/auth"
	artUC "github.com/vigilfeed/vigilfeed/internal/usecase/article"
)

// Register registers all article-related HTTP handlers with the given mux.
// It sets up read-only routes for listing, getting, and searching articles.
// GET /articles/ requires authentication via the auth middleware.
// Search endpoints are protected by rate limiting to prevent DoS attacks.
func Register(mux *http.ServeMux, svc artUC.Service, paginationCfg pagination.Config, logger *slog.Logger, searchRateLimiter *hhttp.RateLimiter) {
	mux.Handle("GET    /articles", ListHandler{
		Svc:           svc,
		PaginationCfg: paginationCfg,
		Logger:        logger,
	})
	// New paginated search endpoint with rate limiting (100 req/min per IP)
	mux.Handle("GET    /articles/search", searchRateLimiter.Limit(SearchPaginatedHandler{
		Svc:           svc,
		PaginationCfg: paginationCfg,
	}))
	mux.Handle("GET    /articles/", auth.Authz(GetHandler{svc}))
}
