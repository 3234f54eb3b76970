package source

import (
	"net/http"

	hhttp "github.com/vigilfeed/vigilfeed/internal/handler/http"
	srcUC "github.com/vigilfeed/vigilfeed/internal/usecase/source"
)

// Register registers all source-related HTTP handlers with the given mux.
// It sets up read-only routes for listing and searching sources.
// Search endpoints are protected by rate limiting to prevent DoS attacks.
func Register(mux *http.ServeMux, svc srcUC.Service, searchRateLimiter *hhttp.RateLimiter) {
	mux.Handle("GET    /sources", ListHandler{svc})
	// Search endpoint with rate limiting (100 req/min per IP)
	mux.Handle("GET    /sources/search", searchRateLimiter.Limit(SearchHandler{svc}))
}
