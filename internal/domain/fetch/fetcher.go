// Package fetch defines the Fetcher port (C1): the contract every
// per-source adapter satisfies so the FetcherManager (C2) can run them
// uniformly. Grounded on original_source/src/fetchers/base.py's
// BaseFetcher/FetchResult pair.
package fetch

import (
	"context"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

// FetchResult is what every Fetcher returns. A Fetcher that failed MUST
// return an empty Items slice and a non-nil Error rather than panicking.
type FetchResult struct {
	Items      []entity.Article
	SourceName string
	SourceType string
	Error      error
}

// Success reports whether the fetch completed without error.
func (r FetchResult) Success() bool { return r.Error == nil }

// Fetcher is the per-source adapter contract. Key is a stable identity
// used by the Checkpointer to track per-source fetch-stage completion
// (e.g. "nvd", "rss:some-blog", "dblp:sp").
type Fetcher interface {
	Fetch(ctx context.Context) FetchResult
	Enabled() bool
	Key() string
}
