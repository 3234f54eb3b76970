package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
	usecasefetch "github.com/vigilfeed/vigilfeed/internal/usecase/fetch"
)

const arxivAPIBase = "http://export.arxiv.org/api/query"

// ArxivConfig mirrors arxiv_fetcher.py's constructor config.
type ArxivConfig struct {
	Enabled    bool
	Categories []string // e.g. cs.CR, cs.AI
	MaxResults int      // per category, default 100
}

func DefaultArxivConfig() ArxivConfig {
	return ArxivConfig{Enabled: true, Categories: []string{"cs.CR", "cs.AI"}, MaxResults: 100}
}

// Arxiv fetches recent preprints per configured category from the arXiv
// export Atom API, deduplicating by entry URL across categories. It
// fetches categories concurrently (spec §4.1's multi-endpoint policy),
// reusing the Atom-capable FeedFetcher (gofeed-backed, see
// internal/infra/scraper.RSSFetcher) rather than a bespoke XML parser.
type Arxiv struct {
	cfg         ArxivConfig
	feedFetcher usecasefetch.FeedFetcher
}

func NewArxiv(cfg ArxivConfig, feedFetcher usecasefetch.FeedFetcher) *Arxiv {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	return &Arxiv{cfg: cfg, feedFetcher: feedFetcher}
}

func (a *Arxiv) Enabled() bool { return a.cfg.Enabled }
func (a *Arxiv) Key() string   { return "arxiv" }

func (a *Arxiv) Fetch(ctx context.Context) fetch.FetchResult {
	if !a.Enabled() {
		return fetch.FetchResult{SourceName: "arXiv", SourceType: entity.SourceTypeArxiv, Error: fmt.Errorf("fetcher is disabled")}
	}
	if len(a.cfg.Categories) == 0 {
		return fetch.FetchResult{SourceName: "arXiv", SourceType: entity.SourceTypeArxiv, Error: fmt.Errorf("no categories configured")}
	}

	results := fetchSubFeedsParallel(ctx, a.cfg.Categories, 4, func(ctx context.Context, category string) ([]any, error) {
		url := fmt.Sprintf("%s?search_query=cat:%s&sortBy=submittedDate&sortOrder=descending&max_results=%d",
			arxivAPIBase, category, a.cfg.MaxResults)
		feedItems, err := a.feedFetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(feedItems))
		for i, fi := range feedItems {
			out[i] = fi
		}
		return out, nil
	})

	var items []entity.Article
	var errMsgs []string
	seen := map[string]bool{}
	var mu sync.Mutex

	for _, r := range results {
		if r.err != nil {
			errMsgs = append(errMsgs, fmt.Sprintf("%s: %v", r.key, r.err))
			continue
		}
		for _, raw := range r.items {
			fi := raw.(usecasefetch.FeedItem)
			mu.Lock()
			dup := seen[fi.URL]
			seen[fi.URL] = true
			mu.Unlock()
			if dup || fi.URL == "" {
				continue
			}
			items = append(items, entity.Article{
				Title:         fi.Title,
				URL:           fi.URL,
				Summary:       fi.Content,
				Content:       fi.Content,
				Source:        r.key,
				SourceType:    entity.SourceTypeArxiv,
				PublishedDate: fi.PublishedAt.Format("2006-01-02"),
			})
		}
	}

	var combinedErr error
	if len(errMsgs) > 0 {
		combinedErr = fmt.Errorf("%s", strings.Join(errMsgs, "; "))
	}

	return fetch.FetchResult{Items: items, SourceName: "arXiv", SourceType: entity.SourceTypeArxiv, Error: combinedErr}
}
