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

// BlogFeed names one AI lab's official RSS feed.
type BlogFeed struct {
	Key     string
	Name    string
	Company string
	URL     string
}

// DefaultBlogFeeds mirrors blog_fetcher.py's BLOG_FEEDS registry.
var DefaultBlogFeeds = []BlogFeed{
	{Key: "openai", Name: "OpenAI Blog", Company: "OpenAI", URL: "https://openai.com/blog/rss/"},
	{Key: "deepmind", Name: "DeepMind Blog", Company: "DeepMind", URL: "https://deepmind.google/blog/rss.xml"},
	{Key: "anthropic", Name: "Anthropic Blog", Company: "Anthropic", URL: "https://www.anthropic.com/rss.xml"},
}

// BlogConfig mirrors blog_fetcher.py's constructor config.
type BlogConfig struct {
	Enabled    bool
	Sources    []string // blog keys from DefaultBlogFeeds, default all
	MaxWorkers int      // default 3
}

func DefaultBlogConfig() BlogConfig {
	keys := make([]string, 0, len(DefaultBlogFeeds))
	for _, f := range DefaultBlogFeeds {
		keys = append(keys, f.Key)
	}
	return BlogConfig{Enabled: true, Sources: keys, MaxWorkers: 3}
}

// Blog fetches AI lab blog RSS feeds concurrently, one worker per blog,
// combining per-blog failures into a single error string without
// discarding the blogs that did succeed.
type Blog struct {
	cfg         BlogConfig
	feedFetcher usecasefetch.FeedFetcher
}

func NewBlog(cfg BlogConfig, feedFetcher usecasefetch.FeedFetcher) *Blog {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 3
	}
	if len(cfg.Sources) == 0 {
		for _, f := range DefaultBlogFeeds {
			cfg.Sources = append(cfg.Sources, f.Key)
		}
	}
	return &Blog{cfg: cfg, feedFetcher: feedFetcher}
}

func (b *Blog) Enabled() bool { return b.cfg.Enabled }
func (b *Blog) Key() string   { return "blog" }

func (b *Blog) Fetch(ctx context.Context) fetch.FetchResult {
	if !b.Enabled() {
		return fetch.FetchResult{SourceName: "Tech Blogs", SourceType: entity.SourceTypeBlog, Error: fmt.Errorf("fetcher is disabled")}
	}

	byKey := make(map[string]BlogFeed, len(DefaultBlogFeeds))
	for _, f := range DefaultBlogFeeds {
		byKey[f.Key] = f
	}
	var valid []string
	for _, k := range b.cfg.Sources {
		if _, ok := byKey[k]; ok {
			valid = append(valid, k)
		}
	}
	if len(valid) == 0 {
		return fetch.FetchResult{SourceName: "Tech Blogs", SourceType: entity.SourceTypeBlog, Error: fmt.Errorf("no valid blogs configured")}
	}

	results := fetchSubFeedsParallel(ctx, valid, b.cfg.MaxWorkers, func(ctx context.Context, key string) ([]any, error) {
		blog := byKey[key]
		feedItems, err := b.feedFetcher.Fetch(ctx, blog.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", blog.Name, err)
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
		blog := byKey[r.key]
		if r.err != nil {
			errMsgs = append(errMsgs, r.err.Error())
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
				Source:        blog.Name,
				SourceType:    entity.SourceTypeBlog,
				PublishedDate: fi.PublishedAt.Format("2006-01-02"),
				Extras:        map[string]any{"company": blog.Company},
			})
		}
	}

	var combinedErr error
	if len(errMsgs) > 0 {
		combinedErr = fmt.Errorf("%s", strings.Join(errMsgs, "; "))
	}

	return fetch.FetchResult{Items: items, SourceName: "Tech Blogs", SourceType: entity.SourceTypeBlog, Error: combinedErr}
}
