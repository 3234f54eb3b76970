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

// ConferenceFeed names one of DBLP's per-conference publication feeds.
type ConferenceFeed struct {
	Key  string
	Name string
	URL  string
}

// DefaultConferenceFeeds mirrors dblp_fetcher.py's CONFERENCE_FEEDS: the
// security top-4 conferences, indexed by DBLP's own venue key.
var DefaultConferenceFeeds = []ConferenceFeed{
	{Key: "sp", Name: "IEEE S&P", URL: "https://dblp.org/db/conf/sp/sp.xml"},
	{Key: "ccs", Name: "ACM CCS", URL: "https://dblp.org/db/conf/ccs/ccs.xml"},
	{Key: "uss", Name: "USENIX Security", URL: "https://dblp.org/db/conf/uss/uss.xml"},
	{Key: "ndss", Name: "NDSS", URL: "https://dblp.org/db/conf/ndss/ndss.xml"},
}

// DBLPConfig mirrors dblp_fetcher.py's constructor config.
type DBLPConfig struct {
	Enabled     bool
	Conferences []ConferenceFeed // default DefaultConferenceFeeds
	MaxWorkers  int              // default 4
}

func DefaultDBLPConfig() DBLPConfig {
	return DBLPConfig{Enabled: true, Conferences: DefaultConferenceFeeds, MaxWorkers: 4}
}

// DBLP fetches security top-4 conference publication listings
// concurrently, one worker per conference, combining sub-feed failures
// into one error string without discarding successful conferences' items
// (spec §4.1's multi-endpoint adapter policy).
type DBLP struct {
	cfg         DBLPConfig
	feedFetcher usecasefetch.FeedFetcher
}

func NewDBLP(cfg DBLPConfig, feedFetcher usecasefetch.FeedFetcher) *DBLP {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if len(cfg.Conferences) == 0 {
		cfg.Conferences = DefaultConferenceFeeds
	}
	return &DBLP{cfg: cfg, feedFetcher: feedFetcher}
}

func (d *DBLP) Enabled() bool { return d.cfg.Enabled }
func (d *DBLP) Key() string   { return "dblp" }

func (d *DBLP) Fetch(ctx context.Context) fetch.FetchResult {
	if !d.Enabled() {
		return fetch.FetchResult{SourceName: "DBLP Security Conferences", SourceType: entity.SourceTypeDBLP, Error: fmt.Errorf("fetcher is disabled")}
	}

	byKey := make(map[string]ConferenceFeed, len(d.cfg.Conferences))
	keys := make([]string, 0, len(d.cfg.Conferences))
	for _, c := range d.cfg.Conferences {
		byKey[c.Key] = c
		keys = append(keys, c.Key)
	}

	results := fetchSubFeedsParallel(ctx, keys, d.cfg.MaxWorkers, func(ctx context.Context, key string) ([]any, error) {
		conf := byKey[key]
		feedItems, err := d.feedFetcher.Fetch(ctx, conf.URL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", conf.Name, err)
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
		conf := byKey[r.key]
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
				Source:        conf.Name,
				SourceType:    entity.SourceTypeDBLP,
				PublishedDate: fi.PublishedAt.Format("2006-01-02"),
			})
		}
	}

	var combinedErr error
	if len(errMsgs) > 0 {
		combinedErr = fmt.Errorf("%s", strings.Join(errMsgs, "; "))
	}

	return fetch.FetchResult{Items: items, SourceName: "DBLP Security Conferences", SourceType: entity.SourceTypeDBLP, Error: combinedErr}
}
