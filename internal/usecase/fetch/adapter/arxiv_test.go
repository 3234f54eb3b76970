package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usecasefetch "github.com/vigilfeed/vigilfeed/internal/usecase/fetch"
)

type fakeFeedFetcher struct {
	byURL map[string][]usecasefetch.FeedItem
	errs  map[string]error
}

func (f *fakeFeedFetcher) Fetch(ctx context.Context, url string) ([]usecasefetch.FeedItem, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	return f.byURL[url], nil
}

func TestArxiv_Fetch_DedupesAcrossCategories(t *testing.T) {
	shared := usecasefetch.FeedItem{Title: "Shared Paper", URL: "https://arxiv.org/abs/1", PublishedAt: time.Now()}
	unique := usecasefetch.FeedItem{Title: "Unique Paper", URL: "https://arxiv.org/abs/2", PublishedAt: time.Now()}

	f := &fakeFeedFetcher{byURL: map[string][]usecasefetch.FeedItem{}}
	crURL := fmt.Sprintf("%s?search_query=cat:cs.CR&sortBy=submittedDate&sortOrder=descending&max_results=10", arxivAPIBase)
	aiURL := fmt.Sprintf("%s?search_query=cat:cs.AI&sortBy=submittedDate&sortOrder=descending&max_results=10", arxivAPIBase)
	f.byURL[crURL] = []usecasefetch.FeedItem{shared}
	f.byURL[aiURL] = []usecasefetch.FeedItem{shared, unique}

	a := NewArxiv(ArxivConfig{Enabled: true, Categories: []string{"cs.CR", "cs.AI"}, MaxResults: 10}, f)
	result := a.Fetch(context.Background())

	require.NoError(t, result.Error)
	assert.Len(t, result.Items, 2)
}

func TestArxiv_Fetch_CombinesPerCategoryErrorsWithoutDiscardingOthers(t *testing.T) {
	f := &fakeFeedFetcher{
		byURL: map[string][]usecasefetch.FeedItem{},
		errs:  map[string]error{},
	}
	crURL := fmt.Sprintf("%s?search_query=cat:cs.CR&sortBy=submittedDate&sortOrder=descending&max_results=10", arxivAPIBase)
	aiURL := fmt.Sprintf("%s?search_query=cat:cs.AI&sortBy=submittedDate&sortOrder=descending&max_results=10", arxivAPIBase)
	f.errs[crURL] = assertErr("boom")
	f.byURL[aiURL] = []usecasefetch.FeedItem{{Title: "ok", URL: "https://arxiv.org/abs/3", PublishedAt: time.Now()}}

	a := NewArxiv(ArxivConfig{Enabled: true, Categories: []string{"cs.CR", "cs.AI"}, MaxResults: 10}, f)
	result := a.Fetch(context.Background())

	require.Error(t, result.Error)
	require.Len(t, result.Items, 1)
}

func TestArxiv_Fetch_NoCategoriesConfigured(t *testing.T) {
	a := NewArxiv(ArxivConfig{Enabled: true, Categories: nil}, &fakeFeedFetcher{})
	result := a.Fetch(context.Background())
	assert.Error(t, result.Error)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
