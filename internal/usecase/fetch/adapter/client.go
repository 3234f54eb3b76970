// Package adapter implements the per-source Fetcher (C1) adapters:
// normalized-record producers for arxiv, RSS blogs, DBLP conferences,
// NVD/KEV vulnerability feeds, HuggingFace/PwC papers, GitHub trending
// repos, and the vendor research feeds (Hunyuan, Anthropic red-team,
// Atum). Grounded on original_source/src/fetchers/*.py, one file per
// adapter matching the original's one-class-per-source layout.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// httpClient is the shared client every JSON-API adapter uses. A single
// client value is safe for concurrent use across adapters.
var httpClient = &http.Client{Timeout: defaultTimeout}

// getJSON issues a GET request and decodes a JSON body into out. headers
// may be nil.
func getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("request %s: status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// postJSON issues a POST request with a JSON-encoded body and decodes a
// JSON response into out. Used by the Hunyuan adapter, whose API takes a
// page/pageSize body rather than query parameters.
func postJSON(ctx context.Context, url string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("request %s: status %d: %s", url, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// subFeedResult is the outcome of fetching one of a multi-endpoint
// adapter's sub-feeds (DBLP conferences, blog RSS feeds).
type subFeedResult struct {
	key   string
	items []any
	err   error
}

// fetchSubFeedsParallel runs fn over keys on a bounded worker pool
// (default 4, matching DBLP/blog's ThreadPoolExecutor(max_workers=4)). A
// single sub-feed's failure is collected, not propagated: the caller
// combines errors into one string and still returns whatever other
// sub-feeds produced.
func fetchSubFeedsParallel(ctx context.Context, keys []string, workers int, fn func(ctx context.Context, key string) ([]any, error)) []subFeedResult {
	if workers <= 0 {
		workers = 4
	}
	sem := make(chan struct{}, workers)
	out := make(chan subFeedResult, len(keys))

	for _, key := range keys {
		sem <- struct{}{}
		go func(key string) {
			defer func() { <-sem }()
			items, err := fn(ctx, key)
			out <- subFeedResult{key: key, items: items, err: err}
		}(key)
	}

	results := make([]subFeedResult, 0, len(keys))
	for range keys {
		results = append(results, <-out)
	}
	return results
}
