package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const webBlogMaxBodySize = 10 * 1024 * 1024

// WebBlogConfig describes a single static listing page: a site that
// publishes research notes without an RSS feed, scraped via CSS
// selectors instead of a feed parser. Grounded on web_blog_fetcher.py's
// WebBlogFetcher template-method base, reworked as data since Go has no
// subclass-per-source idiom; each vendor supplies its own config rather
// than its own type.
type WebBlogConfig struct {
	Enabled         bool
	SourceName      string
	SourceType      string
	ListingURL      string
	URLPrefix       string // used to make relative hrefs absolute
	ItemSelector    string
	TitleSelector   string
	URLSelector     string
	SummarySelector string
	DateSelector    string
	DateFormat      string // time.Parse layout, empty falls back to common formats
	DaysBack        int    // 0 disables date filtering
}

// WebBlog fetches a single research-blog listing page and extracts
// articles with goquery, the same HTML-scraping mechanism the teacher's
// WebflowScraper uses for CSS-selector-driven sources.
type WebBlog struct {
	cfg    WebBlogConfig
	client *http.Client
}

func NewWebBlog(cfg WebBlogConfig) *WebBlog {
	return &WebBlog{cfg: cfg, client: &http.Client{Timeout: defaultTimeout}}
}

func (w *WebBlog) Enabled() bool { return w.cfg.Enabled }
func (w *WebBlog) Key() string   { return w.cfg.SourceType }

func (w *WebBlog) Fetch(ctx context.Context) fetch.FetchResult {
	if !w.Enabled() {
		return fetch.FetchResult{SourceName: w.cfg.SourceName, SourceType: w.cfg.SourceType, Error: fmt.Errorf("fetcher is disabled")}
	}

	doc, err := w.fetchDocument(ctx)
	if err != nil {
		return fetch.FetchResult{SourceName: w.cfg.SourceName, SourceType: w.cfg.SourceType, Error: err}
	}

	var items []entity.Article
	var cutoff time.Time
	if w.cfg.DaysBack > 0 {
		cutoff = time.Now().AddDate(0, 0, -w.cfg.DaysBack)
	}

	doc.Find(w.cfg.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(w.cfg.TitleSelector).Text())
		if title == "" {
			return
		}
		href, _ := sel.Find(w.cfg.URLSelector).Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		itemURL := makeAbsoluteURL(href, w.cfg.URLPrefix)

		var summary string
		if w.cfg.SummarySelector != "" {
			summary = strings.TrimSpace(sel.Find(w.cfg.SummarySelector).Text())
		}

		var publishedDate string
		if w.cfg.DateSelector != "" {
			dateStr := strings.TrimSpace(sel.Find(w.cfg.DateSelector).Text())
			pubDate := parseDate(dateStr, w.cfg.DateFormat)
			publishedDate = pubDate.Format("2006-01-02")
			if !cutoff.IsZero() && pubDate.Before(cutoff) {
				return
			}
		}

		items = append(items, entity.Article{
			Title:         title,
			URL:           itemURL,
			Summary:       summary,
			Content:       summary,
			Source:        w.cfg.SourceName,
			SourceType:    w.cfg.SourceType,
			PublishedDate: publishedDate,
		})
	})

	return fetch.FetchResult{Items: items, SourceName: w.cfg.SourceName, SourceType: w.cfg.SourceType}
}

// makeAbsoluteURL resolves a possibly-relative href against a site prefix.
func makeAbsoluteURL(href, prefix string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if prefix == "" {
		return href
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(href, "/")
}

// parseDate parses a date string with a preferred layout, falling back to
// a handful of common layouts, and finally to now if nothing matches.
func parseDate(dateStr, layout string) time.Time {
	if dateStr == "" {
		return time.Now()
	}
	layouts := []string{"2006-01-02", time.RFC3339, "Jan 2, 2006", "January 2, 2006"}
	if layout != "" {
		layouts = append([]string{layout}, layouts...)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, dateStr); err == nil {
			return t
		}
	}
	return time.Now()
}

func (w *WebBlog) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.ListingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VigilFeedBot/1.0)")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", w.cfg.ListingURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request %s: status %d", w.cfg.ListingURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, webBlogMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse HTML from %s: %w", w.cfg.ListingURL, err)
	}
	return doc, nil
}
