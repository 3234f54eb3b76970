package fetch

import (
	"context"
	"time"
)

// FeedItem is a single entry read from a feed source, before it is turned
// into a candidate article by the batch pipeline.
type FeedItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// FeedFetcher reads the items currently published at a source URL. Each of
// the C1 source adapters (arxiv, blog, dblp, ...) wraps one to do the actual
// network fetch, with the adapter layering source-specific parsing and
// dedup on top.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// Summarizer condenses raw article text into a short summary. Implemented
// by the Claude and OpenAI completers in internal/infra/summarizer, and
// reused by the QA engine's answer synthesis as its Completer port.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
