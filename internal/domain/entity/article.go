// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article and Source, along with
// their validation rules and domain-specific errors.
package entity

import "time"

// SourceType enumerates the recognised Article.SourceType tags. Unknown
// values are accepted by Validate (a new adapter should not be blocked by
// this list) but the constants give callers a canonical spelling.
const (
	SourceTypeArxiv        = "arxiv"
	SourceTypeRSS          = "rss"
	SourceTypeDBLP         = "dblp"
	SourceTypeNVD          = "nvd"
	SourceTypeKEV          = "kev"
	SourceTypeHuggingFace  = "huggingface"
	SourceTypePwC          = "pwc"
	SourceTypeBlog         = "blog"
	SourceTypeGitHub       = "github"
	SourceTypeHunyuan      = "hunyuan"
	SourceTypeAnthropicRed = "anthropic_red"
	SourceTypeAtumBlog     = "atum_blog"
)

// DefaultCategory is the closed-set fallback category an Enricher assigns
// when the LLM's category label cannot be parsed or recognised.
const DefaultCategory = "其他"

// Article is the universal record produced by every Fetcher and consumed
// by everything downstream: persistence, scoring, push, and indexing.
//
// Invariants: URL is unique in the ArticleStore; IsPushed transitions only
// false->true; FetchedAt <= time of persist.
type Article struct {
	ID       int64
	SourceID int64 // links to a Source registry row; 0 for adapters with none

	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
	CreatedAt   time.Time

	Source        string // display name of origin, e.g. "IEEE S&P"
	SourceType    string
	PublishedDate string // ISO 8601 date string, possibly empty, as reported upstream
	FetchedAt     time.Time
	Content       string
	ZhSummary     string
	Category      string
	IsPushed      bool
	Extras        map[string]any
}

// Validate checks the required fields any Fetcher adapter must populate.
func (a *Article) Validate() error {
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if err := ValidateURL(a.URL); err != nil {
		return err
	}
	if a.SourceType == "" {
		return &ValidationError{Field: "source_type", Message: "source_type is required"}
	}
	return nil
}

// Extra returns a string extra, or "" if absent or not a string.
func (a *Article) Extra(key string) string {
	if a.Extras == nil {
		return ""
	}
	v, ok := a.Extras[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ExtraFloat returns a float64 extra, or 0 if absent or not numeric.
func (a *Article) ExtraFloat(key string) float64 {
	if a.Extras == nil {
		return 0
	}
	switch v := a.Extras[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
