package adapter

import "github.com/vigilfeed/vigilfeed/internal/domain/entity"

// NewAnthropicRed configures a WebBlog for Anthropic's red-teaming and
// alignment research listing page. Anthropic publishes this research
// outside its main blog's RSS feed, so it is scraped like Hunyuan rather
// than pulled through BlogFetcher (see SPEC_FULL.md's source-types note).
func NewAnthropicRed(daysBack int) *WebBlog {
	if daysBack <= 0 {
		daysBack = 30
	}
	return NewWebBlog(WebBlogConfig{
		Enabled:         true,
		SourceName:      "Anthropic Red Team",
		SourceType:      entity.SourceTypeAnthropicRed,
		ListingURL:      "https://www.anthropic.com/research",
		URLPrefix:       "https://www.anthropic.com",
		ItemSelector:    "article, .PostCard",
		TitleSelector:   "h2, h3",
		URLSelector:     "a",
		SummarySelector: "p",
		DateSelector:    "time",
		DaysBack:        daysBack,
	})
}
