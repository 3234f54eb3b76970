package adapter

import "github.com/vigilfeed/vigilfeed/internal/domain/entity"

// NewAtumBlog configures a WebBlog for the Atum security research blog,
// another static listing page with no RSS feed, scraped the same way as
// AnthropicRed and Hunyuan.
func NewAtumBlog(daysBack int) *WebBlog {
	if daysBack <= 0 {
		daysBack = 30
	}
	return NewWebBlog(WebBlogConfig{
		Enabled:         true,
		SourceName:      "Atum Blog",
		SourceType:      entity.SourceTypeAtumBlog,
		ListingURL:      "https://www.atum.com/blog",
		URLPrefix:       "https://www.atum.com",
		ItemSelector:    "article, .blog-post-card",
		TitleSelector:   "h2, h3",
		URLSelector:     "a",
		SummarySelector: "p",
		DateSelector:    "time",
		DaysBack:        daysBack,
	})
}
