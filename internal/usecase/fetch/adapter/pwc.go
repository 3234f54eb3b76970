package adapter

import (
	"context"
	"fmt"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const pwcAPIBase = "https://paperswithcode.com/api/v1"

// PwCConfig mirrors pwc_fetcher.py's constructor config.
type PwCConfig struct {
	Enabled bool
	Limit   int    // default 50, API caps items_per_page at 50
	BaseURL string // override for testing, defaults to pwcAPIBase
}

func DefaultPwCConfig() PwCConfig {
	return PwCConfig{Enabled: true, Limit: 50}
}

// PwC fetches recent papers from the Papers With Code API.
type PwC struct {
	cfg PwCConfig
}

func NewPwC(cfg PwCConfig) *PwC {
	if cfg.Limit <= 0 || cfg.Limit > 50 {
		cfg.Limit = 50
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = pwcAPIBase
	}
	return &PwC{cfg: cfg}
}

func (p *PwC) Enabled() bool { return p.cfg.Enabled }
func (p *PwC) Key() string   { return "pwc" }

type pwcResponse struct {
	Results []struct {
		Title       string `json:"title"`
		Abstract    string `json:"abstract"`
		URLAbs      string `json:"url_abs"`
		URLPDF      string `json:"url_pdf"`
		Published   string `json:"published"`
		Repositories []struct {
			URL   string `json:"url"`
			Stars int    `json:"stars"`
		} `json:"repositories"`
	} `json:"results"`
}

func (p *PwC) Fetch(ctx context.Context) fetch.FetchResult {
	if !p.Enabled() {
		return fetch.FetchResult{SourceName: "Papers With Code", SourceType: entity.SourceTypePwC, Error: fmt.Errorf("fetcher is disabled")}
	}

	url := fmt.Sprintf("%s/papers/?items_per_page=%d&page=1", p.cfg.BaseURL, p.cfg.Limit)
	headers := map[string]string{"User-Agent": "Mozilla/5.0 (compatible; VigilFeedBot/1.0)"}

	var resp pwcResponse
	if err := getJSON(ctx, url, headers, &resp); err != nil {
		return fetch.FetchResult{SourceName: "Papers With Code", SourceType: entity.SourceTypePwC, Error: err}
	}

	items := make([]entity.Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Title == "" {
			continue
		}
		paperURL := r.URLAbs
		if paperURL == "" {
			paperURL = r.URLPDF
		}

		var githubURL string
		var stars int
		if len(r.Repositories) > 0 {
			githubURL = r.Repositories[0].URL
			stars = r.Repositories[0].Stars
		}

		items = append(items, entity.Article{
			Title:         r.Title,
			URL:           paperURL,
			Summary:       r.Abstract,
			Content:       r.Abstract,
			Source:        "Papers With Code",
			SourceType:    entity.SourceTypePwC,
			PublishedDate: r.Published,
			Extras: map[string]any{
				"github_url":   githubURL,
				"github_stars": stars,
			},
		})
	}

	return fetch.FetchResult{Items: items, SourceName: "Papers With Code", SourceType: entity.SourceTypePwC}
}
