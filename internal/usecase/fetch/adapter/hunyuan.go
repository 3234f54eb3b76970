package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const hunyuanAPIURL = "https://api.hunyuan.tencent.com/api/blog/publicList"

// HunyuanConfig mirrors hunyuan_fetcher.py's constructor config.
type HunyuanConfig struct {
	Enabled  bool
	DaysBack int    // default 7
	PageSize int    // default 20
	URL      string // override for testing, defaults to hunyuanAPIURL
}

func DefaultHunyuanConfig() HunyuanConfig {
	return HunyuanConfig{Enabled: true, DaysBack: 7, PageSize: 20}
}

// Hunyuan fetches Tencent Hunyuan Research's blog via its publicList JSON
// API, a POST endpoint rather than the GET-based APIs the other JSON
// adapters use.
type Hunyuan struct {
	cfg HunyuanConfig
}

func NewHunyuan(cfg HunyuanConfig) *Hunyuan {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 7
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.URL == "" {
		cfg.URL = hunyuanAPIURL
	}
	return &Hunyuan{cfg: cfg}
}

func (h *Hunyuan) Enabled() bool { return h.cfg.Enabled }
func (h *Hunyuan) Key() string   { return "hunyuan" }

type hunyuanResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		List []struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Link        string `json:"link"`
			URL         string `json:"url"`
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Content     string `json:"content"`
			PublishTime string `json:"publishTime"`
			CreateTime  string `json:"createTime"`
		} `json:"list"`
	} `json:"data"`
}

func (h *Hunyuan) Fetch(ctx context.Context) fetch.FetchResult {
	if !h.Enabled() {
		return fetch.FetchResult{SourceName: "腾讯混元研究", SourceType: entity.SourceTypeHunyuan, Error: fmt.Errorf("fetcher is disabled")}
	}

	var resp hunyuanResponse
	body := map[string]any{"page": 1, "pageSize": h.cfg.PageSize}
	if err := postJSON(ctx, h.cfg.URL, body, &resp); err != nil {
		return fetch.FetchResult{SourceName: "腾讯混元研究", SourceType: entity.SourceTypeHunyuan, Error: err}
	}
	if resp.Code != 0 {
		return fetch.FetchResult{SourceName: "腾讯混元研究", SourceType: entity.SourceTypeHunyuan, Error: fmt.Errorf("api error: %s", resp.Msg)}
	}

	cutoff := time.Now().AddDate(0, 0, -h.cfg.DaysBack)
	items := make([]entity.Article, 0, len(resp.Data.List))
	for _, it := range resp.Data.List {
		if it.Title == "" {
			continue
		}
		url := it.Link
		if url == "" {
			url = it.URL
		}
		if url == "" && it.ID != "" {
			url = fmt.Sprintf("https://hy.tencent.com/research/%s", it.ID)
		}

		pubDate := it.PublishTime
		if pubDate == "" {
			pubDate = it.CreateTime
		}
		if pubDate != "" {
			if parsed, err := time.Parse(time.RFC3339, pubDate); err == nil {
				if parsed.Before(cutoff) {
					continue
				}
			}
		}

		summary := it.Summary
		if summary == "" {
			summary = it.Description
		}
		content := it.Content
		if content == "" {
			content = summary
		}

		items = append(items, entity.Article{
			Title:         it.Title,
			URL:           url,
			Summary:       summary,
			Content:       content,
			Source:        "腾讯混元研究",
			SourceType:    entity.SourceTypeHunyuan,
			PublishedDate: pubDate,
		})
	}

	return fetch.FetchResult{Items: items, SourceName: "腾讯混元研究", SourceType: entity.SourceTypeHunyuan}
}
