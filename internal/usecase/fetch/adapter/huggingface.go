package adapter

import (
	"context"
	"fmt"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const huggingFaceDailyPapersURL = "https://huggingface.co/api/daily_papers"

// HuggingFaceConfig mirrors huggingface_fetcher.py's constructor config.
type HuggingFaceConfig struct {
	Enabled bool
	Limit   int    // default 50
	URL     string // override for testing, defaults to huggingFaceDailyPapersURL
}

func DefaultHuggingFaceConfig() HuggingFaceConfig {
	return HuggingFaceConfig{Enabled: true, Limit: 50}
}

// HuggingFace fetches the daily papers digest from huggingface.co's
// unofficial JSON API.
type HuggingFace struct {
	cfg HuggingFaceConfig
}

func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.URL == "" {
		cfg.URL = huggingFaceDailyPapersURL
	}
	return &HuggingFace{cfg: cfg}
}

func (h *HuggingFace) Enabled() bool { return h.cfg.Enabled }
func (h *HuggingFace) Key() string   { return "huggingface" }

type hfDailyPaper struct {
	Paper struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Summary   string `json:"summary"`
		PublishedAt string `json:"publishedAt"`
	} `json:"paper"`
}

func (h *HuggingFace) Fetch(ctx context.Context) fetch.FetchResult {
	if !h.Enabled() {
		return fetch.FetchResult{SourceName: "HuggingFace Papers", SourceType: entity.SourceTypeHuggingFace, Error: fmt.Errorf("fetcher is disabled")}
	}

	var papers []hfDailyPaper
	if err := getJSON(ctx, h.cfg.URL, nil, &papers); err != nil {
		return fetch.FetchResult{SourceName: "HuggingFace Papers", SourceType: entity.SourceTypeHuggingFace, Error: err}
	}

	limit := h.cfg.Limit
	if limit > len(papers) {
		limit = len(papers)
	}

	items := make([]entity.Article, 0, limit)
	for _, p := range papers[:limit] {
		if p.Paper.Title == "" {
			continue
		}
		items = append(items, entity.Article{
			Title:         p.Paper.Title,
			URL:           fmt.Sprintf("https://huggingface.co/papers/%s", p.Paper.ID),
			Summary:       p.Paper.Summary,
			Content:       p.Paper.Summary,
			Source:        "HuggingFace Papers",
			SourceType:    entity.SourceTypeHuggingFace,
			PublishedDate: p.Paper.PublishedAt,
			Extras:        map[string]any{"paper_id": p.Paper.ID},
		})
	}

	return fetch.FetchResult{Items: items, SourceName: "HuggingFace Papers", SourceType: entity.SourceTypeHuggingFace}
}
