package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const kevJSONURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// KEVConfig mirrors kev_fetcher.py's constructor config dict.
type KEVConfig struct {
	Enabled  bool
	DaysBack int    // default 30, filters by dateAdded
	URL      string // override for testing, defaults to kevJSONURL
}

func DefaultKEVConfig() KEVConfig {
	return KEVConfig{Enabled: true, DaysBack: 30}
}

// KEV fetches CISA's Known Exploited Vulnerabilities catalog, filtering
// to entries added within the last DaysBack days.
type KEV struct {
	cfg KEVConfig
}

func NewKEV(cfg KEVConfig) *KEV {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 30
	}
	if cfg.URL == "" {
		cfg.URL = kevJSONURL
	}
	return &KEV{cfg: cfg}
}

func (k *KEV) Enabled() bool { return k.cfg.Enabled }
func (k *KEV) Key() string   { return "kev" }

type kevResponse struct {
	Vulnerabilities []struct {
		CveID             string `json:"cveID"`
		VulnerabilityName string `json:"vulnerabilityName"`
		VendorProject     string `json:"vendorProject"`
		Product           string `json:"product"`
		DateAdded         string `json:"dateAdded"`
		ShortDescription  string `json:"shortDescription"`
	} `json:"vulnerabilities"`
}

func (k *KEV) Fetch(ctx context.Context) fetch.FetchResult {
	if !k.Enabled() {
		return fetch.FetchResult{SourceName: "CISA KEV", SourceType: entity.SourceTypeKEV, Error: fmt.Errorf("fetcher is disabled")}
	}

	var resp kevResponse
	if err := getJSON(ctx, k.cfg.URL, nil, &resp); err != nil {
		return fetch.FetchResult{SourceName: "CISA KEV", SourceType: entity.SourceTypeKEV, Error: err}
	}

	cutoff := time.Now().AddDate(0, 0, -k.cfg.DaysBack)
	items := make([]entity.Article, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		if v.CveID == "" {
			continue
		}
		if added, err := time.Parse("2006-01-02", v.DateAdded); err == nil && added.Before(cutoff) {
			continue
		}

		items = append(items, entity.Article{
			Title:         fmt.Sprintf("%s: %s", v.CveID, v.VulnerabilityName),
			URL:           fmt.Sprintf("https://nvd.nist.gov/vuln/detail/%s", v.CveID),
			Summary:       v.ShortDescription,
			Content:       v.ShortDescription,
			Source:        "CISA KEV",
			SourceType:    entity.SourceTypeKEV,
			PublishedDate: v.DateAdded,
			Extras: map[string]any{
				"cve_id":  v.CveID,
				"vendor":  v.VendorProject,
				"product": v.Product,
			},
		})
	}

	return fetch.FetchResult{Items: items, SourceName: "CISA KEV", SourceType: entity.SourceTypeKEV}
}
