package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const nvdAPIBase = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// NVDConfig mirrors nvd_fetcher.py's constructor config dict.
type NVDConfig struct {
	Enabled      bool
	APIKey       string
	DaysBack     int // default 7
	MinCVSSScore float64
	BaseURL      string // override for testing, defaults to nvdAPIBase
}

func DefaultNVDConfig() NVDConfig {
	return NVDConfig{Enabled: true, DaysBack: 7}
}

// NVD fetches recently published CVEs from the NVD API 2.0, filtering by
// a minimum CVSS score at the adapter boundary (spec §4.1's vulnerability
// adapter policy).
type NVD struct {
	cfg NVDConfig
}

func NewNVD(cfg NVDConfig) *NVD {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 7
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = nvdAPIBase
	}
	return &NVD{cfg: cfg}
}

func (n *NVD) Enabled() bool { return n.cfg.Enabled }
func (n *NVD) Key() string   { return "nvd" }

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			ID           string `json:"id"`
			Published    string `json:"published"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				CvssMetricV31 []struct {
					CvssData struct {
						BaseScore float64 `json:"baseScore"`
					} `json:"cvssData"`
				} `json:"cvssMetricV31"`
				CvssMetricV30 []struct {
					CvssData struct {
						BaseScore float64 `json:"baseScore"`
					} `json:"cvssData"`
				} `json:"cvssMetricV30"`
			} `json:"metrics"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

func (n *NVD) Fetch(ctx context.Context) fetch.FetchResult {
	if !n.Enabled() {
		return fetch.FetchResult{SourceName: "NVD", SourceType: entity.SourceTypeNVD, Error: fmt.Errorf("fetcher is disabled")}
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -n.cfg.DaysBack)
	url := fmt.Sprintf("%s?pubStartDate=%s&pubEndDate=%s",
		n.cfg.BaseURL,
		start.Format("2006-01-02T00:00:00.000"),
		end.Format("2006-01-02T23:59:59.999"))

	headers := map[string]string{}
	if n.cfg.APIKey != "" {
		headers["apiKey"] = n.cfg.APIKey
	}

	var resp nvdResponse
	if err := getJSON(ctx, url, headers, &resp); err != nil {
		return fetch.FetchResult{SourceName: "NVD", SourceType: entity.SourceTypeNVD, Error: err}
	}

	items := make([]entity.Article, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		var score float64
		switch {
		case len(v.CVE.Metrics.CvssMetricV31) > 0:
			score = v.CVE.Metrics.CvssMetricV31[0].CvssData.BaseScore
		case len(v.CVE.Metrics.CvssMetricV30) > 0:
			score = v.CVE.Metrics.CvssMetricV30[0].CvssData.BaseScore
		}
		if n.cfg.MinCVSSScore > 0 && score < n.cfg.MinCVSSScore {
			continue
		}

		desc := ""
		for _, d := range v.CVE.Descriptions {
			if d.Lang == "en" {
				desc = d.Value
				break
			}
		}

		items = append(items, entity.Article{
			Title:         v.CVE.ID,
			URL:           fmt.Sprintf("https://nvd.nist.gov/vuln/detail/%s", v.CVE.ID),
			Summary:       desc,
			Content:       desc,
			Source:        "NVD",
			SourceType:    entity.SourceTypeNVD,
			PublishedDate: v.CVE.Published,
			Extras: map[string]any{
				"cve_id":     v.CVE.ID,
				"cvss_score": score,
			},
		})
	}

	return fetch.FetchResult{Items: items, SourceName: "NVD", SourceType: entity.SourceTypeNVD}
}
