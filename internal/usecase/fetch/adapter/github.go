package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

const githubAPIBase = "https://api.github.com"

// defaultGitHubStateFile sits next to the Checkpointer's default directory
// so one CHECKPOINT_DIR volume holds all of the worker's cross-run state.
const defaultGitHubStateFile = "/data/checkpoints/github_seen.json"

// GitHubConfig mirrors github_fetcher.py's constructor config.
type GitHubConfig struct {
	Enabled    bool
	Token      string
	Topics     []string // default security, llm, ai, machine-learning
	MinStars   int      // default 100
	DaysBack   int      // default 7
	MaxResults int      // default 50
	BaseURL    string   // override for testing, defaults to githubAPIBase
	StateFile  string   // path to the JSON snapshot persisting `seen` across runs
}

func DefaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		Enabled:    true,
		Topics:     []string{"security", "llm", "ai", "machine-learning"},
		MinStars:   100,
		DaysBack:   7,
		MaxResults: 50,
		StateFile:  defaultGitHubStateFile,
	}
}

// pushedVersion tracks the last-observed state of a repo so GitHub only
// reports it again on a meaningful update, not on every run.
type pushedVersion struct {
	Stars   int
	Release string
}

// GitHub fetches trending/high-star repositories by topic plus recently
// created fast-growing repos, and suppresses repeat reports of the same
// repo unless it has a new release tag or its star count grew by more
// than 20% since it was last seen. Unlike the original's in-memory-only
// _pushed_versions dict, seen is persisted to cfg.StateFile so suppression
// survives a worker restart: it's loaded once at construction and
// re-written every time an entry changes.
type GitHub struct {
	cfg GitHubConfig

	mu   sync.Mutex
	seen map[string]pushedVersion
}

func NewGitHub(cfg GitHubConfig) *GitHub {
	if cfg.MinStars <= 0 {
		cfg.MinStars = 100
	}
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 7
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{"security", "llm", "ai", "machine-learning"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = githubAPIBase
	}
	if cfg.StateFile == "" {
		cfg.StateFile = defaultGitHubStateFile
	}

	g := &GitHub{cfg: cfg, seen: make(map[string]pushedVersion)}
	if loaded, err := loadSeenState(cfg.StateFile); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("github adapter: failed to load seen-repo state, starting empty",
				slog.String("path", cfg.StateFile), slog.Any("error", err))
		}
	} else {
		g.seen = loaded
	}
	return g
}

func (g *GitHub) Enabled() bool { return g.cfg.Enabled }
func (g *GitHub) Key() string   { return "github" }

type githubSearchResponse struct {
	Items []githubRepo `json:"items"`
}

type githubRepo struct {
	FullName        string   `json:"full_name"`
	HTMLURL         string   `json:"html_url"`
	Description     string   `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	Language        string   `json:"language"`
	Topics          []string `json:"topics"`
	CreatedAt       string   `json:"created_at"`
	PushedAt        string   `json:"pushed_at"`
}

type githubRelease struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	PublishedAt string `json:"published_at"`
}

func (g *GitHub) Fetch(ctx context.Context) fetch.FetchResult {
	if !g.Enabled() {
		return fetch.FetchResult{SourceName: "GitHub", SourceType: entity.SourceTypeGitHub, Error: fmt.Errorf("fetcher is disabled")}
	}

	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if g.cfg.Token != "" {
		headers["Authorization"] = "token " + g.cfg.Token
	}

	cutoff := time.Now().AddDate(0, 0, -g.cfg.DaysBack).Format("2006-01-02")

	var all []entity.Article
	var errMsgs []string

	for _, topic := range g.cfg.Topics {
		query := fmt.Sprintf("topic:%s stars:>=%d pushed:>=%s", topic, g.cfg.MinStars, cutoff)
		perPage := g.cfg.MaxResults
		if perPage > 30 {
			perPage = 30
		}
		repos, err := g.search(ctx, query, perPage, headers)
		if err != nil {
			errMsgs = append(errMsgs, fmt.Sprintf("topic %s: %v", topic, err))
			continue
		}
		for _, r := range repos {
			article, ok := g.toArticle(ctx, r, topic, headers)
			if ok {
				all = append(all, article)
			}
		}
	}

	newQuery := fmt.Sprintf("created:>=%s stars:>=%d", cutoff, g.cfg.MinStars/2)
	newPerPage := g.cfg.MaxResults
	if newPerPage > 20 {
		newPerPage = 20
	}
	if repos, err := g.search(ctx, newQuery, newPerPage, headers); err != nil {
		errMsgs = append(errMsgs, fmt.Sprintf("new_trending: %v", err))
	} else {
		for _, r := range repos {
			article, ok := g.toArticle(ctx, r, "new_trending", headers)
			if ok {
				all = append(all, article)
			}
		}
	}

	dedup := make([]entity.Article, 0, len(all))
	seenNames := map[string]bool{}
	for _, a := range all {
		name, _ := a.Extras["repo_full_name"].(string)
		if name == "" || seenNames[name] {
			continue
		}
		seenNames[name] = true
		dedup = append(dedup, a)
	}

	var combinedErr error
	if len(errMsgs) > 0 {
		combinedErr = fmt.Errorf("%s", strings.Join(errMsgs, "; "))
	}

	return fetch.FetchResult{Items: dedup, SourceName: "GitHub", SourceType: entity.SourceTypeGitHub, Error: combinedErr}
}

func (g *GitHub) search(ctx context.Context, query string, perPage int, headers map[string]string) ([]githubRepo, error) {
	u := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&order=desc&per_page=%d",
		g.cfg.BaseURL, url.QueryEscape(query), perPage)
	var resp githubSearchResponse
	if err := getJSON(ctx, u, headers, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (g *GitHub) latestRelease(ctx context.Context, fullName string, headers map[string]string) *githubRelease {
	u := fmt.Sprintf("%s/repos/%s/releases/latest", g.cfg.BaseURL, fullName)
	var rel githubRelease
	if err := getJSON(ctx, u, headers, &rel); err != nil {
		return nil
	}
	return &rel
}

func (g *GitHub) toArticle(ctx context.Context, r githubRepo, topic string, headers map[string]string) (entity.Article, bool) {
	if r.FullName == "" {
		return entity.Article{}, false
	}
	release := g.latestRelease(ctx, r.FullName, headers)
	releaseTag := ""
	if release != nil {
		releaseTag = release.TagName
	}
	if !g.shouldReport(r.FullName, r.StargazersCount, releaseTag) {
		return entity.Article{}, false
	}

	publishedDate := r.PushedAt
	if publishedDate == "" {
		publishedDate = r.CreatedAt
	}
	summary := r.Description
	if len(summary) > 500 {
		summary = summary[:500]
	}

	return entity.Article{
		Title:         fmt.Sprintf("[GitHub] %s", r.FullName),
		URL:           r.HTMLURL,
		Summary:       summary,
		Content:       g.buildContent(r, release),
		Source:        "GitHub",
		SourceType:    entity.SourceTypeGitHub,
		PublishedDate: publishedDate,
		Extras: map[string]any{
			"repo_full_name": r.FullName,
			"stars":          r.StargazersCount,
			"forks":          r.ForksCount,
			"language":       r.Language,
			"topics":         r.Topics,
			"search_topic":   topic,
			"latest_release": releaseTag,
		},
	}, true
}

func (g *GitHub) buildContent(r githubRepo, release *githubRelease) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", r.FullName)
	desc := r.Description
	if desc == "" {
		desc = "no description"
	}
	fmt.Fprintf(&b, "%s\n", desc)
	fmt.Fprintf(&b, "Stars: %d\n", r.StargazersCount)
	fmt.Fprintf(&b, "Forks: %d\n", r.ForksCount)
	if r.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", r.Language)
	}
	if len(r.Topics) > 0 {
		n := len(r.Topics)
		if n > 5 {
			n = 5
		}
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(r.Topics[:n], ", "))
	}
	if release != nil {
		fmt.Fprintf(&b, "Latest release: %s\n", release.TagName)
	}
	return b.String()
}

// shouldReport implements the original's _should_push gating: a repo is
// worth surfacing only the first time it's seen, when it ships a new
// release tag, or when its star count has grown more than 20% since the
// last time this adapter reported it.
func (g *GitHub) shouldReport(repoFullName string, stars int, releaseTag string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, ok := g.seen[repoFullName]
	if !ok {
		g.seen[repoFullName] = pushedVersion{Stars: stars, Release: releaseTag}
		g.saveSeenLocked()
		return true
	}

	if releaseTag != "" && releaseTag != prev.Release {
		g.seen[repoFullName] = pushedVersion{Stars: stars, Release: releaseTag}
		g.saveSeenLocked()
		return true
	}

	if prev.Stars > 0 && float64(stars) > float64(prev.Stars)*1.2 {
		g.seen[repoFullName] = pushedVersion{Stars: stars, Release: prev.Release}
		g.saveSeenLocked()
		return true
	}

	return false
}

// saveSeenLocked persists the seen map. Called with mu held; a failure is
// logged rather than propagated since it must never block reporting a repo.
func (g *GitHub) saveSeenLocked() {
	if err := saveSeenState(g.cfg.StateFile, g.seen); err != nil {
		slog.Warn("github adapter: failed to persist seen-repo state",
			slog.String("path", g.cfg.StateFile), slog.Any("error", err))
	}
}

func loadSeenState(path string) (map[string]pushedVersion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]pushedVersion
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal github seen state %s: %w", path, err)
	}
	if m == nil {
		m = make(map[string]pushedVersion)
	}
	return m, nil
}

// saveSeenState writes seen to path via a temp-file-plus-rename, the same
// pattern the Checkpointer uses for its own JSON snapshots.
func saveSeenState(path string, seen map[string]pushedVersion) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(seen, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal github seen state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write github seen state: %w", err)
	}
	return os.Rename(tmp, path)
}
