// Package checkpoint implements the Checkpointer (C4): two JSON snapshot
// files recording fetch-stage and process-stage progress, enabling a
// crashed run to resume without reprocessing completed work. Ported from
// the reference implementation's checkpoint module; see DESIGN.md.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

// Phase is a checkpoint's stage marker.
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhaseProcessing Phase = "processing"
	PhasePushing    Phase = "pushing"
	PhaseCompleted  Phase = "completed"
)

const (
	fetchFileName   = "fetch_checkpoint.json"
	processFileName = "process_checkpoint.json"
)

// FetchCheckpoint is the on-disk shape of fetch-stage progress.
type FetchCheckpoint struct {
	ID              string                    `json:"id"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	Phase           Phase                     `json:"phase"`
	TotalFeeds      int                       `json:"total_feeds"`
	CompletedFeeds  map[string]bool           `json:"completed_feeds"`
	FailedFeeds     map[string]string         `json:"failed_feeds"`
	FetchedArticles map[string][]entity.Article `json:"fetched_articles"`
}

// ProcessCheckpoint is the on-disk shape of process-stage progress.
type ProcessCheckpoint struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Phase             Phase             `json:"phase"`
	TotalArticles     int               `json:"total_articles"`
	ProcessedURLs     map[string]bool   `json:"processed_urls"`
	FailedURLs        map[string]string `json:"failed_urls"`
	ProcessedArticles []entity.Article  `json:"processed_articles"`
}

// Config controls directory, expiry, and debounce behaviour.
type Config struct {
	Dir          string
	MaxAgeHours  int // default 24
	SaveInterval int // auto-save every N completions, default 10
}

func DefaultConfig(dir string) Config {
	return Config{Dir: dir, MaxAgeHours: 24, SaveInterval: 10}
}

// Manager is the Checkpointer. All mutating methods hold mu for a short
// critical section; persistence is debounced by completion count, not
// time, matching spec §5's "auto-save is debounced by count, not time".
type Manager struct {
	mu  sync.Mutex
	cfg Config

	fetch            *FetchCheckpoint
	fetchSinceFlush  int
	process          *ProcessCheckpoint
	processSinceFlush int
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

func (m *Manager) fetchPath() string   { return filepath.Join(m.cfg.Dir, fetchFileName) }
func (m *Manager) processPath() string { return filepath.Join(m.cfg.Dir, processFileName) }

// StartFetch reuses an existing non-expired fetch checkpoint in phase
// "fetching", or creates a new one.
func (m *Manager) StartFetch(allURLs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := loadJSON[FetchCheckpoint](m.fetchPath())
	if err == nil && existing != nil && existing.Phase == PhaseFetching && !m.expired(existing.UpdatedAt) {
		m.fetch = existing
		return nil
	}

	now := time.Now()
	m.fetch = &FetchCheckpoint{
		ID:              uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Phase:           PhaseFetching,
		TotalFeeds:      len(allURLs),
		CompletedFeeds:  map[string]bool{},
		FailedFeeds:     map[string]string{},
		FetchedArticles: map[string][]entity.Article{},
	}
	return m.saveFetchLocked()
}

func (m *Manager) expired(updatedAt time.Time) bool {
	maxAge := m.cfg.MaxAgeHours
	if maxAge <= 0 {
		maxAge = 24
	}
	return time.Since(updatedAt) >= time.Duration(maxAge)*time.Hour
}

// MarkFeedDone records a completed feed/source and its produced articles.
func (m *Manager) MarkFeedDone(sourceKey string, articles []entity.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetch == nil {
		return
	}
	m.fetch.CompletedFeeds[sourceKey] = true
	m.fetch.FetchedArticles[sourceKey] = articles
	m.fetch.UpdatedAt = time.Now()
	m.fetchSinceFlush++
	m.maybeFlushFetchLocked()
}

// MarkFeedFailed records a failed feed/source with its error message.
func (m *Manager) MarkFeedFailed(sourceKey string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetch == nil {
		return
	}
	m.fetch.FailedFeeds[sourceKey] = cause.Error()
	m.fetch.UpdatedAt = time.Now()
	m.fetchSinceFlush++
	m.maybeFlushFetchLocked()
}

// PendingFeeds returns allKeys minus (completed union failed).
func (m *Manager) PendingFeeds(allKeys []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetch == nil {
		return allKeys
	}
	var out []string
	for _, k := range allKeys {
		if m.fetch.CompletedFeeds[k] || hasKey(m.fetch.FailedFeeds, k) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// AllFetchedArticles flattens every completed source's articles.
func (m *Manager) AllFetchedArticles() []entity.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetch == nil {
		return nil
	}
	var out []entity.Article
	for _, arts := range m.fetch.FetchedArticles {
		out = append(out, arts...)
	}
	return out
}

// CompleteFetch advances the fetch checkpoint to "processing" and
// persists unconditionally.
func (m *Manager) CompleteFetch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetch == nil {
		return nil
	}
	m.fetch.Phase = PhaseProcessing
	m.fetch.UpdatedAt = time.Now()
	return m.saveFetchLocked()
}

// StartProcess mirrors StartFetch for the process stage.
func (m *Manager) StartProcess(articles []entity.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := loadJSON[ProcessCheckpoint](m.processPath())
	if err == nil && existing != nil && existing.Phase == PhaseProcessing && !m.expired(existing.UpdatedAt) {
		m.process = existing
		return nil
	}

	now := time.Now()
	m.process = &ProcessCheckpoint{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Phase:         PhaseProcessing,
		TotalArticles: len(articles),
		ProcessedURLs: map[string]bool{},
		FailedURLs:    map[string]string{},
	}
	return m.saveProcessLocked()
}

// MarkArticleDone records a successfully processed article.
func (m *Manager) MarkArticleDone(article entity.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.process == nil {
		return
	}
	m.process.ProcessedURLs[article.URL] = true
	m.process.ProcessedArticles = append(m.process.ProcessedArticles, article)
	m.process.UpdatedAt = time.Now()
	m.processSinceFlush++
	m.maybeFlushProcessLocked()
}

// MarkArticleFailed records a failed article by URL.
func (m *Manager) MarkArticleFailed(url string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.process == nil {
		return
	}
	m.process.FailedURLs[url] = cause.Error()
	m.process.UpdatedAt = time.Now()
	m.processSinceFlush++
	m.maybeFlushProcessLocked()
}

// PendingArticles returns the articles not yet in processed_urls.
func (m *Manager) PendingArticles(articles []entity.Article) []entity.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.process == nil {
		return articles
	}
	var out []entity.Article
	for _, a := range articles {
		if m.process.ProcessedURLs[a.URL] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// CompleteProcess advances the process checkpoint to "completed" and
// persists unconditionally.
func (m *Manager) CompleteProcess() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.process == nil {
		return nil
	}
	m.process.Phase = PhaseCompleted
	m.process.UpdatedAt = time.Now()
	return m.saveProcessLocked()
}

// Clear removes both checkpoint files. Call only on a fully successful run.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetch = nil
	m.process = nil
	m.fetchSinceFlush = 0
	m.processSinceFlush = 0

	var firstErr error
	for _, p := range []string{m.fetchPath(), m.processPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status reports a snapshot for the CLI's checkpoint-status command.
type Status struct {
	FetchPhase      Phase
	FetchCompleted  int
	FetchFailed     int
	FetchTotal      int
	ProcessPhase    Phase
	ProcessDone     int
	ProcessFailed   int
	ProcessTotal    int
}

func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Status
	if m.fetch != nil {
		s.FetchPhase = m.fetch.Phase
		s.FetchCompleted = len(m.fetch.CompletedFeeds)
		s.FetchFailed = len(m.fetch.FailedFeeds)
		s.FetchTotal = m.fetch.TotalFeeds
	}
	if m.process != nil {
		s.ProcessPhase = m.process.Phase
		s.ProcessDone = len(m.process.ProcessedURLs)
		s.ProcessFailed = len(m.process.FailedURLs)
		s.ProcessTotal = m.process.TotalArticles
	}
	return s
}

func (m *Manager) maybeFlushFetchLocked() {
	interval := m.cfg.SaveInterval
	if interval <= 0 {
		interval = 10
	}
	if m.fetchSinceFlush < interval {
		return
	}
	if err := m.saveFetchLocked(); err != nil {
		slog.Warn("checkpoint auto-save failed", slog.String("stage", "fetch"), slog.Any("error", err))
		return
	}
	m.fetchSinceFlush = 0
}

func (m *Manager) maybeFlushProcessLocked() {
	interval := m.cfg.SaveInterval
	if interval <= 0 {
		interval = 10
	}
	if m.processSinceFlush < interval {
		return
	}
	if err := m.saveProcessLocked(); err != nil {
		slog.Warn("checkpoint auto-save failed", slog.String("stage", "process"), slog.Any("error", err))
		return
	}
	m.processSinceFlush = 0
}

func (m *Manager) saveFetchLocked() error {
	return saveJSON(m.fetchPath(), m.fetch)
}

func (m *Manager) saveProcessLocked() error {
	return saveJSON(m.processPath(), m.process)
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

func loadJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", path, err)
	}
	return &v, nil
}
