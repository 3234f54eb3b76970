package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	domainfetch "github.com/vigilfeed/vigilfeed/internal/domain/fetch"
)

// ManagerConfig controls the FetcherManager's (C2) concurrency.
type ManagerConfig struct {
	MaxWorkers int // default 5, matches fetcher_manager.py's ThreadPoolExecutor default
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{MaxWorkers: 5}
}

// Manager is the FetcherManager (C2): it runs every enabled, pending
// Fetcher concurrently on a bounded worker pool and never short-circuits
// on a single failure. It satisfies schedule.FetcherManager.
type Manager struct {
	fetchers []domainfetch.Fetcher
	cfg      ManagerConfig
}

func NewManager(cfg ManagerConfig, fetchers ...domainfetch.Fetcher) *Manager {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	return &Manager{fetchers: fetchers, cfg: cfg}
}

// Register adds a Fetcher to the managed set.
func (m *Manager) Register(f domainfetch.Fetcher) {
	m.fetchers = append(m.fetchers, f)
}

// SourceKeys lists the Key() of every currently enabled Fetcher, for the
// Checkpointer's total/pending feed tracking.
func (m *Manager) SourceKeys() []string {
	keys := make([]string, 0, len(m.fetchers))
	for _, f := range m.fetchers {
		if f.Enabled() {
			keys = append(keys, f.Key())
		}
	}
	return keys
}

// FetchAll runs every enabled, pending Fetcher concurrently, capped at
// cfg.MaxWorkers in flight, and collects results keyed by Fetcher.Key().
// A Fetcher panicking despite the interface contract is recovered and
// turned into an error result rather than crashing the run (spec §4.2).
func (m *Manager) FetchAll(ctx context.Context, pendingKeys []string) (map[string][]entity.Article, map[string]error) {
	pending := make(map[string]bool, len(pendingKeys))
	for _, k := range pendingKeys {
		pending[k] = true
	}

	sem := make(chan struct{}, m.cfg.MaxWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string][]entity.Article)
	errs := make(map[string]error)

	for _, f := range m.fetchers {
		if !f.Enabled() || !pending[f.Key()] {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f domainfetch.Fetcher) {
			defer wg.Done()
			defer func() { <-sem }()

			result := m.safeFetch(ctx, f)

			mu.Lock()
			defer mu.Unlock()
			// A multi-endpoint adapter (DBLP, blog) may report a
			// combined sub-feed error alongside partial items: its
			// result still counts as done, not failed, so the
			// articles it did recover are not discarded.
			if len(result.Items) > 0 {
				results[f.Key()] = result.Items
			}
			if result.Error != nil {
				errs[f.Key()] = result.Error
			}
		}(f)
	}
	wg.Wait()
	return results, errs
}

func (m *Manager) safeFetch(ctx context.Context, f domainfetch.Fetcher) (result domainfetch.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domainfetch.FetchResult{SourceType: f.Key(), Error: fmt.Errorf("fetcher panicked: %v", r)}
		}
	}()
	return f.Fetch(ctx)
}
