// Package schedule implements the Scheduler (C9): the daily/one-shot entry
// point that drives a full run through Idle->Fetching->Processing->
// Pushing->Completed, coordinating the Fetcher manager, Checkpointer,
// ContentProcessor, Enricher, ArticleStore, PriorityScorer, and
// TieredPusher. Grounded on cmd/worker/main.go's startCronWorker/
// runCrawlJob wiring (robfig/cron, timezone, readiness), generalised from
// a single RSS crawl into the multi-fetcher pipeline.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	"github.com/vigilfeed/vigilfeed/internal/usecase/checkpoint"
	"github.com/vigilfeed/vigilfeed/internal/usecase/enrich"
	"github.com/vigilfeed/vigilfeed/internal/usecase/publish"
)

// State is the scheduler's run-level state, mirroring the checkpoint
// Phase values plus the Idle state a run never persists.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StatePushing    State = "pushing"
	StateCompleted  State = "completed"
)

// FetcherManager is the C2 port: fetch every pending source, keyed by the
// same source key the Checkpointer tracks feed completion under.
type FetcherManager interface {
	SourceKeys() []string
	FetchAll(ctx context.Context, pendingSourceKeys []string) (results map[string][]entity.Article, fetchErrs map[string]error)
}

// ArticleStore is the C3 port this scheduler needs: URL-deduplicated
// persistence plus the unpushed/mark-pushed pair the push stage drives.
type ArticleStore interface {
	ExistingURLs(ctx context.Context) (map[string]bool, error)
	Save(ctx context.Context, article *entity.Article) error
	Unpushed(ctx context.Context) ([]entity.Article, error)
	MarkPushed(ctx context.Context, ids []int64) error
}

// ContentProcessor is the optional C5 port: full-text extraction for
// sources whose fetched summary is not the full article body. A nil
// Processor on Scheduler skips this step entirely.
type ContentProcessor interface {
	Process(ctx context.Context, article *entity.Article) error
}

// Scorer is the C7 port.
type Scorer interface {
	Score(ctx context.Context, article *entity.Article) float64
}

// Pusher is the C8 port.
type Pusher interface {
	Push(ctx context.Context, chatID string, candidates []publish.Scored) (publish.PushResult, error)
}

// Config controls a Scheduler's daily trigger and run-level concurrency.
type Config struct {
	ScheduleTime string // "HH:MM", local to Timezone
	Timezone     string
	ChatID       string
	WorkerPool   int // bounded concurrency for the process stage, default 10
}

func DefaultConfig() Config {
	return Config{ScheduleTime: "08:00", Timezone: "UTC", WorkerPool: 10}
}

// Scheduler drives one run of the pipeline end to end. All fields besides
// Processor are required; Processor may be nil when no source needs C5.
type Scheduler struct {
	logger *slog.Logger
	cfg    Config

	fetcher     FetcherManager
	store       ArticleStore
	checkpoints *checkpoint.Manager
	processor   ContentProcessor
	enricher    *enrich.Enricher
	scorer      Scorer
	pusher      Pusher

	mu    sync.Mutex
	state State
}

func New(logger *slog.Logger, cfg Config, fetcher FetcherManager, store ArticleStore, checkpoints *checkpoint.Manager, processor ContentProcessor, enricher *enrich.Enricher, scorer Scorer, pusher Pusher) *Scheduler {
	if cfg.WorkerPool <= 0 {
		cfg.WorkerPool = 10
	}
	return &Scheduler{
		logger:      logger,
		cfg:         cfg,
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		processor:   processor,
		enricher:    enricher,
		scorer:      scorer,
		pusher:      pusher,
		state:       StateIdle,
	}
}

// State reports the current run-level state for a status endpoint.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start registers the daily trigger on a robfig/cron scheduler local to
// cfg.Timezone and blocks until ctx is cancelled. Ported from
// cmd/worker/main.go's startCronWorker: same cron.WithLocation pattern,
// generalised from a fixed CronSchedule string to an "HH:MM"
// ScheduleTime/Timezone pair.
func (s *Scheduler) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.logger.Error("invalid timezone, using UTC", slog.String("timezone", s.cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	spec, err := cronSpecFromClock(s.cfg.ScheduleTime)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() {
		if runErr := s.RunOnce(ctx); runErr != nil {
			s.logger.Error("scheduled run failed", slog.Any("error", runErr))
		}
	}); err != nil {
		return fmt.Errorf("scheduler: add cron job: %w", err)
	}

	c.Start()
	defer c.Stop()
	s.logger.Info("scheduler started", slog.String("schedule_time", s.cfg.ScheduleTime), slog.String("timezone", s.cfg.Timezone))

	<-ctx.Done()
	return nil
}

// cronSpecFromClock converts an "HH:MM" clock string into a 5-field cron
// spec firing once daily at that local time.
func cronSpecFromClock(clock string) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("invalid schedule_time %q: %w", clock, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// RunOnce executes a single end-to-end run (spec §4.9's six steps). It is
// the one-shot entry point, and is also what the daily trigger invokes.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	existingURLs, err := s.store.ExistingURLs(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load existing urls: %w", err)
	}

	articles, err := s.runFetchStage(ctx, existingURLs)
	if err != nil {
		return err
	}

	if err := s.runProcessStage(ctx, articles); err != nil {
		return err
	}

	pushOK, err := s.runPushStage(ctx)
	if err != nil {
		return err
	}

	if !pushOK {
		// A batch failed to dispatch; the checkpoint is preserved so the
		// next run retries those articles. Do not clear.
		s.setState(StatePushing)
		return nil
	}

	if err := s.checkpoints.Clear(); err != nil {
		s.logger.Warn("checkpoint clear failed", slog.Any("error", err))
	}
	s.setState(StateCompleted)
	return nil
}

func (s *Scheduler) runFetchStage(ctx context.Context, existingURLs map[string]bool) ([]entity.Article, error) {
	s.setState(StateFetching)

	allKeys := s.fetcher.SourceKeys()
	if err := s.checkpoints.StartFetch(allKeys); err != nil {
		return nil, fmt.Errorf("scheduler: start fetch checkpoint: %w", err)
	}

	pending := s.checkpoints.PendingFeeds(allKeys)
	results, fetchErrs := s.fetcher.FetchAll(ctx, pending)

	for key, articles := range results {
		s.checkpoints.MarkFeedDone(key, articles)
	}
	for key, cause := range fetchErrs {
		s.logger.Error("fetcher failed", slog.String("source", key), slog.Any("error", cause))
		s.checkpoints.MarkFeedFailed(key, cause)
	}

	if err := s.checkpoints.CompleteFetch(); err != nil {
		return nil, fmt.Errorf("scheduler: complete fetch checkpoint: %w", err)
	}

	var fresh []entity.Article
	for _, a := range s.checkpoints.AllFetchedArticles() {
		if existingURLs[a.URL] {
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh, nil
}

func (s *Scheduler) runProcessStage(ctx context.Context, articles []entity.Article) error {
	s.setState(StateProcessing)

	if err := s.checkpoints.StartProcess(articles); err != nil {
		return fmt.Errorf("scheduler: start process checkpoint: %w", err)
	}
	pending := s.checkpoints.PendingArticles(articles)

	pool := s.cfg.WorkerPool
	if pool > len(pending) {
		pool = len(pending)
	}
	if pool <= 0 {
		if err := s.checkpoints.CompleteProcess(); err != nil {
			return fmt.Errorf("scheduler: complete process checkpoint: %w", err)
		}
		return nil
	}

	jobs := make(chan entity.Article)
	var wg sync.WaitGroup
	wg.Add(pool)
	for i := 0; i < pool; i++ {
		go func() {
			defer wg.Done()
			for article := range jobs {
				s.processOne(ctx, article)
			}
		}()
	}
	for _, a := range pending {
		jobs <- a
	}
	close(jobs)
	wg.Wait()

	if err := s.checkpoints.CompleteProcess(); err != nil {
		return fmt.Errorf("scheduler: complete process checkpoint: %w", err)
	}
	return nil
}

func (s *Scheduler) processOne(ctx context.Context, article entity.Article) {
	if s.processor != nil {
		if err := s.processor.Process(ctx, &article); err != nil {
			s.logger.Warn("content processing failed, continuing with fetched summary",
				slog.String("url", article.URL), slog.Any("error", err))
		}
	}

	if s.enricher != nil {
		enrichment, err := s.enricher.Enrich(ctx, article.Title, article.Content)
		if err != nil {
			s.logger.Warn("enrichment failed", slog.String("url", article.URL), slog.Any("error", err))
		}
		article.Summary = enrichment.Summary
		article.Category = enrichment.Category
		article.ZhSummary = enrichment.ZhSummary
	}

	if err := s.store.Save(ctx, &article); err != nil {
		s.checkpoints.MarkArticleFailed(article.URL, err)
		s.logger.Error("save failed", slog.String("url", article.URL), slog.Any("error", err))
		return
	}
	s.checkpoints.MarkArticleDone(article)
}

// runPushStage scores, tiers, and dispatches unpushed articles. It
// returns ok=false (without error) when any batch failed to dispatch, so
// RunOnce can preserve the checkpoint rather than clearing it.
func (s *Scheduler) runPushStage(ctx context.Context) (bool, error) {
	s.setState(StatePushing)

	unpushed, err := s.store.Unpushed(ctx)
	if err != nil {
		return false, fmt.Errorf("scheduler: load unpushed: %w", err)
	}
	if len(unpushed) == 0 {
		return true, nil
	}

	candidates := make([]publish.Scored, 0, len(unpushed))
	for _, a := range unpushed {
		score := 50.0
		if s.scorer != nil {
			score = s.scorer.Score(ctx, &a)
		}
		candidates = append(candidates, publish.Scored{Article: a, Score: score})
	}

	result, err := s.pusher.Push(ctx, s.cfg.ChatID, candidates)
	if err != nil {
		return false, fmt.Errorf("scheduler: push: %w", err)
	}

	if len(result.Pushed) > 0 {
		ids := make([]int64, 0, len(result.Pushed))
		for _, a := range result.Pushed {
			ids = append(ids, a.ID)
		}
		if err := s.store.MarkPushed(ctx, ids); err != nil {
			return false, fmt.Errorf("scheduler: mark pushed: %w", err)
		}
	}

	if len(result.Errors) > 0 {
		for _, pushErr := range result.Errors {
			s.logger.Error("push batch failed", slog.Any("error", pushErr))
		}
		return false, nil
	}
	return true, nil
}
