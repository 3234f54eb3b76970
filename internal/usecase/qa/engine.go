// Package qa orchestrates the retrieval-augmented question-answering
// pipeline (C17): parse the question, pull conversation history, retrieve
// supporting chunks, synthesize an answer through the LLM, score
// confidence, and record the turn. Grounded on internal/usecase/ai's
// Service method shape (feature-flag guard, validation, request tracing,
// structured logging around a single orchestrating call), generalized
// from a single-shot Ask to the multi-stage pipeline below.
package qa

import (
	"context"
	"log/slog"
	"strings"

	convo "github.com/vigilfeed/vigilfeed/internal/usecase/qa/context"
	"github.com/vigilfeed/vigilfeed/internal/usecase/qa/query"
	"github.com/vigilfeed/vigilfeed/internal/usecase/qa/retrieve"
)

// QueryType mirrors query.Type for callers that only depend on this
// package.
type QueryType = query.Type

// Source is one citation surfaced alongside an answer.
type Source struct {
	Title      string
	URL        string
	SourceType string
	Score      float64
}

// Response is the QAEngine's sole return shape (spec's QAResponse).
type Response struct {
	Answer     string
	Sources    []Source
	Confidence float64
	QueryType  QueryType
}

// Synthesizer is the LLM port used for answer generation.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, contextSnippets []string, history string) (string, error)
}

// Config holds the QAEngine's tunables, matching
// knowledge_qa.qa_engine.* in spec §"Config keys".
type Config struct {
	MaxRetrievedDocs  int
	MinRelevanceScore float64
	AnswerMaxLength   int
	MaxHistoryTurns   int
}

func DefaultConfig() Config {
	return Config{
		MaxRetrievedDocs:  5,
		MinRelevanceScore: 0.5,
		AnswerMaxLength:   1000,
		MaxHistoryTurns:   3,
	}
}

const truncationMarker = "…（已截断）"

// Engine composes C12 (query.Parse) -> C15 (context.Manager) -> C14
// (retrieve.Retriever) -> C6 (Synthesizer) per spec §4.17.
type Engine struct {
	retriever *retrieve.Retriever
	history   *convo.Manager
	llm       Synthesizer
	cfg       Config
	logger    *slog.Logger
}

func New(logger *slog.Logger, retriever *retrieve.Retriever, history *convo.Manager, llm Synthesizer, cfg Config) *Engine {
	if cfg.MaxRetrievedDocs <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{retriever: retriever, history: history, llm: llm, cfg: cfg, logger: logger}
}

// ProcessQuery runs the full nine-step pipeline from spec §4.17. It never
// returns an error for a user-facing failure mode (invalid query, empty
// retrieval): those become a Response with a canned answer and a turn is
// still recorded, per step 9.
func (e *Engine) ProcessQuery(ctx context.Context, rawQuery, userID string) Response {
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		resp := Response{Answer: "请输入您的问题。", Confidence: 0, QueryType: query.TypeGeneral}
		e.recordTurn(userID, rawQuery, resp)
		return resp
	}

	parsed := query.Parse(trimmed)
	filters := query.BuildSearchFilters(parsed)
	historyTurns := e.history.HistoryTurns(userID)

	docs, err := e.retriever.Retrieve(ctx, trimmed, historyTurns, e.cfg.MaxRetrievedDocs, filters)
	if err != nil {
		e.logger.Warn("qa retrieval failed", slog.Any("error", err), slog.String("user_id", userID))
		docs = nil
	}

	relevant := filterRelevant(docs, e.cfg.MinRelevanceScore)

	var resp Response
	if len(relevant) == 0 {
		resp = e.synthesizeNoContext(ctx, trimmed, parsed.Type)
	} else {
		resp = e.synthesizeWithContext(ctx, trimmed, relevant, historyTurns, parsed.Type)
	}

	resp.Answer = truncateAnswer(resp.Answer, e.cfg.AnswerMaxLength)
	e.recordTurn(userID, trimmed, resp)
	return resp
}

func (e *Engine) synthesizeNoContext(ctx context.Context, q string, qt QueryType) Response {
	answer, err := e.llm.Synthesize(ctx, q, nil, "")
	if err != nil {
		e.logger.Warn("qa synthesis failed", slog.Any("error", err))
		answer = "抱歉，暂时无法回答这个问题。"
	}
	return Response{Answer: answer, Sources: nil, Confidence: 0.3, QueryType: qt}
}

func (e *Engine) synthesizeWithContext(ctx context.Context, q string, docs []retrieve.Result, historyTurns []query.Turn, qt QueryType) Response {
	snippets := make([]string, len(docs))
	for i, d := range docs {
		snippets[i] = d.Content
	}

	historyText := formatHistory(historyTurns, e.cfg.MaxHistoryTurns)

	answer, err := e.llm.Synthesize(ctx, q, snippets, historyText)
	if err != nil {
		e.logger.Warn("qa synthesis failed", slog.Any("error", err))
		answer = "抱歉，暂时无法回答这个问题。"
	}

	return Response{
		Answer:     answer,
		Sources:    extractSources(docs),
		Confidence: confidence(docs, e.cfg.MaxRetrievedDocs),
		QueryType:  qt,
	}
}

func (e *Engine) recordTurn(userID, q string, resp Response) {
	if e.history == nil {
		return
	}
	urls := make([]string, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		urls = append(urls, s.URL)
	}
	e.history.AddTurn(userID, convo.Turn{Query: q, Answer: resp.Answer, Sources: urls})
}

func filterRelevant(docs []retrieve.Result, minScore float64) []retrieve.Result {
	out := make([]retrieve.Result, 0, len(docs))
	for _, d := range docs {
		if d.Score >= minScore {
			out = append(out, d)
		}
	}
	return out
}

// extractSources deduplicates by url, preserving first-seen order, per
// spec §4.17 step 7.
func extractSources(docs []retrieve.Result) []Source {
	seen := map[string]bool{}
	out := make([]Source, 0, len(docs))
	for _, d := range docs {
		url, _ := d.Metadata["url"].(string)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		title, _ := d.Metadata["title"].(string)
		sourceType, _ := d.Metadata["source_type"].(string)
		out = append(out, Source{Title: title, URL: url, SourceType: sourceType, Score: d.Score})
	}
	return out
}

// confidence implements spec §4.17 step 8:
// 0.7*mean(scores) + 0.3*min(len(docs)/max_retrieved_docs, 1), clamped.
func confidence(docs []retrieve.Result, maxRetrievedDocs int) float64 {
	if len(docs) == 0 {
		return 0
	}

	sum := 0.0
	for _, d := range docs {
		sum += d.Score
	}
	mean := sum / float64(len(docs))

	coverage := 1.0
	if maxRetrievedDocs > 0 {
		coverage = float64(len(docs)) / float64(maxRetrievedDocs)
		if coverage > 1 {
			coverage = 1
		}
	}

	c := 0.7*mean + 0.3*coverage
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// truncateAnswer cuts answer to maxLen at the nearest sentence boundary
// at or before the limit, appending a truncation marker when cut.
func truncateAnswer(answer string, maxLen int) string {
	runes := []rune(answer)
	if maxLen <= 0 || len(runes) <= maxLen {
		return answer
	}

	window := string(runes[:maxLen])
	boundary := lastSentenceBoundary(window)
	if boundary <= 0 {
		boundary = len(window)
	}
	return window[:boundary] + truncationMarker
}

var sentenceEnders = []string{"。", "！", "？", ". ", "! ", "? "}

func lastSentenceBoundary(s string) int {
	best := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(s, ender); idx >= 0 {
			end := idx + len(ender)
			if end > best {
				best = end
			}
		}
	}
	return best
}

// formatHistory renders up to maxTurns most recent turns as a flat text
// block for the synthesis prompt's history section.
func formatHistory(turns []query.Turn, maxTurns int) string {
	if len(turns) == 0 {
		return ""
	}
	recent := turns
	if maxTurns > 0 && len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}

	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		lines = append(lines, "Q: "+t.Query+"\nA: "+t.Answer)
	}
	return strings.Join(lines, "\n")
}
