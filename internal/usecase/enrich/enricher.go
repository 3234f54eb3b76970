// Package enrich implements the Enricher/LLM client (C6): per-article
// summary/category/zh_summary extraction, and RAG synthesis for the QA
// engine. It wraps the existing Summarizer port (internal/usecase/fetch's
// Claude/OpenAI implementations) with a structured prompt and a
// parse-or-default fallback, rather than duplicating the retry/circuit
// breaker machinery already built into those implementations.
package enrich

import (
	"context"
	"fmt"
	"strings"
)

// DefaultCategory is returned when the model's CATEGORY line is missing or
// not one of allowedCategories.
const DefaultCategory = "其他"

var allowedCategories = map[string]bool{
	"漏洞":   true,
	"工具":   true,
	"研究":   true,
	"事件":   true,
	"会议":   true,
	"其他":   true,
}

// Completer is the underlying chat-completion port; it is satisfied by
// both internal/infra/summarizer.OpenAI and .Claude, whose Summarize
// methods already carry retry/circuit-breaker/timeout behaviour.
type Completer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Enrichment is the per-article output of Enrich.
type Enrichment struct {
	Summary   string
	Category  string
	ZhSummary string
}

// Enricher produces structured enrichment and RAG answers from an
// underlying LLM completion client.
type Enricher struct {
	completer Completer
}

func New(completer Completer) *Enricher {
	return &Enricher{completer: completer}
}

const enrichSystemPrompt = `You are a technical content analyst. Given an article's title and content, respond with exactly three labelled lines and nothing else:
SUMMARY: <a concise summary of the article>
CATEGORY: <one of 漏洞, 工具, 研究, 事件, 会议, 其他>
ZH_SUMMARY: <a Chinese-language summary of the article>`

// Enrich calls the completer with a fixed system prompt and parses the
// labelled response. Any missing or unparseable field falls back to a
// safe default rather than failing the whole call.
func (e *Enricher) Enrich(ctx context.Context, title, content string) (Enrichment, error) {
	prompt := fmt.Sprintf("%s\n\nTitle: %s\n\nContent: %s", enrichSystemPrompt, title, content)

	raw, err := e.completer.Summarize(ctx, prompt)
	if err != nil {
		return Enrichment{Category: DefaultCategory}, fmt.Errorf("enrich: %w", err)
	}

	return parseEnrichment(raw), nil
}

func parseEnrichment(raw string) Enrichment {
	result := Enrichment{Category: DefaultCategory}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			result.Summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "CATEGORY:"):
			cat := strings.TrimSpace(strings.TrimPrefix(line, "CATEGORY:"))
			if allowedCategories[cat] {
				result.Category = cat
			}
		case strings.HasPrefix(line, "ZH_SUMMARY:"):
			result.ZhSummary = strings.TrimSpace(strings.TrimPrefix(line, "ZH_SUMMARY:"))
		}
	}

	return result
}

const (
	synthesisWithContextPrompt = "You are a technical assistant. You have access to a KB as reference. Prefer KB when relevant; answer in Chinese; cite sources at the end."
	synthesisNoContextPrompt   = "You are a technical assistant. Answer from general knowledge; be honest about uncertainty."
)

// Synthesize produces a free-form RAG answer from a query, its retrieved
// context snippets, and prior conversation turns. An empty context
// switches to the no-context system prompt rather than fabricating
// citations.
func (e *Enricher) Synthesize(ctx context.Context, query string, contextSnippets []string, history string) (string, error) {
	systemPrompt := synthesisNoContextPrompt
	var contextBlock string
	if len(contextSnippets) > 0 {
		systemPrompt = synthesisWithContextPrompt
		contextBlock = "\n\nKB context:\n" + strings.Join(contextSnippets, "\n---\n")
	}

	var historyBlock string
	if history != "" {
		historyBlock = "\n\nConversation history:\n" + history
	}

	prompt := fmt.Sprintf("%s%s%s\n\nQuestion: %s", systemPrompt, historyBlock, contextBlock, query)

	answer, err := e.completer.Summarize(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return answer, nil
}
