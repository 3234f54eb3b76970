package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	resp string
	err  error
}

func (f fakeCompleter) Summarize(ctx context.Context, text string) (string, error) {
	return f.resp, f.err
}

func TestEnrich_ParsesAllFields(t *testing.T) {
	e := New(fakeCompleter{resp: "SUMMARY: a concise summary\nCATEGORY: 漏洞\nZH_SUMMARY: 一个简要总结"})

	out, err := e.Enrich(context.Background(), "title", "content")
	require.NoError(t, err)
	assert.Equal(t, "a concise summary", out.Summary)
	assert.Equal(t, "漏洞", out.Category)
	assert.Equal(t, "一个简要总结", out.ZhSummary)
}

func TestEnrich_UnrecognizedCategoryCollapsesToDefault(t *testing.T) {
	e := New(fakeCompleter{resp: "SUMMARY: s\nCATEGORY: 不存在\nZH_SUMMARY: z"})

	out, err := e.Enrich(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, out.Category)
}

func TestEnrich_MissingFieldsUseDefaults(t *testing.T) {
	e := New(fakeCompleter{resp: "not a labelled response"})

	out, err := e.Enrich(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, "", out.Summary)
	assert.Equal(t, DefaultCategory, out.Category)
	assert.Equal(t, "", out.ZhSummary)
}

func TestEnrich_CompleterErrorReturnsDefaultCategory(t *testing.T) {
	e := New(fakeCompleter{err: errors.New("timeout")})

	out, err := e.Enrich(context.Background(), "t", "c")
	assert.Error(t, err)
	assert.Equal(t, DefaultCategory, out.Category)
}

func TestSynthesize_WithContextCitesKB(t *testing.T) {
	var captured string
	e := New(captureCompleter{fn: func(text string) { captured = text }})

	_, err := e.Synthesize(context.Background(), "what happened?", []string{"snippet one"}, "")
	require.NoError(t, err)
	assert.Contains(t, captured, synthesisWithContextPrompt)
	assert.Contains(t, captured, "snippet one")
}

func TestSynthesize_NoContextUsesGeneralPrompt(t *testing.T) {
	var captured string
	e := New(captureCompleter{fn: func(text string) { captured = text }})

	_, err := e.Synthesize(context.Background(), "what happened?", nil, "")
	require.NoError(t, err)
	assert.Contains(t, captured, synthesisNoContextPrompt)
	assert.False(t, strings.Contains(captured, "KB context"))
}

type captureCompleter struct {
	fn func(text string)
}

func (c captureCompleter) Summarize(ctx context.Context, text string) (string, error) {
	c.fn(text)
	return "answer", nil
}
