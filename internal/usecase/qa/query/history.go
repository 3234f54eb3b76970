package query

import (
	"fmt"
	"strings"
)

// Turn is the minimal shape HistoryAwareQueryBuilder needs from a
// conversation turn: the prior question and its (possibly truncated)
// answer.
type Turn struct {
	Query  string
	Answer string
}

const (
	snippetMaxLen = 120
)

// BuildHistoryAwareQuery composes the current query with a bounded
// summary of the most recent maxTurns history entries. Empty or absent
// history returns the current query verbatim.
func BuildHistoryAwareQuery(current string, history []Turn, maxTurns int) string {
	if len(history) == 0 {
		return current
	}

	recent := history
	if maxTurns > 0 && len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}

	var b strings.Builder
	b.WriteString("[对话上下文: ")
	for i, t := range recent {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(truncateSnippet(t.Query))
		b.WriteString(" -> ")
		b.WriteString(truncateSnippet(t.Answer))
	}
	b.WriteString("] ")
	b.WriteString(current)
	return b.String()
}

func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetMaxLen {
		return s
	}
	return fmt.Sprintf("%s…", string(runes[:snippetMaxLen]))
}
