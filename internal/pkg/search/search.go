// Package search holds small helpers shared by the keyword-search code in the
// HTTP handlers and the persistence adapters: parsing a space-separated
// keyword query string into individual terms, and escaping those terms for
// use in a SQL ILIKE/LIKE pattern.
package search

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxKeywordCount caps how many space-separated terms a single search
// query may contain.
const DefaultMaxKeywordCount = 10

// DefaultMaxKeywordLength caps the length of any individual keyword.
const DefaultMaxKeywordLength = 100

// DefaultSearchTimeout bounds how long a keyword search query may run before
// its context is canceled.
const DefaultSearchTimeout = 5 * time.Second

// ParseKeywords splits a space-separated keyword string into individual
// terms, dropping empty fields. It rejects queries with more than maxCount
// terms or any term longer than maxLen, since both are table-scan footguns
// for the ILIKE-based search this feeds.
func ParseKeywords(raw string, maxCount, maxLen int) ([]string, error) {
	fields := strings.Fields(raw)
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if len(f) > maxLen {
			return nil, fmt.Errorf("keyword %q exceeds maximum length of %d characters", f, maxLen)
		}
		keywords = append(keywords, f)
	}
	if len(keywords) > maxCount {
		return nil, fmt.Errorf("too many keywords: got %d, maximum is %d", len(keywords), maxCount)
	}
	return keywords, nil
}

// EscapeILIKE escapes the ILIKE/LIKE wildcard characters (\, %, _) in s and
// wraps the result in % wildcards for a substring match. Backslash must be
// escaped first, otherwise the backslashes inserted for % and _ would
// themselves be re-escaped.
func EscapeILIKE(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return "%" + s + "%"
}
