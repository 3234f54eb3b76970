// Package query parses a free-form user question into a ParsedQuery and
// composes history-aware retrieval strings. The detection order and
// keyword/constant tables are ported from the reference implementation's
// query_processor module; see DESIGN.md for the grounding note.
package query

import (
	"regexp"
	"strings"
	"unicode"
)

// Type classifies the user's intent.
type Type string

const (
	TypeGeneral       Type = "general"
	TypeVulnerability Type = "vulnerability"
	TypeTopic         Type = "topic"
	TypeSource        Type = "source"
	TypeTimeRange     Type = "time_range"
)

// TimeRange is an inclusive detected date window; Start/End use the same
// format the caller's clock works in (callers resolve relative phrases
// against time.Now()).
type TimeRange struct {
	Days int // number of days back from now
}

// ParsedQuery is the result of parsing a raw user query.
type ParsedQuery struct {
	Type      Type
	Keywords  []string
	Filters   map[string]string
	TimeRange *TimeRange
	CVEIDs    []string
}

var cvePattern = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)

var vulnerabilityKeywords = []string{
	"漏洞", "exploit", "zero-day", "0day", "rce", "提权", "注入", "溢出",
	"vulnerability", "cve", "poc", "exp", "越权", "反序列化", "后门",
	"backdoor", "payload", "攻击", "安全漏洞",
}

// sourceKeywords maps a keyword to the source_type it names. Iteration
// order matters only insofar as map order is not guaranteed in Go — the
// reference implementation iterates a dict in insertion order; we mirror
// that with an explicit ordered slice so "first match wins" is well
// defined.
var sourceKeywords = []struct {
	keyword    string
	sourceType string
}{
	{"arxiv", "arxiv"},
	{"rss", "rss"},
	{"博客", "rss"},
	{"blog", "blog"},
	{"nvd", "nvd"},
	{"kev", "kev"},
	{"huggingface", "huggingface"},
	{"hugging face", "huggingface"},
	{"hf", "huggingface"},
	{"pwc", "pwc"},
	{"papers with code", "pwc"},
	{"dblp", "dblp"},
	{"github", "github"},
}

var timeKeywords = map[string]int{
	"今天":       1,
	"今日":       1,
	"昨天":       2,
	"这周":       7,
	"本周":       7,
	"这个月":      30,
	"本月":       30,
	"最近":       7,
	"recent":    7,
	"today":     1,
	"yesterday": 2,
	"this week": 7,
	"this month": 30,
}

var daysPattern = regexp.MustCompile(`(\d+)\s*天内`)
var weeksPattern = regexp.MustCompile(`(?i)last\s+(\d+)\s+weeks?`)
var monthsPattern = regexp.MustCompile(`(?i)last\s+(\d+)\s+months?`)
var englishDaysPattern = regexp.MustCompile(`(?i)last\s+(\d+)\s+days?`)

var topicKeywords = map[string]string{
	"ai":     "ai_ml",
	"ml":     "ai_ml",
	"机器学习":  "ai_ml",
	"人工智能":  "ai_ml",
	"llm":    "ai_ml",
	"大模型":   "ai_ml",
	"安全":    "security",
	"隐私":    "security",
	"security": "security",
	"privacy":  "security",
	"系统":    "systems",
	"架构":    "systems",
	"system": "systems",
	"architecture": "systems",
}

var stopWords = map[string]bool{
	"的": true, "了": true, "是": true, "在": true, "和": true, "有": true,
	"我": true, "你": true, "他": true, "这": true, "那": true, "就": true,
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "in": true, "and": true, "for": true, "what": true,
	"how": true, "can": true, "please": true, "tell": true, "me": true,
	"about": true,
}

// Parse classifies a raw query and extracts keywords/filters/time range
// following the fixed detection order: CVE id, vulnerability keyword,
// source keyword, time-range keyword/pattern, topic keyword, else general.
func Parse(raw string) ParsedQuery {
	pq := ParsedQuery{
		Type:     TypeGeneral,
		Keywords: extractKeywords(raw),
		Filters:  map[string]string{},
	}

	lower := strings.ToLower(raw)

	if ids := cvePattern.FindAllString(strings.ToUpper(raw), -1); len(ids) > 0 {
		pq.Type = TypeVulnerability
		pq.CVEIDs = dedupeStrings(ids)
		pq.TimeRange = detectTimeRange(lower)
		return pq
	}

	if containsAny(lower, vulnerabilityKeywords) {
		pq.Type = TypeVulnerability
		pq.TimeRange = detectTimeRange(lower)
		return pq
	}

	if st, ok := detectSourceType(lower); ok {
		pq.Type = TypeSource
		pq.Filters["source_type"] = st
		return pq
	}

	if tr := detectTimeRange(lower); tr != nil {
		pq.Type = TypeTimeRange
		pq.TimeRange = tr
		return pq
	}

	if topic, ok := detectTopic(lower); ok {
		pq.Type = TypeTopic
		pq.Filters["category"] = topic
		return pq
	}

	return pq
}

func detectSourceType(lower string) (string, bool) {
	for _, sk := range sourceKeywords {
		if strings.Contains(lower, sk.keyword) {
			return sk.sourceType, true
		}
	}
	return "", false
}

func detectTimeRange(lower string) *TimeRange {
	for kw, days := range timeKeywords {
		if strings.Contains(lower, kw) {
			return &TimeRange{Days: days}
		}
	}
	if m := daysPattern.FindStringSubmatch(lower); m != nil {
		return &TimeRange{Days: atoiSafe(m[1])}
	}
	if m := weeksPattern.FindStringSubmatch(lower); m != nil {
		return &TimeRange{Days: atoiSafe(m[1]) * 7}
	}
	if m := monthsPattern.FindStringSubmatch(lower); m != nil {
		return &TimeRange{Days: atoiSafe(m[1]) * 30}
	}
	if m := englishDaysPattern.FindStringSubmatch(lower); m != nil {
		return &TimeRange{Days: atoiSafe(m[1])}
	}
	return nil
}

func detectTopic(lower string) (string, bool) {
	for kw, topic := range topicKeywords {
		if strings.Contains(lower, kw) {
			return topic, true
		}
	}
	return "", false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// extractKeywords splits on whitespace/punctuation, expands long CJK runs
// into overlapping 2- and 3-grams, drops stop words and sub-2-char tokens,
// and deduplicates case-insensitively while preserving first-seen order.
func extractKeywords(raw string) []string {
	tokens := splitTokens(raw)

	var out []string
	seen := map[string]bool{}
	for _, tok := range tokens {
		for _, cand := range expandToken(tok) {
			cand = strings.TrimSpace(cand)
			if len(cand) < 2 {
				continue
			}
			key := strings.ToLower(cand)
			if stopWords[key] {
				continue
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, cand)
		}
	}
	return out
}

func splitTokens(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		if unicode.IsSpace(r) {
			return true
		}
		if unicode.IsPunct(r) {
			return true
		}
		return false
	})
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// expandToken returns the token itself, plus (for CJK runs longer than 4
// glyphs) overlapping 2-gram and 3-gram substrings.
func expandToken(tok string) []string {
	runes := []rune(tok)
	allCJK := len(runes) > 0
	for _, r := range runes {
		if !isCJK(r) {
			allCJK = false
			break
		}
	}

	if !allCJK || len(runes) <= 4 {
		return []string{tok}
	}

	out := []string{tok}
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(runes); i++ {
			out = append(out, string(runes[i:i+n]))
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// BuildSearchFilters translates a ParsedQuery into the filter map the
// knowledge base Search operation understands.
func BuildSearchFilters(pq ParsedQuery) map[string]any {
	filters := map[string]any{}
	for k, v := range pq.Filters {
		filters[k] = v
	}
	if len(pq.CVEIDs) > 0 {
		filters["cve_ids"] = pq.CVEIDs
	}
	return filters
}

// Description renders a short human-readable label for the parsed query,
// useful for logs and the QAResponse's query_type field.
func Description(pq ParsedQuery) string {
	switch pq.Type {
	case TypeVulnerability:
		if len(pq.CVEIDs) > 0 {
			return "vulnerability query (" + strings.Join(pq.CVEIDs, ", ") + ")"
		}
		return "vulnerability query"
	case TypeSource:
		return "source-filtered query (" + pq.Filters["source_type"] + ")"
	case TypeTopic:
		return "topic query (" + pq.Filters["category"] + ")"
	case TypeTimeRange:
		return "time-range query"
	default:
		return "general query"
	}
}
