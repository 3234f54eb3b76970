package knowledge

import "strings"

// ChunkConfig controls how article text is split into overlapping windows.
type ChunkConfig struct {
	Size    int // max characters per chunk, default 500
	Overlap int // overlap between consecutive chunks, default 50
}

func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 500, Overlap: 50}
}

var (
	sentenceEndings = []string{"。", "！", "？", ".", "!", "?", "\n\n", "\n"}
	clauseEndings   = []string{"；", "，", ";", ",", "：", ":"}
)

// ChunkText splits text into pieces no longer than cfg.Size, preferring to
// break at sentence boundaries over hard character cuts, with cfg.Overlap
// characters of overlap carried from the actual break point into the next
// chunk.
func ChunkText(text string, cfg ChunkConfig) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= cfg.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + cfg.Size
		if end > n {
			end = n
		}

		if end < n {
			if boundary := findSentenceBoundary(runes, start, end); boundary > start {
				end = boundary
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= n {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findSentenceBoundary looks for the best place to cut within [start, end),
// searching only the back half of the window so chunks aren't split too
// early. It tries sentence-ending punctuation first, then clause-ending
// punctuation, and falls back to end if neither is found.
func findSentenceBoundary(runes []rune, start, end int) int {
	searchStart := start + (end-start)/2
	search := string(runes[searchStart:end])

	for _, ending := range sentenceEndings {
		if pos := strings.LastIndex(search, ending); pos != -1 {
			return searchStart + len([]rune(search[:pos])) + len([]rune(ending))
		}
	}

	for _, ending := range clauseEndings {
		if pos := strings.LastIndex(search, ending); pos != -1 {
			return searchStart + len([]rune(search[:pos])) + len([]rune(ending))
		}
	}

	return end
}
