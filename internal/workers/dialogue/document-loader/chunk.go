// internal/workers/dialogue/document-loader/chunk.go
package documentloader

import "strings"

// Break points tried, best first, when a chunk must end early.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunk splits text into pieces of at most size runes, each starting overlap
// runes before the previous one ended. Chunks end at the strongest separator
// found in the second half of the window.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	r := []rune(text)
	var chunks []string
	for start := 0; start < len(r); {
		end := start + size
		if end >= len(r) {
			if c := strings.TrimSpace(string(r[start:])); c != "" {
				chunks = append(chunks, c)
			}
			break
		}
		end = breakPoint(r, start, end)
		if c := strings.TrimSpace(string(r[start:end])); c != "" {
			chunks = append(chunks, c)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func breakPoint(r []rune, start, end int) int {
	floor := start + (end-start)/2
	for _, sep := range separators {
		s := []rune(sep)
		for i := end - len(s); i >= floor; i-- {
			if hasAt(r, i, s) {
				return i + len(s)
			}
		}
	}
	return end
}

func hasAt(r []rune, i int, s []rune) bool {
	if i < 0 || i+len(s) > len(r) {
		return false
	}
	for j := range s {
		if r[i+j] != s[j] {
			return false
		}
	}
	return true
}
