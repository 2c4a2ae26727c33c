package translate

import "strings"

const (
	defaultChunkTarget = 2000
	defaultChunkMin    = 1600
	defaultChunkMax    = 2400
)

var sentenceEndings = map[rune]bool{'.': true, '!': true, '?': true, '。': true, '！': true, '？': true}

// SplitChunks implements spec.md §4.5's cut-and-scan chunker: walk forward in
// steps of chunkTarget chars; at each cut, scan forward up to
// (chunkMax-chunkTarget) chars for the nearest sentence-ending punctuation.
func SplitChunks(text string, chunkTarget, chunkMax int) []string {
	runes := []rune(text)
	if len(runes) <= chunkTarget {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkTarget
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		scanLimit := end + (chunkMax - chunkTarget)
		if scanLimit > len(runes) {
			scanLimit = len(runes)
		}
		for i := end; i < scanLimit; i++ {
			if sentenceEndings[runes[i]] {
				cut = i + 1
				break
			}
		}

		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	return chunks
}

// Join reassembles translated chunks in original order, per spec.md §4.5.
func Join(chunks []string) string {
	return strings.Join(chunks, " ")
}
