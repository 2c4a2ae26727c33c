// Package subtitle implements the Subtitle Builder: turns a MergedTranscript
// into a canonical SrtDocument (Path A/B cue segmentation) and parses SRT
// text back into cues.
package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/model"
)

const (
	maxCueChars      = 25
	naturalBreakChars = 15
	longPauseMs      = 800
	defaultCharSec   = 0.3
)

var (
	sentenceTerminators = map[rune]bool{
		'.': true, '。': true, '!': true, '！': true, '?': true, '？': true, ';': true,
	}
	naturalBreakRunes = map[rune]bool{',': true, '、': true}
	sentenceSplitRegexp = regexp.MustCompile(`[.!?。！？]+`)
	srtTimingPattern    = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)
)

// Build turns a MergedTranscript into an SrtDocument, choosing Path A when
// character-level timestamps are present and Path B otherwise.
func Build(transcript model.MergedTranscript) model.SrtDocument {
	cleaned := strip.StripTags(transcript.Text)
	if len(transcript.Timestamps) > 0 {
		return buildPathA(cleaned, transcript.Timestamps)
	}
	return buildPathB(cleaned, transcript.TotalDurationSec)
}

// buildPathA implements spec.md §4.4 Path A: character-walk cue closing.
func buildPathA(text string, timestamps []model.Timestamp) model.SrtDocument {
	runes := []rune(text)
	n := len(runes)
	if n == 0 || len(timestamps) == 0 {
		return model.SrtDocument{}
	}
	// Timestamps are character-aligned; if the transcript has more
	// characters than timestamps, clamp to the shorter length so indexing
	// never overruns.
	if len(timestamps) < n {
		n = len(timestamps)
		runes = runes[:n]
	}

	var cues []model.SubtitleCue
	cueStart := timestamps[0].StartMs
	var acc strings.Builder
	accCount := 0

	for i := 0; i < n; i++ {
		c := runes[i]
		acc.WriteRune(c)
		accCount++

		closeHere := sentenceTerminators[c] ||
			accCount >= maxCueChars ||
			(naturalBreakRunes[c] && accCount >= naturalBreakChars) ||
			i == n-1

		if !closeHere && i+1 < n {
			if timestamps[i+1].StartMs-timestamps[i].EndMs > longPauseMs {
				closeHere = true
			}
		}

		if closeHere {
			cues = append(cues, model.SubtitleCue{
				Index:    len(cues) + 1,
				StartSec: float64(cueStart) / 1000.0,
				EndSec:   float64(timestamps[i].EndMs) / 1000.0,
				Text:     strings.TrimSpace(acc.String()),
			})
			acc.Reset()
			accCount = 0
			if i+1 < n {
				cueStart = timestamps[i+1].StartMs
			}
		}
	}
	return model.SrtDocument{Cues: cues}
}

// buildPathB implements spec.md §4.4 Path B: sentence-regex split with
// proportional or fixed per-character duration allocation.
func buildPathB(text string, totalDurationSec float64) model.SrtDocument {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return model.SrtDocument{}
	}

	totalChars := 0
	for _, s := range sentences {
		totalChars += len([]rune(s))
	}

	var cues []model.SubtitleCue
	cursor := 0.0
	for i, s := range sentences {
		charCount := len([]rune(s))
		var duration float64
		if totalDurationSec > 0 && totalChars > 0 {
			duration = totalDurationSec * float64(charCount) / float64(totalChars)
		} else {
			duration = float64(charCount) * defaultCharSec
		}

		end := cursor + duration
		if totalDurationSec > 0 && end > totalDurationSec {
			end = totalDurationSec
		}

		cues = append(cues, model.SubtitleCue{
			Index:    i + 1,
			StartSec: cursor,
			EndSec:   end,
			Text:     s,
		})
		cursor = end
	}
	return model.SrtDocument{Cues: cues}
}

// splitSentences splits text on sentence-ending punctuation, dropping
// fragments of length ≤ 1 (spec.md §4.4 Path B).
func splitSentences(text string) []string {
	parts := sentenceSplitRegexp.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if len([]rune(trimmed)) <= 1 {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// Format renders an SrtDocument as canonical SRT text: 1-based contiguous
// indices, HH:MM:SS,mmm timestamps (spec.md §4.4).
func Format(doc model.SrtDocument) string {
	var b strings.Builder
	for i, cue := range doc.Cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(cue.StartSec), formatTimestamp(cue.EndSec), cue.Text)
	}
	return b.String()
}

func formatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	totalMs := int64(sec*1000 + 0.5)
	ms := totalMs % 1000
	totalSec := totalMs / 1000
	s := totalSec % 60
	totalMin := totalSec / 60
	m := totalMin % 60
	h := totalMin / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// IsSRT reports whether text contains at least one HH:MM:SS timing line;
// non-SRT input is routed through Path B instead (spec.md §4.4).
func IsSRT(text string) bool {
	return srtTimingPattern.MatchString(text)
}

// Parse parses SRT text into a cue list. Malformed cues are logged and
// skipped, but the index counter still advances so subsequent cues can
// still be recovered (spec.md §4.4).
func Parse(text string) model.SrtDocument {
	if !IsSRT(text) {
		return Build(model.MergedTranscript{Text: text})
	}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(normalized), "\n\n")

	var cues []model.SubtitleCue
	nextIndex := 1
	var lastEnd float64 = -1

	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			nextIndex++
			continue
		}

		timingLineIdx := 0
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			timingLineIdx = 1
		}
		if timingLineIdx >= len(lines) {
			nextIndex++
			continue
		}

		m := srtTimingPattern.FindStringSubmatch(lines[timingLineIdx])
		if m == nil {
			log.Warn().Int("block_index", nextIndex).Msg("malformed SRT cue: no timing line, skipping")
			nextIndex++
			continue
		}

		start := parseTimingMatch(m[1:5])
		end := parseTimingMatch(m[5:9])
		if end < start || start < lastEnd {
			log.Warn().Int("block_index", nextIndex).Msg("malformed SRT cue: out-of-order or negative duration, skipping")
			nextIndex++
			continue
		}

		textLines := lines[timingLineIdx+1:]
		cueText := strings.TrimSpace(strings.Join(textLines, "\n"))

		cues = append(cues, model.SubtitleCue{
			Index:    len(cues) + 1,
			StartSec: start,
			EndSec:   end,
			Text:     cueText,
		})
		lastEnd = end
		nextIndex++
	}

	return model.SrtDocument{Cues: cues}
}

func parseTimingMatch(parts []string) float64 {
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	ms, _ := strconv.Atoi(parts[3])
	return float64(h*3600+m*60+s) + float64(ms)/1000.0
}
