package summary

import (
	"strings"
	"testing"

	"subtitle-pipeline/internal/model"
)

func TestCueTextJoinsNonEmptyCues(t *testing.T) {
	doc := model.SrtDocument{Cues: []model.SubtitleCue{
		{Text: "Hello and welcome."},
		{Text: ""},
		{Text: "  "},
		{Text: "Let's get started."},
	}}

	got := cueText(doc)
	want := "Hello and welcome. Let's get started."
	if got != want {
		t.Errorf("cueText() = %q, want %q", got, want)
	}
}

func TestRemoveFillerWordsStripsKnownPatterns(t *testing.T) {
	input := "so I think this is um a great idea, you know [Music] right"
	got := removeFillerWords(input)

	for _, forbidden := range []string{" um ", " you know ", "[Music]"} {
		if strings.Contains(got, forbidden) {
			t.Errorf("removeFillerWords() left %q in %q", forbidden, got)
		}
	}
}

func TestRemoveDuplicateSentencesDropsNearRepeats(t *testing.T) {
	input := "This is the introduction to the video. This is the introduction to the video. Now we move to the main topic."
	got := removeDuplicateSentences(input)

	if strings.Count(got, "introduction to the video") != 1 {
		t.Errorf("expected the repeated sentence to be collapsed, got %q", got)
	}
}

func TestIsSimilarSentenceAboveThreshold(t *testing.T) {
	if !isSimilarSentence("the quick brown fox jumps", "the quick brown fox leaps") {
		t.Error("expected high word-overlap sentences to be treated as similar")
	}
}

func TestIsSimilarSentenceBelowThreshold(t *testing.T) {
	if isSimilarSentence("the quick brown fox", "a slow green turtle") {
		t.Error("expected unrelated sentences not to be treated as similar")
	}
}

func TestTruncateIfTooLongLeavesShortTextUntouched(t *testing.T) {
	text := "short transcript"
	got, truncated := truncateIfTooLong(text)
	if truncated {
		t.Error("expected short text not to be truncated")
	}
	if got != text {
		t.Errorf("truncateIfTooLong() = %q, want %q", got, text)
	}
}

func TestTruncateIfTooLongAbbreviatesLongText(t *testing.T) {
	text := strings.Repeat("word ", 5000)
	got, truncated := truncateIfTooLong(text)

	if !truncated {
		t.Error("expected long text to be truncated")
	}
	if !strings.Contains(got, "[content abbreviated]") {
		t.Error("expected truncation marker in output")
	}
	if len(got) >= len(text) {
		t.Error("expected truncated text to be shorter than the original")
	}
}

func TestOptimizeTranscriptTextChainsAllSteps(t *testing.T) {
	text := "so welcome to the show. so welcome to the show. [Music] let's begin"
	got, _ := optimizeTranscriptText(text)

	if strings.Contains(got, "[Music]") {
		t.Error("expected filler markers to be removed")
	}
}
