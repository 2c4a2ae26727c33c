package sourceresolver

import (
	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipelineerrors"
)

// DetectLanguage implements spec.md §4.1 step 3: an ordered list of checks,
// first positive match wins. Returns "" for the null/unsupported case.
func DetectLanguage(title string, manualSubs, autoSubs []string, languageField string) string {
	if hasCJK(title) {
		return "zh"
	}
	if latinLetterCount(title) >= 5 && !hasCJK(title) {
		return "en"
	}
	if hasLangPrefix(manualSubs, "zh") {
		return "zh"
	}
	if hasLangPrefix(manualSubs, "en") {
		return "en"
	}
	if hasLangPrefix(autoSubs, "en-orig") || hasLangPrefix(autoSubs, "en") {
		return "en"
	}
	if hasLangPrefix(autoSubs, "zh") {
		return "zh"
	}
	if hasLangPrefix([]string{languageField}, "zh") {
		return "zh"
	}
	if hasLangPrefix([]string{languageField}, "en") {
		return "en"
	}
	return ""
}

// SelectStrategy implements spec.md §4.1 step 4: decide subtitle vs
// transcribe given the detected language and declared subtitle tracks.
func SelectStrategy(lang string, manualSubs, autoSubs []string) (model.ResolvedMode, error) {
	switch lang {
	case "zh":
		if hasLangPrefix(manualSubs, "zh") {
			return model.ModeSubtitle, nil
		}
		return model.ModeTranscribe, nil
	case "en":
		if hasLangPrefix(manualSubs, "en") || hasLangPrefix(autoSubs, "en") {
			return model.ModeSubtitle, nil
		}
		return model.ModeTranscribe, nil
	default:
		return "", pipelineerrors.ErrNoUsableSource
	}
}

// SubtitlePriority returns the ordered list of subtitle language codes to
// try, per spec.md §4.1 step 5. autoSet distinguishes the automatic-caption
// set, which may carry the "en-orig" slot ahead of plain "en" (Open
// Question 4).
func SubtitlePriority(lang string, autoSet []string) []string {
	switch lang {
	case "zh":
		return []string{"zh-Hans", "zh-Hant", "zh"}
	case "en":
		if hasLangPrefix(autoSet, "en-orig") {
			return []string{"en-orig", "en"}
		}
		return []string{"en"}
	default:
		return nil
	}
}

// formatPriority ranks subtitle formats, most preferred first, per spec.md
// §4.1 step 6.
var formatPriority = []string{"srt", "json3", "vtt", "ttml", "srv0", "srv1", "srv2", "srv3"}

func rankFormat(ext string) int {
	for i, f := range formatPriority {
		if f == ext {
			return i
		}
		// srv* is a family; match by prefix for srv0..srv3 entries not
		// explicitly listed.
		if f == "srv0" && len(ext) >= 3 && ext[:3] == "srv" {
			return i
		}
	}
	return len(formatPriority)
}
