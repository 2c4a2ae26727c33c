package hotword

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// PostProcessConfig tunes the correction pass (spec.md §4.6). Defaults match
// the environment-configurable knobs of the source system.
type PostProcessConfig struct {
	SimilarityThreshold float64
	EnableSubstring     bool
}

func DefaultPostProcessConfig() PostProcessConfig {
	return PostProcessConfig{SimilarityThreshold: 0.82, EnableSubstring: false}
}

// Match records one token replaced during post-processing.
type Match struct {
	Original   string
	Hotword    string
	Similarity float64
}

// AuditRecord is the post-processor's output alongside the corrected text.
type AuditRecord struct {
	Matches         []Match
	Corrections     int
	HotwordsApplied []string
}

// segmentPattern is the tokenizer fallback used when no CJK segmenter is
// available: runs of CJK ideographs, Latin letters, digits, whitespace, or a
// single punctuation/other character. Whitespace is kept as its own token
// (mirroring jieba.cut, which also emits whitespace as tokens) so rebuilding
// the text by concatenating tokens doesn't collapse spacing between words.
var segmentPattern = regexp.MustCompile(`[\p{Han}]+|[a-zA-Z]+|\d+|\s+|[^\w\s]`)

var nonWordPattern = regexp.MustCompile(`[^\w]`)

// PostProcessor corrects ASR homophone/phonetic errors against an active
// hotword set.
type PostProcessor struct {
	Config PostProcessConfig
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{Config: DefaultPostProcessConfig()}
}

// Process walks text token by token, replacing tokens whose best-matching
// hotword clears the similarity threshold, then applies a curated literal
// replacement table for known phonetic confusions.
func (p *PostProcessor) Process(text string, hotwords []string) (string, AuditRecord) {
	if text == "" || len(hotwords) == 0 {
		return text, AuditRecord{}
	}

	tokens := segmentPattern.FindAllString(text, -1)
	var b strings.Builder
	record := AuditRecord{}
	applied := map[string]bool{}

	for _, token := range tokens {
		hotword, similarity, ok := p.bestMatch(token, hotwords)
		if ok {
			b.WriteString(hotword)
			record.Matches = append(record.Matches, Match{Original: token, Hotword: hotword, Similarity: similarity})
			record.Corrections++
			applied[hotword] = true
		} else {
			b.WriteString(token)
		}
	}

	corrected, literal := contextReplace(b.String(), hotwords)
	for _, m := range literal {
		record.Matches = append(record.Matches, m)
		record.Corrections++
		applied[m.Hotword] = true
	}
	for hw := range applied {
		record.HotwordsApplied = append(record.HotwordsApplied, hw)
	}
	return corrected, record
}

// bestMatch scores token against every hotword and returns the best one
// clearing p.Config.SimilarityThreshold, per spec.md §4.6 step 2-3.
func (p *PostProcessor) bestMatch(token string, hotwords []string) (string, float64, bool) {
	clean := nonWordPattern.ReplaceAllString(token, "")
	if clean == "" {
		return "", 0, false
	}

	var best string
	var bestScore float64

	for _, hw := range hotwords {
		score := p.similarity(clean, hw)
		if score > bestScore {
			bestScore = score
			best = hw
		}
	}

	if best != "" && bestScore >= p.Config.SimilarityThreshold {
		return best, bestScore, true
	}
	return "", 0, false
}

func (p *PostProcessor) similarity(clean, hotword string) float64 {
	if clean == hotword {
		return 1.0
	}

	if p.Config.EnableSubstring {
		shorter, longer := clean, hotword
		if len([]rune(shorter)) > len([]rune(longer)) {
			shorter, longer = longer, shorter
		}
		if longer != "" && strings.Contains(longer, shorter) {
			ratio := float64(len([]rune(shorter))) / float64(len([]rune(longer)))
			return ratio * 0.9
		}
	}

	a, hw := strings.ToLower(clean), strings.ToLower(hotword)
	ratio := levenshteinRatio(a, hw)
	lenA, lenHw := len([]rune(a)), len([]rune(hw))
	shorter, longer := lenA, lenHw
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 {
		return 0
	}
	lengthFactor := float64(shorter) / float64(longer)
	return ratio * (0.7 + 0.3*lengthFactor)
}

// levenshteinRatio mirrors difflib.SequenceMatcher.ratio() as
// 1 - 2*edit_distance/(len(a)+len(b)), floored at 0.
func levenshteinRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	total := la + lb
	ratio := 1.0 - 2.0*float64(dist)/float64(total)
	if ratio < 0 {
		return 0
	}
	return ratio
}

// contextReplace applies a curated literal table for known phonetic
// confusions, scoped to whichever hotwords are active in this request, and
// reports each substitution made so the caller's audit trail covers both the
// token-similarity pass and this literal pass (spec.md §8 Scenario D counts
// both kinds of corrections).
func contextReplace(text string, hotwords []string) (string, []Match) {
	var matches []Match
	for pattern, replacement := range commonReplacements(hotwords) {
		// Text that already reads as the replacement is left alone, so a
		// pattern inside its own replacement ("ultra" in "ultrathink") does
		// not fire again on what an earlier pattern produced.
		parts := strings.Split(text, replacement)
		for i, part := range parts {
			for n := strings.Count(part, pattern); n > 0; n-- {
				matches = append(matches, Match{Original: pattern, Hotword: replacement, Similarity: 1.0})
			}
			parts[i] = strings.ReplaceAll(part, pattern, replacement)
		}
		text = strings.Join(parts, replacement)
	}
	return text, matches
}

func commonReplacements(hotwords []string) map[string]string {
	out := map[string]string{}
	for _, hw := range hotwords {
		switch {
		case strings.EqualFold(hw, "ultrathink"):
			out["乌托"] = "ultrathink"
			out["阿尔特拉"] = "ultrathink"
			out["奥特拉"] = "ultrathink"
			out["ultra"] = "ultrathink"
			out["Ultra"] = "ultrathink"
			out["乌尔特拉"] = "ultrathink"
			out["奥拉"] = "ultrathink"
		case hw == "Python":
			out["派森"] = "Python"
			out["派桑"] = "Python"
			out["皮桑"] = "Python"
			out["python"] = "Python"
		case hw == "编程":
			out["便程"] = "编程"
			out["编成"] = "编程"
			out["变成"] = "编程"
		case hw == "机器学习":
			out["机械学习"] = "机器学习"
			out["机器雪洗"] = "机器学习"
			out["机器血洗"] = "机器学习"
		case hw == "教程":
			out["叫程"] = "教程"
			out["较程"] = "教程"
		}

		if isAllLetters(hw) {
			for _, variant := range phoneticVariants(hw) {
				out[variant] = hw
			}
		}
	}
	return out
}

var allLettersPattern = regexp.MustCompile(`^[a-zA-Z]+$`)

func isAllLetters(s string) bool { return allLettersPattern.MatchString(s) }

var phoneticMap = map[string][]string{
	"ultra":      {"乌尔特拉", "奥特拉", "阿尔特拉", "乌托拉"},
	"think":      {"辛克", "思克", "听克", "滕克"},
	"python":     {"派森", "派桑", "皮桑"},
	"java":       {"加瓦", "佳瓦", "嘉瓦"},
	"docker":     {"道克", "多克", "都克"},
	"kubernetes": {"库伯内蒂斯", "库贝内蒂斯"},
	"react":      {"瑞艾克特", "里艾克特"},
	"angular":    {"安古拉", "安格拉"},
	"github":     {"吉特哈布", "基特哈布", "吉哈布"},
}

// phoneticVariants returns the curated Chinese phonetic-confusion spellings
// for an English hotword, matching both exact and substring keys (so
// "kubectl" still pulls in "kubernetes" variants, as the source table does).
func phoneticVariants(englishWord string) []string {
	wordLower := strings.ToLower(englishWord)
	var variants []string
	if v, ok := phoneticMap[wordLower]; ok {
		variants = append(variants, v...)
	}
	for key, values := range phoneticMap {
		if key == wordLower {
			continue
		}
		if strings.Contains(key, wordLower) || strings.Contains(wordLower, key) {
			variants = append(variants, values...)
		}
	}
	return variants
}
