// Package hotword implements hotword generation (spec.md §4.6) and the ASR
// transcript post-processor that corrects homophone/phonetic errors using an
// active hotword set.
package hotword

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"subtitle-pipeline/internal/model"
)

// GenerationWeights scales each candidate source's contribution to the
// accumulated score a word ends up with. Defaults per spec.md §4.6.
type GenerationWeights struct {
	CategoryBased   float64
	TitleExtraction float64
	TagBased        float64
	Learned         float64
}

func DefaultGenerationWeights() GenerationWeights {
	return GenerationWeights{
		CategoryBased:   0.4,
		TitleExtraction: 0.3,
		TagBased:        0.2,
		Learned:         0.1,
	}
}

// GenerationRequest is the input to hotword generation.
type GenerationRequest struct {
	Title       string
	Tags        []string
	ChannelName string
	Platform    string
	MaxHotwords int
}

// categoryFile is one YAML document under categories/<name>.yml: a
// category-named map of subcategory -> word list, plus a weights map scaling
// how many words each subcategory contributes.
type categoryFile struct {
	name      string
	data      map[string][]string
	subWeight map[string]float64
}

// CategoryMapping drives the "category_based" source: a keyword/channel
// vocabulary that decides which category files are in play.
type CategoryMapping struct {
	Keywords map[string][]string
	Channels map[string][]string
}

func DefaultCategoryMapping() CategoryMapping {
	return CategoryMapping{
		Keywords: map[string][]string{
			"general": {"视频", "内容", "分享", "介绍", "教程", "讲解"},
		},
		Channels: map[string][]string{
			"general": {"频道", "博主", "主播"},
		},
	}
}

// Generator produces hotword candidates from title/tag/channel metadata,
// optionally enriched by category files loaded from disk.
type Generator struct {
	Weights    GenerationWeights
	MinLength  int
	MaxDefault int
	Mapping    CategoryMapping
	categories map[string]categoryFile
}

// NewGenerator builds a Generator with no category files loaded. Use
// LoadCategories to add subcategory vocabulary from a directory of YAML
// files, mirroring the config/hotwords/categories/ layout.
func NewGenerator() *Generator {
	return &Generator{
		Weights:    DefaultGenerationWeights(),
		MinLength:  2,
		MaxDefault: 20,
		Mapping:    DefaultCategoryMapping(),
		categories: map[string]categoryFile{},
	}
}

// LoadCategories reads every *.yml/*.yaml file in dir as a category file.
// Each file's top level is expected to hold a key matching the category name
// (a map of subcategory -> []string) plus an optional "weights" map of
// subcategory -> float64. A missing directory is not an error: generation
// simply runs without category-based candidates.
func (g *Generator) LoadCategories(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")) {
			continue
		}
		category := strings.TrimSuffix(strings.TrimSuffix(name, ".yml"), ".yaml")
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping unreadable hotword category file")
			continue
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping malformed hotword category file")
			continue
		}
		g.categories[category] = parseCategoryFile(category, doc)
	}
	return nil
}

func parseCategoryFile(category string, doc map[string]interface{}) categoryFile {
	cf := categoryFile{name: category, data: map[string][]string{}, subWeight: map[string]float64{}}

	if weights, ok := doc["weights"].(map[string]interface{}); ok {
		for k, v := range weights {
			if f, ok := toFloat(v); ok {
				cf.subWeight[k] = f
			}
		}
	}

	if section, ok := doc[category].(map[string]interface{}); ok {
		for subcategory, v := range section {
			words := toStringSlice(v)
			if len(words) > 0 {
				cf.data[subcategory] = words
			}
		}
	}
	return cf
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"的": true, "了": true, "在": true, "是": true, "我": true, "有": true,
	"和": true, "就": true, "不": true, "人": true, "都": true, "一": true,
	"一个": true, "上": true, "也": true, "很": true, "到": true, "说": true,
	"要": true, "去": true, "你": true, "会": true, "着": true, "没有": true,
	"看": true, "好": true, "自己": true, "这": true,
}

// titleTokenPattern tokenizes a title without a segmenter dependency: runs
// of CJK ideographs, Latin letters, or digits, each treated as one token
// (the same fallback shape the post-processor's tokenizer uses).
var titleTokenPattern = regexp.MustCompile(`[\p{Han}]+|[a-zA-Z]+|\d+`)

var pureDigits = regexp.MustCompile(`^\d+$`)

// Generate produces a deduplicated, weight-ordered hotword list capped at
// req.MaxHotwords (or g.MaxDefault when unset).
func (g *Generator) Generate(req GenerationRequest) model.HotwordSet {
	maxCount := req.MaxHotwords
	if maxCount <= 0 {
		maxCount = g.MaxDefault
	}

	scores := map[string]float64{}
	add := func(word string, weight float64) {
		if word == "" {
			return
		}
		scores[word] += weight
	}

	for _, word := range g.categoryBasedCandidates(req) {
		add(word, g.Weights.CategoryBased)
	}
	for _, word := range g.titleCandidates(req.Title) {
		add(word, g.Weights.TitleExtraction)
	}
	for _, word := range g.tagCandidates(req.Tags) {
		add(word, g.Weights.TagBased)
	}
	for _, word := range g.learnedCandidates() {
		add(word, g.Weights.Learned)
	}

	terms := make([]model.HotwordTerm, 0, len(scores))
	for word, weight := range scores {
		terms = append(terms, model.HotwordTerm{Term: word, Weight: weight})
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > maxCount {
		terms = terms[:maxCount]
	}

	return model.HotwordSet{Terms: terms, Source: model.HotwordSourceAuto}
}

func (g *Generator) titleCandidates(title string) []string {
	if title == "" {
		return nil
	}
	var out []string
	for _, word := range titleTokenPattern.FindAllString(title, -1) {
		runeLen := len([]rune(word))
		if runeLen < g.MinLength || stopwords[word] || pureDigits.MatchString(word) {
			continue
		}
		out = append(out, word)
	}
	return out
}

func (g *Generator) tagCandidates(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if len([]rune(tag)) >= g.MinLength {
			out = append(out, tag)
		}
	}

	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		for _, cf := range g.categories {
			for subcategory, words := range cf.data {
				related := strings.Contains(tagLower, strings.ToLower(subcategory)) ||
					strings.Contains(strings.ToLower(subcategory), tagLower)
				if !related {
					for _, w := range firstN(words, 3) {
						wl := strings.ToLower(w)
						if strings.Contains(tagLower, wl) || strings.Contains(wl, tagLower) {
							related = true
							break
						}
					}
				}
				if related {
					out = append(out, firstN(words, 3)...)
				}
			}
		}
	}
	return out
}

// learnedCandidates is the reserved extension point (spec.md §4.6): no
// learning pipeline exists yet, so it returns a fixed placeholder pair.
func (g *Generator) learnedCandidates() []string {
	return []string{"视频", "内容"}
}

func (g *Generator) categoryBasedCandidates(req GenerationRequest) []string {
	if len(g.categories) == 0 {
		return nil
	}

	matched := map[string]bool{}
	searchText := strings.ToLower(strings.TrimSpace(req.Title + " " + req.ChannelName))
	for category, keywords := range g.Mapping.Keywords {
		for _, kw := range keywords {
			if strings.Contains(searchText, strings.ToLower(kw)) {
				matched[category] = true
			}
		}
	}
	if req.ChannelName != "" {
		channelLower := strings.ToLower(req.ChannelName)
		for category, keywords := range g.Mapping.Channels {
			for _, kw := range keywords {
				if strings.Contains(channelLower, strings.ToLower(kw)) {
					matched[category] = true
				}
			}
		}
	}
	for _, tag := range req.Tags {
		tagLower := strings.ToLower(tag)
		for category, keywords := range g.Mapping.Keywords {
			for _, kw := range keywords {
				kwLower := strings.ToLower(kw)
				if strings.Contains(tagLower, kwLower) || strings.Contains(kwLower, tagLower) {
					matched[category] = true
				}
			}
		}
	}

	var out []string
	for category := range matched {
		cf, ok := g.categories[category]
		if !ok {
			continue
		}
		for subcategory, words := range cf.data {
			weight := cf.subWeight[subcategory]
			if weight == 0 {
				weight = 1.0
			}
			count := int(float64(len(words)) * weight)
			if count < 1 {
				count = 1
			}
			out = append(out, firstN(words, count)...)
		}
	}
	return out
}

func firstN(words []string, n int) []string {
	if n > len(words) {
		n = len(words)
	}
	if n <= 0 {
		return nil
	}
	return words[:n]
}
