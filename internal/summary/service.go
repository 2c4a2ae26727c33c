// Package summary generates an optional LLM digest of a produced subtitle
// track. It is a supplemented feature (spec.md's core pipeline stops at the
// SRT artifact); summarization never blocks or mutates the primary
// transcribe/translate path.
package summary

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"subtitle-pipeline/internal/model"
)

// Summarizer is the interface the pipeline depends on, so a MockService can
// stand in during development without a configured LLM endpoint.
type Summarizer interface {
	Summarize(ctx context.Context, doc model.SrtDocument) *Result
}

// Result is the outcome of a summarization attempt.
type Result struct {
	Summary     string
	Thinking    string
	GeneratedAt time.Time
	Truncated   bool
	Error       error
}

// Config names which OpenAI-compatible endpoint backs the summarizer.
type Config struct {
	Enabled     bool
	APIEndpoint string
	APIKey      string
	Model       string
	Prompt      string
}

const defaultPrompt = `Summarize the provided video transcript, covering all key points and any notable insights. Be thorough with details that matter.`

// Service calls an OpenAI-compatible chat endpoint to summarize a subtitle
// track's text. It uses go-openai rather than the openai-go client already
// used by internal/translate's OpenAIProvider, so the two OpenAI-compatible
// client idioms in the pack both have a home.
type Service struct {
	client *openai.Client
	model  string
	prompt string
}

// NewService builds a summarizer from config. Returns an error if the
// endpoint or model is unset, since those have no sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("summary: api endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("summary: model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.APIEndpoint

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		prompt: prompt,
	}, nil
}

// Summarize optimizes the document's cue text for token efficiency and asks
// the configured LLM for a digest.
func (s *Service) Summarize(ctx context.Context, doc model.SrtDocument) *Result {
	result := &Result{}

	text := cueText(doc)
	if strings.TrimSpace(text) == "" {
		result.Error = fmt.Errorf("summary: document has no cue text")
		return result
	}

	optimized, truncated := optimizeTranscriptText(text)
	result.Truncated = truncated

	raw, err := s.callLLM(ctx, optimized)
	if err != nil {
		result.Error = fmt.Errorf("summary: %w", err)
		return result
	}

	thinking, clean := parseThinkingBlocks(raw)
	result.Thinking = thinking
	result.Summary = clean
	result.GeneratedAt = time.Now()

	return result
}

func (s *Service) callLLM(ctx context.Context, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from llm")
	}
	return resp.Choices[0].Message.Content, nil
}

// cueText concatenates a document's cues into plain text, dropping cue
// numbering and timing the way a transcript reader would.
func cueText(doc model.SrtDocument) string {
	parts := make([]string, 0, len(doc.Cues))
	for _, cue := range doc.Cues {
		t := strings.TrimSpace(cue.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// optimizeTranscriptText trims ASR artifacts out of a transcript before it
// is sent to an LLM: filler words, consecutive near-duplicate sentences
// (common when an ASR backend repeats a phrase across a chunk boundary),
// and an overall length cap.
func optimizeTranscriptText(text string) (string, bool) {
	text = removeFillerWords(text)
	text = removeDuplicateSentences(text)
	text, truncated := truncateIfTooLong(text)
	return strings.TrimSpace(text), truncated
}

var fillerPatterns = []struct{ pattern, replacement string }{
	{` um `, ` `}, {` uh `, ` `}, {` like `, ` `},
	{` you know `, ` `}, {` I mean `, ` `}, {` so `, ` `},
	{` well `, ` `}, {` basically `, ` `}, {` actually `, ` `},
	{`[Music]`, ``}, {`[Applause]`, ``}, {`[Laughter]`, ``},
	{`[Sound Effects]`, ``}, {`[Background Music]`, ``},
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func removeFillerWords(text string) string {
	for _, p := range fillerPatterns {
		text = strings.ReplaceAll(text, p.pattern, p.replacement)
	}
	return whitespacePattern.ReplaceAllString(text, ` `)
}

// removeDuplicateSentences drops a sentence that is near-identical to the
// one immediately before it, since ASR chunking can emit the same phrase
// twice at a chunk boundary.
func removeDuplicateSentences(text string) string {
	sentences := strings.Split(text, `. `)
	if len(sentences) <= 1 {
		return text
	}

	var unique []string
	last := ""

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 10 {
			continue
		}
		if !isSimilarSentence(sentence, last) {
			unique = append(unique, sentence)
			last = sentence
		}
	}

	return strings.Join(unique, `. `)
}

// isSimilarSentence treats two sentences as duplicates when over 70% of
// their words overlap.
func isSimilarSentence(a, b string) bool {
	if a == b {
		return true
	}

	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	counts := make(map[string]int, len(wordsA))
	for _, w := range wordsA {
		counts[w]++
	}

	common := 0
	for _, w := range wordsB {
		if counts[w] > 0 {
			common++
			counts[w]--
		}
	}

	maxLen := len(wordsA)
	if len(wordsB) > maxLen {
		maxLen = len(wordsB)
	}

	return float64(common)/float64(maxLen) > 0.7
}

const maxSummaryInputChars = 12000

// truncateIfTooLong keeps the head and tail of a very long transcript and
// drops the middle, since an LLM summary benefits more from the opening and
// closing than from a proportionally-sampled middle.
func truncateIfTooLong(text string) (string, bool) {
	if len(text) <= maxSummaryInputChars {
		return text, false
	}

	cut := int(float64(maxSummaryInputChars) * 0.4)
	firstPart := text[:cut]
	lastPart := text[len(text)-cut:]

	if lastDot := strings.LastIndex(firstPart, `. `); lastDot > len(firstPart)-100 {
		firstPart = firstPart[:lastDot+2]
	}
	if firstDot := strings.Index(lastPart, `. `); firstDot > 0 && firstDot < 100 {
		lastPart = lastPart[firstDot+2:]
	}

	return firstPart + ` [content abbreviated] ` + lastPart, true
}

var thinkingPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)
var blankLinesPattern = regexp.MustCompile(`\n\s*\n`)

// parseThinkingBlocks splits a reasoning model's <think> blocks out of its
// response, returning the thinking content separately from the clean
// summary text.
func parseThinkingBlocks(response string) (thinking string, summary string) {
	matches := thinkingPattern.FindAllStringSubmatch(response, -1)

	var parts []string
	for _, m := range matches {
		if len(m) > 1 {
			if t := strings.TrimSpace(m[1]); t != "" {
				parts = append(parts, t)
			}
		}
	}

	clean := thinkingPattern.ReplaceAllString(response, "")
	clean = strings.TrimSpace(clean)
	clean = blankLinesPattern.ReplaceAllString(clean, "\n\n")

	return strings.Join(parts, "\n\n"), clean
}
