package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// outcome classifies a provider attempt per spec.md §4.5's failure table.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeTransient
	outcomeRateLimited
	outcomeFatal
)

// providerError pairs a translation failure with its retry classification.
type providerError struct {
	outcome outcome
	err     error
}

func (e *providerError) Error() string { return e.err.Error() }
func (e *providerError) Unwrap() error { return e.err }

// Provider is one translation backend in the chain.
type Provider interface {
	ID() string
	Translate(ctx context.Context, text, sourceLang, targetLangName string) (string, error)
}

func classifyHTTPStatus(status int) outcome {
	switch {
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status >= 500:
		return outcomeTransient
	case status >= 400:
		return outcomeFatal
	default:
		return outcomeOK
	}
}

func classifyTransportErr(err error) outcome {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "deadline exceeded") {
		return outcomeTransient
	}
	return outcomeFatal
}

// DeeplxProvider calls a DeepLX-compatible endpoint without the v2 envelope.
type DeeplxProvider struct {
	Name   string
	URL    string
	Client *http.Client
	V2     bool
}

func NewDeeplxProvider(name, url string, v2 bool) *DeeplxProvider {
	return &DeeplxProvider{Name: name, URL: url, Client: &http.Client{}, V2: v2}
}

func (p *DeeplxProvider) ID() string { return p.Name }

func (p *DeeplxProvider) Translate(ctx context.Context, text, sourceLang, targetLangName string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"text":        text,
		"source_lang": sourceLang,
		"target_lang": targetLangName,
	})
	if err != nil {
		return "", &providerError{outcomeFatal, err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return "", &providerError{outcomeFatal, err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", &providerError{classifyTransportErr(err), err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if o := classifyHTTPStatus(resp.StatusCode); o != outcomeOK {
		return "", &providerError{o, fmt.Errorf("%s returned %d: %s", p.Name, resp.StatusCode, string(body))}
	}

	var wire struct {
		Code         int    `json:"code"`
		Data         string `json:"data"`
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return "", &providerError{outcomeFatal, err}
	}
	if wire.Data != "" {
		return wire.Data, nil
	}
	if len(wire.Translations) > 0 && wire.Translations[0].Text != "" {
		return wire.Translations[0].Text, nil
	}
	return "", &providerError{outcomeFatal, fmt.Errorf("%s: empty translation response", p.Name)}
}

// OpenAIProvider calls an OpenAI-compatible chat endpoint (the
// `openai_<named-config>` provider kind, spec.md §4.5).
type OpenAIProvider struct {
	Name   string
	Model  string
	client *openai.Client
}

func NewOpenAIProvider(name, baseURL, apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &OpenAIProvider{Name: name, Model: model, client: &client}
}

func (p *OpenAIProvider) ID() string { return p.Name }

func (p *OpenAIProvider) Translate(ctx context.Context, text, sourceLang, targetLangName string) (string, error) {
	systemPrompt := fmt.Sprintf("translate to %s", targetLangName)
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", &providerError{classifyOpenAIErr(err), err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &providerError{outcomeFatal, fmt.Errorf("%s: empty completion", p.Name)}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIErr(err error) outcome {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return outcomeRateLimited
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "timeout"):
		return outcomeTransient
	default:
		return outcomeFatal
	}
}
