// Package readwise implements the narrow egress boundary named in spec.md
// §1/§6: Readwise Reader is out of core, reachable only through
// Client.CreateDocument so process()'s diagnostics can report egress
// success/failure without re-implementing Readwise's own API surface.
package readwise

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"subtitle-pipeline/internal/http/retry"
)

const apiBaseURL = "https://readwise.io/api/v3"

// Client is the narrow Readwise Reader egress boundary.
type Client struct {
	APIToken   string
	HTTPClient *http.Client
	BaseURL    string
}

// NewClient wires a Client against an API token; an empty token makes
// IsConfigured false and CreateDocument a no-op error.
func NewClient(apiToken string) *Client {
	return &Client{APIToken: apiToken, HTTPClient: http.DefaultClient, BaseURL: apiBaseURL}
}

// IsConfigured reports whether an API token is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.APIToken != ""
}

// Document is the subset of Readwise's save/ payload this pipeline needs:
// a produced subtitle document plus the source video's metadata.
type Document struct {
	URL       string
	Title     string
	Content   string
	Author    string
	Location  string
	Tags      []string
}

// CreateDocument saves doc to Readwise Reader, returning the API-reported
// document URL on success.
func (c *Client) CreateDocument(ctx context.Context, doc Document) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("readwise: not configured")
	}

	payload := map[string]any{
		"url":               doc.URL,
		"title":             doc.Title,
		"content":           doc.Content,
		"source":            "subtitle-pipeline",
		"should_clean_html": false,
		"location":          nonEmptyOr(doc.Location, "new"),
	}
	if doc.Author != "" {
		payload["author"] = doc.Author
	}
	if len(doc.Tags) > 0 {
		payload["tags"] = doc.Tags
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("readwise: encode request: %w", err)
	}

	result, err := retry.RetryWithBackoff(ctx, retry.DefaultRetryConfig,
		func(ctx context.Context) (*saveResponse, error) {
			return c.save(ctx, body)
		},
		isTransientStatus,
	)
	if err != nil {
		return "", fmt.Errorf("readwise: save document: %w", err)
	}
	return result.URL, nil
}

type saveResponse struct {
	URL string `json:"url"`
}

func (c *Client) save(ctx context.Context, body []byte) (*saveResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/save/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &statusError{code: resp.StatusCode}
	}

	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// statusError carries a non-2xx HTTP status so isTransientStatus can tell a
// server hiccup (retry) from a rejected request (don't).
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("readwise API returned status %d", e.code) }

func isTransientStatus(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		return true // network/transport error: worth a retry
	}
	return se.code >= 500
}

func nonEmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
