package readwise

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocumentReturnsURLOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"url":"https://readwise.io/reader/doc/1"}`))
	}))
	defer server.Close()

	c := NewClient("test-token")
	c.BaseURL = server.URL

	url, err := c.CreateDocument(context.Background(), Document{URL: "https://example.com/v", Title: "A video"})
	require.NoError(t, err)
	assert.Equal(t, "https://readwise.io/reader/doc/1", url)
}

func TestCreateDocumentFailsWhenUnconfigured(t *testing.T) {
	c := NewClient("")
	_, err := c.CreateDocument(context.Background(), Document{URL: "https://example.com/v"})
	require.Error(t, err)
}

func TestCreateDocumentSurfaces4xxWithoutRetrying(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient("bad-token")
	c.BaseURL = server.URL

	_, err := c.CreateDocument(context.Background(), Document{URL: "https://example.com/v"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
