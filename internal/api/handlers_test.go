package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtitle-pipeline/internal/pipeline"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/summary"
	"subtitle-pipeline/internal/translate"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	settings, err := store.NewSettingsCoordinator(filepath.Join(t.TempDir(), "hotword_settings.json"))
	require.NoError(t, err)

	p := &pipeline.Pipeline{
		Settings:     settings,
		RouterConfig: translate.DefaultRouterConfig(),
	}
	return NewHandlers(p, settings, summary.NewMockService())
}

func TestParseSRTReturnsCues(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()

	body := `{"text":"1\n00:00:01,000 --> 00:00:02,000\nHello\n"}`
	req := httptest.NewRequest(http.MethodPost, "/api/srt/parse", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ParseSRT(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello")
}

func TestTranslateWithNoProvidersFallsBackToIdentity(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()

	body := `{"text":"hello world","source":"en","target":"fr"}`
	req := httptest.NewRequest(http.MethodPost, "/api/translate", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Translate(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello world")
}

func TestProcessRejectsRequestMissingPlatform(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()

	body := `{"url":"https://example.com/watch?v=abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/process", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Process(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestSummaryReturnsMockResultWhenUnconfigured(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()

	body := `{"text":"1\n00:00:01,000 --> 00:00:02,000\nHello there\n"}`
	req := httptest.NewRequest(http.MethodPost, "/api/summary", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Summary(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 subtitle cues")
}

func TestGetAndSetHotwordSettings(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()

	getReq := httptest.NewRequest(http.MethodGet, "/api/hotwords/settings", nil)
	getRec := httptest.NewRecorder()
	require.NoError(t, h.GetHotwordSettings(e.NewContext(getReq, getRec)))
	assert.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), `"mode":"user_only"`)

	putBody := `{"auto_hotwords":true,"post_process":true,"mode":"curated","max_count":30}`
	putReq := httptest.NewRequest(http.MethodPut, "/api/hotwords/settings", bytes.NewReader([]byte(putBody)))
	putReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	putRec := httptest.NewRecorder()
	require.NoError(t, h.SetHotwordSettings(e.NewContext(putReq, putRec)))
	assert.Equal(t, http.StatusOK, putRec.Code)
	assert.Contains(t, putRec.Body.String(), `"mode":"curated"`)

	assert.Equal(t, store.HotwordModeCurated, h.settings.Get().Mode)
}

func TestSetHotwordSettingsRejectsInvalidJSON(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/api/hotwords/settings", bytes.NewReader([]byte("not json")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SetHotwordSettings(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
