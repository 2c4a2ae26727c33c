package api

import (
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"

	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipeline"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/subtitle"
	"subtitle-pipeline/internal/summary"
)

// Handlers exposes the pipeline's upstream calls (spec.md §6) plus hotword
// settings CRUD and an on-demand SRT summary, as a thin Echo surface.
type Handlers struct {
	pipeline   *pipeline.Pipeline
	settings   *store.SettingsCoordinator
	summarizer summary.Summarizer
}

// NewHandlers wires a Handlers against the process-wide pipeline, settings
// coordinator, and summarizer.
func NewHandlers(p *pipeline.Pipeline, settings *store.SettingsCoordinator, summarizer summary.Summarizer) *Handlers {
	return &Handlers{pipeline: p, settings: settings, summarizer: summarizer}
}

type processRequest struct {
	URL                    string   `json:"url"`
	FilePath               string   `json:"file_path"`
	Platform               string   `json:"platform"`
	Tags                   []string `json:"tags"`
	TargetSubtitleLocation string   `json:"target_subtitle_location"`
	Hotwords               []string `json:"hotwords"`
	MaxHotwords            int      `json:"max_hotwords"`
	TargetLanguage         string   `json:"target_language"`
	SaveToReadwise         bool     `json:"save_to_readwise"`
}

type processResponse struct {
	SrtDocument string            `json:"srt_document"`
	AudioInfo   model.AudioInfo   `json:"audio_info"`
	Translation string            `json:"translation,omitempty"`
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// Process handles POST /api/process.
func (h *Handlers) Process(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sourceReq := model.SourceRequest{
		URL:                    req.URL,
		FilePath:               req.FilePath,
		Platform:               model.Platform(req.Platform),
		Tags:                   req.Tags,
		TargetSubtitleLocation: req.TargetSubtitleLocation,
		Hotwords:               req.Hotwords,
		MaxHotwords:            req.MaxHotwords,
		TargetLanguage:         req.TargetLanguage,
		SaveToReadwise:         req.SaveToReadwise,
	}
	if err := sourceReq.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.pipeline.Process(c.Request().Context(), sourceReq)
	if err != nil {
		return mapPipelineError(err)
	}

	return c.JSON(http.StatusOK, processResponse{
		SrtDocument: subtitle.Format(result.Srt),
		AudioInfo:   result.AudioInfo,
		Translation: result.Translation,
		Diagnostics: result.Diagnostics,
	})
}

type transcribeResponse struct {
	Text             string            `json:"text"`
	Timestamps       []model.Timestamp `json:"timestamp,omitempty"`
	TotalDurationSec float64           `json:"total_duration_sec"`
	Partial          bool              `json:"partial"`
}

// Transcribe handles POST /api/transcribe: a multipart form with an `audio`
// file field and an optional comma-joined `hotwords` field, mirroring the
// ASR backend's own wire contract (spec.md §6).
func (h *Handlers) Transcribe(c echo.Context) error {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file field is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer src.Close()

	tmpPath, err := spoolToTemp(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer os.Remove(tmpPath)

	var hotwords []string
	if raw := c.FormValue("hotwords"); raw != "" {
		hotwords = strings.Split(raw, ",")
	}

	transcript, err := h.pipeline.Transcribe(c.Request().Context(), tmpPath, hotwords)
	if err != nil {
		return mapPipelineError(err)
	}

	return c.JSON(http.StatusOK, transcribeResponse{
		Text:             transcript.Text,
		Timestamps:       transcript.Timestamps,
		TotalDurationSec: transcript.TotalDurationSec,
		Partial:          transcript.Partial,
	})
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translated string `json:"translated"`
}

// Translate handles POST /api/translate.
func (h *Handlers) Translate(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	translated := h.pipeline.Translate(c.Request().Context(), req.Text, req.Source, req.Target)
	return c.JSON(http.StatusOK, translateResponse{Translated: translated})
}

type parseSRTRequest struct {
	Text string `json:"text"`
}

type parseSRTResponse struct {
	Cues []model.SubtitleCue `json:"cues"`
}

// ParseSRT handles POST /api/srt/parse.
func (h *Handlers) ParseSRT(c echo.Context) error {
	var req parseSRTRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc := h.pipeline.ParseSRT(req.Text)
	return c.JSON(http.StatusOK, parseSRTResponse{Cues: doc.Cues})
}

type summaryRequest struct {
	Text string `json:"text"`
}

type summaryResponse struct {
	Summary   string `json:"summary"`
	Thinking  string `json:"thinking,omitempty"`
	Truncated bool   `json:"truncated"`
}

// Summary handles POST /api/summary: summarizes an already-produced SRT
// document's cue text, mirroring the teacher's on-demand
// GET /api/videos/:videoId/summary rather than running automatically as
// part of process().
func (h *Handlers) Summary(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc := subtitle.Parse(req.Text)
	result := h.summarizer.Summarize(c.Request().Context(), doc)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, result.Error.Error())
	}

	return c.JSON(http.StatusOK, summaryResponse{
		Summary:   result.Summary,
		Thinking:  result.Thinking,
		Truncated: result.Truncated,
	})
}

// GetHotwordSettings handles GET /api/hotwords/settings.
func (h *Handlers) GetHotwordSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settings.Get())
}

// SetHotwordSettings handles PUT /api/hotwords/settings.
func (h *Handlers) SetHotwordSettings(c echo.Context) error {
	var req store.HotwordSettings
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.settings.Update(func(store.HotwordSettings) store.HotwordSettings { return req })
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func spoolToTemp(r io.Reader) (string, error) {
	tmp, err := newTempAudioFile()
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, r); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}
