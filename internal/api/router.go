package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"subtitle-pipeline/internal/pipeline"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/summary"
)

// SetupRouter wires the echo instance and mounts every route under /api.
func SetupRouter(p *pipeline.Pipeline, settings *store.SettingsCoordinator, summarizer summary.Summarizer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := NewHandlers(p, settings, summarizer)

	api := e.Group("/api")
	api.POST("/process", h.Process)
	api.POST("/transcribe", h.Transcribe)
	api.POST("/translate", h.Translate)
	api.POST("/srt/parse", h.ParseSRT)
	api.POST("/summary", h.Summary)
	api.GET("/hotwords/settings", h.GetHotwordSettings)
	api.PUT("/hotwords/settings", h.SetHotwordSettings)

	return e
}
