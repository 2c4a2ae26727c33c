package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"subtitle-pipeline/internal/pipelineerrors"
)

// mapPipelineError classifies an error returned by the pipeline into the
// HTTP status spec.md §7 assigns its category: input and source errors are
// 4xx (no retry is going to help the caller), everything else is a 500.
func mapPipelineError(err error) error {
	switch {
	case errors.Is(err, pipelineerrors.ErrInvalidURL),
		errors.Is(err, pipelineerrors.ErrUnsupportedPlatform),
		errors.Is(err, pipelineerrors.ErrInvalidSrt),
		errors.Is(err, pipelineerrors.ErrMalformedCue):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, pipelineerrors.ErrAuthRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())

	case errors.Is(err, pipelineerrors.ErrSourceUnavailable),
		errors.Is(err, pipelineerrors.ErrNoUsableSource):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// newTempAudioFile opens a scratch file for an uploaded audio body. The
// caller is responsible for removing it once the transcription is done.
func newTempAudioFile() (*os.File, error) {
	return os.CreateTemp("", "upload-audio-*")
}
