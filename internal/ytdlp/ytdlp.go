// Package ytdlp wraps the yt-dlp external binary: platform metadata lookup,
// subtitle track download, and audio-only media download, each with the
// retry-on-transient-error idiom the teacher used for RSS-entry enrichment,
// now generalized across platforms. Only metadata lookups use the atomic
// cache write.
package ytdlp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandExecutor executes an external command and returns its stdout.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandExecutor runs commands via os/exec.
type DefaultCommandExecutor struct{}

func (e *DefaultCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	log.Debug().Str("cmd", cmd.String()).Msg("executing external command")
	return cmd.Output()
}

// SubtitleTrack describes one declared subtitle track.
type SubtitleTrack struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// MediaInfo is the platform metadata yt-dlp reports for one video.
type MediaInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Uploader          string                     `json:"uploader"`
	Duration          float64                    `json:"duration"`
	UploadDate        string                     `json:"upload_date"`
	Language          string                     `json:"language"`
	Tags              []string                   `json:"tags"`
	Subtitles         map[string][]SubtitleTrack `json:"subtitles"`
	AutomaticCaptions map[string][]SubtitleTrack `json:"automatic_captions"`
}

// Tool is the capability surface the Source Resolver consumes.
type Tool interface {
	FetchMetadata(ctx context.Context, videoURL string) (*MediaInfo, error)
	DownloadSubtitle(ctx context.Context, videoURL, lang, format string) (string, error)
	DownloadAudio(ctx context.Context, videoURL string, formatSelectors []string) (string, error)
}

// DefaultTool implements Tool by shelling out to the yt-dlp binary.
type DefaultTool struct {
	binPath     string
	timeout     time.Duration
	maxRetries  int
	executor    CommandExecutor
	cacheDir    string
	enableCache bool
	workDir     string
}

// NewDefaultTool creates a yt-dlp-backed Tool. workDir is where downloaded
// media/subtitle files are written.
func NewDefaultTool(workDir string) *DefaultTool {
	cacheDir := os.Getenv("YTDLP_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "./cache/ytdlp"
	}
	enableCache := os.Getenv("YTDLP_DISABLE_CACHE") != "true"

	t := &DefaultTool{
		binPath:     "yt-dlp",
		timeout:     60 * time.Second,
		maxRetries:  2,
		executor:    &DefaultCommandExecutor{},
		cacheDir:    cacheDir,
		enableCache: enableCache,
		workDir:     workDir,
	}
	if enableCache {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", cacheDir).Msg("failed to create yt-dlp cache directory")
			t.enableCache = false
		}
	}
	return t
}

// NewDefaultToolWithExecutor injects a fake executor for tests.
func NewDefaultToolWithExecutor(workDir string, executor CommandExecutor) *DefaultTool {
	t := NewDefaultTool(workDir)
	t.executor = executor
	t.enableCache = false
	return t
}

// FetchMetadata fetches and caches platform metadata for a video URL.
func (t *DefaultTool) FetchMetadata(ctx context.Context, videoURL string) (*MediaInfo, error) {
	cacheKey := t.cacheKeyFor(videoURL)
	if cached, ok := t.loadFromCache(cacheKey); ok {
		return cached, nil
	}

	args := []string{"--skip-download", "--dump-json", videoURL}
	output, err := t.runWithRetry(ctx, args)
	if err != nil {
		return nil, err
	}

	var info MediaInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("ytdlp: failed to parse metadata for %s: %w", videoURL, err)
	}
	t.saveToCache(cacheKey, output)
	return &info, nil
}

// DownloadSubtitle writes the requested subtitle track to workDir and
// returns its contents.
func (t *DefaultTool) DownloadSubtitle(ctx context.Context, videoURL, lang, format string) (string, error) {
	outTemplate := filepath.Join(t.workDir, "%(id)s.%(ext)s")
	args := []string{
		"--skip-download",
		"--write-subs", "--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", format,
		"-o", outTemplate,
		videoURL,
	}
	if _, err := t.runWithRetry(ctx, args); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(t.workDir, "*."+lang+"."+format))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("ytdlp: no subtitle file produced for lang=%s format=%s", lang, format)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", fmt.Errorf("ytdlp: failed to read downloaded subtitle: %w", err)
	}
	return string(data), nil
}

// DownloadAudio downloads audio-only media, falling back through
// progressively lower-quality format selectors on rejection (spec.md
// §4.1 step 7).
func (t *DefaultTool) DownloadAudio(ctx context.Context, videoURL string, formatSelectors []string) (string, error) {
	outTemplate := filepath.Join(t.workDir, "%(id)s.%(ext)s")

	var lastErr error
	for _, selector := range formatSelectors {
		args := []string{"-f", selector, "-o", outTemplate, videoURL}
		if _, err := t.runWithRetry(ctx, args); err != nil {
			lastErr = err
			continue
		}
		matches, err := filepath.Glob(filepath.Join(t.workDir, "*"))
		if err != nil || len(matches) == 0 {
			lastErr = fmt.Errorf("ytdlp: no media file produced for selector %q", selector)
			continue
		}
		return matches[0], nil
	}
	return "", fmt.Errorf("ytdlp: all format selectors exhausted: %w", lastErr)
}

func (t *DefaultTool) runWithRetry(ctx context.Context, args []string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
		output, err := t.executor.Execute(attemptCtx, t.binPath, args...)
		cancel()
		if err == nil {
			return output, nil
		}
		lastErr = describeExecError(err, t.timeout, attemptCtx)
		if attempt == t.maxRetries || !isRetryableError(err) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func describeExecError(err error, timeout time.Duration, ctx context.Context) error {
	if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("yt-dlp failed (exit %d): %s", exitErr.ExitCode(), string(exitErr.Stderr))
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("yt-dlp timed out after %v", timeout)
	}
	return fmt.Errorf("yt-dlp failed: %w", err)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporary failure")
}

func (t *DefaultTool) cacheKeyFor(videoURL string) string {
	hash := sha256.Sum256([]byte(videoURL))
	return hex.EncodeToString(hash[:])[:16] + ".json"
}

func (t *DefaultTool) loadFromCache(key string) (*MediaInfo, bool) {
	if !t.enableCache {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(t.cacheDir, key))
	if err != nil {
		return nil, false
	}
	var info MediaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		os.Remove(filepath.Join(t.cacheDir, key))
		return nil, false
	}
	return &info, true
}

// saveToCache writes via temp-file-then-rename so a crash mid-write never
// leaves a corrupt cache entry behind.
func (t *DefaultTool) saveToCache(key string, data []byte) {
	if !t.enableCache {
		return
	}
	path := filepath.Join(t.cacheDir, key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write ytdlp cache file")
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to rename ytdlp cache file")
		os.Remove(tmpPath)
	}
}
