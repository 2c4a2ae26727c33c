package sourceresolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipelineerrors"
	"subtitle-pipeline/internal/ytdlp"
)

// CookieSource is the abstract capability the Source Resolver consumes for
// platform authentication (spec.md §9): cookie acquisition itself is
// environmental and out of core.
type CookieSource interface {
	Get() ([]byte, bool)
}

// NoCookieSource is the default no-op CookieSource.
type NoCookieSource struct{}

func (NoCookieSource) Get() ([]byte, bool) { return nil, false }

// Resolver implements the Source Resolver component.
type Resolver struct {
	Tool      ytdlp.Tool
	Cookies   CookieSource
	Redirects RedirectResolver
	detector  lingua.LanguageDetector
}

// NewResolver wires a Resolver with its default collaborators.
func NewResolver(tool ytdlp.Tool) *Resolver {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Chinese).
		Build()
	return &Resolver{
		Tool:      tool,
		Cookies:   NoCookieSource{},
		Redirects: NewHTTPRedirectResolver(),
		detector:  detector,
	}
}

// Resolve implements spec.md §4.1's full algorithm.
func (r *Resolver) Resolve(ctx context.Context, req model.SourceRequest) (*model.ResolvedPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Platform == model.PlatformUpload {
		return &model.ResolvedPlan{
			Mode:                model.ModeTranscribe,
			DownloadedAudioPath: req.FilePath,
		}, nil
	}

	source, err := NormalizeURL(ctx, req.URL, r.Redirects)
	if err != nil {
		return nil, err
	}

	metaCtx, cancel := context.WithTimeout(ctx, model.RequestDeadlines.MetadataFetch)
	defer cancel()

	info, err := r.fetchMetadataWithFallback(metaCtx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSourceUnavailable, err)
	}

	manualLangs := keysOf(info.Subtitles)
	autoLangs := keysOf(info.AutomaticCaptions)

	lang := DetectLanguage(info.Title, manualLangs, autoLangs, info.Language)
	r.logDiagnosticLanguageGuess(info.Title, lang)

	mode, err := SelectStrategy(lang, manualLangs, autoLangs)
	if err != nil {
		return nil, err
	}

	video := &model.VideoInfo{
		ID:                  info.ID,
		Title:               info.Title,
		Uploader:            info.Uploader,
		DurationSec:         info.Duration,
		UploadDate:          info.UploadDate,
		LanguageHint:        lang,
		AvailableManualSubs: manualLangs,
		AvailableAutoSubs:   autoLangs,
	}

	plan := &model.ResolvedPlan{
		Video:                video,
		Mode:                 mode,
		SubtitleLangPriority: SubtitlePriority(lang, autoLangs),
	}

	switch mode {
	case model.ModeSubtitle:
		text, err := r.downloadBestSubtitle(ctx, req.URL, plan.SubtitleLangPriority, info)
		if err != nil {
			return nil, err
		}
		plan.DownloadedSubtitleText = text
	case model.ModeTranscribe:
		audioCtx, cancel := context.WithTimeout(ctx, model.RequestDeadlines.MediaDownload)
		defer cancel()
		path, err := r.Tool.DownloadAudio(audioCtx, req.URL, audioFormatSelectors(source.Platform))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrNoUsableSource, err)
		}
		plan.DownloadedAudioPath = path
	}

	_ = source // canonical source only feeds audioFormatSelectors, whose chain is the same for every platform
	return plan, nil
}

// fetchMetadataWithFallback retries FetchMetadata once, with the same
// arguments, before declaring SourceUnavailable; the retry does not switch to
// a separate metadata-only mode.
func (r *Resolver) fetchMetadataWithFallback(ctx context.Context, videoURL string) (*ytdlp.MediaInfo, error) {
	info, err := r.Tool.FetchMetadata(ctx, videoURL)
	if err == nil {
		return info, nil
	}
	log.Warn().Err(err).Str("url", videoURL).Msg("metadata fetch failed, retrying once")
	return r.Tool.FetchMetadata(ctx, videoURL)
}

// downloadBestSubtitle walks the priority list, picking the
// highest-format-priority track available at each language, per spec.md
// §4.1 step 6.
func (r *Resolver) downloadBestSubtitle(ctx context.Context, videoURL string, priority []string, info *ytdlp.MediaInfo) (string, error) {
	for _, lang := range priority {
		tracks, ok := info.Subtitles[lang]
		if !ok {
			tracks, ok = info.AutomaticCaptions[lang]
		}
		if !ok || len(tracks) == 0 {
			continue
		}
		sort.SliceStable(tracks, func(i, j int) bool {
			return rankFormat(tracks[i].Ext) < rankFormat(tracks[j].Ext)
		})
		best := tracks[0]
		raw, err := r.Tool.DownloadSubtitle(ctx, videoURL, lang, best.Ext)
		if err != nil {
			continue
		}
		return DecodeSubtitleBytes([]byte(raw)), nil
	}
	return "", pipelineerrors.ErrNoUsableSource
}

// audioFormatSelectors returns the progressively lower-quality format
// selector chain for transcribe mode, per spec.md §4.1 step 7.
func audioFormatSelectors(platform model.Platform) []string {
	return []string{
		"bestaudio[ext=m4a]/bestaudio",
		"worst[height<=480]",
		"worst[height<=720]",
	}
}

// logDiagnosticLanguageGuess runs the lingua-go backstop purely for
// diagnostics; it never overrides the deterministic decision order
// (SPEC_FULL.md §4 domain-stack note).
func (r *Resolver) logDiagnosticLanguageGuess(title, decided string) {
	if decided != "" || r.detector == nil || title == "" {
		return
	}
	if lang, ok := r.detector.DetectLanguageOf(title); ok {
		log.Debug().Str("title", title).Str("lingua_guess", lang.String()).Msg("language heuristic returned null; diagnostic guess only")
	}
}

func keysOf(m map[string][]ytdlp.SubtitleTrack) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
