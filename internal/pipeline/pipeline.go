// Package pipeline wires the Source Resolver, Audio Preparer, ASR
// Coordinator, Subtitle Builder, and Translation Router into the top-level
// process()/transcribe()/translate()/parse_srt() calls (spec.md §6).
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/asr"
	"subtitle-pipeline/internal/audioprep"
	"subtitle-pipeline/internal/hotword"
	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/readwise"
	"subtitle-pipeline/internal/sourceresolver"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/subtitle"
	"subtitle-pipeline/internal/translate"
)

// Pipeline holds the process-wide collaborators each request is processed
// against. Everything here is initialized once at startup and shared,
// read-only except for the hotword settings coordinator, across concurrent
// requests (spec.md §5).
type Pipeline struct {
	Resolver        *sourceresolver.Resolver
	Preparer        *audioprep.Preparer
	Coordinator     *asr.Coordinator
	Backends        []asr.BackendConfig
	HotwordGen      *hotword.Generator
	PostProcessor   *hotword.PostProcessor
	Settings        *store.SettingsCoordinator
	RouterProviders []translate.ProviderEntry
	RouterConfig    translate.RouterConfig
	HealthCache     *store.BackendHealthCache
	Readwise        *readwise.Client
}

// Process implements the `process(SourceRequest)` upstream call: resolves
// the source, transcribes or reuses an existing subtitle track, builds the
// SRT document, and optionally translates it.
func (p *Pipeline) Process(ctx context.Context, req model.SourceRequest) (*model.ProcessResult, error) {
	plan, err := p.Resolver.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	var doc model.SrtDocument
	var audioInfo model.AudioInfo
	diag := model.Diagnostics{}

	switch plan.Mode {
	case model.ModeSubtitle:
		if !subtitle.IsSRT(plan.DownloadedSubtitleText) {
			log.Warn().Msg("downloaded subtitle track has no SRT timing lines, building cues from its plain text")
		}
		doc = subtitle.Parse(plan.DownloadedSubtitleText)

	case model.ModeTranscribe:
		buffer, chunks, err := p.Preparer.Prepare(ctx, plan.DownloadedAudioPath)
		if err != nil {
			return nil, fmt.Errorf("prepare audio: %w", err)
		}
		audioInfo = model.AudioInfo{DurationSeconds: buffer.DurationSec, SampleRate: buffer.SampleRate}

		hotwords := p.resolveHotwords(req, plan)

		// Pass every configured backend through: the Coordinator ranks and
		// fails over internally (spec.md §4.3) rather than committing to a
		// single pre-selected backend here.
		transcript, err := p.Coordinator.Transcribe(ctx, buffer, chunks, hotwords, p.Backends)
		if err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}
		diag.BackendUsed = transcript.BackendUsed
		diag.Partial = transcript.Partial

		if p.shouldPostProcess() {
			corrected, audit := p.PostProcessor.Process(transcript.Text, hotwords.Words())
			if audit.Corrections > 0 {
				log.Debug().Int("corrections", audit.Corrections).Msg("hotword post-processing applied")
			}
			transcript.Text = corrected
		}

		doc = subtitle.Build(*transcript)

	default:
		return nil, fmt.Errorf("resolve: unrecognized mode %q", plan.Mode)
	}

	result := &model.ProcessResult{
		Srt:         doc,
		AudioInfo:   audioInfo,
		Diagnostics: diag,
	}

	if req.TargetLanguage != "" {
		sourceLang := ""
		if plan.Video != nil {
			sourceLang = plan.Video.LanguageHint
		}
		result.Translation = p.Translate(ctx, subtitle.Format(doc), sourceLang, req.TargetLanguage)
	}

	if req.SaveToReadwise {
		result.Diagnostics.ReadwiseStatus = p.saveToReadwise(ctx, req, plan, doc)
	}

	return result, nil
}

// saveToReadwise pushes the produced subtitle document across the Readwise
// egress boundary, never failing the request itself: a misconfigured or
// unreachable Readwise is reported in diagnostics, not as a pipeline error.
func (p *Pipeline) saveToReadwise(ctx context.Context, req model.SourceRequest, plan *model.ResolvedPlan, doc model.SrtDocument) string {
	if p.Readwise == nil || !p.Readwise.IsConfigured() {
		return "skipped: not configured"
	}

	title := req.URL
	author := ""
	if plan.Video != nil {
		if plan.Video.Title != "" {
			title = plan.Video.Title
		}
		author = plan.Video.Uploader
	}

	_, err := p.Readwise.CreateDocument(ctx, readwise.Document{
		URL:     req.URL,
		Title:   title,
		Content: subtitle.Format(doc),
		Author:  author,
		Tags:    req.Tags,
	})
	if err != nil {
		log.Warn().Err(err).Msg("readwise egress failed")
		return "failed: " + err.Error()
	}
	return "success"
}

// Transcribe implements the `transcribe(audio_file, hotwords?)` upstream
// call directly, bypassing source resolution, for callers that already have
// a local audio file (e.g. direct upload).
func (p *Pipeline) Transcribe(ctx context.Context, audioPath string, hotwords []string) (*model.MergedTranscript, error) {
	buffer, chunks, err := p.Preparer.Prepare(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("prepare audio: %w", err)
	}

	set := model.HotwordSet{Source: model.HotwordSourceUser}
	for _, w := range hotwords {
		set.Terms = append(set.Terms, model.HotwordTerm{Term: w, Weight: 1})
	}

	return p.Coordinator.Transcribe(ctx, buffer, chunks, set, p.Backends)
}

// Translate implements the `translate(text, source, target)` upstream call.
// A RouterConfig is built per-request so each call can target a different
// language without mutating shared state.
func (p *Pipeline) Translate(ctx context.Context, text, sourceLang, targetLangName string) string {
	cfg := p.RouterConfig
	cfg.TargetLangName = targetLangName
	router := translate.NewRouter(cfg, p.RouterProviders)
	return router.Translate(ctx, text, sourceLang)
}

// ParseSRT implements the `parse_srt(text)` upstream call.
func (p *Pipeline) ParseSRT(text string) model.SrtDocument {
	return subtitle.Parse(text)
}

// resolveHotwords merges the request's explicit hotwords with any
// auto-generated set, honoring the runtime settings' mode and cap.
func (p *Pipeline) resolveHotwords(req model.SourceRequest, plan *model.ResolvedPlan) model.HotwordSet {
	settings := p.Settings.Get()

	set := model.HotwordSet{Source: model.HotwordSourceUser}
	for _, w := range req.Hotwords {
		set.Terms = append(set.Terms, model.HotwordTerm{Term: w, Weight: 1})
	}

	if settings.Mode == store.HotwordModeCurated || !settings.AutoHotwords {
		return capHotwords(set, req.MaxHotwords, settings.MaxCount)
	}

	title := ""
	if plan.Video != nil {
		title = plan.Video.Title
	}
	generated := p.HotwordGen.Generate(hotword.GenerationRequest{
		Title:       title,
		Tags:        req.Tags,
		Platform:    string(req.Platform),
		MaxHotwords: settings.MaxCount,
	})

	if settings.Mode == store.HotwordModeExperiment {
		set = generated
	} else {
		set.Terms = append(set.Terms, generated.Terms...)
	}

	return capHotwords(set, req.MaxHotwords, settings.MaxCount)
}

func capHotwords(set model.HotwordSet, requestCap, settingsCap int) model.HotwordSet {
	max := settingsCap
	if requestCap > 0 && requestCap < max {
		max = requestCap
	}
	if max > 0 && len(set.Terms) > max {
		set.Terms = set.Terms[:max]
	}
	return set
}

func (p *Pipeline) shouldPostProcess() bool {
	return p.Settings.Get().PostProcess
}

// HealthProber wraps the live HTTP prober with the durable health cache when
// one is configured, so a request doesn't pay a fresh /health round trip for
// every backend on every call.
func (p *Pipeline) HealthProber() asr.HealthProber {
	live := asr.NewHTTPHealthProber()
	if p.HealthCache == nil {
		return live
	}
	return asr.NewCachedHealthProber(live, p.HealthCache)
}
