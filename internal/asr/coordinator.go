package asr

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipelineerrors"
)

const (
	silencePeakThreshold   = 1e-4
	silenceEnergyThreshold = 1e-8
	defaultChunkTimeout    = 300 * time.Second
	maxConcurrentChunks    = 4
)

// ChunkExtractor slices one chunk's PCM samples out of the prepared audio
// buffer, given its planned offset and duration.
type ChunkExtractor interface {
	Extract(ctx context.Context, buffer *model.AudioBuffer, chunk model.AudioChunk) ([]byte, error)
}

// FfmpegChunkExtractor extracts a chunk via ffmpeg -ss/-t into WAV bytes.
type FfmpegChunkExtractor struct {
	FfmpegPath string
}

func NewFfmpegChunkExtractor() *FfmpegChunkExtractor {
	return &FfmpegChunkExtractor{FfmpegPath: "ffmpeg"}
}

func (e *FfmpegChunkExtractor) Extract(ctx context.Context, buffer *model.AudioBuffer, chunk model.AudioChunk) ([]byte, error) {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%f", chunk.StartOffsetSec),
		"-t", fmt.Sprintf("%f", chunk.DurationSec),
		"-i", buffer.Path,
		"-f", "wav", "pipe:1",
	}
	cmd := exec.CommandContext(ctx, e.FfmpegPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg chunk extraction failed: %w", err)
	}
	return out.Bytes(), nil
}

// chunkResult is one chunk's transcription outcome, used both by the
// sequential and worker-pool dispatch paths.
type chunkResult struct {
	chunk    model.AudioChunk
	segment  model.AsrSegment
	silent   bool
	err      error
}

// Coordinator implements the ASR Coordinator contract (spec.md §4.3).
type Coordinator struct {
	Prober        HealthProber
	Extractor     ChunkExtractor
	Client        *http.Client
	ChunkTimeout  time.Duration
	Concurrency   int
}

// NewCoordinator builds a Coordinator with default collaborators.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		Prober:       NewHTTPHealthProber(),
		Extractor:    NewFfmpegChunkExtractor(),
		Client:       &http.Client{},
		ChunkTimeout: defaultChunkTimeout,
		Concurrency:  maxConcurrentChunks,
	}
}

// Transcribe ranks the healthy backends, submits every chunk against the
// top-ranked one (in a bounded worker pool, matching the teacher's
// processChannelsConcurrently shape), and merges the results into global
// audio time. If a backend produces no successful chunks at all, it has
// failed before any chunk succeeded, and the coordinator fails over to the
// next admitted backend (spec.md §4.3).
func (c *Coordinator) Transcribe(ctx context.Context, buffer *model.AudioBuffer, chunks []model.AudioChunk, hotwords model.HotwordSet, backends []BackendConfig) (*model.MergedTranscript, error) {
	ranked := RankBackends(ctx, backends, c.Prober)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: no healthy ASR backend available", pipelineerrors.ErrSourceUnavailable)
	}

	var backend BackendConfig
	var results map[int]chunkResult
	for i, candidate := range ranked {
		backend = candidate
		results = c.dispatch(ctx, buffer, chunks, hotwords, backend)
		succeeded, failed := outcomeCounts(chunks, results)
		if succeeded > 0 || failed == 0 || i == len(ranked)-1 {
			break
		}
		log.Warn().Str("backend", backend.Name).Msg("backend produced no successful chunks, failing over to next backend")
	}

	return c.merge(chunks, results, backend.Name)
}

// outcomeCounts tallies how many chunks succeeded versus errored against a
// backend, ignoring chunks skipped as silence, to decide whether a backend
// failed before producing any output (spec.md §4.3).
func outcomeCounts(chunks []model.AudioChunk, results map[int]chunkResult) (succeeded, failed int) {
	for _, chunk := range chunks {
		res, ok := results[chunk.Ordinal]
		if !ok || res.err != nil {
			failed++
			continue
		}
		if res.silent {
			continue
		}
		if res.segment.Text != "" {
			succeeded++
		}
	}
	return succeeded, failed
}

// dispatch runs every chunk through a bounded worker pool. Per-chunk
// failures are logged and skipped (spec.md §4.3 "log and continue with the
// next"); whole-backend failover on total failure is decided by the caller
// via outcomeCounts.
func (c *Coordinator) dispatch(ctx context.Context, buffer *model.AudioBuffer, chunks []model.AudioChunk, hotwords model.HotwordSet, backend BackendConfig) map[int]chunkResult {
	concurrency := c.Concurrency
	if concurrency > len(chunks) {
		concurrency = len(chunks)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan model.AudioChunk, len(chunks))
	results := make(map[int]chunkResult, len(chunks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				res := c.processChunk(ctx, buffer, chunk, hotwords, backend)
				mu.Lock()
				results[chunk.Ordinal] = res
				mu.Unlock()
			}
		}()
	}

	for _, chunk := range chunks {
		jobs <- chunk
	}
	close(jobs)
	wg.Wait()

	return results
}

func (c *Coordinator) processChunk(ctx context.Context, buffer *model.AudioBuffer, chunk model.AudioChunk, hotwords model.HotwordSet, backend BackendConfig) chunkResult {
	pcm, err := c.Extractor.Extract(ctx, buffer, chunk)
	if err != nil {
		return chunkResult{chunk: chunk, err: err}
	}

	if isSilence(pcm) {
		return chunkResult{chunk: chunk, silent: true}
	}

	chunkCtx, cancel := context.WithTimeout(ctx, c.ChunkTimeout)
	defer cancel()

	segment, err := c.submitChunk(chunkCtx, backend, chunk, pcm, hotwords)
	if err != nil {
		log.Warn().Err(err).Int("chunk", chunk.Ordinal).Str("backend", backend.Name).Msg("chunk transcription failed, continuing")
		return chunkResult{chunk: chunk, err: err}
	}
	return chunkResult{chunk: chunk, segment: segment}
}

// submitChunk POSTs one chunk as multipart form data, per spec.md §4.3.
func (c *Coordinator) submitChunk(ctx context.Context, backend BackendConfig, chunk model.AudioChunk, pcm []byte, hotwords model.HotwordSet) (model.AsrSegment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", fmt.Sprintf("chunk-%d.wav", chunk.Ordinal))
	if err != nil {
		return model.AsrSegment{}, err
	}
	if _, err := part.Write(pcm); err != nil {
		return model.AsrSegment{}, err
	}
	if words := hotwords.Words(); len(words) > 0 {
		// Comma-joined, per spec.md §6's wire contract (authoritative over
		// the §4.3 prose's "space-joined" phrasing).
		writer.WriteField("hotwords", strings.Join(words, ","))
	}
	writer.WriteField("sentence_timestamp", "true")
	if err := writer.Close(); err != nil {
		return model.AsrSegment{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backend.URL+"/recognize", &body)
	if err != nil {
		return model.AsrSegment{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.Client.Do(req)
	if err != nil {
		return model.AsrSegment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return model.AsrSegment{}, fmt.Errorf("backend %s returned %d: %s", backend.Name, resp.StatusCode, string(data))
	}

	// The backend's result schema is dynamic (spec.md §9): text may arrive
	// under `text`, `result`, or `sentence`, and per-item timestamps may be
	// flat `timestamp` pairs (character granularity) or `sentence_info`
	// entries (segment granularity). Normalize both onto AsrSegment.
	var wire struct {
		Text         string     `json:"text"`
		Result       string     `json:"result"`
		Sentence     string     `json:"sentence"`
		Timestamp    [][2]int64 `json:"timestamp"`
		SentenceInfo []struct {
			Start int64 `json:"start"`
			End   int64 `json:"end"`
		} `json:"sentence_info"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return model.AsrSegment{}, err
	}

	segment := model.AsrSegment{ChunkOrdinal: chunk.Ordinal, Text: firstNonEmpty(wire.Text, wire.Result, wire.Sentence)}
	switch {
	case len(wire.Timestamp) > 0:
		for _, pair := range wire.Timestamp {
			segment.Timestamps = append(segment.Timestamps, model.Timestamp{StartMs: pair[0], EndMs: pair[1]})
		}
	case len(wire.SentenceInfo) > 0:
		for _, s := range wire.SentenceInfo {
			segment.Timestamps = append(segment.Timestamps, model.Timestamp{StartMs: s.Start, EndMs: s.End})
		}
	}
	return segment, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// merge implements spec.md §4.3's merge/offset/failure semantics.
func (c *Coordinator) merge(chunks []model.AudioChunk, results map[int]chunkResult, backendName string) (*model.MergedTranscript, error) {
	var textParts []string
	var timestamps []model.Timestamp
	var succeeded, failed int
	var totalDuration float64

	for _, chunk := range chunks {
		if end := chunk.StartOffsetSec + chunk.DurationSec; end > totalDuration {
			totalDuration = end
		}
		// The offset is the chunk's planned start, not the backend's reported
		// audio_info or a running sum of chunk durations, so the overlap
		// between adjacent chunks is not counted twice.
		offsetMs := int64(chunk.StartOffsetSec * 1000)
		res, ok := results[chunk.Ordinal]
		if !ok || res.err != nil {
			failed++
			continue
		}
		if res.silent {
			continue
		}
		if res.segment.Text != "" {
			textParts = append(textParts, res.segment.Text)
			succeeded++
		}
		for _, ts := range res.segment.Timestamps {
			timestamps = append(timestamps, model.Timestamp{
				StartMs: ts.StartMs + offsetMs,
				EndMs:   ts.EndMs + offsetMs,
			})
		}
	}

	if succeeded == 0 {
		return nil, pipelineerrors.ErrTranscriptionEmpty
	}

	return &model.MergedTranscript{
		Text:             strings.Join(textParts, " "),
		Timestamps:       timestamps,
		TotalDurationSec: totalDuration,
		Partial:          failed > 0,
		BackendUsed:      backendName,
	}, nil
}

// isSilence classifies a WAV chunk as silence when peak amplitude < 1e-4 and
// mean energy < 1e-8, per spec.md §4.3. Assumes 16-bit PCM samples after a
// standard 44-byte WAV header.
func isSilence(wavData []byte) bool {
	const headerSize = 44
	if len(wavData) <= headerSize {
		return true
	}
	samples := wavData[headerSize:]

	var peak float64
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(samples); i += 2 {
		s := int16(binary.LittleEndian.Uint16(samples[i : i+2]))
		amp := math.Abs(float64(s) / 32768.0)
		if amp > peak {
			peak = amp
		}
		sumSquares += amp * amp
		count++
	}
	if count == 0 {
		return true
	}
	meanEnergy := sumSquares / float64(count)
	return peak < silencePeakThreshold && meanEnergy < silenceEnergyThreshold
}
