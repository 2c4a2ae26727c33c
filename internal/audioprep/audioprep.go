// Package audioprep implements the Audio Preparer: normalizes a downloaded
// media file to 16 kHz mono PCM WAV via ffmpeg, then slices it into
// duration/size-bounded chunks.
package audioprep

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipelineerrors"
)

const (
	targetSampleRate = 16000
	targetChannels   = 1
	maxChunkSeconds  = 600
	maxChunkBytes    = 100 * 1024 * 1024
	maxOverlapSec    = 0.5
)

// CommandExecutor executes an external command and returns its stdout.
// Mirrors internal/ytdlp's executor shape so ffmpeg/ffprobe invocations can
// be faked in tests the same way.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandExecutor runs commands via os/exec.
type DefaultCommandExecutor struct{}

func (e *DefaultCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	log.Debug().Str("cmd", cmd.String()).Msg("executing audio tool")
	return cmd.Output()
}

type probeFormat struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Preparer implements the Audio Preparer contract (spec.md §4.2).
type Preparer struct {
	ffmpegPath  string
	ffprobePath string
	executor    CommandExecutor
}

// NewPreparer builds a Preparer backed by the system ffmpeg/ffprobe binaries.
func NewPreparer() *Preparer {
	return &Preparer{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		executor:    &DefaultCommandExecutor{},
	}
}

// NewPreparerWithExecutor injects a fake executor for tests.
func NewPreparerWithExecutor(executor CommandExecutor) *Preparer {
	return &Preparer{ffmpegPath: "ffmpeg", ffprobePath: "ffprobe", executor: executor}
}

// Prepare normalizes inputPath to canonical PCM and slices it into chunks,
// per spec.md §4.2.
func (p *Preparer) Prepare(ctx context.Context, inputPath string) (*model.AudioBuffer, []model.AudioChunk, error) {
	info, err := p.probe(ctx, inputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrAudioDecode, err)
	}

	outPath := inputPath
	if info.sampleRate != targetSampleRate || info.channels != targetChannels {
		outPath, err = p.convertAtomic(ctx, inputPath)
		if err != nil {
			return nil, nil, err
		}
	}

	fileInfo, err := os.Stat(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrIo, err)
	}

	buffer := &model.AudioBuffer{
		Path:        outPath,
		SampleRate:  targetSampleRate,
		Channels:    targetChannels,
		Frames:      int64(info.duration * targetSampleRate),
		DurationSec: info.duration,
	}

	chunks := planChunks(info.duration, fileInfo.Size())
	return buffer, chunks, nil
}

type mediaInfo struct {
	sampleRate int
	channels   int
	duration   float64
}

func (p *Preparer) probe(ctx context.Context, path string) (mediaInfo, error) {
	args := []string{
		"-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", path,
	}
	output, err := p.executor.Execute(ctx, p.ffprobePath, args...)
	if err != nil {
		return mediaInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probed probeFormat
	if err := json.Unmarshal(output, &probed); err != nil {
		return mediaInfo{}, fmt.Errorf("ffprobe output parse failed: %w", err)
	}

	var info mediaInfo
	for _, s := range probed.Streams {
		if s.CodecType == "audio" {
			info.channels = s.Channels
			fmt.Sscanf(s.SampleRate, "%d", &info.sampleRate)
			break
		}
	}
	fmt.Sscanf(probed.Format.Duration, "%f", &info.duration)
	return info, nil
}

// convertAtomic converts inputPath to 16 kHz mono PCM WAV, guaranteeing that
// a mid-write crash never destroys the original when input and output paths
// coincide (spec.md §4.2).
func (p *Preparer) convertAtomic(ctx context.Context, inputPath string) (string, error) {
	dir := filepath.Dir(inputPath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.converting.wav", filepath.Base(inputPath)))
	backupPath := inputPath + ".bak"

	args := []string{
		"-y", "-i", inputPath,
		"-ar", fmt.Sprint(targetSampleRate),
		"-ac", fmt.Sprint(targetChannels),
		"-sample_fmt", "s16",
		tmpPath,
	}
	if _, err := p.executor.Execute(ctx, p.ffmpegPath, args...); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: ffmpeg conversion failed: %v", pipelineerrors.ErrAudioDecode, err)
	}

	outPath := inputPath
	if filepath.Ext(outPath) != ".wav" {
		outPath = outPath[:len(outPath)-len(filepath.Ext(outPath))] + ".wav"
	}

	if outPath == inputPath {
		if err := os.Rename(inputPath, backupPath); err != nil {
			os.Remove(tmpPath)
			return "", fmt.Errorf("%w: failed to back up original before overwrite: %v", pipelineerrors.ErrIo, err)
		}
		if err := os.Rename(tmpPath, outPath); err != nil {
			os.Rename(backupPath, inputPath) // restore
			return "", fmt.Errorf("%w: failed to move converted file into place: %v", pipelineerrors.ErrIo, err)
		}
		os.Remove(backupPath)
		return outPath, nil
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: failed to move converted file into place: %v", pipelineerrors.ErrIo, err)
	}
	return outPath, nil
}

// planChunks implements the chunking formula in spec.md §4.2.
func planChunks(durationSec float64, sizeBytes int64) []model.AudioChunk {
	if sizeBytes <= maxChunkBytes && durationSec <= maxChunkSeconds {
		return []model.AudioChunk{{Ordinal: 1, StartOffsetSec: 0, DurationSec: durationSec}}
	}

	byDuration := int(math.Ceil(durationSec / maxChunkSeconds))
	bySize := int(math.Ceil(float64(sizeBytes) / float64(maxChunkBytes)))
	n := byDuration
	if bySize > n {
		n = bySize
	}
	if n < 1 {
		n = 1
	}

	delta := durationSec / float64(n)
	chunks := make([]model.AudioChunk, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * delta
		end := start + delta
		if i < n-1 {
			overlap := math.Min(maxOverlapSec, delta)
			end += overlap
		}
		chunks = append(chunks, model.AudioChunk{
			Ordinal:        i + 1,
			StartOffsetSec: start,
			DurationSec:    end - start,
		})
	}
	return chunks
}
