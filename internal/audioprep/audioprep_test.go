package audioprep

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	ffprobeOutput []byte
	ffprobeErr    error
	ffmpegErr     error
	ffmpegCalls   int
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	if name == "ffprobe" {
		return f.ffprobeOutput, f.ffprobeErr
	}
	f.ffmpegCalls++
	if f.ffmpegErr != nil {
		return nil, f.ffmpegErr
	}
	// Locate the output path, the last arg, and write a stub file there.
	outPath := args[len(args)-1]
	return nil, os.WriteFile(outPath, []byte("RIFF....WAVEfmt "), 0o644)
}

func probeJSON(sampleRate string, channels int, duration string) []byte {
	return []byte(`{
		"streams":[{"codec_type":"audio","sample_rate":"` + sampleRate + `","channels":` + itoa(channels) + `}],
		"format":{"duration":"` + duration + `","size":"1000"}
	}`)
}

func itoa(n int) string {
	if n == 1 {
		return "1"
	}
	if n == 2 {
		return "2"
	}
	return "0"
}

func TestPrepareSkipsConversionWhenAlreadyCanonical(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(inPath, []byte("data"), 0o644))

	exec := &fakeExecutor{ffprobeOutput: probeJSON("16000", 1, "30.0")}
	p := NewPreparerWithExecutor(exec)

	buf, chunks, err := p.Prepare(context.Background(), inPath)
	require.NoError(t, err)
	assert.Equal(t, 0, exec.ffmpegCalls)
	assert.Equal(t, 16000, buf.SampleRate)
	assert.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Ordinal)
}

func TestPrepareConvertsWhenNotCanonical(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(inPath, []byte("data"), 0o644))

	exec := &fakeExecutor{ffprobeOutput: probeJSON("44100", 2, "30.0")}
	p := NewPreparerWithExecutor(exec)

	buf, _, err := p.Prepare(context.Background(), inPath)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.ffmpegCalls)
	assert.FileExists(t, buf.Path)
}

func TestPlanChunksSingleChunkUnderBudget(t *testing.T) {
	chunks := planChunks(300, 50*1024*1024)
	require.Len(t, chunks, 1)
	assert.InDelta(t, 300, chunks[0].DurationSec, 0.001)
}

func TestPlanChunksSplitsByDuration(t *testing.T) {
	chunks := planChunks(1800, 10*1024*1024) // 3x the 600s cap
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].Ordinal)
	assert.Equal(t, 3, chunks[2].Ordinal)
	assert.InDelta(t, 0, chunks[0].StartOffsetSec, 0.001)
}

func TestPlanChunksSplitsBySize(t *testing.T) {
	chunks := planChunks(100, 350*1024*1024) // 3.5x the 100MB cap, duration well under budget
	assert.Len(t, chunks, 4)
}

func TestPlanChunksOverlapNotAppliedToFinalChunk(t *testing.T) {
	chunks := planChunks(1800, 10*1024*1024)
	delta := 1800.0 / 3.0
	assert.Greater(t, chunks[0].DurationSec, delta)
	assert.InDelta(t, delta, chunks[2].DurationSec, 0.001)
}
