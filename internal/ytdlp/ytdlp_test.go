package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   int
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	key := name
	if len(args) > 0 {
		key = args[len(args)-1]
	}
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.outputs[key], nil
}

func TestFetchMetadataParsesJSON(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string][]byte{
		"https://example.com/watch?v=abc": []byte(`{
			"id": "abc", "title": "Hello World", "uploader": "Someone",
			"duration": 123.5, "language": "en",
			"subtitles": {"en": [{"ext":"srt","url":"http://x/en.srt"}]},
			"automatic_captions": {"en-orig": [{"ext":"vtt","url":"http://x/auto.vtt"}]}
		}`),
	}}
	tool := NewDefaultToolWithExecutor(t.TempDir(), exec)

	info, err := tool.FetchMetadata(context.Background(), "https://example.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)
	assert.Equal(t, "Hello World", info.Title)
	assert.InDelta(t, 123.5, info.Duration, 0.001)
	assert.Contains(t, info.Subtitles, "en")
	assert.Contains(t, info.AutomaticCaptions, "en-orig")
}

func TestDownloadAudioFallsBackThroughSelectors(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{
		outputs: map[string][]byte{"https://x/video": nil},
		errs:    map[string]error{},
	}
	tool := NewDefaultToolWithExecutor(dir, exec)

	// The first selector fails with a non-retryable error; the call for the
	// second selector writes the media file.
	calls := 0
	exec2 := executorFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, assertErr("requested format is not available")
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.m4a"), []byte("audio"), 0o644))
		return nil, nil
	})
	tool.executor = exec2

	path, err := tool.DownloadAudio(context.Background(), "https://x/video", []string{"bestaudio[ext=m4a]", "worst"})
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.GreaterOrEqual(t, calls, 2)
}

type executorFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f executorFunc) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
