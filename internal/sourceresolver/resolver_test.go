package sourceresolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipelineerrors"
	"subtitle-pipeline/internal/ytdlp"
)

type fakeTool struct {
	info          *ytdlp.MediaInfo
	metadataErr   error
	metadataCalls int
	subtitleText  string
	subtitleErr   error
	audioPath     string
	audioErr      error
}

func (f *fakeTool) FetchMetadata(ctx context.Context, videoURL string) (*ytdlp.MediaInfo, error) {
	f.metadataCalls++
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return f.info, nil
}

func (f *fakeTool) DownloadSubtitle(ctx context.Context, videoURL, lang, format string) (string, error) {
	if f.subtitleErr != nil {
		return "", f.subtitleErr
	}
	return f.subtitleText, nil
}

func (f *fakeTool) DownloadAudio(ctx context.Context, videoURL string, formatSelectors []string) (string, error) {
	if f.audioErr != nil {
		return "", f.audioErr
	}
	return f.audioPath, nil
}

func newTestResolver(tool ytdlp.Tool) *Resolver {
	r := NewResolver(tool)
	r.detector = nil // skip lingua-go model loading in tests
	return r
}

func TestResolveUploadBypassesURLResolution(t *testing.T) {
	r := newTestResolver(&fakeTool{})
	plan, err := r.Resolve(context.Background(), model.SourceRequest{
		Platform: model.PlatformUpload,
		FilePath: "/tmp/in.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModeTranscribe, plan.Mode)
	assert.Equal(t, "/tmp/in.mp4", plan.DownloadedAudioPath)
}

func TestResolveInvalidRequestRejected(t *testing.T) {
	r := newTestResolver(&fakeTool{})
	_, err := r.Resolve(context.Background(), model.SourceRequest{})
	assert.ErrorIs(t, err, model.ErrPlatformRequired)
}

func TestResolveChineseTitlePicksManualSubtitle(t *testing.T) {
	tool := &fakeTool{
		info: &ytdlp.MediaInfo{
			ID:    "abc",
			Title: "中文视频标题",
			Subtitles: map[string][]ytdlp.SubtitleTrack{
				"zh-Hans": {{Ext: "srt"}},
			},
		},
		subtitleText: "1\n00:00:00,000 --> 00:00:01,000\n你好\n",
	}
	r := newTestResolver(tool)
	plan, err := r.Resolve(context.Background(), model.SourceRequest{
		Platform: model.PlatformYouTube,
		URL:      "https://www.youtube.com/watch?v=aaaaaaaaaaa",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModeSubtitle, plan.Mode)
	assert.Contains(t, plan.DownloadedSubtitleText, "你好")
}

func TestResolveEnglishTitleNoCaptionsFallsBackToTranscribe(t *testing.T) {
	tool := &fakeTool{
		info: &ytdlp.MediaInfo{
			ID:    "abc",
			Title: "A great tutorial about things",
		},
		audioPath: "/tmp/abc.m4a",
	}
	r := newTestResolver(tool)
	plan, err := r.Resolve(context.Background(), model.SourceRequest{
		Platform: model.PlatformYouTube,
		URL:      "https://www.youtube.com/watch?v=bbbbbbbbbbb",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModeTranscribe, plan.Mode)
	assert.Equal(t, "/tmp/abc.m4a", plan.DownloadedAudioPath)
}

func TestResolveMetadataRetriedOnceBeforeSourceUnavailable(t *testing.T) {
	tool := &fakeTool{metadataErr: errors.New("yt-dlp: 403 forbidden")}
	r := newTestResolver(tool)
	_, err := r.Resolve(context.Background(), model.SourceRequest{
		Platform: model.PlatformYouTube,
		URL:      "https://www.youtube.com/watch?v=ccccccccccc",
	})
	assert.ErrorIs(t, err, pipelineerrors.ErrSourceUnavailable)
	assert.Equal(t, 2, tool.metadataCalls)
}

func TestResolveAmbiguousLanguageReturnsNoUsableSource(t *testing.T) {
	tool := &fakeTool{
		info: &ytdlp.MediaInfo{ID: "abc", Title: "."},
	}
	r := newTestResolver(tool)
	_, err := r.Resolve(context.Background(), model.SourceRequest{
		Platform: model.PlatformYouTube,
		URL:      "https://www.youtube.com/watch?v=ddddddddddd",
	})
	assert.ErrorIs(t, err, pipelineerrors.ErrNoUsableSource)
}
