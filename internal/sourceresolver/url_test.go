package sourceresolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtitle-pipeline/internal/model"
)

type fakeRedirects struct {
	resolved map[string]string
}

func (f *fakeRedirects) ResolveRedirect(ctx context.Context, shortURL string) (string, error) {
	return f.resolved[shortURL], nil
}

func TestNormalizeURLYouTubeLong(t *testing.T) {
	src, err := NormalizeURL(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformYouTube, src.Platform)
	assert.Equal(t, "dQw4w9WgXcQ", src.VideoID)
}

func TestNormalizeURLYouTubeShorts(t *testing.T) {
	src, err := NormalizeURL(context.Background(), "https://youtube.com/shorts/dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformYouTube, src.Platform)
	assert.Equal(t, "dQw4w9WgXcQ", src.VideoID)
}

func TestNormalizeURLYouTubeShortLink(t *testing.T) {
	src, err := NormalizeURL(context.Background(), "https://youtu.be/dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformYouTube, src.Platform)
	assert.Equal(t, "dQw4w9WgXcQ", src.VideoID)
}

func TestNormalizeURLBilibiliShortLinkFollowsRedirect(t *testing.T) {
	redirects := &fakeRedirects{resolved: map[string]string{
		"https://b23.tv/abc123": "https://www.bilibili.com/video/BV1xx411c7mD",
	}}
	src, err := NormalizeURL(context.Background(), "https://b23.tv/abc123", redirects)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformBilibili, src.Platform)
	assert.Equal(t, "BV1xx411c7mD", src.VideoID)
}

func TestNormalizeURLAcFun(t *testing.T) {
	src, err := NormalizeURL(context.Background(), "https://www.acfun.cn/v/ac12345", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformAcFun, src.Platform)
	assert.Equal(t, "ac12345", src.VideoID)
}

func TestNormalizeURLUnsupportedPlatform(t *testing.T) {
	_, err := NormalizeURL(context.Background(), "https://vimeo.com/12345", nil)
	assert.Error(t, err)
}
