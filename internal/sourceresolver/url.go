// Package sourceresolver implements the Source Resolver: URL normalization,
// platform metadata lookup, language detection, and subtitle-vs-transcribe
// strategy selection.
package sourceresolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/pipelineerrors"
)

// CanonicalSource is the normalized {platform, video_id} pair (spec.md §4.1
// step 1).
type CanonicalSource struct {
	Platform model.Platform
	VideoID  string
}

var (
	youtuBeRegexp    = regexp.MustCompile(`^https?://youtu\.be/([a-zA-Z0-9_-]{11})`)
	youtubeLongRegexp = regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`)
	youtubeShortsRegexp = regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]{11})`)
	b23TvRegexp      = regexp.MustCompile(`^https?://b23\.tv/([a-zA-Z0-9]+)`)
	bilibiliRegexp   = regexp.MustCompile(`^https?://(?:www\.)?bilibili\.com/video/([a-zA-Z0-9]+)`)
	acfunRegexp      = regexp.MustCompile(`^https?://(?:www\.)?acfun\.cn/v/(ac[a-zA-Z0-9]+)`)
)

// RedirectResolver follows one HEAD redirect to resolve a short link, per
// spec.md §4.1 step 1 ("Short links are resolved by following one HEAD
// redirect").
type RedirectResolver interface {
	ResolveRedirect(ctx context.Context, shortURL string) (string, error)
}

// HTTPRedirectResolver is the default RedirectResolver, using a client that
// does not auto-follow redirects so the Location header can be read directly.
type HTTPRedirectResolver struct {
	Client *http.Client
}

func NewHTTPRedirectResolver() *HTTPRedirectResolver {
	return &HTTPRedirectResolver{
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (r *HTTPRedirectResolver) ResolveRedirect(ctx context.Context, shortURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, shortURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, nil
	}
	return shortURL, nil
}

// NormalizeURL classifies input into a CanonicalSource, following one HEAD
// redirect for known short-link hosts before re-matching.
func NormalizeURL(ctx context.Context, rawURL string, redirects RedirectResolver) (CanonicalSource, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return CanonicalSource{}, fmt.Errorf("%w: %v", pipelineerrors.ErrInvalidURL, err)
	}

	if m := youtuBeRegexp.FindStringSubmatch(rawURL); m != nil {
		return resolveShortLink(ctx, rawURL, m[1], model.PlatformYouTube, redirects)
	}
	if m := b23TvRegexp.FindStringSubmatch(rawURL); m != nil {
		return resolveShortLink(ctx, rawURL, "", model.PlatformBilibili, redirects)
	}
	if m := youtubeLongRegexp.FindStringSubmatch(rawURL); m != nil {
		return CanonicalSource{Platform: model.PlatformYouTube, VideoID: m[1]}, nil
	}
	if m := youtubeShortsRegexp.FindStringSubmatch(rawURL); m != nil {
		return CanonicalSource{Platform: model.PlatformYouTube, VideoID: m[1]}, nil
	}
	if m := bilibiliRegexp.FindStringSubmatch(rawURL); m != nil {
		return CanonicalSource{Platform: model.PlatformBilibili, VideoID: m[1]}, nil
	}
	if m := acfunRegexp.FindStringSubmatch(rawURL); m != nil {
		return CanonicalSource{Platform: model.PlatformAcFun, VideoID: m[1]}, nil
	}

	return CanonicalSource{}, fmt.Errorf("%w: %s", pipelineerrors.ErrUnsupportedPlatform, rawURL)
}

// resolveShortLink follows the short link then re-normalizes the resolved
// long-form URL. youtu.be carries the video ID already; b23.tv does not, so
// its video ID is recovered only after the redirect.
func resolveShortLink(ctx context.Context, shortURL, knownID string, platform model.Platform, redirects RedirectResolver) (CanonicalSource, error) {
	if knownID != "" {
		return CanonicalSource{Platform: platform, VideoID: knownID}, nil
	}
	if redirects == nil {
		return CanonicalSource{}, fmt.Errorf("%w: short link requires a redirect resolver", pipelineerrors.ErrInvalidURL)
	}
	resolved, err := redirects.ResolveRedirect(ctx, shortURL)
	if err != nil {
		return CanonicalSource{}, fmt.Errorf("%w: %v", pipelineerrors.ErrSourceUnavailable, err)
	}
	return NormalizeURL(ctx, resolved, redirects)
}

// hasCJK reports whether s contains any CJK ideograph, per spec.md §4.1
// step 3 "Title contains any CJK-ideographic character".
func hasCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

// latinLetterCount counts ASCII letters in s.
func latinLetterCount(s string) int {
	count := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			count++
		}
	}
	return count
}

// hasLangPrefix reports whether any entry in langs has the given
// case-insensitive prefix (e.g. "zh" matches "zh-Hans").
func hasLangPrefix(langs []string, prefix string) bool {
	prefix = strings.ToLower(prefix)
	for _, l := range langs {
		if strings.HasPrefix(strings.ToLower(l), prefix) {
			return true
		}
	}
	return false
}
