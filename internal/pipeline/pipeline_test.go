package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"subtitle-pipeline/internal/asr"
	"subtitle-pipeline/internal/model"
	"subtitle-pipeline/internal/readwise"
	"subtitle-pipeline/internal/store"
)

func newTempHealthCache(t *testing.T) (*store.BackendHealthCache, error) {
	t.Helper()
	return store.NewBackendHealthCache(filepath.Join(t.TempDir(), "health"), time.Minute)
}

func TestCapHotwordsAppliesTighterOfTheTwoCaps(t *testing.T) {
	set := model.HotwordSet{Terms: []model.HotwordTerm{
		{Term: "a"}, {Term: "b"}, {Term: "c"}, {Term: "d"},
	}}

	got := capHotwords(set, 2, 20)
	assert.Len(t, got.Terms, 2)

	got = capHotwords(set, 0, 3)
	assert.Len(t, got.Terms, 3)
}

func TestCapHotwordsNoCapWhenBothZero(t *testing.T) {
	set := model.HotwordSet{Terms: []model.HotwordTerm{{Term: "a"}, {Term: "b"}}}
	got := capHotwords(set, 0, 0)
	assert.Len(t, got.Terms, 2)
}

func TestHealthProberFallsBackToLiveWhenNoCacheConfigured(t *testing.T) {
	p := &Pipeline{}
	prober := p.HealthProber()
	_, ok := prober.(*asr.HTTPHealthProber)
	assert.True(t, ok)
}

func TestSaveToReadwiseSkipsWhenUnconfigured(t *testing.T) {
	p := &Pipeline{Readwise: readwise.NewClient("")}
	status := p.saveToReadwise(context.Background(), model.SourceRequest{URL: "https://example.com/v"}, &model.ResolvedPlan{}, model.SrtDocument{})
	assert.Equal(t, "skipped: not configured", status)
}

func TestSaveToReadwiseSkipsWhenNilClient(t *testing.T) {
	p := &Pipeline{}
	status := p.saveToReadwise(context.Background(), model.SourceRequest{URL: "https://example.com/v"}, &model.ResolvedPlan{}, model.SrtDocument{})
	assert.Equal(t, "skipped: not configured", status)
}

func TestHealthProberWrapsCacheWhenConfigured(t *testing.T) {
	cache, err := newTempHealthCache(t)
	if err != nil {
		t.Fatalf("failed to open temp health cache: %v", err)
	}
	defer cache.Close()

	p := &Pipeline{HealthCache: cache}
	prober := p.HealthProber()
	_, ok := prober.(*asr.CachedHealthProber)
	assert.True(t, ok)
}
