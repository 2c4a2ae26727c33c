package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendHealthCacheMissByDefault(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewBackendHealthCache(filepath.Join(dir, "health"), time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("primary")
	assert.False(t, ok)
}

func TestBackendHealthCacheSetThenGet(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewBackendHealthCache(filepath.Join(dir, "health"), time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set("primary", BackendHealthRecord{Healthy: true, GPUAvailable: true}))

	rec, ok := cache.Get("primary")
	require.True(t, ok)
	assert.True(t, rec.Healthy)
	assert.True(t, rec.GPUAvailable)
}

func TestBackendHealthCacheExpiresAfterTTL(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewBackendHealthCache(filepath.Join(dir, "health"), 10*time.Millisecond)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set("primary", BackendHealthRecord{Healthy: true}))
	time.Sleep(200 * time.Millisecond)

	_, ok := cache.Get("primary")
	assert.False(t, ok)
}
