package cron

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtitle-pipeline/internal/store"
)

func TestHotwordSettingsReloaderPicksUpExternalEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hotword_settings.json")
	settings, err := store.NewSettingsCoordinator(path)
	require.NoError(t, err)

	sched, err := NewHotwordSettingsReloader("@every 20ms", settings)
	require.NoError(t, err)
	sched.Start()
	defer sched.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"auto_hotwords":true,"post_process":false,"mode":"curated","max_count":10}`), 0o644))

	assert.Eventually(t, func() bool {
		return settings.Get().AutoHotwords
	}, time.Second, 10*time.Millisecond)
}
