package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// HotwordMode controls how the active hotword set for a request is built.
type HotwordMode string

const (
	HotwordModeUserOnly   HotwordMode = "user_only"
	HotwordModeCurated    HotwordMode = "curated"
	HotwordModeExperiment HotwordMode = "experiment"
)

func normalizeMode(mode string) HotwordMode {
	switch HotwordMode(mode) {
	case HotwordModeUserOnly, HotwordModeCurated, HotwordModeExperiment:
		return HotwordMode(mode)
	default:
		return HotwordModeUserOnly
	}
}

func normalizeMaxCount(count int) int {
	if count < 0 {
		return 0
	}
	if count > 100 {
		return 100
	}
	return count
}

// HotwordSettings is the runtime settings file shape from spec.md §6.
type HotwordSettings struct {
	AutoHotwords bool        `json:"auto_hotwords"`
	PostProcess  bool        `json:"post_process"`
	Mode         HotwordMode `json:"mode"`
	MaxCount     int         `json:"max_count"`
}

func defaultHotwordSettings() HotwordSettings {
	return HotwordSettings{AutoHotwords: false, PostProcess: false, Mode: HotwordModeUserOnly, MaxCount: 20}
}

func (s HotwordSettings) normalize() HotwordSettings {
	s.Mode = normalizeMode(string(s.Mode))
	s.MaxCount = normalizeMaxCount(s.MaxCount)
	return s
}

// SettingsCoordinator owns the process-wide hotword settings with
// last-writer-wins semantics, persisted to path via temp-file-plus-rename
// (spec.md §5): every writer serializes through the same mutex, and every
// write lands on disk atomically before a reader can observe it.
type SettingsCoordinator struct {
	mu    sync.RWMutex
	path  string
	state HotwordSettings
}

// NewSettingsCoordinator loads existing settings from path, or seeds
// defaults and persists them if the file doesn't exist yet.
func NewSettingsCoordinator(path string) (*SettingsCoordinator, error) {
	c := &SettingsCoordinator{path: path}

	if loaded, ok := c.loadFromFile(); ok {
		c.state = loaded
		return c, nil
	}

	c.state = defaultHotwordSettings()
	if err := c.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SettingsCoordinator) loadFromFile() (HotwordSettings, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return HotwordSettings{}, false
	}
	var state HotwordSettings
	if err := json.Unmarshal(raw, &state); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("hotword settings file unreadable, falling back to defaults")
		return HotwordSettings{}, false
	}
	return state.normalize(), true
}

// Get returns a copy of the current settings.
func (c *SettingsCoordinator) Get() HotwordSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Reload re-reads the settings file from disk, picking up edits made by a
// process other than this one (an operator hand-editing the file, or a
// second instance). A missing or unreadable file leaves the in-memory state
// untouched rather than reverting to defaults.
func (c *SettingsCoordinator) Reload() {
	loaded, ok := c.loadFromFile()
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = loaded
}

// Update applies fn to a copy of the current state, normalizes it, persists
// it atomically, and only then swaps it in (last-writer-wins).
func (c *SettingsCoordinator) Update(fn func(HotwordSettings) HotwordSettings) (HotwordSettings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fn(c.state).normalize()
	prev := c.state
	c.state = next
	if err := c.persist(); err != nil {
		c.state = prev
		return prev, err
	}
	return c.state, nil
}

// persist writes c.state to c.path via a temp file in the same directory
// followed by an atomic rename, so a concurrent reader never observes a
// partially-written file.
func (c *SettingsCoordinator) persist() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, c.path)
}
