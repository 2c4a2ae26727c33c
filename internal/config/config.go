// Package config loads the YAML configuration file described in spec §6,
// with secret overlay from a local .env file, following the teacher's
// required-var-else-error and default-value idioms.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, loaded once at startup. It is
// not reloaded while the process runs; SIGHUP re-reads only the hotword
// settings file.
type Config struct {
	Tokens   TokensConfig   `yaml:"tokens"`
	Deeplx   DeeplxConfig   `yaml:"deeplx"`
	Translation TranslationConfig `yaml:"translation"`
	Servers  ServersConfig  `yaml:"servers"`
	Cookies  string         `yaml:"cookies"`
	App      AppConfig      `yaml:"app"`
	Hotwords HotwordsConfig `yaml:"hotwords"`
	Summary  SummaryConfig  `yaml:"summary"`

	// Ambient, not part of the YAML file: process wiring.
	APIPort   string
	DBPath    string
	Debug     bool
}

type TokensConfig struct {
	Readwise string               `yaml:"readwise"`
	OpenAI   []OpenAINamedConfig  `yaml:"openai"`
	Deepl    string               `yaml:"deepl"`
}

type OpenAINamedConfig struct {
	Name        string `yaml:"name"`
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	Model       string `yaml:"model"`
	Prompt      string `yaml:"prompt"`
}

type DeeplxConfig struct {
	APIURL   string `yaml:"api_url"`
	APIV2URL string `yaml:"api_v2_url"`
}

type TranslationConfig struct {
	Services       []TranslationServiceConfig `yaml:"services"`
	MaxRetries     int     `yaml:"max_retries"`
	BaseDelaySec   float64 `yaml:"base_delay"`
	RequestIntervalSec float64 `yaml:"request_interval"`
	ChunkSize      int     `yaml:"chunk_size"`
}

type TranslationServiceConfig struct {
	Name       string `yaml:"name"`
	Enabled    bool   `yaml:"enabled"`
	Priority   int    `yaml:"priority"`
	ConfigName string `yaml:"config_name,omitempty"`
}

type ServersConfig struct {
	Transcribe TranscribeServersConfig `yaml:"transcribe"`
}

type TranscribeServersConfig struct {
	DefaultURL string                  `yaml:"default_url"`
	TimeoutSec float64                 `yaml:"timeout"`
	Servers    []TranscribeServerEntry `yaml:"servers"`
}

type TranscribeServerEntry struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
}

type AppConfig struct {
	UploadFolder string `yaml:"upload_folder"`
	OutputFolder string `yaml:"output_folder"`
	MaxFileSize  int64  `yaml:"max_file_size"`
}

// HotwordsConfig points at the on-disk hotword category/config directory,
// an ambient concern not itemized in spec.md's config table but required
// by the Hotword Service (supplemented from original_source/hotword_service.py).
type HotwordsConfig struct {
	ConfigDir    string `yaml:"config_dir"`
	SettingsPath string `yaml:"settings_path"`
}

// SummaryConfig configures the optional SRT-summarization feature. It is
// disabled by default since it has no sane endpoint default; callers get a
// MockService until an operator opts in.
type SummaryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIEndpoint string `yaml:"api_endpoint"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Prompt      string `yaml:"prompt"`
}

// defaults mirrors original_source/app/config/config_manager.py's fallbacks.
func defaults() Config {
	return Config{
		Deeplx: DeeplxConfig{
			APIURL:   "http://deeplx:1188/translate",
			APIV2URL: "http://deeplx:1188/v2/translate",
		},
		Translation: TranslationConfig{
			MaxRetries:         3,
			BaseDelaySec:       3,
			RequestIntervalSec: 1,
			ChunkSize:          2000,
		},
		Servers: ServersConfig{
			Transcribe: TranscribeServersConfig{
				TimeoutSec: 300,
			},
		},
		Hotwords: HotwordsConfig{
			ConfigDir:    "config/hotwords",
			SettingsPath: "config/hotwords/settings.json",
		},
		APIPort: "8080",
		DBPath:  "./data/filestore",
	}
}

// candidatePaths is the path resolution order: containerized location first,
// then a local fallback, per spec.md §6.
var candidatePaths = []string{
	"/etc/subtitle-pipeline/config.yaml",
	"./config.yaml",
}

// Load reads the YAML config file, applying defaults for any unset key, and
// overlays secrets from a local .env file (teacher idiom: best-effort, does
// not error if absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path, data, err := readFirstExisting(candidatePaths)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("API_PORT"); v != "" {
		cfg.APIPort = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DEBUG"); v == "true" {
		cfg.Debug = true
	}
	if v := os.Getenv("READWISE_TOKEN"); v != "" {
		cfg.Tokens.Readwise = v
	}

	return &cfg, nil
}

func readFirstExisting(paths []string) (string, []byte, error) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !os.IsNotExist(err) {
			return p, nil, err
		}
	}
	// No config file found is not fatal: all keys have defaults.
	return "", nil, nil
}
