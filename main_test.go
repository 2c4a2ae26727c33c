package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"subtitle-pipeline/internal/config"
)

func TestTranscribeBackendsFallsBackToDefaultURL(t *testing.T) {
	cfg := &config.Config{
		Servers: config.ServersConfig{
			Transcribe: config.TranscribeServersConfig{DefaultURL: "http://asr:9000"},
		},
	}
	backends := transcribeBackends(cfg)
	assert.Len(t, backends, 1)
	assert.Equal(t, "http://asr:9000", backends[0].URL)
}

func TestTranscribeBackendsUsesConfiguredServers(t *testing.T) {
	cfg := &config.Config{
		Servers: config.ServersConfig{
			Transcribe: config.TranscribeServersConfig{
				Servers: []config.TranscribeServerEntry{
					{Name: "gpu-1", URL: "http://gpu-1:9000", Priority: 0},
					{Name: "gpu-2", URL: "http://gpu-2:9000", Priority: 1},
				},
			},
		},
	}
	backends := transcribeBackends(cfg)
	assert.Len(t, backends, 2)
	assert.Equal(t, "gpu-1", backends[0].Name)
	assert.Equal(t, "gpu-2", backends[1].Name)
}

func TestNamedOpenAIConfigFindsByName(t *testing.T) {
	cfg := &config.Config{
		Tokens: config.TokensConfig{
			OpenAI: []config.OpenAINamedConfig{
				{Name: "primary", Model: "gpt-4o-mini"},
				{Name: "secondary", Model: "gpt-4o"},
			},
		},
	}
	found := namedOpenAIConfig(cfg, "secondary")
	if assert.NotNil(t, found) {
		assert.Equal(t, "gpt-4o", found.Model)
	}
	assert.Nil(t, namedOpenAIConfig(cfg, "missing"))
}

func TestTranslationProvidersSkipsUnknownNamedConfig(t *testing.T) {
	cfg := &config.Config{
		Translation: config.TranslationConfig{
			Services: []config.TranslationServiceConfig{
				{Name: "deeplx", Enabled: true, Priority: 0},
				{Name: "openai_primary", Enabled: true, Priority: 1, ConfigName: "missing"},
			},
		},
		Deeplx: config.DeeplxConfig{APIURL: "http://deeplx:1188/translate"},
	}
	entries := translationProviders(cfg)
	assert.Len(t, entries, 1)
}

func TestRouterConfigAppliesOverrides(t *testing.T) {
	cfg := &config.Config{
		Translation: config.TranslationConfig{ChunkSize: 500, MaxRetries: 5},
	}
	rc := routerConfig(cfg)
	assert.Equal(t, 500, rc.ChunkTarget)
	assert.Equal(t, 5, rc.MaxRetries)
}
