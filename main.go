package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"

	"subtitle-pipeline/internal/api"
	"subtitle-pipeline/internal/asr"
	"subtitle-pipeline/internal/audioprep"
	"subtitle-pipeline/internal/config"
	"subtitle-pipeline/internal/cron"
	"subtitle-pipeline/internal/hotword"
	"subtitle-pipeline/internal/logging"
	"subtitle-pipeline/internal/pipeline"
	"subtitle-pipeline/internal/readwise"
	"subtitle-pipeline/internal/sourceresolver"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/summary"
	"subtitle-pipeline/internal/translate"
	"subtitle-pipeline/internal/ytdlp"
)

// hotwordSettingsDebounce is how long a SIGHUP-triggered reload waits before
// re-reading the settings file, giving a burst of closely-spaced signals
// (e.g. a config-management tool sending one per replica) time to settle.
const hotwordSettingsDebounce = 200 * time.Millisecond

// backendHealthTTL bounds how long a cached ASR backend health result is
// trusted before the next request probes it live again.
const backendHealthTTL = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog.Logger = logging.New(cfg.Debug)

	fmt.Println("Subtitle Pipeline Starting...")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	settings, err := store.NewSettingsCoordinator(cfg.Hotwords.SettingsPath)
	if err != nil {
		log.Fatalf("Failed to open hotword settings: %v", err)
	}

	generator := hotword.NewGenerator()
	if err := generator.LoadCategories(cfg.Hotwords.ConfigDir); err != nil {
		log.Printf("Warning: failed to load hotword categories from %s: %v", cfg.Hotwords.ConfigDir, err)
	}

	healthCache, err := store.NewBackendHealthCache(cfg.DBPath, backendHealthTTL)
	if err != nil {
		log.Fatalf("Failed to open backend health cache: %v", err)
	}
	defer healthCache.Close()

	p := &pipeline.Pipeline{
		Resolver:        sourceresolver.NewResolver(ytdlp.NewDefaultTool(cfg.App.UploadFolder)),
		Preparer:        audioprep.NewPreparer(),
		Coordinator:     asr.NewCoordinator(),
		Backends:        transcribeBackends(cfg),
		HotwordGen:      generator,
		PostProcessor:   hotword.NewPostProcessor(),
		Settings:        settings,
		RouterProviders: translationProviders(cfg),
		RouterConfig:    routerConfig(cfg),
		HealthCache:     healthCache,
		Readwise:        readwise.NewClient(cfg.Tokens.Readwise),
	}

	// Wire the durable health cache into the coordinator's prober once at
	// startup so backend ranking (and failover) benefit from it.
	p.Coordinator.Prober = p.HealthProber()

	summarizer := newSummarizer(cfg)

	reloader, err := cron.NewHotwordSettingsReloader("*/5 * * * *", settings)
	if err != nil {
		log.Fatalf("Failed to schedule hotword settings reloader: %v", err)
	}
	reloader.Start()
	defer reloader.Stop()

	e := api.SetupRouter(p, settings, summarizer)
	fmt.Printf("Starting API server on port %s...\n", cfg.APIPort)
	go func() {
		if err := e.Start(":" + cfg.APIPort); err != nil {
			log.Printf("API server stopped: %v", err)
		}
	}()

	runUntilSignal(e, settings)
}

// runUntilSignal blocks, reloading hotword settings on SIGHUP (debounced so a
// burst of signals only triggers one re-read) and shutting the server down
// gracefully on SIGINT/SIGTERM.
func runUntilSignal(e *echo.Echo, settings *store.SettingsCoordinator) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var debounce *time.Timer
	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(hotwordSettingsDebounce, settings.Reload)
			default:
				fmt.Println("Shutting down Subtitle Pipeline...")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := e.Shutdown(ctx); err != nil {
					log.Printf("Error during server shutdown: %v", err)
				}
				return
			}
		}
	}
}

func transcribeBackends(cfg *config.Config) []asr.BackendConfig {
	servers := cfg.Servers.Transcribe.Servers
	if len(servers) == 0 {
		return []asr.BackendConfig{{Name: "default", URL: cfg.Servers.Transcribe.DefaultURL, Priority: 0}}
	}
	backends := make([]asr.BackendConfig, len(servers))
	for i, s := range servers {
		backends[i] = asr.BackendConfig{Name: s.Name, URL: s.URL, Priority: s.Priority}
	}
	return backends
}

func translationProviders(cfg *config.Config) []translate.ProviderEntry {
	var entries []translate.ProviderEntry
	for _, svc := range cfg.Translation.Services {
		entry := translate.ProviderEntry{Enabled: svc.Enabled, Priority: svc.Priority}
		switch svc.Name {
		case "deeplx":
			entry.Provider = translate.NewDeeplxProvider(svc.Name, cfg.Deeplx.APIURL, false)
		case "deeplx_v2":
			entry.Provider = translate.NewDeeplxProvider(svc.Name, cfg.Deeplx.APIV2URL, true)
		default:
			named := namedOpenAIConfig(cfg, svc.ConfigName)
			if named == nil {
				log.Printf("Warning: translation service %q references unknown openai config %q, skipping", svc.Name, svc.ConfigName)
				continue
			}
			entry.Provider = translate.NewOpenAIProvider(svc.Name, named.APIEndpoint, named.APIKey, named.Model)
		}
		entries = append(entries, entry)
	}
	return entries
}

func namedOpenAIConfig(cfg *config.Config, name string) *config.OpenAINamedConfig {
	for i := range cfg.Tokens.OpenAI {
		if cfg.Tokens.OpenAI[i].Name == name {
			return &cfg.Tokens.OpenAI[i]
		}
	}
	return nil
}

func routerConfig(cfg *config.Config) translate.RouterConfig {
	rc := translate.DefaultRouterConfig()
	if cfg.Translation.ChunkSize > 0 {
		rc.ChunkTarget = cfg.Translation.ChunkSize
	}
	if cfg.Translation.MaxRetries > 0 {
		rc.MaxRetries = cfg.Translation.MaxRetries
	}
	return rc
}

func newSummarizer(cfg *config.Config) summary.Summarizer {
	if !cfg.Summary.Enabled {
		return summary.NewMockService()
	}
	svc, err := summary.NewService(summary.Config{
		Enabled:     cfg.Summary.Enabled,
		APIEndpoint: cfg.Summary.APIEndpoint,
		APIKey:      cfg.Summary.APIKey,
		Model:       cfg.Summary.Model,
		Prompt:      cfg.Summary.Prompt,
	})
	if err != nil {
		log.Printf("Warning: summary service misconfigured, falling back to mock: %v", err)
		return summary.NewMockService()
	}
	return svc
}
