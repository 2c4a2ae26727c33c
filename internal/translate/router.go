package translate

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// ProviderEntry pairs a configured Provider with its router metadata.
type ProviderEntry struct {
	Provider Provider
	Enabled  bool
	Priority int
}

// RouterConfig tunes the chunking and retry/backoff behavior, defaulting to
// the values in spec.md §4.5.
type RouterConfig struct {
	ChunkTarget     int
	ChunkMax        int
	MaxRetries      int
	BaseDelay       time.Duration
	RequestInterval time.Duration
	TargetLangName  string
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ChunkTarget:     defaultChunkTarget,
		ChunkMax:        defaultChunkMax,
		MaxRetries:      3,
		BaseDelay:       3 * time.Second,
		RequestInterval: 1 * time.Second,
	}
}

// Router implements the Translation Router contract (spec.md §4.5): never
// raises on provider failure, falls back to the original text chunk by
// chunk when every provider is exhausted.
type Router struct {
	cfg       RouterConfig
	providers []ProviderEntry
}

func NewRouter(cfg RouterConfig, providers []ProviderEntry) *Router {
	sorted := make([]ProviderEntry, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Router{cfg: cfg, providers: sorted}
}

// Translate chunks text, routes each chunk through the provider chain, and
// reassembles the result in original order.
func (r *Router) Translate(ctx context.Context, text, sourceLang string) string {
	chunks := SplitChunks(text, r.cfg.ChunkTarget, r.cfg.ChunkMax)
	translated := make([]string, len(chunks))

	for i, chunk := range chunks {
		translated[i] = r.translateChunk(ctx, chunk, sourceLang)
		if i < len(chunks)-1 && r.cfg.RequestInterval > 0 {
			select {
			case <-time.After(r.cfg.RequestInterval):
			case <-ctx.Done():
				return Join(fillRemainder(translated, chunks))
			}
		}
	}
	return Join(translated)
}

// translateChunk tries each enabled provider in priority order; a provider
// exhausting its retries moves on to the next. If every provider fails, the
// chunk's original text is kept (identity fallback, spec.md §4.5).
func (r *Router) translateChunk(ctx context.Context, chunk, sourceLang string) string {
	for _, entry := range r.providers {
		if !entry.Enabled {
			continue
		}
		result, ok := r.attemptWithRetry(ctx, entry.Provider, chunk, sourceLang)
		if ok {
			return result
		}
	}
	return chunk
}

// attemptWithRetry performs exactly MaxRetries attempts with linear backoff
// (spec.md §4.5: delay = attempt * base_delay, doubled on 429; §3 bounds
// ProviderAttempt.attempt to 1..max_retries).
func (r *Router) attemptWithRetry(ctx context.Context, provider Provider, chunk, sourceLang string) (string, bool) {
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		result, err := provider.Translate(ctx, chunk, sourceLang, r.cfg.TargetLangName)
		if err == nil {
			return result, true
		}

		pe, ok := err.(*providerError)
		if !ok || pe.outcome == outcomeFatal {
			log.Warn().Err(err).Str("provider", provider.ID()).Msg("translation provider failed fatally, moving to next provider")
			return "", false
		}

		if attempt == r.cfg.MaxRetries-1 {
			log.Warn().Err(err).Str("provider", provider.ID()).Msg("translation provider exhausted retries")
			return "", false
		}

		delay := time.Duration(attempt+1) * r.cfg.BaseDelay
		if pe.outcome == outcomeRateLimited {
			delay *= 2
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", false
		}
	}
	return "", false
}

// fillRemainder keeps source text for any chunk not yet translated when the
// context is cancelled mid-request.
func fillRemainder(translated []string, chunks []string) []string {
	out := make([]string, len(chunks))
	for i := range chunks {
		if translated[i] != "" {
			out[i] = translated[i]
		} else {
			out[i] = chunks[i]
		}
	}
	return out
}
