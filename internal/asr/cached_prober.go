package asr

import (
	"context"

	"subtitle-pipeline/internal/store"
)

// CachedHealthProber wraps a HealthProber with a durable, TTL-bounded cache
// so repeated requests don't re-probe every backend's /health endpoint on
// every call.
type CachedHealthProber struct {
	Inner HealthProber
	Cache *store.BackendHealthCache
}

func NewCachedHealthProber(inner HealthProber, cache *store.BackendHealthCache) *CachedHealthProber {
	return &CachedHealthProber{Inner: inner, Cache: cache}
}

func (p *CachedHealthProber) Probe(ctx context.Context, cfg BackendConfig) (bool, bool, error) {
	if rec, ok := p.Cache.Get(cfg.Name); ok {
		return rec.Healthy, rec.GPUAvailable, nil
	}

	healthy, gpu, err := p.Inner.Probe(ctx, cfg)
	if err != nil {
		return false, false, err
	}
	_ = p.Cache.Set(cfg.Name, store.BackendHealthRecord{Healthy: healthy, GPUAvailable: gpu})
	return healthy, gpu, nil
}
