// Package asr implements the ASR Coordinator: backend health probing and
// selection, chunked transcription submission, and merge into a single
// MergedTranscript in global audio time.
package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"subtitle-pipeline/internal/http/retry"
)

// BackendConfig is one configured ASR backend entry, per spec.md §4.3.
type BackendConfig struct {
	Name     string
	URL      string
	Priority int
}

// healthStatus is the shape of a backend's health-probe response.
type healthStatus struct {
	Status       string `json:"status"`
	GPUAvailable bool   `json:"gpu_available"`
}

// rankedBackend is a BackendConfig admitted after a passing health probe.
type rankedBackend struct {
	config       BackendConfig
	gpuAvailable bool
}

// HealthProber checks whether a backend is healthy and returns its reported
// capabilities.
type HealthProber interface {
	Probe(ctx context.Context, cfg BackendConfig) (healthy bool, gpuAvailable bool, err error)
}

// HTTPHealthProber probes a backend's /health endpoint over HTTP.
type HTTPHealthProber struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPHealthProber builds an HTTPHealthProber with a short default
// timeout, matching spec.md §4.3's "short-timeout health call".
func NewHTTPHealthProber() *HTTPHealthProber {
	return &HTTPHealthProber{Client: &http.Client{}, Timeout: 5 * time.Second}
}

func (p *HTTPHealthProber) Probe(ctx context.Context, cfg BackendConfig) (bool, bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, cfg.URL+"/health", nil)
	if err != nil {
		return false, false, err
	}

	resp, err := retry.RetryWithBackoff(probeCtx, retry.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		BackoffFactor:  2.0,
	}, func(ctx context.Context) (*http.Response, error) {
		return p.Client.Do(req.WithContext(ctx))
	}, func(err error) bool { return err != nil })
	if err != nil {
		return false, false, err
	}
	defer resp.Body.Close()

	var status healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, false, err
	}
	return status.Status == "ok", status.GPUAvailable, nil
}

// RankBackends probes every configured backend and returns the admitted ones
// in priority order, per spec.md §4.3: ascending priority, ties broken
// toward GPU-reporting backends (Open Question 2). The order is the
// failover sequence the Coordinator walks when a backend produces no
// successful chunks (spec.md §4.3).
func RankBackends(ctx context.Context, backends []BackendConfig, prober HealthProber) []BackendConfig {
	admitted := make([]rankedBackend, 0, len(backends))
	for _, cfg := range backends {
		healthy, gpu, err := prober.Probe(ctx, cfg)
		if err != nil || !healthy {
			continue
		}
		admitted = append(admitted, rankedBackend{config: cfg, gpuAvailable: gpu})
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		if admitted[i].config.Priority != admitted[j].config.Priority {
			return admitted[i].config.Priority < admitted[j].config.Priority
		}
		return admitted[i].gpuAvailable && !admitted[j].gpuAvailable
	})

	out := make([]BackendConfig, len(admitted))
	for i, r := range admitted {
		out[i] = r.config
	}
	return out
}

// SelectBackend returns the single highest-ranked admitted backend.
func SelectBackend(ctx context.Context, backends []BackendConfig, prober HealthProber) (BackendConfig, bool) {
	ranked := RankBackends(ctx, backends, prober)
	if len(ranked) == 0 {
		return BackendConfig{}, false
	}
	return ranked[0], true
}
