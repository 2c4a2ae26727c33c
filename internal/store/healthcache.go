package store

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"
)

// BackendHealthRecord is a cached health-probe result for one ASR backend.
type BackendHealthRecord struct {
	Healthy      bool `json:"healthy"`
	GPUAvailable bool `json:"gpu_available"`
}

// BackendHealthCache is a process-wide, crash-durable cache of ASR backend
// health-probe results, keyed by backend name. It lets a repeated request
// skip the live /health round trip within a short TTL window rather than
// probing every backend on every call (spec.md §5's "backpressure" concern:
// the core must not spawn unbounded concurrent operations, and re-probing a
// whole pool on every request is wasted network I/O under load). Badger's
// native per-key TTL (the same dependency the teacher uses for its
// channel-state store) does the expiry bookkeeping.
type BackendHealthCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBackendHealthCache opens (or creates) a badger database at dbPath.
func NewBackendHealthCache(dbPath string, ttl time.Duration) (*BackendHealthCache, error) {
	opts := badger.DefaultOptions(dbPath)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open backend health cache: %w", err)
	}
	return &BackendHealthCache{db: db, ttl: ttl}, nil
}

func (c *BackendHealthCache) Close() error { return c.db.Close() }

// Get returns the cached record for backendName, or ok=false on a miss or
// expiry (badger drops expired keys on its own).
func (c *BackendHealthCache) Get(backendName string) (BackendHealthRecord, bool) {
	var rec BackendHealthRecord
	found := false

	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(backendName))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if unmarshalErr := json.Unmarshal(val, &rec); unmarshalErr != nil {
				return unmarshalErr
			}
			found = true
			return nil
		})
	})
	return rec, found
}

// Set stores a health-probe result with the cache's configured TTL.
func (c *BackendHealthCache) Set(backendName string, rec BackendHealthRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(backendName), payload).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}
