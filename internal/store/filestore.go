package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileRecord is one entry in the file-info store: the bookkeeping a request
// keeps around a source/working file on disk (spec.md §5).
type FileRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileStore is the process-wide map of file_id -> FileRecord, persisted to a
// single JSON file via temp-file-plus-rename. Concurrent writers serialize
// through a single mutex (spec.md §5's "single coordinator" requirement).
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]FileRecord
}

// NewFileStore loads records from path, migrating a legacy list-format file
// to the map format in place (one-shot, spec.md §5) if one is found.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, records: map[string]FileRecord{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := fs.persistLocked(); writeErr != nil {
				return nil, writeErr
			}
			return fs, nil
		}
		return nil, err
	}

	records, migrated, err := parseFilesInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("file store: unreadable %s: %w", path, err)
	}
	fs.records = records
	if migrated {
		log.Info().Str("path", path).Msg("migrated file-info store from list format to map format")
		if err := fs.persistLocked(); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// parseFilesInfo accepts either a map[string]FileRecord document or a legacy
// []FileRecord document, returning whether a migration occurred.
func parseFilesInfo(raw []byte) (map[string]FileRecord, bool, error) {
	var asMap map[string]FileRecord
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if asMap == nil {
			asMap = map[string]FileRecord{}
		}
		return asMap, false, nil
	}

	var asList []FileRecord
	if err := json.Unmarshal(raw, &asList); err != nil {
		return nil, false, err
	}
	migrated := make(map[string]FileRecord, len(asList))
	for _, rec := range asList {
		if rec.ID != "" {
			migrated[rec.ID] = rec
		}
	}
	return migrated, true, nil
}

// Get returns the record for id, or false if it isn't present.
func (fs *FileStore) Get(id string) (FileRecord, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, ok := fs.records[id]
	return rec, ok
}

// Put inserts or replaces a record and persists the store atomically.
func (fs *FileStore) Put(rec FileRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		if existing, ok := fs.records[rec.ID]; ok {
			rec.CreatedAt = existing.CreatedAt
		} else {
			rec.CreatedAt = rec.UpdatedAt
		}
	}
	fs.records[rec.ID] = rec
	return fs.persistLocked()
}

// Delete removes a record and persists the store atomically.
func (fs *FileStore) Delete(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.records, id)
	return fs.persistLocked()
}

// List returns every record currently in the store.
func (fs *FileStore) List() []FileRecord {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]FileRecord, 0, len(fs.records))
	for _, rec := range fs.records {
		out = append(out, rec)
	}
	return out
}

// persistLocked writes fs.records to fs.path via temp-file-plus-rename.
// Callers must hold fs.mu.
func (fs *FileStore) persistLocked() error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(fs.records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp-*")
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
	return os.Rename(tmpPath, fs.path)
}
