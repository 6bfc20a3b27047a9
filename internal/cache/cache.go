// Package cache persists analysis results keyed by a media fingerprint, so
// re-running a batch over unchanged footage issues no paid API calls.
//
// The backing store is a single JSON object mapping fingerprint to result,
// loaded fully at startup and rewritten in full after every put. Durability
// wins over throughput: a crash mid-batch loses at most the in-flight entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/metafootage/internal/models"
)

// Fingerprint derives the cache key for a media file analyzed with a given
// model and frame count. It fails closed: when the file cannot be stat'd no
// key exists, so the entry can be neither served nor written. Any edit to
// the file changes its mtime and orphans old entries implicitly.
func Fingerprint(path, model string, frameCount int) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s|%d",
		path, info.ModTime().UnixNano(), model, frameCount))
	return hex.EncodeToString(sum[:]), nil
}

// Store is the process-wide analysis cache. Safe for concurrent use; reads
// and writes are serialized because the file rewrite is not atomic across
// writers.
type Store struct {
	path   string
	logger *slog.Logger

	mu         sync.Mutex
	entries    map[string]models.AnalysisResult
	memoryOnly bool
}

func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:    path,
		logger:  logger,
		entries: map[string]models.AnalysisResult{},
	}
}

// Load reads the cache file into memory. A missing file is a fresh cache; an
// unreadable or corrupt file degrades the store to memory-only (no
// persistence) rather than failing the run.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.logger.Warn("cache unreadable, continuing without persistence", "path", s.path, "err", err)
		s.memoryOnly = true
		return
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		s.logger.Warn("cache corrupt, continuing without persistence", "path", s.path, "err", err)
		s.entries = map[string]models.AnalysisResult{}
		s.memoryOnly = true
	}
}

// Get returns the cached result for a fingerprint.
func (s *Store) Get(fingerprint string) (models.AnalysisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.entries[fingerprint]
	return result, ok
}

// Put stores a result and synchronously flushes the whole cache to disk.
func (s *Store) Put(fingerprint string, result models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = result
	if s.memoryOnly {
		return nil
	}
	return s.flush()
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// flush rewrites the cache file via temp-and-rename so a crash mid-write
// never leaves a truncated cache behind. Caller holds the lock.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
