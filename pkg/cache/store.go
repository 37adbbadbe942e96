// Package cache provides the content-addressed icon cache: a fingerprint
// function, a disk-backed store of PNG entries, and an optional in-memory
// tier in front of it.
//
// The store is best-effort by contract. Reads that fail for any reason are
// misses and writes that fail are logged and dropped, so a damaged or
// read-only cache never prevents an icon from being produced.
package cache

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// entryExt is the filename suffix of every cache entry.
const entryExt = ".png"

// pngTrailer is the fixed 12-byte IEND chunk every complete PNG ends with.
var pngTrailer = []byte{0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82}

// StoreConfig holds configuration for a disk Store.
type StoreConfig struct {
	// Dir is the directory holding {fingerprint}.png entries, typically
	// {data_dir}/cache/icons.
	Dir string

	// Logger receives cache I/O failures. Default: slog.Default().
	Logger *slog.Logger
}

// Stats holds runtime statistics for a Store.
type Stats struct {
	Hits          int64
	Misses        int64
	Corrupt       int64
	Writes        int64
	WriteFailures int64
}

// Store maps fingerprints to PNG bytes on disk. Entries are immutable and
// never evicted automatically. Store is safe for concurrent use; it takes no
// locks because entries are content-deterministic and written atomically.
type Store struct {
	dir    string
	logger *slog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	corrupt       atomic.Int64
	writes        atomic.Int64
	writeFailures atomic.Int64
}

// NewStore creates a Store rooted at cfg.Dir. It does not touch the
// filesystem; call EnsureReady before the first Put.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    cfg.Dir,
		logger: logger.With("component", "icon-cache"),
	}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureReady creates the cache directory tree. It is idempotent and fails
// only when the directory cannot be created (permissions, disk full).
func (s *Store) EnsureReady() error {
	if s.dir == "" {
		return fmt.Errorf("cache: no directory configured")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create directory %s: %w", s.dir, err)
	}
	return nil
}

// Path returns the on-disk location of the entry for fp.
func (s *Store) Path(fp string) string {
	return filepath.Join(s.dir, fp+entryExt)
}

// Get returns the stored PNG for fp. A missing, unreadable, truncated or
// otherwise corrupt entry is reported as a miss, never as an error.
func (s *Store) Get(fp string) ([]byte, bool) {
	if !validFingerprint(fp) {
		s.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(s.Path(fp))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cache read failed", "fingerprint", fp, "error", err)
		}
		s.misses.Add(1)
		return nil, false
	}

	if err := checkPNG(data); err != nil {
		s.logger.Warn("cache entry corrupt, treating as miss", "fingerprint", fp, "error", err)
		s.corrupt.Add(1)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return data, true
}

// Put stores data under fp. Failures are counted, logged and swallowed.
func (s *Store) Put(fp string, data []byte) {
	s.put(fp, data)
}

// put is Put that reports whether the entry reached disk.
func (s *Store) put(fp string, data []byte) bool {
	if !validFingerprint(fp) {
		s.writeFailures.Add(1)
		s.logger.Warn("cache write skipped, bad fingerprint", "fingerprint", fp)
		return false
	}
	if err := atomicWrite(s.Path(fp), data, s.dir); err != nil {
		s.writeFailures.Add(1)
		s.logger.Warn("cache write failed", "fingerprint", fp, "error", err)
		return false
	}
	s.writes.Add(1)
	return true
}

// Clear removes every cache entry and any temp files left behind by an
// interrupted write. A missing directory is not an error.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: clear read dir: %w", err)
	}

	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, entryExt) && !strings.HasPrefix(name, ".tmp-") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cache: remove %s: %w", name, err)
		}
	}
	return firstErr
}

// Usage walks the cache directory and returns the entry count and total
// bytes on disk.
func (s *Store) Usage() (entries int, size int64, err error) {
	list, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("cache: usage read dir: %w", err)
	}
	for _, e := range list {
		if e.IsDir() || !strings.HasSuffix(e.Name(), entryExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		entries++
		size += info.Size()
	}
	return entries, size, nil
}

// Stats returns a snapshot of store statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Corrupt:       s.corrupt.Load(),
		Writes:        s.writes.Load(),
		WriteFailures: s.writeFailures.Load(),
	}
}

// checkPNG rejects data that is not a complete PNG stream: bad signature or
// header, or a missing IEND trailer from a truncated write.
func checkPNG(data []byte) error {
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("png header: %w", err)
	}
	if !bytes.HasSuffix(data, pngTrailer) {
		return fmt.Errorf("png truncated: missing IEND")
	}
	return nil
}

// atomicWrite writes data to path via a temporary file and rename, so
// readers see either the old entry, no entry, or the complete new one.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
