package token

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// FileSink is the durable token sink. Tokens live in a single JSON file with
// per-token expiries, written atomically (write-tmp-then-rename) under both an
// in-process mutex and a cross-process flock. The file is created 0600; a
// too-open existing file is warned about, not rewritten.
type FileSink struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
	lock   *passphraseLock
}

// storedToken is one token on disk with its absolute expiry.
type storedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// tokenFile is the on-disk layout.
type tokenFile struct {
	Tokens    map[Kind]storedToken `json:"tokens"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewFileSink creates a FileSink writing to path. The parent directory is
// created on first write.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{
		path:   path,
		logger: logger,
		lock:   newPassphraseLock(path + ".lock.json"),
	}
}

// Put stores value under kind with the given lifetime.
func (s *FileSink) Put(kind Kind, value string, ttl time.Duration) error {
	if s.lock.engaged() {
		return ErrLocked
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.read()
	if err != nil {
		return err
	}
	tf.Tokens[kind] = storedToken{
		Value:     value,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return s.write(tf)
}

// Get returns the stored value, or ErrNotFound if absent or expired.
func (s *FileSink) Get(kind Kind) (string, error) {
	if s.lock.engaged() {
		return "", ErrLocked
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.read()
	if err != nil {
		return "", err
	}
	tok, ok := tf.Tokens[kind]
	if !ok || time.Now().UTC().After(tok.ExpiresAt) {
		return "", ErrNotFound
	}
	return tok.Value, nil
}

// Delete removes the value for kind.
func (s *FileSink) Delete(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := tf.Tokens[kind]; !ok {
		return nil
	}
	delete(tf.Tokens, kind)
	return s.write(tf)
}

// Path returns the configured file path.
func (s *FileSink) Path() string {
	return s.path
}

// read parses the token file. A missing file yields an empty tokenFile.
func (s *FileSink) read() (*tokenFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &tokenFile{Tokens: map[Kind]storedToken{}}, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	// Warn if the existing file has permissions more open than 0600.
	// Skip on Windows where Unix permission bits are not meaningful.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			if mode := info.Mode().Perm(); mode&0077 != 0 {
				s.logger.Warn("token file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if tf.Tokens == nil {
		tf.Tokens = map[Kind]storedToken{}
	}
	return &tf, nil
}

// write persists the token file atomically under a cross-process flock.
func (s *FileSink) write(tf *tokenFile) error {
	tf.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	lockPath := s.path + ".flock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	// Ensure 0600 after rename as a safety net.
	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on token file", "error", err)
	}
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over the
// target path. On any error the temp file is cleaned up.
func (s *FileSink) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to token file: %w", err)
	}
	return nil
}
