package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
)

// passphraseLock is an optional at-rest guard for the file sink on shared
// machines. Engaging the lock stores an argon2id hash of a passphrase next to
// the token file; while the lock file exists and the sink has not been
// unlocked this process, reads and writes fail with ErrLocked.
//
// The lock gates access, it does not encrypt: the tokens stay plaintext-0600
// on disk and the passphrase only arms this process.
type passphraseLock struct {
	path     string
	mu       sync.Mutex
	unlocked bool
}

// lockFile is the on-disk layout of the lock sidecar.
type lockFile struct {
	PassphraseHash string    `json:"passphrase_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

func newPassphraseLock(path string) *passphraseLock {
	return &passphraseLock{path: path}
}

// engaged reports whether access is currently blocked.
func (l *passphraseLock) engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlocked {
		return false
	}
	_, err := os.Stat(l.path)
	return err == nil
}

// Engage arms the lock with the given passphrase. The sink stays usable in
// this process; other processes must unlock first.
func (s *FileSink) Engage(passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	hash, err := argon2id.CreateHash(passphrase, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash passphrase: %w", err)
	}
	data, err := json.MarshalIndent(lockFile{
		PassphraseHash: hash,
		CreatedAt:      time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock file: %w", err)
	}
	if err := os.WriteFile(s.lock.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	s.lock.mu.Lock()
	s.lock.unlocked = true
	s.lock.mu.Unlock()
	return nil
}

// Unlock verifies the passphrase against the stored hash and, on match,
// disarms the lock for this process. Unlocking an unlocked sink is a no-op.
func (s *FileSink) Unlock(passphrase string) error {
	data, err := os.ReadFile(s.lock.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lock file: %w", err)
	}
	var lf lockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return fmt.Errorf("parse lock file: %w", err)
	}
	match, err := argon2id.ComparePasswordAndHash(passphrase, lf.PassphraseHash)
	if err != nil {
		return fmt.Errorf("verify passphrase: %w", err)
	}
	if !match {
		return errors.New("wrong passphrase")
	}
	s.lock.mu.Lock()
	s.lock.unlocked = true
	s.lock.mu.Unlock()
	return nil
}

// Disengage removes the lock sidecar entirely.
func (s *FileSink) Disengage() error {
	if err := os.Remove(s.lock.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	s.lock.mu.Lock()
	s.lock.unlocked = false
	s.lock.mu.Unlock()
	return nil
}

// Locked reports whether the sink currently refuses access.
func (s *FileSink) Locked() bool {
	return s.lock.engaged()
}
