package token

import (
	"sync"
	"time"
)

// MemorySink keeps tokens in process memory with expiry. It backs the
// Store's storage-degraded mode and is the sink of choice in tests.
type MemorySink struct {
	mu     sync.RWMutex
	tokens map[Kind]storedToken
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{tokens: make(map[Kind]storedToken)}
}

// Put stores value under kind with the given lifetime.
func (s *MemorySink) Put(kind Kind, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[kind] = storedToken{
		Value:     value,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

// Get returns the stored value, or ErrNotFound if absent or expired.
func (s *MemorySink) Get(kind Kind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[kind]
	if !ok || time.Now().UTC().After(tok.ExpiresAt) {
		return "", ErrNotFound
	}
	return tok.Value, nil
}

// Delete removes the value for kind.
func (s *MemorySink) Delete(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, kind)
	return nil
}
