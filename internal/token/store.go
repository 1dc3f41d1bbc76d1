package token

import (
	"errors"
	"log/slog"
	"time"
)

// Store is the single source of truth for bearer tokens. Writes go through
// to every sink; reads prefer the durable sink and fall back to the mirrors
// in order. A write failure on any sink degrades that write to the in-process
// overlay instead of failing the operation, so a broken disk never blocks a
// login (the session then lasts until the process exits).
type Store struct {
	durable Sink
	mirrors []Sink
	overlay *MemorySink
	logger  *slog.Logger
}

// NewStore creates a Store over a durable sink plus zero or more mirrors.
func NewStore(durable Sink, logger *slog.Logger, mirrors ...Sink) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		durable: durable,
		mirrors: mirrors,
		overlay: NewMemorySink(),
		logger:  logger,
	}
}

// Get returns the token of the given kind, preferring the durable sink,
// then the mirrors, then the in-process overlay. Returns "" when no sink
// holds a live value. Get never has side effects.
func (s *Store) Get(kind Kind) string {
	if v, err := s.durable.Get(kind); err == nil {
		return v
	} else if !errors.Is(err, ErrNotFound) {
		s.logger.Warn("durable token read failed", "kind", kind, "error", err)
	}
	for _, m := range s.mirrors {
		if v, err := m.Get(kind); err == nil {
			return v
		}
	}
	if v, err := s.overlay.Get(kind); err == nil {
		return v
	}
	return ""
}

// Set writes both tokens of the pair to every sink with their respective
// lifetimes. An empty Refresh leaves the stored refresh token untouched
// (the backend rotates it only sometimes).
func (s *Store) Set(pair Pair) {
	s.put(KindAccess, pair.Access, AccessTTL)
	if pair.Refresh != "" {
		s.put(KindRefresh, pair.Refresh, RefreshTTL)
	}
}

func (s *Store) put(kind Kind, value string, ttl time.Duration) {
	if err := s.durable.Put(kind, value, ttl); err != nil {
		s.logger.Warn("durable token write failed, keeping token in memory only",
			"kind", kind, "error", err)
	}
	for _, m := range s.mirrors {
		if err := m.Put(kind, value, ttl); err != nil {
			s.logger.Warn("mirror token write failed", "kind", kind, "error", err)
		}
	}
	// The overlay always succeeds and backs the degraded mode.
	_ = s.overlay.Put(kind, value, ttl)
}

// Clear removes both tokens from every sink.
func (s *Store) Clear() {
	for _, kind := range []Kind{KindAccess, KindRefresh} {
		if err := s.durable.Delete(kind); err != nil {
			s.logger.Warn("durable token delete failed", "kind", kind, "error", err)
		}
		for _, m := range s.mirrors {
			if err := m.Delete(kind); err != nil {
				s.logger.Warn("mirror token delete failed", "kind", kind, "error", err)
			}
		}
		_ = s.overlay.Delete(kind)
	}
}
