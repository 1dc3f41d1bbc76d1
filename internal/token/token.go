// Package token owns where bearer tokens live on the client.
//
// Tokens are persisted write-through to every configured sink. The durable
// sink (file-backed) is the source of truth on read; the cookie sink exists
// so the backend sees the tokens on requests carrying the cookie jar, and is
// allowed to expire earlier than the durable copy.
package token

import (
	"errors"
	"time"
)

// Kind identifies one of the two stored tokens. The values double as the
// storage keys and cookie names, and must match the backend's expectations.
type Kind string

const (
	KindAccess  Kind = "access_token"
	KindRefresh Kind = "refresh_token"
)

// Cookie-mirror lifetimes. The durable sink keeps tokens until Clear or
// expiry of the refresh token; the cookie copies expire on their own.
const (
	AccessTTL  = time.Hour
	RefreshTTL = 7 * 24 * time.Hour
)

// Pair carries the two opaque bearer strings returned by the backend.
// Refresh may be empty when the backend did not rotate it.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

var (
	// ErrNotFound is returned by sinks when a token is absent or expired.
	ErrNotFound = errors.New("token not found")

	// ErrLocked is returned by the file sink while a passphrase lock is engaged.
	ErrLocked = errors.New("token store is locked")
)

// Sink is a single persistence backend for tokens. Implementations:
// FileSink (durable), CookieSink (mirror for the HTTP cookie jar),
// MemorySink (tests and storage-degraded operation).
type Sink interface {
	// Put stores value under kind with the given lifetime.
	Put(kind Kind, value string, ttl time.Duration) error

	// Get returns the stored value, or ErrNotFound if absent or expired.
	Get(kind Kind) (string, error)

	// Delete removes the value for kind. Deleting an absent value is not an error.
	Delete(kind Kind) error
}
