package token

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// CookieSink mirrors tokens into an HTTP cookie jar for the API origin, so
// the backend sees them on any request sent with this jar attached. The
// cookie copies expire on their own shorter schedule; the jar is never the
// source of truth, only a fallback when the durable sink comes up empty.
type CookieSink struct {
	jar     *cookiejar.Jar
	baseURL *url.URL
}

// NewCookieSink creates a CookieSink scoped to the given API base URL.
func NewCookieSink(baseURL string) (*CookieSink, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &CookieSink{jar: jar, baseURL: u}, nil
}

// Jar exposes the underlying jar so it can be attached to an http.Client.
func (s *CookieSink) Jar() http.CookieJar {
	return s.jar
}

// Put stores value as a cookie named after kind, expiring after ttl.
func (s *CookieSink) Put(kind Kind, value string, ttl time.Duration) error {
	s.jar.SetCookies(s.baseURL, []*http.Cookie{{
		Name:     string(kind),
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		SameSite: http.SameSiteLaxMode,
	}})
	return nil
}

// Get returns the cookie value for kind, or ErrNotFound. The jar drops
// expired cookies itself.
func (s *CookieSink) Get(kind Kind) (string, error) {
	for _, c := range s.jar.Cookies(s.baseURL) {
		if c.Name == string(kind) && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrNotFound
}

// Delete expires the cookie for kind.
func (s *CookieSink) Delete(kind Kind) error {
	s.jar.SetCookies(s.baseURL, []*http.Cookie{{
		Name:    string(kind),
		Value:   "",
		Path:    "/",
		Expires: time.Unix(1, 0),
		MaxAge:  -1,
	}})
	return nil
}
