package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/masjid-network/masjidctl/internal/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T, pair token.Pair) *token.Store {
	t.Helper()
	store := token.NewStore(token.NewMemorySink(), testLogger())
	if pair.Access != "" || pair.Refresh != "" {
		store.Set(pair)
	}
	return store
}

func testClient(t *testing.T, srv *httptest.Server, pair token.Pair, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithHTTPClient(srv.Client()))
	return New(srv.URL, testStore(t, pair), opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestBearerAttachment(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, User{ID: 1, Email: "imam@example.org"})
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"})
	user, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if user.Email != "imam@example.org" {
		t.Errorf("user email = %q, want imam@example.org", user.Email)
	}
	if got := gotAuth.Load(); got != "Bearer A1" {
		t.Errorf("Authorization = %q, want Bearer A1", got)
	}
}

func TestLoginSkipsBearerAndPersistsTokens(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("login request carried Authorization %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access":  "A1",
			"refresh": "R1",
			"user":    User{ID: 7, Email: "imam@example.org"},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{})
	user, err := c.Login(context.Background(), Credentials{Email: "imam@example.org", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != 7 {
		t.Errorf("user id = %d, want 7", user.ID)
	}
	if got := c.tokens.Get(token.KindAccess); got != "A1" {
		t.Errorf("stored access = %q, want A1", got)
	}
	if got := c.tokens.Get(token.KindRefresh); got != "R1" {
		t.Errorf("stored refresh = %q, want R1", got)
	}
}

// A 401 from login or register must surface directly. These calls have no
// session to refresh, so the coordinator must never be engaged for them.
func TestLoginRejectionDoesNotTriggerRefresh(t *testing.T) {
	t.Parallel()

	var loginCalls, refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login/":
			loginCalls.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials."})
		case "/api/auth/refresh_token/":
			refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]string{"access": "A2"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"})
	_, err := c.Login(context.Background(), Credentials{Email: "x@y.z", Password: "bad"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
	if apiErr.Message() != "Invalid credentials." {
		t.Errorf("message = %q", apiErr.Message())
	}
	if n := loginCalls.Load(); n != 1 {
		t.Errorf("login called %d times, want 1", n)
	}
	if n := refreshCalls.Load(); n != 0 {
		t.Errorf("refresh called %d times, want 0", n)
	}
	// The stored session is untouched by a failed login.
	if got := c.tokens.Get(token.KindRefresh); got != "R1" {
		t.Errorf("stored refresh = %q, want R1", got)
	}
}

// Multipart requests must go out with the content type produced by the
// multipart writer, boundary included. Anything else and the backend cannot
// parse the form.
func TestRegisterSendsMultipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "multipart/form-data; boundary=") {
			t.Errorf("Content-Type = %q, want multipart/form-data with boundary", ct)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("username"); got != "bilal" {
			t.Errorf("username = %q, want bilal", got)
		}
		if got := r.FormValue("email"); got != "bilal@example.org" {
			t.Errorf("email = %q", got)
		}
		file, header, err := r.FormFile("profile_image")
		if err != nil {
			t.Fatalf("profile_image: %v", err)
		}
		defer file.Close()
		if header.Filename != "me.png" {
			t.Errorf("filename = %q, want me.png", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "PNGDATA" {
			t.Errorf("file content = %q", content)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"tokens": map[string]string{"access": "A1", "refresh": "R1"},
			"user":   User{ID: 2, Username: "bilal"},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{})
	user, err := c.Register(context.Background(), RegisterForm{
		Username:  "bilal",
		Email:     "bilal@example.org",
		Password:  "secret123",
		FirstName: "Bilal",
		LastName:  "Ibn Rabah",
		ProfileImage: &FileAttachment{
			FileName: "me.png",
			Content:  []byte("PNGDATA"),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "bilal" {
		t.Errorf("username = %q", user.Username)
	}
	if got := c.tokens.Get(token.KindAccess); got != "A1" {
		t.Errorf("stored access = %q, want A1", got)
	}
}

// A stale access token triggers exactly one refresh and one retry. The retry
// carries the fresh token; the stored refresh token survives when rotation
// does not happen.
func TestExpiredTokenRefreshedAndRetried(t *testing.T) {
	t.Parallel()

	var bearers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me/":
			auth := r.Header.Get("Authorization")
			bearers = append(bearers, auth)
			if auth != "Bearer A2" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired."})
				return
			}
			writeJSON(w, http.StatusOK, User{ID: 1, Email: "imam@example.org"})
		case "/api/auth/refresh_token/":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["refresh"] != "R1" {
				t.Errorf("refresh payload = %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"tokens": map[string]string{"access": "A2"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"})
	user, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("user id = %d", user.ID)
	}
	want := []string{"Bearer A1", "Bearer A2"}
	if len(bearers) != 2 || bearers[0] != want[0] || bearers[1] != want[1] {
		t.Errorf("bearers = %v, want %v", bearers, want)
	}
	if got := c.tokens.Get(token.KindAccess); got != "A2" {
		t.Errorf("stored access = %q, want A2", got)
	}
	// No rotation in the response, so the old refresh token stays.
	if got := c.tokens.Get(token.KindRefresh); got != "R1" {
		t.Errorf("stored refresh = %q, want R1", got)
	}
}

// If the retried request still comes back 401 the error surfaces. One retry,
// never a loop.
func TestSecond401IsTerminal(t *testing.T) {
	t.Parallel()

	var meCalls, refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me/":
			meCalls.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Nope."})
		case "/api/auth/refresh_token/":
			refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]string{"access": "A2"})
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"})
	_, err := c.Me(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
	if n := meCalls.Load(); n != 2 {
		t.Errorf("me called %d times, want 2 (original + one retry)", n)
	}
	if n := refreshCalls.Load(); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
}

func TestFieldErrorsParsed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"old_password": []string{"Old password is incorrect."},
			"new_password": []string{"This password is too short."},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"})
	err := c.ChangePassword(context.Background(), "old", "new", "new")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if got := apiErr.FieldError("old_password", "new_password"); got != "Old password is incorrect." {
		t.Errorf("field error = %q", got)
	}
}

func TestCachedGETSkipsSecondRoundTrip(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, []Mosque{{ID: 1, Name: "Central Mosque"}})
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"}, WithCacheTTL(time.Minute))
	for i := 0; i < 2; i++ {
		mosques, err := c.Mosques(context.Background(), "")
		if err != nil {
			t.Fatalf("Mosques: %v", err)
		}
		if len(mosques) != 1 || mosques[0].Name != "Central Mosque" {
			t.Errorf("mosques = %+v", mosques)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestMutationPurgesMosqueCache(t *testing.T) {
	t.Parallel()

	var listCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			listCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"count":   1,
				"results": []Mosque{{ID: 1, Name: "Central Mosque"}},
			})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"}, WithCacheTTL(time.Minute))
	if _, err := c.Mosques(context.Background(), ""); err != nil {
		t.Fatalf("Mosques: %v", err)
	}
	if err := c.AddFavorite(context.Background(), 1); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if _, err := c.Mosques(context.Background(), ""); err != nil {
		t.Fatalf("Mosques: %v", err)
	}
	if n := listCalls.Load(); n != 2 {
		t.Errorf("list hit %d times, want 2 (cache purged by mutation)", n)
	}
}
