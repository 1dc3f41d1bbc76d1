package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/config"
	"github.com/masjid-network/masjidctl/internal/session"
	"github.com/masjid-network/masjidctl/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Dashboard: config.DashboardConfig{Addr: "127.0.0.1:0"},
		Timetable: config.TimetableConfig{Location: "London"},
	}
}

// backend fakes just enough of the API for the dashboard handlers.
func backend(t *testing.T, user *api.User) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/me/":
			json.NewEncoder(w).Encode(user)
		case "/api/auth/login/":
			json.NewEncoder(w).Encode(map[string]any{
				"access": "A1", "refresh": "R1", "user": user,
			})
		case "/api/mosques/favorites/":
			json.NewEncoder(w).Encode([]api.Mosque{{ID: 1, Name: "Central Mosque", City: "London"}})
		case "/api/mosques/":
			json.NewEncoder(w).Encode([]api.Mosque{
				{ID: 1, Name: "Central Mosque", City: "London", Favorite: true},
				{ID: 2, Name: "East Mosque", City: "London"},
			})
		case "/api/prayer-times/monthly/":
			json.NewEncoder(w).Encode([]api.PrayerDay{
				{Date: "2026-09-01", Fajr: "04:40", Dhuhr: "13:04", Asr: "16:40", Maghrib: "19:41", Isha: "21:05"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testServer(t *testing.T, cfg *config.Config, user *api.User, signedIn bool) *Server {
	t.Helper()

	be := backend(t, user)
	store := token.NewStore(token.NewMemorySink(), testLogger())
	if signedIn {
		store.Set(token.Pair{Access: "A1", Refresh: "R1"})
	}
	// Shared registry, as buildApp wires it: client pipeline series and
	// dashboard server series end up on the same /metrics.
	registry := prometheus.NewRegistry()
	client := api.New(be.URL, store,
		api.WithHTTPClient(be.Client()),
		api.WithMetrics(api.NewMetrics(registry)),
	)
	sessions := session.New(client, store, testLogger())
	t.Cleanup(sessions.Close)
	sessions.Init(context.Background())

	srv, err := NewServer(cfg, sessions, client, nil, registry, testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// get performs a request with a loopback RemoteAddr.
func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRemoteRequestRejected(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), &api.User{ID: 1}, true)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("remote request status = %d, want 403", rec.Code)
	}
}

func TestDashboardRendersFavorites(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), &api.User{ID: 1, FirstName: "Omar"}, true)
	rec := get(srv.Handler(), "/dashboard")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Omar", "Central Mosque", "London"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDashboardRedirectsSignedOut(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), nil, false)
	rec := get(srv.Handler(), "/dashboard")

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/login?return_url=") {
		t.Errorf("Location = %q", loc)
	}
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), &api.User{ID: 1, Email: "omar@example.org"}, false)
	handler := srv.Handler()

	rec := get(handler, "/login")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Sign in") {
		t.Fatalf("login page: status %d", rec.Code)
	}

	form := url.Values{}
	form.Set("email", "omar@example.org")
	form.Set("password", "pw")
	form.Set("return_url", "/timetable")
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:54321"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login post status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/timetable" {
		t.Errorf("Location = %q, want /timetable", loc)
	}
}

func TestSafeReturn(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/timetable":              "/timetable",
		"":                        "/dashboard",
		"https://evil.example":    "/dashboard",
		"//evil.example":          "/dashboard",
		"/mosques?q=central":      "/mosques?q=central",
	}
	for in, want := range cases {
		if got := safeReturn(in); got != want {
			t.Errorf("safeReturn(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoleRuleBlocksWrongRole(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Dashboard.RoleRules = []config.RouteRule{
		{Prefix: "/mosques", Roles: []string{"mosque_admin"}},
	}
	srv := testServer(t, cfg, &api.User{ID: 1, Role: "user"}, true)

	rec := get(srv.Handler(), "/mosques")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/unauthorized" {
		t.Errorf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}

	// The dashboard itself carries no rule and stays reachable.
	rec = get(srv.Handler(), "/dashboard")
	if rec.Code != http.StatusOK {
		t.Errorf("dashboard status = %d", rec.Code)
	}
}

func TestTimetablePage(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), &api.User{ID: 1}, true)
	rec := get(srv.Handler(), "/timetable?location=London&year=2026&month=9")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"London", "2026-09-01", "04:40"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), &api.User{ID: 1}, true)
	handler := srv.Handler()

	get(handler, "/dashboard")
	rec := get(handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "masjidctl_dashboard_requests_total") {
		t.Error("metrics output missing dashboard counters")
	}
}

func TestMetricsIncludeClientPipeline(t *testing.T) {
	t.Parallel()

	srv := testServer(t, testConfig(), &api.User{ID: 1}, true)
	handler := srv.Handler()

	// Rendering the dashboard drives the API client, so its request
	// counters must appear on the shared /metrics registry.
	get(handler, "/dashboard")
	rec := get(handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "masjidctl_api_requests_total") {
		t.Error("metrics output missing API client counters")
	}
}
