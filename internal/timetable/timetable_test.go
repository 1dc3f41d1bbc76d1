package timetable

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleMonth() *api.MonthlyTimetable {
	return &api.MonthlyTimetable{
		Location: "London",
		Year:     2026,
		Month:    3,
		Days: []api.PrayerDay{
			{Date: "2026-03-01", Fajr: "05:02", Sunrise: "06:41", Dhuhr: "12:14", Asr: "15:12", Maghrib: "17:47", Isha: "19:14"},
			{Date: "2026-03-02", Fajr: "05:00", Sunrise: "06:39", Dhuhr: "12:14", Asr: "15:13", Maghrib: "17:49", Isha: "19:16"},
		},
	}
}

func TestRenderAlignsColumns(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	if err := Render(&buf, sampleMonth()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Prayer times for London, 2026-03") {
		t.Errorf("missing heading:\n%s", out)
	}
	for _, want := range []string{"Fajr", "Isha", "2026-03-01", "17:49"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	if err := WriteCSV(&buf, sampleMonth()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[0] != "date,fajr,sunrise,dhuhr,asr,maghrib,isha" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2026-03-01,05:02,") {
		t.Errorf("row = %q", lines[1])
	}
}

func openTestCache(t *testing.T, maxAge time.Duration) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "timetable.db"), maxAge, testLogger())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t, time.Hour)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "London", 2026, 3); err != ErrNotCached {
		t.Fatalf("Get on empty cache: %v, want ErrNotCached", err)
	}
	if err := cache.Put(ctx, sampleMonth()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := cache.Get(ctx, "London", 2026, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Days) != 2 || got.Days[0].Fajr != "05:02" {
		t.Errorf("cached month = %+v", got)
	}
	if _, err := cache.Get(ctx, "Leeds", 2026, 3); err != ErrNotCached {
		t.Errorf("other location: %v, want ErrNotCached", err)
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := cache.Put(ctx, sampleMonth()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := cache.Get(ctx, "London", 2026, 3); err != ErrNotCached {
		t.Errorf("stale Get: %v, want ErrNotCached", err)
	}
	removed, err := cache.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("pruned %d rows, want 1", removed)
	}
}

func TestCachePutReplaces(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t, 0)
	ctx := context.Background()

	if err := cache.Put(ctx, sampleMonth()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	updated := sampleMonth()
	updated.Days[0].Fajr = "05:05"
	if err := cache.Put(ctx, updated); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, err := cache.Get(ctx, "London", 2026, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Days[0].Fajr != "05:05" {
		t.Errorf("Fajr = %q, want updated value", got.Days[0].Fajr)
	}
}

func TestFetchFallsBackToCacheOffline(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(sampleMonth().Days)
	}))

	store := token.NewStore(token.NewMemorySink(), testLogger())
	store.Set(token.Pair{Access: "A1", Refresh: "R1"})
	// The client's own response cache is disabled so the offline path
	// genuinely exercises the sqlite fallback.
	client := api.New(srv.URL, store, api.WithHTTPClient(srv.Client()), api.WithCacheTTL(0))
	cache := openTestCache(t, time.Hour)
	ctx := context.Background()

	// Online: fetched from the network and written through.
	tt, fromCache, err := Fetch(ctx, client, cache, "London", 2026, 3)
	if err != nil {
		t.Fatalf("Fetch online: %v", err)
	}
	if fromCache {
		t.Error("online fetch reported cache origin")
	}
	if len(tt.Days) != 2 {
		t.Errorf("days = %d, want 2", len(tt.Days))
	}

	// Offline: the backend is gone, the cached copy answers.
	srv.Close()
	tt, fromCache, err = Fetch(ctx, client, cache, "London", 2026, 3)
	if err != nil {
		t.Fatalf("Fetch offline: %v", err)
	}
	if !fromCache {
		t.Error("offline fetch did not report cache origin")
	}
	if len(tt.Days) != 2 || tt.Days[0].Date != "2026-03-01" {
		t.Errorf("cached month = %+v", tt)
	}

	// A month never fetched has no fallback.
	if _, _, err := Fetch(ctx, client, cache, "Leeds", 2026, 3); err == nil {
		t.Error("uncached month fetched offline without error")
	}
}
