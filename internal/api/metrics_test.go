package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/masjid-network/masjidctl/internal/token"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsCountRequestsAndRefreshes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me/":
			if r.Header.Get("Authorization") != "Bearer A2" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired."})
				return
			}
			writeJSON(w, http.StatusOK, User{ID: 1})
		case "/api/auth/refresh_token/":
			writeJSON(w, http.StatusOK, map[string]string{"access": "A2"})
		}
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"}, WithMetrics(metrics))

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}

	// One failed GET, one refresh POST, one retried GET.
	if got := counterValue(t, metrics.RequestsTotal, http.MethodGet, "error"); got != 1 {
		t.Errorf("GET error count = %v, want 1", got)
	}
	if got := counterValue(t, metrics.RequestsTotal, http.MethodGet, "ok"); got != 1 {
		t.Errorf("GET ok count = %v, want 1", got)
	}
	if got := counterValue(t, metrics.RequestsTotal, http.MethodPost, "ok"); got != 1 {
		t.Errorf("POST ok count = %v, want 1", got)
	}
	if got := counterValue(t, metrics.TokenRefreshes, "ok"); got != 1 {
		t.Errorf("refresh ok count = %v, want 1", got)
	}
}
