package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/masjid-network/masjidctl/internal/token"
)

func TestLocalValidationShortCircuits(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, Subscription{ID: 1})
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1", Refresh: "R1"})
	_, err := c.Subscribe(context.Background(), SubscriptionRequest{
		Email: "not-an-email",
		Type:  "hourly",
	})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.FieldError("email") == "" {
		t.Error("missing email field error")
	}
	if apiErr.FieldError("subscription_type") == "" {
		t.Error("missing schedule field error")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestSnakeCase(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Email":     "email",
		"FirstName": "first_name",
		"MosqueID":  "mosque_i_d",
		"Type":      "type",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
