package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/masjid-network/masjidctl/internal/token"
)

func TestCreateBookingAndCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/mosques/bookings/":
			var body BookingRequest
			json.NewDecoder(r.Body).Decode(&body)
			if body.MosqueID != 3 || body.Date != "2026-10-01" {
				t.Errorf("booking payload = %+v", body)
			}
			writeJSON(w, http.StatusCreated, Booking{ID: 12, MosqueID: 3, Status: "pending"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/mosques/bookings/12/cancel/":
			writeJSON(w, http.StatusOK, Booking{ID: 12, MosqueID: 3, Status: "cancelled"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"})
	b, err := c.CreateBooking(context.Background(), BookingRequest{
		MosqueID: 3,
		Date:     "2026-10-01",
		Time:     "14:00",
		Purpose:  "nikah",
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.ID != 12 || b.Status != "pending" {
		t.Errorf("booking = %+v", b)
	}

	cancelled, err := c.CancelBooking(context.Background(), 12)
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
}

// A booking with no date must fail locally, in the same field-error shape
// the backend would have produced, without a round trip.
func TestCreateBookingValidatesLocally(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"})
	_, err := c.CreateBooking(context.Background(), BookingRequest{MosqueID: 3})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 APIError", err)
	}
	if got := apiErr.FieldError("date"); got == "" {
		t.Error("expected a field error for date")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server hit %d times, want 0", n)
	}
}

func TestBookingsFilterAndCachePurge(t *testing.T) {
	t.Parallel()

	var listCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/mosques/bookings/":
			listCalls.Add(1)
			if got := r.URL.Query().Get("status"); got != "pending" {
				t.Errorf("status query = %q, want pending", got)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"count":   1,
				"results": []Booking{{ID: 12, Status: "pending"}},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/mosques/bookings/12/":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"}, WithCacheTTL(time.Minute))
	filter := BookingFilter{Status: "pending"}
	if _, err := c.Bookings(context.Background(), filter); err != nil {
		t.Fatalf("Bookings: %v", err)
	}
	if err := c.DeleteBooking(context.Background(), 12); err != nil {
		t.Fatalf("DeleteBooking: %v", err)
	}
	if _, err := c.Bookings(context.Background(), filter); err != nil {
		t.Fatalf("Bookings: %v", err)
	}
	if n := listCalls.Load(); n != 2 {
		t.Errorf("list hit %d times, want 2 (cache purged by delete)", n)
	}
}
