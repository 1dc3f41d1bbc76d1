package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/masjid-network/masjidctl/internal/token"
)

func TestCreateDonationAndMyDonations(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/mosques/donations/":
			var body DonationRequest
			json.NewDecoder(r.Body).Decode(&body)
			if body.MosqueID != 3 || body.Amount != 250 || body.PaymentMethod != "cash" {
				t.Errorf("donation payload = %+v", body)
			}
			writeJSON(w, http.StatusCreated, Donation{ID: 8, MosqueID: 3, Amount: 250, Reference: "DN-8"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/mosques/donations/my/":
			writeJSON(w, http.StatusOK, []Donation{{ID: 8, Amount: 250}})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"})
	d, err := c.CreateDonation(context.Background(), DonationRequest{
		MosqueID:      3,
		Amount:        250,
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	if d.Reference != "DN-8" {
		t.Errorf("reference = %q", d.Reference)
	}

	mine, err := c.MyDonations(context.Background())
	if err != nil {
		t.Fatalf("MyDonations: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != 8 {
		t.Errorf("donations = %+v", mine)
	}
}

// Zero and negative amounts are rejected before the request leaves the
// process, as is an unknown payment method.
func TestCreateDonationValidatesLocally(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"})
	_, err := c.CreateDonation(context.Background(), DonationRequest{
		MosqueID:      3,
		Amount:        -5,
		PaymentMethod: "barter",
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 APIError", err)
	}
	if got := apiErr.FieldError("amount"); got == "" {
		t.Error("expected a field error for amount")
	}
	if got := apiErr.FieldError("payment_method"); got == "" {
		t.Error("expected a field error for payment_method")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server hit %d times, want 0", n)
	}
}

func TestLedgerEntriesAndSummary(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/mosques/income/":
			var body LedgerEntryRequest
			json.NewDecoder(r.Body).Decode(&body)
			if body.Source != "friday_collection" {
				t.Errorf("income payload = %+v", body)
			}
			writeJSON(w, http.StatusCreated, LedgerEntry{ID: 4, MosqueID: 3, Amount: 900, Source: "friday_collection"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/mosques/expenses/":
			var body LedgerEntryRequest
			json.NewDecoder(r.Body).Decode(&body)
			if body.Category != "utilities" {
				t.Errorf("expense payload = %+v", body)
			}
			writeJSON(w, http.StatusCreated, LedgerEntry{ID: 5, MosqueID: 3, Amount: 120, Category: "utilities"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/mosques/3/income/summary/":
			writeJSON(w, http.StatusOK, FinanceSummary{MosqueID: 3, Total: 900, Count: 1})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "A1"})
	income, err := c.RecordIncome(context.Background(), LedgerEntryRequest{
		MosqueID: 3,
		Amount:   900,
		Source:   "friday_collection",
		Date:     "2026-08-28",
	})
	if err != nil {
		t.Fatalf("RecordIncome: %v", err)
	}
	if income.ID != 4 {
		t.Errorf("income = %+v", income)
	}

	expense, err := c.RecordExpense(context.Background(), LedgerEntryRequest{
		MosqueID: 3,
		Amount:   120,
		Category: "utilities",
		Date:     "2026-08-29",
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}
	if expense.Category != "utilities" {
		t.Errorf("expense = %+v", expense)
	}

	summary, err := c.IncomeSummary(context.Background(), 3)
	if err != nil {
		t.Fatalf("IncomeSummary: %v", err)
	}
	if summary.Total != 900 || summary.Count != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

// Password-reset calls run before any session exists, so they must never
// carry a bearer token and a 401 must not wake the refresh coordinator.
func TestPasswordResetSkipsAuth(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/forgot_password/":
			if auth := r.Header.Get("Authorization"); auth != "" {
				t.Errorf("forgot_password carried Authorization %q", auth)
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["email"] != "imam@example.org" {
				t.Errorf("payload = %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{"detail": "Email sent."})
		case "/api/auth/reset_password/":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["uid"] != "MQ" || body["token"] != "tok-1" {
				t.Errorf("payload = %v", body)
			}
			if body["new_password"] != body["new_password_confirm"] {
				t.Errorf("password mismatch in payload %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{"detail": "Password reset."})
		case "/api/auth/refresh_token/":
			refreshCalls.Add(1)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, token.Pair{Access: "stale", Refresh: "R1"})
	if err := c.RequestPasswordReset(context.Background(), "imam@example.org"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if err := c.ResetPassword(context.Background(), "MQ", "tok-1", "newpass123", "newpass123"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if n := refreshCalls.Load(); n != 0 {
		t.Errorf("refresh called %d times, want 0", n)
	}
}
