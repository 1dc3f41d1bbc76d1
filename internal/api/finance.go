package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	donationPrefix = mosquePrefix + "/donations"
	incomePrefix   = mosquePrefix + "/income"
	expensePrefix  = mosquePrefix + "/expenses"
)

// CreateDonation records a contribution.
func (c *Client) CreateDonation(ctx context.Context, req DonationRequest) (*Donation, error) {
	if err := validateForm(req); err != nil {
		return nil, err
	}
	var d Donation
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   donationPrefix + "/",
		json:   req,
	}, &d)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(donationPrefix)
	return &d, nil
}

// Donations lists all donations visible to the current user.
func (c *Client) Donations(ctx context.Context) ([]Donation, error) {
	return c.donationList(ctx, donationPrefix+"/")
}

// Donation fetches a single donation by id.
func (c *Client) Donation(ctx context.Context, id int) (*Donation, error) {
	var d Donation
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     fmt.Sprintf("%s/%d/", donationPrefix, id),
		cacheTTL: c.cacheTTL,
	}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MosqueDonations lists the donations received by one mosque.
func (c *Client) MosqueDonations(ctx context.Context, mosqueID int) ([]Donation, error) {
	return c.donationList(ctx, fmt.Sprintf("%s/%d/donations/", mosquePrefix, mosqueID))
}

// MyDonations lists the donations the current user has made.
func (c *Client) MyDonations(ctx context.Context) ([]Donation, error) {
	return c.donationList(ctx, donationPrefix+"/my/")
}

func (c *Client) donationList(ctx context.Context, path string) ([]Donation, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     path,
		cacheTTL: c.cacheTTL,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Donation](raw)
}

// RecordIncome adds an income entry to a mosque's books.
func (c *Client) RecordIncome(ctx context.Context, req LedgerEntryRequest) (*LedgerEntry, error) {
	return c.createLedgerEntry(ctx, incomePrefix, req)
}

// IncomeEntries lists a mosque's income records.
func (c *Client) IncomeEntries(ctx context.Context) ([]LedgerEntry, error) {
	return c.ledgerList(ctx, incomePrefix+"/")
}

// UpdateIncome applies a partial update to an income entry.
func (c *Client) UpdateIncome(ctx context.Context, id int, update LedgerUpdate) (*LedgerEntry, error) {
	return c.updateLedgerEntry(ctx, incomePrefix, id, update)
}

// DeleteIncome removes an income entry.
func (c *Client) DeleteIncome(ctx context.Context, id int) error {
	return c.deleteLedgerEntry(ctx, incomePrefix, id)
}

// IncomeSummary aggregates a mosque's income.
func (c *Client) IncomeSummary(ctx context.Context, mosqueID int) (*FinanceSummary, error) {
	return c.ledgerSummary(ctx, fmt.Sprintf("%s/%d/income/summary/", mosquePrefix, mosqueID))
}

// RecordExpense adds an expense entry to a mosque's books.
func (c *Client) RecordExpense(ctx context.Context, req LedgerEntryRequest) (*LedgerEntry, error) {
	return c.createLedgerEntry(ctx, expensePrefix, req)
}

// ExpenseEntries lists a mosque's expense records.
func (c *Client) ExpenseEntries(ctx context.Context) ([]LedgerEntry, error) {
	return c.ledgerList(ctx, expensePrefix+"/")
}

// UpdateExpense applies a partial update to an expense entry.
func (c *Client) UpdateExpense(ctx context.Context, id int, update LedgerUpdate) (*LedgerEntry, error) {
	return c.updateLedgerEntry(ctx, expensePrefix, id, update)
}

// DeleteExpense removes an expense entry.
func (c *Client) DeleteExpense(ctx context.Context, id int) error {
	return c.deleteLedgerEntry(ctx, expensePrefix, id)
}

// ExpenseSummary aggregates a mosque's expenses.
func (c *Client) ExpenseSummary(ctx context.Context, mosqueID int) (*FinanceSummary, error) {
	return c.ledgerSummary(ctx, fmt.Sprintf("%s/%d/expenses/summary/", mosquePrefix, mosqueID))
}

func (c *Client) createLedgerEntry(ctx context.Context, prefix string, req LedgerEntryRequest) (*LedgerEntry, error) {
	if err := validateForm(req); err != nil {
		return nil, err
	}
	var e LedgerEntry
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   prefix + "/",
		json:   req,
	}, &e)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(prefix)
	return &e, nil
}

func (c *Client) ledgerList(ctx context.Context, path string) ([]LedgerEntry, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     path,
		cacheTTL: c.cacheTTL,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[LedgerEntry](raw)
}

func (c *Client) updateLedgerEntry(ctx context.Context, prefix string, id int, update LedgerUpdate) (*LedgerEntry, error) {
	var e LedgerEntry
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("%s/%d/", prefix, id),
		json:   update,
	}, &e)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(prefix)
	return &e, nil
}

func (c *Client) deleteLedgerEntry(ctx context.Context, prefix string, id int) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/%d/", prefix, id),
	}, nil)
	if err != nil {
		return err
	}
	c.cache.purgePrefix(prefix)
	return nil
}

func (c *Client) ledgerSummary(ctx context.Context, path string) (*FinanceSummary, error) {
	var s FinanceSummary
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     path,
		cacheTTL: c.cacheTTL,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
