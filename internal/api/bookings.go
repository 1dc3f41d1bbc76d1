package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const bookingPrefix = mosquePrefix + "/bookings"

// CreateBooking reserves a mosque facility. Validation runs locally first
// so obviously broken requests never reach the wire.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*Booking, error) {
	if err := validateForm(req); err != nil {
		return nil, err
	}
	var b Booking
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   bookingPrefix + "/",
		json:   req,
	}, &b)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(bookingPrefix)
	return &b, nil
}

// Bookings lists the current user's reservations, narrowed by filter.
func (c *Client) Bookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	query := url.Values{}
	if filter.MosqueID != 0 {
		query.Set("mosque", strconv.Itoa(filter.MosqueID))
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     bookingPrefix + "/",
		query:    query,
		cacheTTL: c.cacheTTL,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Booking](raw)
}

// Booking fetches a single reservation by id.
func (c *Client) Booking(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     fmt.Sprintf("%s/%d/", bookingPrefix, id),
		cacheTTL: c.cacheTTL,
	}, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBooking applies a partial update to a reservation.
func (c *Client) UpdateBooking(ctx context.Context, id int, update BookingUpdate) (*Booking, error) {
	var b Booking
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("%s/%d/", bookingPrefix, id),
		json:   update,
	}, &b)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(bookingPrefix)
	return &b, nil
}

// CancelBooking flips a reservation to cancelled without deleting it, so
// the mosque keeps the record.
func (c *Client) CancelBooking(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("%s/%d/cancel/", bookingPrefix, id),
	}, &b)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(bookingPrefix)
	return &b, nil
}

// DeleteBooking removes a reservation outright.
func (c *Client) DeleteBooking(ctx context.Context, id int) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/%d/", bookingPrefix, id),
	}, nil)
	if err != nil {
		return err
	}
	c.cache.purgePrefix(bookingPrefix)
	return nil
}
