package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// PrayerTimesToday fetches today's prayer times for a location.
func (c *Client) PrayerTimesToday(ctx context.Context, location string) (*PrayerDay, error) {
	query := url.Values{}
	query.Set("location", location)
	var day PrayerDay
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/prayer-times/today/",
		query:    query,
		cacheTTL: c.cacheTTL,
	}, &day)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// PrayerTimesMonthly fetches a full month of prayer times for a location.
func (c *Client) PrayerTimesMonthly(ctx context.Context, location string, year, month int) (*MonthlyTimetable, error) {
	query := url.Values{}
	query.Set("location", location)
	query.Set("year", fmt.Sprintf("%d", year))
	query.Set("month", fmt.Sprintf("%d", month))
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/prayer-times/monthly/",
		query:    query,
		cacheTTL: c.cacheTTL,
	}, &raw)
	if err != nil {
		return nil, err
	}
	days, err := decodeList[PrayerDay](raw)
	if err != nil {
		return nil, err
	}
	return &MonthlyTimetable{
		Location: location,
		Year:     year,
		Month:    month,
		Days:     days,
	}, nil
}

// MosquePrayerTimes fetches today's prayer times as published by a
// specific mosque.
func (c *Client) MosquePrayerTimes(ctx context.Context, mosqueID int) (*PrayerDay, error) {
	var day PrayerDay
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     fmt.Sprintf("%s/%d/prayer_times/", mosquePrefix, mosqueID),
		cacheTTL: c.cacheTTL,
	}, &day)
	if err != nil {
		return nil, err
	}
	return &day, nil
}
