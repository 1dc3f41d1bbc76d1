package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const mosquePrefix = "/api/mosques"

// Mosques lists registered mosques, optionally filtered by a free-text
// search term. Results are served from the response cache when fresh.
func (c *Client) Mosques(ctx context.Context, search string) ([]Mosque, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     mosquePrefix + "/",
		query:    query,
		cacheTTL: c.cacheTTL,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Mosque](raw)
}

// Mosque fetches a single mosque by id.
func (c *Client) Mosque(ctx context.Context, id int) (*Mosque, error) {
	var m Mosque
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     fmt.Sprintf("%s/%d/", mosquePrefix, id),
		cacheTTL: c.cacheTTL,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// NearbyMosques lists mosques within radiusKm of the given coordinates.
func (c *Client) NearbyMosques(ctx context.Context, lat, lng, radiusKm float64) ([]Mosque, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     mosquePrefix + "/nearby/",
		query:    query,
		cacheTTL: c.cacheTTL,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Mosque](raw)
}

// FavoriteMosques lists the mosques the current user has favorited.
func (c *Client) FavoriteMosques(ctx context.Context) ([]Mosque, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   mosquePrefix + "/favorites/",
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Mosque](raw)
}

// AddFavorite marks a mosque as a favorite of the current user.
func (c *Client) AddFavorite(ctx context.Context, mosqueID int) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("%s/%d/favorite/", mosquePrefix, mosqueID),
	}, nil)
	if err != nil {
		return err
	}
	c.cache.purgePrefix(mosquePrefix)
	return nil
}

// RemoveFavorite removes a mosque from the current user's favorites.
func (c *Client) RemoveFavorite(ctx context.Context, mosqueID int) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/%d/favorite/", mosquePrefix, mosqueID),
	}, nil)
	if err != nil {
		return err
	}
	c.cache.purgePrefix(mosquePrefix)
	return nil
}

// RegisterMosque submits a new mosque for review. The registration form
// carries an optional verification document, so the payload is multipart.
func (c *Client) RegisterMosque(ctx context.Context, reg MosqueRegistration) (*Mosque, error) {
	if err := validateForm(reg); err != nil {
		return nil, err
	}
	mp := &multipartForm{
		fields: map[string]string{
			"name":      reg.Name,
			"address":   reg.Address,
			"city":      reg.City,
			"country":   reg.Country,
			"latitude":  strconv.FormatFloat(reg.Latitude, 'f', -1, 64),
			"longitude": strconv.FormatFloat(reg.Longitude, 'f', -1, 64),
			"phone":     reg.Phone,
			"email":     reg.Email,
			"website":   reg.Website,
		},
		files: map[string]FileAttachment{},
	}
	if reg.Document != nil {
		mp.files["verification_document"] = *reg.Document
	}

	var m Mosque
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   mosquePrefix + "/register/",
		form:   mp,
	}, &m)
	if err != nil {
		return nil, err
	}
	c.cache.purgePrefix(mosquePrefix)
	return &m, nil
}
