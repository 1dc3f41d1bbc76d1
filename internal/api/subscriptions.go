package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const subscribePrefix = "/api/subscribe"

// Subscribe signs an address up for prayer-time notifications. The backend
// sends an activation token to the address before the subscription goes live.
func (c *Client) Subscribe(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	if err := validateForm(req); err != nil {
		return nil, err
	}
	var sub Subscription
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   subscribePrefix + "/",
		json:   req,
	}, &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscriptions lists the current user's subscriptions.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   subscribePrefix + "/",
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Subscription](raw)
}

// Subscription fetches one subscription by ID.
func (c *Client) Subscription(ctx context.Context, id int) (*Subscription, error) {
	var sub Subscription
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("%s/%d/", subscribePrefix, id),
	}, &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscription changes a subscription's schedule or target.
func (c *Client) UpdateSubscription(ctx context.Context, id int, req SubscriptionRequest) (*Subscription, error) {
	if err := validateForm(req); err != nil {
		return nil, err
	}
	var sub Subscription
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("%s/%d/", subscribePrefix, id),
		json:   req,
	}, &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscription removes one subscription by ID.
func (c *Client) DeleteSubscription(ctx context.Context, id int) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/%d/", subscribePrefix, id),
	}, nil)
}

// ActivateSubscription confirms a subscription with the emailed token.
// Activation is unauthenticated: the token is the credential.
func (c *Client) ActivateSubscription(ctx context.Context, activationToken string) error {
	return c.do(ctx, request{
		method:    http.MethodPost,
		path:      subscribePrefix + "/activate/",
		json:      map[string]string{"token": activationToken},
		skipAuth:  true,
		noRefresh: true,
	}, nil)
}

// Unsubscribe removes every subscription for the given address. Like
// activation it is unauthenticated, so it works from an email link.
func (c *Client) Unsubscribe(ctx context.Context, email string) error {
	return c.do(ctx, request{
		method:    http.MethodPost,
		path:      subscribePrefix + "/unsubscribe/",
		json:      map[string]string{"email": email},
		skipAuth:  true,
		noRefresh: true,
	}, nil)
}

// SubscriptionLogs lists delivery records for one subscription.
func (c *Client) SubscriptionLogs(ctx context.Context, subscriptionID int) ([]SubscriptionLog, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("%s/%d/logs/", subscribePrefix, subscriptionID),
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[SubscriptionLog](raw)
}
