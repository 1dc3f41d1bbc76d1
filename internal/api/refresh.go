package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/masjid-network/masjidctl/internal/token"
)

// refreshCoordinator serializes token refreshes. At most one refresh
// round-trip is in flight process-wide; requests failing with 401 while one
// is running park on the waiter queue and share its outcome. Waiters are
// released in park order, each retrying its original request afterwards.
//
// Each refresh attempt gets an epoch number. The waiter queue is swapped out
// atomically with the state flip back to idle, so a queue entry can only
// ever be resolved by the epoch it was parked under.
type refreshCoordinator struct {
	client *Client

	mu         sync.Mutex
	refreshing bool
	epoch      uint64
	waiters    []chan error
}

func newRefreshCoordinator(c *Client) *refreshCoordinator {
	return &refreshCoordinator{client: c}
}

// await blocks until a token refresh completes and returns its outcome.
// The first caller performs the round-trip; concurrent callers park.
func (rc *refreshCoordinator) await(ctx context.Context) error {
	rc.mu.Lock()
	if rc.refreshing {
		ch := make(chan error, 1)
		rc.waiters = append(rc.waiters, ch)
		epoch := rc.epoch
		rc.mu.Unlock()

		if m := rc.client.metrics; m != nil {
			m.RefreshWaiters.Inc()
			defer m.RefreshWaiters.Dec()
		}
		rc.client.logger.Debug("request parked awaiting token refresh", "epoch", epoch)

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	rc.refreshing = true
	rc.epoch++
	epoch := rc.epoch
	rc.mu.Unlock()

	err := rc.refresh(ctx, epoch)

	rc.mu.Lock()
	rc.refreshing = false
	waiters := rc.waiters
	rc.waiters = nil
	rc.mu.Unlock()

	// Fan out in park order. Channels are buffered so no waiter can stall
	// the release of the ones behind it.
	for _, ch := range waiters {
		ch <- err
	}
	return err
}

// refresh performs the actual round-trip for the given epoch.
func (rc *refreshCoordinator) refresh(ctx context.Context, epoch uint64) error {
	c := rc.client

	refreshTok := c.tokens.Get(token.KindRefresh)
	if refreshTok == "" {
		// Terminal without touching the network: there is nothing to
		// refresh with.
		rc.countRefresh("error")
		rc.expire()
		return fmt.Errorf("%w: no refresh token available", ErrSessionExpired)
	}

	var resp authResponse
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/refresh_token/",
		json:      map[string]string{"refresh": refreshTok},
		skipAuth:  true,
		noRefresh: true,
	}, &resp)
	if err != nil {
		c.logger.Info("token refresh failed, ending session", "epoch", epoch, "error", err)
		rc.countRefresh("error")
		rc.expire()
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	pair := resp.pair()
	if pair.Access == "" {
		c.logger.Warn("refresh response carried no access token", "epoch", epoch)
		rc.countRefresh("error")
		rc.expire()
		return fmt.Errorf("%w: refresh response carried no access token", ErrSessionExpired)
	}

	// Rotation is optional: Set keeps the old refresh token when the
	// response omits a new one.
	c.tokens.Set(pair)
	rc.countRefresh("ok")
	c.logger.Debug("token refresh succeeded", "epoch", epoch, "rotated", pair.Refresh != "")
	return nil
}

// expire clears every trace of the session and fires the expiry hook.
func (rc *refreshCoordinator) expire() {
	c := rc.client
	c.tokens.Clear()
	c.cache.purgeAll()
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func (rc *refreshCoordinator) countRefresh(result string) {
	if m := rc.client.metrics; m != nil {
		m.TokenRefreshes.WithLabelValues(result).Inc()
	}
}
