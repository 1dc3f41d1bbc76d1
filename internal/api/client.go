// Package api is the single request pipeline for the Masjid Network backend.
// Every outbound call goes through Client.do: bearer attachment from the
// token store, multipart handling, response caching, metrics, tracing, and
// transparent 401 recovery via the refresh coordinator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/masjid-network/masjidctl/internal/token"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// Client is the configured request pipeline shared by every API-calling
// module. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     *token.Store
	logger     *slog.Logger
	metrics    *Metrics
	cache      *responseCache
	cacheTTL   time.Duration
	tracer     trace.Tracer
	refresher  *refreshCoordinator
	userAgent  string

	onSessionExpired func()
}

// New creates a Client for the given backend base URL and token store.
func New(baseURL string, tokens *token.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		tokens:    tokens,
		logger:    slog.Default(),
		cache:     newResponseCache(),
		cacheTTL:  30 * time.Second,
		tracer:    otel.Tracer("masjidctl/api"),
		userAgent: "masjidctl",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	c.refresher = newRefreshCoordinator(c)
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the client's token store.
func (c *Client) Tokens() *token.Store {
	return c.tokens
}

// request describes one API call. Descriptors are values: the pipeline
// tracks the retry attempt on its own copy, never by mutating shared state.
type request struct {
	method string
	path   string
	query  url.Values
	json   any
	form   *multipartForm

	// skipAuth suppresses the bearer header (login, register, refresh).
	skipAuth bool
	// noRefresh makes a 401 fail straight through instead of entering the
	// refresh flow. Set for calls that never had a valid session.
	noRefresh bool
	// cacheTTL enables response caching for GETs when positive.
	cacheTTL time.Duration
	// attempt counts pipeline retries of this descriptor. A request is
	// refreshed-and-retried at most once.
	attempt int
}

// multipartForm is a multipart/form-data payload: string fields plus file
// attachments.
type multipartForm struct {
	fields map[string]string
	files  map[string]FileAttachment
}

// encode renders the form body. The returned content type carries the
// boundary chosen by mime/multipart and MUST be sent verbatim: overriding
// it (for example with application/json) corrupts the body.
func (f *multipartForm) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range f.fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	for name, att := range f.files {
		part, err := w.CreateFormFile(name, att.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", name, err)
		}
		if _, err := part.Write(att.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// do runs one request through the pipeline and decodes the JSON response
// into out (which may be nil for calls whose body is ignorable).
func (c *Client) do(ctx context.Context, req request, out any) error {
	cacheable := req.method == http.MethodGet && req.cacheTTL > 0
	var key uint64
	if cacheable {
		key = cacheKey(req.method, req.path, req.query)
		if body, ok := c.cache.get(key); ok {
			c.countCache("hit")
			if out == nil {
				return nil
			}
			return json.Unmarshal(body, out)
		}
		c.countCache("miss")
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, req.method+" "+req.path,
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("http.path", req.path),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	for {
		respBody, sendErr := c.send(ctx, &req, body, contentType, requestID)
		if sendErr != nil {
			var apiErr *APIError
			if errors.As(sendErr, &apiErr) && apiErr.Status == http.StatusUnauthorized && !req.noRefresh {
				if req.attempt > 0 {
					// Already retried once on a fresh token. A second 401
					// means the new token is no good either; give up rather
					// than loop.
					span.SetStatus(codes.Error, "unauthorized after retry")
					return sendErr
				}
				span.AddEvent("token refresh")
				if rerr := c.refresher.await(ctx); rerr != nil {
					span.SetStatus(codes.Error, "token refresh failed")
					return rerr
				}
				req.attempt++
				continue
			}
			span.SetStatus(codes.Error, sendErr.Error())
			return sendErr
		}

		if cacheable {
			c.cache.put(key, req.path, respBody, req.cacheTTL)
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
}

// send performs a single HTTP round-trip. The bearer token is re-read from
// the store on every attempt so a retry after refresh picks up the new one.
// Non-2xx responses come back as *APIError.
func (c *Client) send(ctx context.Context, req *request, body []byte, contentType, requestID string) ([]byte, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if !req.skipAuth {
		if tok := c.tokens.Get(token.KindAccess); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.method, "error", time.Since(start))
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(req.method, "error", time.Since(start))
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(req.method, "error", time.Since(start))
		return nil, parseAPIError(resp.StatusCode, respBody, requestID)
	}
	c.observe(req.method, "ok", time.Since(start))
	return respBody, nil
}

// encodeBody renders the request body and its content type. JSON and
// multipart are mutually exclusive; multipart wins when both are set.
func encodeBody(req request) ([]byte, string, error) {
	if req.form != nil {
		return req.form.encode()
	}
	if req.json != nil {
		data, err := json.Marshal(req.json)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
		return data, "application/json", nil
	}
	return nil, "", nil
}

func (c *Client) observe(method, status string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(method, status).Inc()
	c.metrics.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Client) countCache(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CacheLookups.WithLabelValues(result).Inc()
}
