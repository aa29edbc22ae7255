// Package base carries the request path shared by all vendor adapters: rate
// governance, status classification and response decoding.
package base

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lean-data/internal/ratelimit"
)

const (
	defaultTimeout = 2 * time.Minute
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) lean-data/1.0"
	maxBodyBytes   = 256 << 20
)

// Client issues governed HTTP requests for one vendor.
type Client struct {
	vendor string
	http   *http.Client
	gov    *ratelimit.Governor
	header http.Header
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	jar     bool
	header  http.Header
	client  *http.Client
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithCookieJar enables session cookies.
func WithCookieJar() Option {
	return func(o *clientOptions) { o.jar = true }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(o *clientOptions) { o.header.Set(key, value) }
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.client = c }
}

// NewClient builds a client for vendor limited to rpm requests per minute.
func NewClient(vendor string, rpm int, opts ...Option) *Client {
	o := clientOptions{timeout: defaultTimeout, header: http.Header{}}
	for _, fn := range opts {
		fn(&o)
	}
	hc := o.client
	if hc == nil {
		hc = newHTTPClient(o.timeout, o.jar)
	}
	if o.header.Get("User-Agent") == "" {
		o.header.Set("User-Agent", userAgent)
	}
	return &Client{
		vendor: vendor,
		http:   hc,
		gov:    ratelimit.NewGovernor(vendor, rpm),
		header: o.header,
		log:    Logger(vendor),
	}
}

// Governor exposes the client's rate governor.
func (c *Client) Governor() *ratelimit.Governor { return c.gov }

// Logger returns the vendor-scoped logger.
func (c *Client) Logger() *slog.Logger { return c.log }

// Do waits on the governor, sends req and returns the body of a 2xx response.
// Non-2xx responses become *StatusError; network timeouts are wrapped as ErrTransient.
func (c *Client) Do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.gov.Wait(ctx); err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		if req.Header.Get(k) == "" {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	req = req.WithContext(ctx)
	c.log.Debug("request", "method", req.Method, "url", redact(req.URL))
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, Transient(err)
		}
		return nil, Transient(fmt.Errorf("%s: %w", c.vendor, err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, Transient(fmt.Errorf("%s: read body: %w", c.vendor, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Vendor: c.vendor, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// Get sends a GET to rawURL with query q merged into any existing query.
func (c *Client) Get(ctx context.Context, rawURL string, q url.Values, header http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if len(q) > 0 {
		merged := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// GetJSON is Get followed by json.Unmarshal into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, q url.Values, header http.Header, v any) error {
	body, err := c.Get(ctx, rawURL, q, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: parse JSON: %w", c.vendor, err)
	}
	return nil
}

// PostForm sends form-encoded values and returns the body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

var secretParams = []string{"apikey", "apiKey", "api_key", "token", "key"}

// redact hides credential query parameters in logs.
func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	for _, k := range secretParams {
		if q.Has(k) {
			q.Set(k, "***")
		}
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// Logger returns the vendor-scoped default logger for adapters without a client.
func Logger(vendor string) *slog.Logger {
	return slog.With("source", vendor)
}
