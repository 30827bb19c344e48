// Package rest implements the gateway ports against a json-server style
// document store over HTTP.
package rest

import (
	"bytes"
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

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

var _ gateway.Gateway = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client rooted at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   newHTTPClientWithPooling(timeout),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClientWithPooling keeps a small pool of keep-alive connections to
// the gateway with bounded dial, handshake and header timeouts.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) FindUsersByUsername(ctx context.Context, username string) ([]core.UserRecord, error) {
	var out []core.UserRecord
	q := url.Values{"username": {username}}
	if err := c.do(ctx, http.MethodGet, "/users", q, nil, &out); err != nil {
		return nil, err
	}
	// json-server matches query params exactly, other stores may not.
	matched := out[:0]
	for _, r := range out {
		if r.Username == username {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (c *Client) CreateUser(ctx context.Context, u core.UserRecord) (core.UserRecord, error) {
	u.ID = ""
	var out core.UserRecord
	if err := c.do(ctx, http.MethodPost, "/users", nil, u, &out); err != nil {
		return core.UserRecord{}, err
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id core.ID, patch core.UserPatch) (core.UserRecord, error) {
	var out core.UserRecord
	if err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id.String()), nil, patch, &out); err != nil {
		return core.UserRecord{}, err
	}
	return out, nil
}

func (c *Client) ListExpenses(ctx context.Context, owner core.ID) ([]core.Expense, error) {
	var out []core.Expense
	q := url.Values{"userId": {owner.String()}}
	if err := c.do(ctx, http.MethodGet, "/expenses", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = ""
	var out core.Expense
	if err := c.do(ctx, http.MethodPost, "/expenses", nil, e, &out); err != nil {
		return core.Expense{}, err
	}
	return out, nil
}

func (c *Client) DeleteExpense(ctx context.Context, id core.ID) error {
	return c.do(ctx, http.MethodDelete, "/expenses/"+url.PathEscape(id.String()), nil, nil, nil)
}

// do performs one round trip. in is JSON-encoded when non-nil, out is decoded
// when non-nil. The response body is always drained so the connection is reused.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "gateway request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.DebugContext(ctx, "gateway request", "method", method, "path", path,
		"status_code", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
