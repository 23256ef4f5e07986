// Package rest is a transport.Service speaking JSON over HTTP to a
// service exposed at <base>/<service>.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

const (
	defaultUserAgent = "svcstore/0.1"
	requestTimeout   = 10 * time.Second

	// QueryParam carries the JSON-encoded query document.
	QueryParam = "query"
)

// Client talks to one remote service.
type Client struct {
	baseURL   *url.URL
	service   string
	http      *http.Client
	userAgent string
}

var _ transport.Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient builds a client for service at baseURL. A bare host:port is
// treated as http.
func NewClient(baseURL, service string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	service = strings.Trim(service, "/")
	if service == "" {
		return nil, fmt.Errorf("service path required")
	}
	c := &Client{
		baseURL:   base,
		service:   service,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Service returns the remote service path.
func (c *Client) Service() string {
	return c.service
}

// Find issues GET /<service>?query=<json>.
func (c *Client) Find(ctx context.Context, params ir.Params) (transport.Result, error) {
	var res transport.Result
	if err := c.do(ctx, http.MethodGet, nil, params, nil, &res); err != nil {
		return transport.Result{}, err
	}
	return res, nil
}

// Get issues GET /<service>/<id>.
func (c *Client) Get(ctx context.Context, id any, params ir.Params) (ir.Record, error) {
	return c.record(ctx, http.MethodGet, id, params, nil)
}

// Create issues POST /<service>.
func (c *Client) Create(ctx context.Context, data ir.Record, params ir.Params) (ir.Record, error) {
	var out ir.Record
	if err := c.do(ctx, http.MethodPost, nil, params, data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update issues PUT /<service>/<id>.
func (c *Client) Update(ctx context.Context, id any, data ir.Record, params ir.Params) (ir.Record, error) {
	return c.record(ctx, http.MethodPut, id, params, data)
}

// Patch issues PATCH /<service>/<id>.
func (c *Client) Patch(ctx context.Context, id any, data ir.Record, params ir.Params) (ir.Record, error) {
	return c.record(ctx, http.MethodPatch, id, params, data)
}

// Remove issues DELETE /<service>/<id>.
func (c *Client) Remove(ctx context.Context, id any, params ir.Params) (ir.Record, error) {
	return c.record(ctx, http.MethodDelete, id, params, nil)
}

func (c *Client) record(ctx context.Context, method string, id any, params ir.Params, body ir.Record) (ir.Record, error) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil, transport.BadRequest("an id is required")
	}
	var out ir.Record
	if err := c.do(ctx, method, &key, params, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method string, id *string, params ir.Params, body any, dest any) error {
	reqURL := c.baseURL.JoinPath(c.service)
	if id != nil {
		reqURL = reqURL.JoinPath(*id)
	}
	if len(params.Query) > 0 {
		q, err := json.Marshal(params.Query)
		if err != nil {
			return fmt.Errorf("encode query: %w", err)
		}
		reqURL.RawQuery = url.Values{QueryParam: {string(q)}}.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response into a *transport.Error, falling
// back to the status text when the body is not a JSON error.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var te transport.Error
	if err := json.Unmarshal(raw, &te); err == nil && te.Message != "" {
		if te.Code == 0 {
			te.Code = resp.StatusCode
		}
		return &te
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return transport.NewError(resp.StatusCode, "%s", msg)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("base url required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
