// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jeranaias/crcafe-cli/internal/logging"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the default timeout for a single HTTP exchange.
	DefaultTimeout = 30 * time.Second

	// DefaultRefreshTimeout bounds the refresh exchange. The refresh runs
	// detached from the triggering request's context because other callers
	// wait on its outcome.
	DefaultRefreshTimeout = 15 * time.Second

	// DefaultUserAgent identifies crcafe to the backend.
	DefaultUserAgent = "crcafe/1.0"

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	refreshPath = "/auth/refresh"
)

// CredentialStore is the persisted credential as seen by the client. The
// client reads the token on every request and writes only during a refresh.
type CredentialStore interface {
	Token() (string, error)
	WriteToken(token string) error
	ClearSession() error
	RefreshCookie() (string, error)
	WriteRefreshCookie(cookie string) error
}

// Request describes one backend call.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "/items".
	Path   string
	Params url.Values
	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header

	// Anonymous omits the bearer credential.
	Anonymous bool
	// NoRefresh returns a 401/403 to the caller instead of repairing the
	// session.
	NoRefresh bool

	retried bool
}

// Response is a 2xx reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Client is the authenticated HTTP client. Each Client owns its own refresh
// flag and waiter queue.
type Client struct {
	baseURL    string
	refreshURL *url.URL
	httpClient *http.Client
	jar        *resettableJar
	creds      CredentialStore
	log        zerolog.Logger
	userAgent  string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	refreshTimeout time.Duration

	// mu guards the refresh state.
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult

	// cookieMu guards the mirrored refresh cookie.
	cookieMu   sync.Mutex
	lastCookie string

	subs subscribers
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, creds CredentialStore) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		creds:          creds,
		log:            logging.Nop(),
		userAgent:      DefaultUserAgent,
		refreshTimeout: DefaultRefreshTimeout,
	}
	if u, err := url.Parse(c.baseURL + refreshPath); err == nil {
		c.refreshURL = u
	}
	c.jar = newJar()
	c.httpClient = &http.Client{
		Timeout: DefaultTimeout,
		Jar:     c.jar,
	}
	c.restoreRefreshCookie()
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = logging.Component(log, "apiclient")
	return c
}

// WithTimeout sets the per-exchange timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client. The client's own
// cookie jar is always used so the refresh cookie stays under its control.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *hc
	cp.Jar = c.jar
	c.httpClient = &cp
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithRefreshTimeout bounds the refresh exchange.
func (c *Client) WithRefreshTimeout(d time.Duration) *Client {
	if d > 0 {
		c.refreshTimeout = d
	}
	return c
}

// WithRateLimit throttles outbound requests. rps <= 0 disables throttling.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithCircuitBreaker trips after consecutive transport failures or 5xx
// answers. Authorization failures never count.
func (c *Client) WithCircuitBreaker(enabled bool) *Client {
	if !enabled {
		c.breaker = nil
		return c
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "crcafe-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// =============================================================================
// SEND
// =============================================================================

// Send dispatches req with the current credential. A 401/403 is repaired
// with one refresh exchange and one retry; any other non-2xx is returned as
// a *StatusError.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	token := ""
	if !req.Anonymous {
		tok, err := c.creds.Token()
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to read credential")
		}
		token = tok
	}

	resp, err := c.dispatch(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 200 && resp.Status < 300 {
		return resp, nil
	}
	if !isAuthFailure(resp.Status) || req.retried || req.NoRefresh || req.Anonymous {
		return nil, handleErrorResponse(resp.Status, resp.Body)
	}

	newToken, err := c.awaitRefresh(ctx, token)
	if err != nil {
		return nil, err
	}

	req.retried = true
	resp, err = c.dispatch(ctx, req, newToken)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, handleErrorResponse(resp.Status, resp.Body)
	}
	return resp, nil
}

// DoJSON sends req and decodes the response into out (if non-nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Get is shorthand for a GET DoJSON.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodGet, Path: path, Params: params}, out)
}

// Post is shorthand for a POST DoJSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put is shorthand for a PUT DoJSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch is shorthand for a PATCH DoJSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete is shorthand for a DELETE DoJSON.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// =============================================================================
// TRANSPORT
// =============================================================================

// errServerFault marks a 5xx for the circuit breaker. It never leaves the
// package.
var errServerFault = errors.New("server fault")

// dispatch performs one HTTP exchange and returns whatever status came back.
// An error means no response was received.
func (c *Client) dispatch(ctx context.Context, req Request, token string) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(ctx, httpReq, token)
}

func (c *Client) buildRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// roundTrip sends httpReq through the limiter and breaker and reads the body.
func (c *Client) roundTrip(ctx context.Context, httpReq *http.Request, token string) (*Response, error) {
	op := httpReq.Method + " " + httpReq.URL.Path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	c.logRequest(httpReq, token)

	start := time.Now()
	exchange := func() (interface{}, error) {
		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		body, err := readResponse(httpResp)
		if err != nil {
			return nil, err
		}
		resp := &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: body}
		if resp.Status >= 500 {
			return resp, errServerFault
		}
		return resp, nil
	}

	var (
		result interface{}
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(exchange)
	} else {
		result, err = exchange()
	}

	// SECURITY: Clear Authorization header after request to prevent logging
	httpReq.Header.Del("Authorization")

	if errors.Is(err, errServerFault) {
		err = nil
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrCircuitOpen
		}
		c.log.Debug().Str("request_id", httpReq.Header.Get("X-Request-ID")).Err(err).Msg("api request failed")
		return nil, &NetworkError{Op: op, Err: err}
	}

	resp := result.(*Response)
	c.logResponse(httpReq, resp, time.Since(start))
	c.mirrorRefreshCookie()
	return resp, nil
}

// readResponse reads the response body with size limits to prevent memory
// exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// Request/Response Logging (without sensitive data)
// =============================================================================

// logRequest logs an API request without headers or body.
func (c *Client) logRequest(req *http.Request, token string) {
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Str("credential", logging.Fingerprint(token)).
		Msg("api request")
}

// logResponse logs the status and duration only.
func (c *Client) logResponse(req *http.Request, resp *Response, duration time.Duration) {
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Int("status", resp.Status).
		Dur("duration", duration).
		Msg("api response")
}
