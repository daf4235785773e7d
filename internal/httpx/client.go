// Package httpx wraps net/http for the Power Platform and Dataverse REST
// surfaces: base URL joining, bearer token injection, default headers,
// status-based retry with Retry-After support, and client-side rate limiting
// for Dataverse service protection limits.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pacx-labs/pacx/internal/logging"
)

// TokenFunc supplies a bearer token for each request. A nil TokenFunc sends
// unauthenticated requests.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken adapts a fixed token string to a TokenFunc.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

const defaultTimeout = 60 * time.Second

var defaultRetryStatuses = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Client is a thin HTTP wrapper shared by all service clients.
type Client struct {
	baseURL       string
	hc            *http.Client
	token         TokenFunc
	headers       map[string]string
	maxRetries    uint
	backoff       time.Duration
	retryStatuses map[int]struct{}
	limiter       *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token source.
func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// WithHeaders sets default headers applied to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// WithHTTPClient sets a custom underlying client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithMaxRetries overrides the retry budget for retryable statuses and
// transport errors.
func WithMaxRetries(n uint) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff overrides the base backoff delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithRateLimit caps outbound request rate. Dataverse enforces service
// protection limits per user; keeping under them avoids burning the retry
// budget on 429s.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New builds a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		hc:            &http.Client{Timeout: defaultTimeout},
		maxRetries:    2,
		backoff:       500 * time.Millisecond,
		retryStatuses: defaultRetryStatuses,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Response captures a completed HTTP exchange with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Request describes one call relative to the client's base URL.
type Request struct {
	Method  string
	Path    string
	Params  url.Values
	JSON    any               // marshaled as the request body when non-nil
	Raw     []byte            // used verbatim when JSON is nil
	Headers map[string]string // merged over the client defaults
}

// retryStatusError marks a response that should be retried, carrying any
// Retry-After hint from the server.
type retryStatusError struct {
	status     int
	retryAfter time.Duration
}

func (e *retryStatusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.status)
}

// Do executes the request, retrying transport errors and retryable statuses.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	// Absolute paths bypass the base URL; Operation-Location headers hand
	// back full URLs that keep the client's token and retry policy.
	u := req.Path
	if !strings.Contains(u, "://") {
		u = c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	}
	if len(req.Params) > 0 {
		u += "?" + req.Params.Encode()
	}

	var body []byte
	if req.JSON != nil {
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = b
	} else {
		body = req.Raw
	}

	var (
		lastStatus *retryStatusError
		lastResp   *Response
	)
	resp, err := retry.DoWithData(func() (*Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}
		}
		r, err := c.attempt(ctx, req.Method, u, body, req.Headers)
		if err != nil {
			return nil, err
		}
		lastResp = r
		if _, ok := c.retryStatuses[r.StatusCode]; ok {
			rse := &retryStatusError{status: r.StatusCode, retryAfter: retryAfterOf(r.Header)}
			lastStatus = rse
			return r, rse
		}
		return r, nil
	},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries+1),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, cfg *retry.Config) time.Duration {
			if lastStatus != nil && lastStatus.retryAfter > 0 {
				return lastStatus.retryAfter
			}
			return c.backoff * (1 << n)
		}),
		retry.OnRetry(func(n uint, err error) {
			logging.L().Debug("retrying request",
				zap.String("method", req.Method),
				zap.String("url", u),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		// Retries exhausted on a retryable status: surface it as HTTPError
		// using the final response.
		if _, ok := err.(*retryStatusError); ok && lastResp != nil {
			return nil, httpError(lastResp)
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, u, err)
	}

	if resp.StatusCode >= 400 {
		return nil, httpError(resp)
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method, u string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" && body != nil {
		httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return nil, retry.Unrecoverable(fmt.Errorf("acquiring token: %w", err))
		}
		if tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	logging.L().Debug("request completed",
		zap.String("method", method),
		zap.String("url", u),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func httpError(r *Response) error {
	return &HTTPError{
		StatusCode: r.StatusCode,
		Status:     http.StatusText(r.StatusCode),
		Details:    json.RawMessage(r.Body),
	}
}

func retryAfterOf(h http.Header) time.Duration {
	ra := h.Get("Retry-After")
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Convenience verbs.

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Params: params})
}

// Post issues a POST with a JSON body (may be nil).
func (c *Client) Post(ctx context.Context, path string, params url.Values, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Params: params, JSON: body})
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, params url.Values, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Params: params, JSON: body})
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, params url.Values, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Params: params, JSON: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Params: params})
}
