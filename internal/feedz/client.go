// ABOUTME: HTTP client wrapper for the feedz.io API and package feed.
// ABOUTME: Handles request building, auth, timeouts and error decoding.
package feedz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"time"
)

var (
	// ErrTimeout marks an operation cancelled because the client timeout elapsed.
	ErrTimeout = errors.New("feedz: operation timed out")
	// ErrNotFound marks a 404 from the API or feed.
	ErrNotFound = errors.New("feedz: not found")
)

// Client wraps HTTP access to one feedz.io deployment.
type Client struct {
	credential string
	endpoints  Endpoints
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger routes client events to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient returns a client for the given endpoints. It performs no I/O
// and carries no timeout until SetTimeout is called.
func NewClient(credential string, endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		credential: credential,
		endpoints:  endpoints,
		httpClient: &http.Client{Transport: NewTransport()},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		userAgent:  fmt.Sprintf("feedz-cli/1.0 (%s)", runtime.GOOS),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTimeout bounds every subsequent request, including reading a download body.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Timeout returns the configured request timeout; zero means none.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Endpoints returns the API and feed base URLs in use.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// ScopeToRepository binds the client to one organisation/repository pair.
func (c *Client) ScopeToRepository(org, repo string) *Repository {
	return &Repository{client: c, org: org, repo: repo}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if strings.TrimSpace(c.credential) != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}
	return req, nil
}

// send performs req and converts transport failures and error statuses.
// The caller owns the body of a successful response.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	c.logger.Debug("feed request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classify(err)
		c.logger.Debug("feed request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp, req.URL.String())
		c.logger.Debug("feed request rejected", "url", req.URL.String(), "status", resp.StatusCode)
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out interface{}) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, out); err != nil {
		return classify(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify wraps deadline expiry in ErrTimeout so callers can tell it apart.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// APIError captures an error response from the API or feed.
type APIError struct {
	Status  int
	URL     string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return "feed API error"
	}
	if e.Message == "" {
		return fmt.Sprintf("feed API error (status %d)", e.Status)
	}
	return fmt.Sprintf("feed API error (status %d): %s", e.Status, e.Message)
}

// Unwrap exposes ErrNotFound for 404 responses.
func (e *APIError) Unwrap() error {
	if e != nil && e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

func decodeAPIError(resp *http.Response, target string) error {
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	message := ""
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		message = payload.Message
		if message == "" && len(payload.Errors) > 0 {
			message = strings.Join(payload.Errors, "; ")
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &APIError{Status: resp.StatusCode, URL: target, Message: message}
}

func decodeJSON(resp *http.Response, target interface{}) error {
	defer func() { _ = resp.Body.Close() }()
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(target)
}
