// Package rest is the shared JSON-over-HTTP client used by the remote
// service adapters.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
)

// DefaultHTTPTimeout bounds every request made by a client created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is read into APIError.
const maxErrorBody = 64 << 10

// ErrInvalidBaseURL is returned by NewClient for an unusable base URL.
var ErrInvalidBaseURL = errors.New("invalid base url")

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status from an APIError in err's chain.
func StatusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// Client wraps JSON requests against one service base URL.
type Client struct {
	name       string
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the service bearer token, sent when the request context
// carries no caller credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the default client's timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client for the service at rawURL. name labels the
// client's metrics.
func NewClient(name, rawURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, rawURL)
	}
	c := &Client{
		name:       name,
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the metrics label.
func (c *Client) Name() string { return c.name }

// Get decodes the response of GET endpoint into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.send(ctx, http.MethodGet, endpoint, nil, out)
}

// Post sends payload as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, payload, out any) error {
	return c.send(ctx, http.MethodPost, endpoint, payload, out)
}

// Put sends payload as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, endpoint string, payload, out any) error {
	return c.send(ctx, http.MethodPut, endpoint, payload, out)
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	metrics.RemoteCall(c.name)
	if err := c.do(req, out); err != nil {
		metrics.RemoteFailure(c.name)
		return err
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	token := c.token
	if caller, ok := dto.CredentialFrom(ctx); ok {
		token = caller
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError accepts {"error": "..."}, {"message": "..."} or a plain text
// body.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
