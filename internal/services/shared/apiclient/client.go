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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/louisbranch/tapestry/internal/platform/timeouts"
)

// DefaultPrefix is the API path prefix.
const DefaultPrefix = "/api/v1"

// Options configures a Client.
type Options struct {
	// Origin is the API origin, e.g. http://localhost:5000.
	Origin string
	// Prefix defaults to DefaultPrefix.
	Prefix string
	// ServiceName is sent as X-Service-Name when set ("player", "admin").
	ServiceName string
	HTTPClient  *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// Client calls the REST API.
type Client struct {
	baseURL     string
	serviceName string
	httpClient  *http.Client

	mu    sync.RWMutex
	token string
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	origin := strings.TrimRight(strings.TrimSpace(opts.Origin), "/")
	if origin == "" {
		return nil, errors.New("api origin is required")
	}
	if _, err := url.ParseRequestURI(origin); err != nil {
		return nil, fmt.Errorf("parse api origin: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = timeouts.HTTPClient
		}
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}
	}
	return &Client{
		baseURL:     origin + "/" + strings.Trim(prefix, "/"),
		serviceName: strings.TrimSpace(opts.ServiceName),
		httpClient:  httpClient,
	}, nil
}

// BaseURL returns origin plus prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken attaches token as a bearer credential; an empty token clears it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// AuthToken returns the attached token, or "".
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope mirrors the API response shape.
type envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// do sends one request and decodes the envelope payload into out when out
// is non-nil. It returns the envelope message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (string, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.serviceName != "" {
		req.Header.Set("X-Service-Name", c.serviceName)
	}
	if token := c.AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, path, err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return "", apiErr
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode %s %s: %w", ErrTransport, method, path, decodeErr)
	}
	if !env.Success {
		return "", &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return "", fmt.Errorf("%w: decode %s %s payload: %w", ErrTransport, method, path, err)
		}
	}
	return env.Message, nil
}
