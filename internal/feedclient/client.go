// Package feedclient talks to a subfeed server and keeps the feed a reader
// has scrolled through so far.
package feedclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBasicAuth sends credentials with every request.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// RequestError is a feed request the server answered with a non-200 status.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("feed request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("feed request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client calls the subfeed HTTP API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	username   string
	password   string
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFeed requests one feed page for scope ("all" or a channel id).
func (c *Client) FetchFeed(ctx context.Context, scope string, pageSize int, token string) (*aggregator.FeedPage, error) {
	params := url.Values{}
	params.Set("scope", scope)
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}
	if token != "" {
		params.Set("token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/videos/feed?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		reqErr := &RequestError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil {
			reqErr.Message = payload.Error
		}
		return nil, reqErr
	}

	var page aggregator.FeedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse feed response: %w", err)
	}
	return &page, nil
}
