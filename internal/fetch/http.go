package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPOptions configures HTTPClient.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	Client    *http.Client
}

// HTTPClient fetches http and https URLs.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPClient builds an HTTP fetcher. A nil opts.Client gets a fresh
// client with opts.Timeout.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPClient{client: client, userAgent: opts.UserAgent, maxBytes: opts.MaxBytes}
}

// Fetch issues a single GET. Non-2xx responses become *StatusError.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payload{}, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	data, err := readCapped(resp.Body, c.maxBytes)
	if err != nil {
		return Payload{}, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	return Payload{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
