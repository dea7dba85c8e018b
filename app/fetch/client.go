// Package fetch provides the HTTP client used for all listing and article
// page loads. Article URLs originate in remote listing markup, so the
// transport is hardened with safeurl to keep redirects and crafted hrefs away
// from private address space. Response bodies are decoded to UTF-8 based on
// the declared charset; several of the state portals still serve ISO-8859-1.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/net/html/charset"
)

const maxBodySize = 10 << 20 // 10 MiB

type Response struct {
	Body   []byte
	Header http.Header
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	delay      time.Duration
	fetched    bool
}

// New creates a client with an SSRF-hardened transport. The delay is a fixed
// politeness pause inserted before every request after the first.
func New(userAgent string, timeout, delay time.Duration) *Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &Client{
		httpClient: safeurl.Client(config).Client,
		userAgent:  userAgent,
		delay:      delay,
	}
}

// NewWithHTTPClient creates a client over a caller-supplied http.Client.
// Used by tests, which talk to loopback servers the hardened transport
// rejects.
func NewWithHTTPClient(httpClient *http.Client, userAgent string, delay time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		delay:      delay,
	}
}

func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// PostForm submits an application/x-www-form-urlencoded request. Used by the
// Drupal views/ajax listing strategy.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	c.pause()

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s for %s", resp.StatusCode, resp.Status, req.URL)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Body: body, Header: resp.Header}, nil
}

// pause enforces the fixed inter-request delay. Runs are single-threaded per
// source, so no locking is needed.
func (c *Client) pause() {
	if c.fetched && c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.fetched = true
}
