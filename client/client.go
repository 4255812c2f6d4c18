package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 5 * time.Second
)

// Client is a small JSON-over-HTTP client shared by the outbound integrations.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
}

func New(userAgent string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: userAgent,
	}
	httpClient.Transport = c
	return c
}

// Options tunes a single request.
type Options struct {
	Header   map[string]string
	CacheKey string
	CacheTTL time.Duration
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// GetJSON fetches url and decodes the body into response. With a cache key set,
// a previous successful response is reused until it expires.
func (c *Client) GetJSON(ctx context.Context, url string, opts Options, response any) error {
	if opts.CacheKey != "" {
		if x, found := c.cache.Get(opts.CacheKey); found {
			slog.DebugContext(ctx, "cache hit", slog.String("key", opts.CacheKey), slog.String("module", "client"))
			return json.Unmarshal(x.([]byte), response)
		}
	}

	body, err := c.HttpRequest(ctx, http.MethodGet, url, opts)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	if opts.CacheKey != "" {
		ttl := opts.CacheTTL
		if ttl == 0 {
			ttl = cache.DefaultExpiration
		}
		c.cache.Set(opts.CacheKey, body, ttl)
	}
	return nil
}

func (c *Client) HttpRequest(ctx context.Context, method, url string, opts Options) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// Forget drops a cached response.
func (c *Client) Forget(cacheKey string) {
	c.cache.Delete(cacheKey)
}
