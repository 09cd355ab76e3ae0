package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gpodder/gpodder-core/internal/config"
)

// ErrNotModified reports a conditional request answered with HTTP 304.
var ErrNotModified = errors.New("fetch: not modified")

// Client is the blocking network fetch primitive shared by the feed
// resolvers and the cover art downloader.
type Client struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// Options control a single request.
type Options struct {
	// ETag and LastModified enable a conditional fetch.
	ETag         string
	LastModified string
	// Username and Password add basic authentication.
	Username string
	Password string
	// Accept overrides the Accept header.
	Accept string
	// Timeout overrides the client default for this request.
	Timeout time.Duration
}

func NewClient(cfg *config.Config) *Client {
	var limiter *rate.Limiter
	if cfg.Network.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Network.RequestsPerSecond), 1)
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Network.Timeout,
		},
		userAgent: cfg.Network.UserAgent,
		limiter:   limiter,
	}
}

// Get performs a GET request. A 304 response is reported as
// (nil, true, nil); the caller treats it as a successful no-change outcome.
// The caller owns resp.Body when resp is non-nil.
func (c *Client) Get(ctx context.Context, url string, opts Options) (resp *http.Response, notModified bool, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	}
	if opts.ETag != "" {
		req.Header.Set("If-None-Match", opts.ETag)
	}
	if opts.LastModified != "" {
		req.Header.Set("If-Modified-Since", opts.LastModified)
	}
	if opts.Username != "" {
		req.SetBasicAuth(opts.Username, opts.Password)
	}

	client := c.client
	if opts.Timeout > 0 {
		shortClient := *c.client
		shortClient.Timeout = opts.Timeout
		client = &shortClient
	}

	resp, err = client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, true, nil
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, false, fmt.Errorf("fetching %s: HTTP error: %d", url, resp.StatusCode)
	}

	return resp, false, nil
}

// ReadBytes fetches a URL and returns the whole response body. A 304
// response surfaces as ErrNotModified.
func (c *Client) ReadBytes(ctx context.Context, url string, opts Options) ([]byte, error) {
	resp, notModified, err := c.Get(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if notModified {
		return nil, ErrNotModified
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

// ReadJSON fetches a URL and decodes the response body into v.
func (c *Client) ReadJSON(ctx context.Context, url string, v any) error {
	data, err := c.ReadBytes(ctx, url, Options{Accept: "application/json"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// ResolveRedirect follows redirects for the given URL and returns the final
// URL after all hops.
func (c *Client) ResolveRedirect(ctx context.Context, url string) (string, error) {
	resp, _, err := c.Get(ctx, url, Options{})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return resp.Request.URL.String(), nil
}

// Head fetches only the response headers for the given URL.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("probing %s: HTTP error: %d", url, resp.StatusCode)
	}

	return resp.Header, nil
}
