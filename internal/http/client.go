package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/logger"
)

// Client is the single HTTP transport shared by every download in a process.
//
// Client provides:
//   - Default headers: User-Agent plus the contents of the header file
//   - A cookie jar seeded from a Netscape cookie file
//   - Proxy, TLS verification toggle and HTTP/2 negotiation
//   - Redirect following and a per-request timeout
//
// A Client holds no mutable state after construction and is safe for
// concurrent use.
//
// Example usage:
//
//	client, err := http.NewClient(settings)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	body, err := client.Get(ctx, "https://example.org/iiif/page1.jpg", nil)
//	var se *http.StatusError
//	if errors.As(err, &se) && se.Code == 404 {
//	    // try a fallback
//	}
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     *slog.Logger
}

// NewClient creates a Client from settings.
//
// The proxy is taken from settings.Proxy, falling back to HTTPS_PROXY /
// HTTP_PROXY. Cookie and header files that do not exist are treated as empty;
// unreadable or malformed proxy values are configuration errors.
func NewClient(settings *config.Settings) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   max(settings.Concurrency, 2),
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !settings.VerifySSL, //nolint:gosec // several digitization servers ship broken chains
		},
	}

	if settings.Proxy != "" {
		proxyURL, err := url.Parse(settings.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, fmt.Errorf("%w: proxy %q is not a URL", config.ErrInvalidConfig, settings.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if settings.HTTP2 {
		if _, err := http2.ConfigureTransports(transport); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}

	cookies, err := LoadCookies(settings.CookieFile)
	if err != nil {
		return nil, err
	}
	jar, err := newJar(cookies)
	if err != nil {
		return nil, err
	}

	fileHeaders, err := LoadHeaders(settings.HeaderFile)
	if err != nil {
		return nil, err
	}

	userAgent := settings.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   settings.TimeoutDuration(),
		},
		headers: mergeHeaders(map[string]string{"User-Agent": userAgent}, fileHeaders),
		logger:  logger.GetLogger(),
	}, nil
}

// Headers returns a copy of the default headers sent with every request.
func (c *Client) Headers() map[string]string {
	return mergeHeaders(c.headers)
}

// Get performs a single GET request and returns the response body.
//
// Redirects are followed. Request headers are the client defaults with
// headers layered on top.
//
// Returns:
//   - *StatusError when the final response is not 2xx
//   - *NetworkError when the request or the body read fails in transit
//
// No retry happens here; see package retry.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	for k, v := range mergeHeaders(c.headers, headers) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	c.logger.Debug("fetched", "url", rawURL, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// GetJSON fetches rawURL, decodes it into v and returns the raw document.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) ([]byte, error) {
	body, err := c.Get(ctx, rawURL, map[string]string{"Accept": "application/json, application/ld+json"})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return body, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
