package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/logger"
)

// Fetcher transfers the raw bytes behind a media locator
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (io.ReadCloser, error)
}

// Client is an HTTP Fetcher
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates an HTTP fetcher with a per-request timeout
func NewClient(timeout time.Duration, userAgent string, log logger.Logger) *Client {
	headers := map[string]string{
		"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		logger:     logger.OrDefault(log),
	}
}

// SetHeader sets a custom header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch issues a GET for locator. Network failures, 408, 429 and 5xx come back
// as retryable typed errors; 401, 403 and 404 are permanent.
func (c *Client) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, fmt.Sprintf("invalid locator %q", locator), err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      locator,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "network error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		typed := errs.FromStatusCode(resp.StatusCode, locator)
		c.logger.DebugWithFields("HTTP request rejected", map[string]interface{}{
			"url":    locator,
			"status": resp.StatusCode,
			"type":   string(typed.Type),
		})
		return nil, typed
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      locator,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})
	return &networkBody{ReadCloser: resp.Body}, nil
}

// networkBody types mid-transfer failures as retryable network errors
type networkBody struct {
	io.ReadCloser
}

func (b *networkBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, errs.Wrap(errs.ErrorTypeNetwork, "transfer interrupted", err)
	}
	return n, err
}
