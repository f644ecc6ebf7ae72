// Package cloudflare is a thin client for the Cloudflare v4 email routing API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/config"
)

// Client talks to the Cloudflare API with a single API token.
// It retries HTTP 429 with exponential backoff and nothing else.
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient creates a client without a token; use WithToken before calling the API.
func NewClient(cfg *config.CloudflareConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: 500 * time.Millisecond,
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (envelope[T], error) {
	var env envelope[T]

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	backoff := c.initialBackoff
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
		if err != nil {
			return env, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return env, fmt.Errorf("failed to execute %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return env, fmt.Errorf("failed to read response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := retryAfter(resp, backoff)
			logrus.Warnf("Rate limited on %s %s, retrying in %v", method, path, wait)
			select {
			case <-ctx.Done():
				return env, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
			continue
		}

		decodeErr := json.Unmarshal(respBody, &env)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
			apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
			if decodeErr == nil {
				apiErr.Errors = env.Errors
			}
			return env, apiErr
		}
		if decodeErr != nil {
			return env, fmt.Errorf("failed to decode response of %s %s: %w", method, path, decodeErr)
		}

		return env, nil
	}
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// IsAPIError reports whether err carries an API error with the given code.
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HasCode(code)
}
