// Package readwise reads the Readwise export API.
package readwise

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

	"golang.org/x/time/rate"

	"github.com/starford/readwise2anki/internal/models"
)

// DefaultBaseURL is the root of the Readwise v2 API.
const DefaultBaseURL = "https://readwise.io/api/v2"

// DefaultRequestsPerMinute matches the documented export rate limit.
const DefaultRequestsPerMinute = 20

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	maxDelay          = time.Minute
)

// HTTPError is a non-retryable (or retries exhausted) API response.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return fmt.Sprintf("readwise: http %d: %s (check the API token)", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("readwise: http %d: %s", e.StatusCode, e.Detail)
}

// Client fetches the export stream.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestsPerMinute paces requests. n <= 0 disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithRetry sets the retry budget and the first backoff delay.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// NewClient creates a Client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
	WithRequestsPerMinute(DefaultRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type exportPage struct {
	Count          int           `json:"count"`
	NextPageCursor *string       `json:"nextPageCursor"`
	Results        []models.Book `json:"results"`
}

// Export walks every page of the export and hands each record to fn in
// source order. A page is requested only after fn returned for every record
// of the previous one. updatedAfter (ISO 8601) limits the export to records
// changed since then; empty means a full export. An error from fn stops the
// walk and is returned as is.
func (c *Client) Export(ctx context.Context, updatedAfter string, fn func(models.Book) error) error {
	params := url.Values{}
	if updatedAfter != "" {
		params.Set("updatedAfter", updatedAfter)
	}

	for {
		var page exportPage
		if err := c.get(ctx, "/export/", params, &page); err != nil {
			return err
		}
		for _, book := range page.Results {
			if err := fn(book); err != nil {
				return err
			}
		}
		if page.NextPageCursor == nil || *page.NextPageCursor == "" {
			return nil
		}
		params.Set("pageCursor", *page.NextPageCursor)
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("readwise: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("readwise: build request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("readwise: GET %s: %w", path, err)
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("readwise: read body: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("readwise: decode %s: %w", path, err)
			}
			return nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		if errPayload.Detail == "" {
			errPayload.Detail = http.StatusText(resp.StatusCode)
		}
		return &HTTPError{StatusCode: resp.StatusCode, Detail: errPayload.Detail}
	}
}

func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	if d := parseRetryAfter(retryAfter); d > 0 {
		if d > maxDelay {
			return maxDelay
		}
		return d
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
