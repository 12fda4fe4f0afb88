package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/utils"
)

const (
	defaultUserAgent  = "jobradar/1.0 (job aggregation; contact via repo)"
	defaultRetryAfter = 60 * time.Second
)

// RateLimitedError signals an HTTP 429 from a source. It is distinguishable
// from generic transport failures so adapters can back off instead of
// treating the source as broken. Never fatal to the overall scrape.
type RateLimitedError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Source, e.RetryAfter)
}

// Client wraps every outbound adapter call with timeout handling and 429
// detection. It is shared by all adapters within one scrape.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		// Per-request deadlines come from the request context; this is a
		// hard upper bound so no call can block indefinitely.
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		UserAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// GetJSON issues a GET against rawURL with the given query and headers and
// decodes the JSON body into target. A 429 response comes back as a
// *RateLimitedError; any other failure is a source-tagged generic error.
func (c *Client) GetJSON(ctx context.Context, src, rawURL string, q url.Values, headers map[string]string, timeout time.Duration, target any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", src, err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("make request", zap.String("source", src), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitedError{Source: src, RetryAfter: retryAfterHint(resp)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: bad status: %s", src, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading body: %w", src, err)
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%s: decoding response: %w", src, err)
	}

	return nil
}

// BackOff sleeps for the rate-limit hint, capped to avoid unbounded stalls.
func (c *Client) BackOff(ctx context.Context, e *RateLimitedError, cap time.Duration) error {
	wait := e.RetryAfter
	if wait > cap {
		wait = cap
	}
	c.logger.Debug("backing off after rate limit",
		zap.String("source", e.Source),
		zap.Duration("wait", wait),
	)
	return utils.WaitFor(ctx, wait)
}

func retryAfterHint(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
