package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUpstreamFailure covers 5xx responses from the forecast endpoint.
	ErrUpstreamFailure = errors.New("forecast upstream failure")
	// ErrRateLimited is a 429 from the forecast endpoint.
	ErrRateLimited = errors.New("forecast rate limited")
)

// API fetches forecast text from a remote endpoint. The response body is
// taken verbatim as the scroller text. Transient failures are retried with
// exponential backoff before the refresher falls back to its cached value.
type API struct {
	url            string
	apiKey         string
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewAPI builds an API provider with default retry behavior.
func NewAPI(url, apiKey string, timeout time.Duration) *API {
	return &API{
		url:            url,
		apiKey:         apiKey,
		client:         &http.Client{Timeout: timeout},
		retryAttempts:  3,
		retryBaseDelay: 100 * time.Millisecond,
		retryMaxDelay:  2 * time.Second,
	}
}

// Text implements Provider.
func (a *API) Text(ctx context.Context, _ time.Time) (string, error) {
	var lastErr error

	for attempt := 0; attempt < a.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(a.backoff(attempt)):
			}
		}

		text, err := a.fetch(ctx)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("exhausted retries: %w", lastErr)
}

func (a *API) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (a *API) backoff(attempt int) time.Duration {
	delay := float64(a.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(a.retryMaxDelay) {
		delay = float64(a.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused")
}
