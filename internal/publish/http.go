package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjstillabower/gauge-data-service/internal/circuitbreaker"
	"github.com/kjstillabower/gauge-data-service/internal/observability"
)

// HTTPSink POSTs the document to a remote endpoint. A circuit breaker
// guards the endpoint so a dead receiver costs one failed request per open
// window instead of one per publication.
type HTTPSink struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewHTTPSink builds an HTTPSink for url.
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			OnStateChange: func(_, to circuitbreaker.State) {
				observability.SetCircuitBreakerState("http_sink", int(to))
			},
		}),
	}
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

// Publish implements Sink. Returns circuitbreaker.ErrOpen while the
// endpoint is considered down.
func (s *HTTPSink) Publish(ctx context.Context, pub Publication) error {
	return s.breaker.Call(func() error {
		return s.post(ctx, pub)
	})
}

func (s *HTTPSink) post(ctx context.Context, pub Publication) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(pub.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", pub.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}
	return nil
}
