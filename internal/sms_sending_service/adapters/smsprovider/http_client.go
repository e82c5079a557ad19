package smsprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxErrorBody    = 200
	maxResponseBody = 1 << 20
)

// Doer is the subset of *http.Client adapters depend on.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the client shared by carrier adapters. A zero timeout means 10s.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// apiClient performs a carrier request and returns the body of a 2xx answer.
// Anything else is reported as a transport *Error.
type apiClient struct {
	doer     Doer
	provider string
}

func (c apiClient) do(ctx context.Context, operation string, req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.doer.Do(req.WithContext(ctx))
	providerRequestDurationHist.WithLabelValues(c.provider, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		providerRequestsCounter.WithLabelValues(c.provider, operation, "transport_error").Inc()
		return nil, transportError(err, "%s %s request failed: %v", c.provider, operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		providerRequestsCounter.WithLabelValues(c.provider, operation, "transport_error").Inc()
		return nil, transportError(err, "%s %s: failed to read response body: %v", c.provider, operation, err)
	}
	if len(body) > maxResponseBody {
		providerRequestsCounter.WithLabelValues(c.provider, operation, "transport_error").Inc()
		return nil, transportError(nil, "%s %s: response body exceeds %d bytes", c.provider, operation, maxResponseBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		providerRequestsCounter.WithLabelValues(c.provider, operation, "http_error").Inc()
		return nil, transportError(nil, "%s %s: unexpected status %d: %s", c.provider, operation, resp.StatusCode, truncate(body, maxErrorBody))
	}
	providerRequestsCounter.WithLabelValues(c.provider, operation, "ok").Inc()
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return fmt.Sprintf("%s...", b[:n])
	}
	return string(b)
}
