package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjstillabower/station-collector/internal/observability"
)

// Endpoint labels the kind of provider resource requested.
type Endpoint string

const (
	EndpointMetadata    Endpoint = "metadata"
	EndpointObservation Endpoint = "observation"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 8 << 20

var (
	ErrMissingUserAgent = errors.New("user agent is required")

	// ErrTransport covers failures before a response arrives: DNS, connect,
	// TLS, timeouts and cancellation.
	ErrTransport = errors.New("transport failure")

	// ErrUpstreamStatus wraps every non-2xx response.
	ErrUpstreamStatus = errors.New("upstream status")

	ErrStationNotFound = errors.New("station not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrBodyRead is returned when the response body cannot be read in full.
	ErrBodyRead = errors.New("read response body")
)

// ProviderClient performs GET requests against the station provider. It
// never retries: the caller decides what a failure means.
type ProviderClient struct {
	userAgent string
	client    *http.Client
}

// NewProviderClient returns a client that sends userAgent on every request.
// A zero timeout leaves the transport default in place.
func NewProviderClient(userAgent string, timeout time.Duration) (*ProviderClient, error) {
	if userAgent == "" {
		return nil, ErrMissingUserAgent
	}
	return &ProviderClient{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Get fetches url and returns the response body. For non-2xx responses the
// body is returned together with an error wrapping ErrUpstreamStatus.
func (c *ProviderClient) Get(ctx context.Context, endpoint Endpoint, url string) ([]byte, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, url)
	if err != nil {
		c.recordError(endpoint, err)
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(string(endpoint), "error").Inc()
		observability.ProviderRequestDuration.WithLabelValues(string(endpoint), "error").Observe(time.Since(start).Seconds())
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		c.recordError(endpoint, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if readErr == nil && len(body) > maxBodyBytes {
		body, readErr = nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}

	status := statusLabel(resp.StatusCode)
	observability.ProviderRequestsTotal.WithLabelValues(string(endpoint), status).Inc()
	observability.ProviderRequestDuration.WithLabelValues(string(endpoint), status).Observe(time.Since(start).Seconds())

	if readErr != nil {
		err := fmt.Errorf("%w: %w", ErrBodyRead, readErr)
		c.recordError(endpoint, err)
		return nil, err
	}
	if err := handleErrorResponse(resp); err != nil {
		c.recordError(endpoint, err)
		return body, err
	}
	return body, nil
}

func (c *ProviderClient) buildRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *ProviderClient) recordError(endpoint Endpoint, err error) {
	observability.ProviderErrorsTotal.WithLabelValues(string(endpoint), string(CategorizeError(err))).Inc()
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w: HTTP %d", ErrUpstreamStatus, ErrStationNotFound, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: HTTP %d", ErrUpstreamStatus, ErrRateLimited, resp.StatusCode)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %w: HTTP %d", ErrUpstreamStatus, ErrUpstreamFailure, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
