package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/sony/gobreaker"
)

const (
	submitPath          = "/licenses/submit/"
	apiKeyHeader        = "apikey"
	maxResponseBytes    = 1 << 20
	maxErrorBodyBytes   = 256
	defaultHTTPTimeout  = 10 * time.Second
	defaultTripFailures = 5
	defaultOpenTimeout  = 30 * time.Second
)

// ErrResponseTooLarge is returned when the service answers with more than maxResponseBytes.
var ErrResponseTooLarge = fmt.Errorf("license service response exceeds %d bytes", maxResponseBytes)

// ErrBreakerOpen is returned while the circuit breaker rejects calls.
var ErrBreakerOpen = errors.New("license service unavailable (circuit breaker open)")

// StatusError reports a non-2xx response from the license service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("license service returned status %d", e.Code)
	}
	return fmt.Sprintf("license service returned status %d: %s", e.Code, e.Body)
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithAPIKey sends key in the apikey header on every submission.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithBreaker configures how many consecutive failures open the breaker and
// how long it stays open before a half-open trial.
func WithBreaker(consecutiveFailures uint32, openTimeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if consecutiveFailures > 0 {
			c.tripFailures = consecutiveFailures
		}
		if openTimeout > 0 {
			c.openTimeout = openTimeout
		}
	}
}

// WithBreakerListener is called on every breaker state change.
func WithBreakerListener(listener func(from, to string)) HTTPOption {
	return func(c *HTTPClient) {
		c.listener = listener
	}
}

// WithHTTPLogger receives warnings about unreadable fields in responses.
func WithHTTPLogger(logger *log.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// HTTPClient submits references to the remote license service.
type HTTPClient struct {
	endpoint     string
	apiKey       string
	timeout      time.Duration
	client       *http.Client
	tripFailures uint32
	openTimeout  time.Duration
	listener     func(from, to string)
	breaker      *gobreaker.CircuitBreaker
	logger       *log.Logger
}

// NewHTTPClient builds a client for endpoint, which must be an absolute http(s) URL.
func NewHTTPClient(endpoint string, options ...HTTPOption) (*HTTPClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid license service endpoint %q", endpoint)
	}

	c := &HTTPClient{
		endpoint:     trimmed,
		timeout:      defaultHTTPTimeout,
		tripFailures: defaultTripFailures,
		openTimeout:  defaultOpenTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}

	failures := c.tripFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "license-service",
		MaxRequests: 1,
		Timeout:     c.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the service answered; they do not count against it.
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if c.listener != nil {
				c.listener(from.String(), to.String())
			}
		},
	})
	return c, nil
}

// Name identifies this source in spans and metrics.
func (c *HTTPClient) Name() string {
	return "http"
}

// Endpoint returns the normalized service base URL.
func (c *HTTPClient) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// BreakerState returns closed, half-open or open.
func (c *HTTPClient) BreakerState() string {
	if c == nil || c.breaker == nil {
		return ""
	}
	return c.breaker.State().String()
}

// Submit posts {"ref": reference} and decodes the license map.
func (c *HTTPClient) Submit(ctx context.Context, reference string) (license.RawResponse, error) {
	if c == nil || c.breaker == nil {
		return nil, errors.New("http lookup client is not initialized")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.submit(ctx, reference)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
		}
		return nil, err
	}

	raw, ok := result.(license.RawResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected lookup result type %T", result)
	}
	return raw, nil
}

func (c *HTTPClient) submit(ctx context.Context, reference string) (license.RawResponse, error) {
	body, err := json.Marshal(map[string]string{"ref": reference})
	if err != nil {
		return nil, fmt.Errorf("encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+submitPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read lookup response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(payload))
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}
	if len(payload) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}

	raw, issues, err := DecodeResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	logDecodeIssues(c.logger, c.Name(), issues)
	return raw, nil
}

// Probe issues a GET against the endpoint root. Any HTTP answer counts as reachable.
func (c *HTTPClient) Probe(ctx context.Context) error {
	if c == nil {
		return errors.New("http lookup client is not initialized")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe license service: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}
