// Package endpoint is the JSON-over-HTTP client for the e-commerce endpoint API.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// APIKeyHeader carries the endpoint API key on every request.
	APIKeyHeader = "X-Api-Key"
	// CorrelationHeader carries the batch correlation id.
	CorrelationHeader = "X-Correlation-Id"

	defaultConnectReadTimeout = 10 * time.Second
	defaultOverallTimeout     = 30 * time.Second
	maxLoggedPayload          = 512
	maxResponseBody           = 1 << 20
)

var (
	// ErrTransport marks failures where no usable response was received.
	ErrTransport = errors.New("transport failure")
	// ErrStatus marks responses outside the 2xx range.
	ErrStatus = errors.New("unexpected status")
)

// RequestRecorder receives one observation per request attempt.
type RequestRecorder interface {
	RecordRequest(operation, method string, statusCode int, duration time.Duration)
}

// BasicAuth is optional HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Call is a single request to the endpoint.
type Call struct {
	Operation     string
	Method        string
	URL           string
	APIKey        string
	BasicAuth     *BasicAuth
	CorrelationID string
	Body          any
}

// Result is a received response. Body is nil when the response was empty or not a JSON object.
type Result struct {
	Status  int
	Body    map[string]any
	Raw     []byte
	Elapsed time.Duration
}

// RequestError describes a failed call.
type RequestError struct {
	Operation string
	Method    string
	URL       string
	Status    int
	Message   string
	Elapsed   time.Duration
	Err       error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s %s: status %d after %s: %s", e.Operation, e.Method, e.URL, e.Status, e.Elapsed, e.Message)
	}
	return fmt.Sprintf("%s %s %s: after %s: %v", e.Operation, e.Method, e.URL, e.Elapsed, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Client sends JSON requests to the endpoint, one attempt per call.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	connectRead time.Duration
	overall     time.Duration
	limiter     *rate.Limiter
	recorder    RequestRecorder
	logger      *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the transport built from the configured timeouts.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeouts sets the connect/read ceiling and the overall per-request deadline.
func WithTimeouts(connectRead, overall time.Duration) Option {
	return func(c *Client) {
		if connectRead > 0 {
			c.connectRead = connectRead
		}
		if overall > 0 {
			c.overall = overall
		}
	}
}

// WithRateLimit caps outbound requests per second. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records every request on recorder.
func WithMetrics(recorder RequestRecorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// NewClient builds a client resolving relative call URLs against baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("endpoint base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("endpoint base URL %q is not absolute", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	c := &Client{
		baseURL:     parsed,
		connectRead: defaultConnectReadTimeout,
		overall:     defaultOverallTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(c.connectRead, c.overall)
	}
	return c, nil
}

func newHTTPClient(connectRead, overall time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectRead, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectRead,
		ResponseHeaderTimeout: connectRead,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	return &http.Client{Transport: transport, Timeout: overall}
}

// Resolve returns the absolute URL for ref.
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse endpoint url %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	parsed.Path = strings.TrimPrefix(parsed.Path, "/")
	return c.baseURL.ResolveReference(parsed).String(), nil
}

// Do sends call once and returns the received response. Non-2xx responses return both the
// Result and a *RequestError wrapping ErrStatus.
func (c *Client) Do(ctx context.Context, call Call) (*Result, error) {
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if method == "" {
		method = http.MethodPost
	}
	target, err := c.Resolve(call.URL)
	if err != nil {
		return nil, c.fail(call, method, call.URL, 0, 0, "", err)
	}

	var payload []byte
	if call.Body != nil {
		payload, err = json.Marshal(call.Body)
		if err != nil {
			return nil, c.fail(call, method, target, 0, 0, "", fmt.Errorf("encode body: %w", err))
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(call, method, target, 0, 0, "", fmt.Errorf("%w: rate limit wait: %w", ErrTransport, err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(call, method, target, 0, 0, "", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(call.APIKey); key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	if call.CorrelationID != "" {
		req.Header.Set(CorrelationHeader, call.CorrelationID)
	}
	if call.BasicAuth != nil && call.BasicAuth.Username != "" {
		req.SetBasicAuth(call.BasicAuth.Username, call.BasicAuth.Password)
	}

	c.logger.DebugContext(ctx, "endpoint request",
		slog.String("operation", call.Operation),
		slog.String("method", method),
		slog.String("url", target),
		slog.String("payload", Truncate(payload, maxLoggedPayload)),
	)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(started)
	if err != nil {
		c.record(call.Operation, method, 0, elapsed)
		c.logger.ErrorContext(ctx, "endpoint request failed",
			slog.String("operation", call.Operation),
			slog.String("method", method),
			slog.String("url", target),
			slog.String("correlation_id", call.CorrelationID),
			slog.Duration("elapsed", elapsed),
			slog.String("payload", Truncate(payload, maxLoggedPayload)),
			slog.Any("error", err),
		)
		return nil, c.fail(call, method, target, 0, elapsed, "", fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	elapsed = time.Since(started)
	c.record(call.Operation, method, resp.StatusCode, elapsed)
	if err != nil {
		return nil, c.fail(call, method, target, resp.StatusCode, elapsed, "", fmt.Errorf("%w: read body: %w", ErrTransport, err))
	}

	result := &Result{Status: resp.StatusCode, Raw: raw, Elapsed: elapsed}
	if len(bytes.TrimSpace(raw)) > 0 {
		var body map[string]any
		if json.Unmarshal(raw, &body) == nil {
			result.Body = body
		}
	}

	c.logger.InfoContext(ctx, "endpoint response",
		slog.String("operation", call.Operation),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed),
		slog.String("body", Truncate(raw, maxLoggedPayload)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, c.fail(call, method, target, resp.StatusCode, elapsed, errorMessage(result, resp.Status), ErrStatus)
	}
	return result, nil
}

func (c *Client) fail(call Call, method, target string, status int, elapsed time.Duration, message string, err error) error {
	return &RequestError{
		Operation: call.Operation,
		Method:    method,
		URL:       target,
		Status:    status,
		Message:   message,
		Elapsed:   elapsed,
		Err:       err,
	}
}

func (c *Client) record(operation, method string, status int, elapsed time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordRequest(operation, method, status, elapsed)
	}
}

func errorMessage(result *Result, fallback string) string {
	if result == nil || result.Body == nil {
		return fallback
	}
	for _, key := range []string{"message", "error", "status"} {
		if msg, ok := result.Body[key].(string); ok {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg
			}
		}
	}
	return fallback
}

// Truncate renders payload for logging, cut to at most limit bytes.
func Truncate(payload []byte, limit int) string {
	if len(payload) <= limit {
		return string(payload)
	}
	return string(payload[:limit]) + "...(truncated)"
}
