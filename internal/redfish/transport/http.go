package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Defaults for the HTTP transport. Retries are bounded so a dead endpoint
// fails a branch in seconds, not minutes.
const (
	DefaultRetryMax       = 3
	DefaultRequestTimeout = 30 * time.Second
)

// HTTPTransport implements Transport over HTTP using a retrying client.
//
// Safe for concurrent use.
type HTTPTransport struct {
	client  *retryablehttp.Client
	baseURL string
	rootURI string
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithRetryMax overrides the maximum number of retries per request.
func WithRetryMax(n int) HTTPOption {
	return func(t *HTTPTransport) {
		t.client.RetryMax = n
	}
}

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		t.client.HTTPClient.Timeout = d
	}
}

// WithRootURI overrides the service root path.
func WithRootURI(uri string) HTTPOption {
	return func(t *HTTPTransport) {
		t.rootURI = uri
	}
}

// NewHTTP creates an HTTP transport for the service at baseURL
// (e.g. "https://bmc:443").
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTPTransport {
	client := retryablehttp.NewClient()
	client.RetryMax = DefaultRetryMax
	client.HTTPClient.Timeout = DefaultRequestTimeout
	client.Logger = retryLogger{}

	t := &HTTPTransport{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		rootURI: DefaultRootURI,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RootURI implements Transport.
func (t *HTTPTransport) RootURI() string { return t.rootURI }

// Get implements Transport.
//
// A non-2xx status is not an error at this layer: it is reported through
// Result.Code so the caller can decide whether the branch is navigable.
func (t *HTTPTransport) Get(ctx context.Context, path string) (Result, error) {
	target, err := url.JoinPath(t.baseURL, path)
	if err != nil {
		return Result{}, fmt.Errorf("join %q: %w", path, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request for %q: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("get %q: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read body for %q: %w", path, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return Result{Code: resp.StatusCode, Body: body, Headers: headers}, nil
}

// retryLogger adapts retryablehttp's leveled logger onto slog so retry
// chatter lands in the same structured stream as everything else.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...any) { slog.Error(msg, kv...) }
func (retryLogger) Info(msg string, kv ...any)  { slog.Info(msg, kv...) }
func (retryLogger) Debug(msg string, kv ...any) { slog.Debug(msg, kv...) }
func (retryLogger) Warn(msg string, kv ...any)  { slog.Warn(msg, kv...) }
