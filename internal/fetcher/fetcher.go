// Package fetcher retrieves the raw schools payload over HTTP with bounded
// retries, or from a local file.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"schoolsync/internal/config"
	"schoolsync/internal/logger"
	"schoolsync/internal/schools"
	"schoolsync/pkg/utils"
)

// ErrUnexpectedStatusCode indicates an HTTP response with a non-2xx status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// ErrFetchExhausted matches every FetchExhaustedError.
var ErrFetchExhausted = errors.New("fetch attempts exhausted")

// FetchExhaustedError is returned when every attempt failed.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Last }

// Is reports ErrFetchExhausted as a match.
func (e *FetchExhaustedError) Is(target error) bool {
	return target == ErrFetchExhausted
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// Fetcher handles HTTP retrieval with config-driven retry logic.
type Fetcher struct {
	client  *http.Client
	policy  config.RetryPolicy
	headers http.Header
	log     *logger.Logger
	sleep   SleepFunc
}

// New creates a fetcher. When insecure is true TLS certificates are not verified.
func New(policy config.RetryPolicy, insecure bool, log *logger.Logger, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.Discard()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // upstream uses a self-signed certificate
		log.Warn("TLS certificate verification disabled")
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout:   policy.GetTimeout(),
			Transport: transport,
		},
		policy:  policy,
		headers: utils.NewHTTPHelper().BuildHeaders(nil),
		log:     log,
		sleep:   sleepContext,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads url and decodes it as JSON; an object root comes back as
// *schools.Object. Transport errors, non-2xx
// statuses, body read errors and decode errors all consume an attempt.
func (f *Fetcher) Fetch(ctx context.Context, url string) (any, error) {
	var lastErr error

	maxAttempts := f.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := f.attempt(ctx, url)
		if err == nil {
			f.log.Debug("fetch succeeded", "url", url, "attempt", attempt)
			return data, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctxErr)
		}

		lastErr = err

		var wait time.Duration
		if attempt < maxAttempts {
			wait = f.policy.GetRetryDelay(attempt)
		}

		f.log.Warn("fetch attempt failed",
			"url", url,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"wait", wait,
			"error", err,
		)

		if wait > 0 {
			if err := f.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("fetch %s: %w", url, err)
			}
		}
	}

	return nil, &FetchExhaustedError{URL: url, Attempts: maxAttempts, Last: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	data, err := schools.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return data, nil
}

// ReadFile decodes a local JSON file the same way Fetch decodes a response.
func ReadFile(path string) (any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file %s: %w", path, err)
	}

	data, err := schools.DecodeDocument(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return data, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
