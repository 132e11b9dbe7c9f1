// Package fetch implements the resilient HTTP layer for the EDINET API:
// status classification into typed error kinds and bounded retry with
// increasing backoff.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Connection pool bounds shared by every fetcher in the process.
const (
	maxConnections       = 15
	maxIdleConnections   = 7
	defaultAttempts      = 3
	defaultRetryBudget   = 45 * time.Second
	defaultInitialDelay  = 500 * time.Millisecond
	defaultMaxDelay      = 10 * time.Second
	defaultBackoffFactor = 2.0
)

// RetryPolicy bounds the retry sequence for one call. A call stops when
// either Attempts or Budget is exhausted, whichever comes first.
type RetryPolicy struct {
	Attempts      int
	Budget        time.Duration
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy mirrors the EDINET API guidance: three attempts
// within a 45 second window.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:      defaultAttempts,
		Budget:        defaultRetryBudget,
		InitialDelay:  defaultInitialDelay,
		MaxDelay:      defaultMaxDelay,
		BackoffFactor: defaultBackoffFactor,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Budget <= 0 {
		p.Budget = d.Budget
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.BackoffFactor < 1.0 {
		p.BackoffFactor = d.BackoffFactor
	}
	return p
}

// Fetcher issues authenticated GET requests with bounded retry. It is
// stateless across calls and safe for concurrent use.
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *slog.Logger
}

// New creates a fetcher with the given retry policy and per-request
// timeout. A nil logger falls back to slog.Default().
func New(policy RetryPolicy, requestTimeout time.Duration, logger *slog.Logger) *Fetcher {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     maxConnections,
				MaxIdleConnsPerHost: maxIdleConnections,
			},
		},
		policy: policy.normalized(),
		log:    logger.With(slog.String("component", "fetch")),
	}
}

// GetJSON fetches a resource whose success payload is JSON (the listing
// endpoint). Returns the raw body on 200.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	return f.get(ctx, rawURL, params, false)
}

// GetBinary fetches a resource whose success payload is binary content
// (the document endpoint). A 200 response whose body is a JSON object is
// the service reporting an in-band error and yields a KindParse failure.
func (f *Fetcher) GetBinary(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	return f.get(ctx, rawURL, params, true)
}

func (f *Fetcher) get(ctx context.Context, rawURL string, params url.Values, wantBinary bool) ([]byte, error) {
	deadline := time.Now().Add(f.policy.Budget)
	delay := f.policy.InitialDelay

	var lastErr *Error
	for attempt := 1; attempt <= f.policy.Attempts; attempt++ {
		payload, err := f.attempt(ctx, rawURL, params, wantBinary)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if !err.Retryable() {
			f.log.Debug("terminal fetch error", "kind", err.Kind.String(), "status", err.StatusCode)
			return nil, err
		}
		if attempt == f.policy.Attempts {
			break
		}
		if time.Now().Add(delay).After(deadline) {
			f.log.Warn("retry budget exhausted", "attempt", attempt, "kind", err.Kind.String())
			break
		}

		f.log.Warn("retrying request", "attempt", attempt, "kind", err.Kind.String(), "delay", delay)
		select {
		case <-ctx.Done():
			return nil, &Error{Kind: KindNetwork, Message: "request cancelled", Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * f.policy.BackoffFactor)
		if delay > f.policy.MaxDelay {
			delay = f.policy.MaxDelay
		}
	}
	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string, params url.Values, wantBinary bool) ([]byte, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.URL.RawQuery = params.Encode()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to read response: %v", err), Err: err}
	}

	if resp.StatusCode == http.StatusOK {
		if wantBinary && looksLikeJSONObject(body) {
			return nil, &Error{
				Kind:       KindParse,
				StatusCode: resp.StatusCode,
				Message:    "service returned a JSON error body where binary content was expected",
			}
		}
		return body, nil
	}

	kind, msg := classifyStatus(resp.StatusCode)
	return nil, &Error{Kind: kind, StatusCode: resp.StatusCode, Message: msg}
}

// looksLikeJSONObject sniffs whether a payload is a JSON object. ZIP
// archives start with "PK", so a leading '{' plus valid JSON is decisive.
func looksLikeJSONObject(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
