package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts:      attempts,
		Budget:        5 * time.Second,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func newTestFetcher(attempts int) *Fetcher {
	return New(fastPolicy(attempts), 5*time.Second, nil)
}

func TestGetJSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("date"); got != "2024-04-01" {
			t.Errorf("date param = %q, want 2024-04-01", got)
		}
		w.Write([]byte(`{"metadata":{"status":"200"},"results":[]}`))
	}))
	defer server.Close()

	params := url.Values{}
	params.Set("date", "2024-04-01")
	body, err := newTestFetcher(3).GetJSON(context.Background(), server.URL, params)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected non-empty body")
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantKind   Kind
		wantCalls  int32 // 1 for terminal kinds, all attempts for retryable
		attempts   int
	}{
		{"auth", 401, KindAuth, 1, 3},
		{"bad request", 400, KindClient, 1, 3},
		{"not found", 404, KindClient, 1, 3},
		{"rate limit", 429, KindRateLimit, 3, 3},
		{"server error", 500, KindServer, 3, 3},
		{"bad gateway", 502, KindServer, 3, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := newTestFetcher(tc.attempts).GetJSON(context.Background(), server.URL, url.Values{})
			var fetchErr *Error
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if fetchErr.Kind != tc.wantKind {
				t.Errorf("kind = %s, want %s", fetchErr.Kind, tc.wantKind)
			}
			if fetchErr.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", fetchErr.StatusCode, tc.status)
			}
			if calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tc.wantCalls)
			}
		})
	}
}

func TestRetryRecoversAfterRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	body, err := newTestFetcher(3).GetJSON(context.Background(), server.URL, url.Values{})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q", body)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryBudgetStopsEarly(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	policy := RetryPolicy{
		Attempts:      10,
		Budget:        5 * time.Millisecond,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
	_, err := New(policy, time.Second, nil).GetJSON(context.Background(), server.URL, url.Values{})
	if err == nil {
		t.Fatal("expected error")
	}
	// The first backoff delay already exceeds the budget, so only the
	// initial attempt runs.
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := newTestFetcher(2).GetJSON(context.Background(), server.URL, url.Values{})
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if fetchErr.Kind != KindNetwork {
		t.Errorf("kind = %s, want network", fetchErr.Kind)
	}
	if !fetchErr.Retryable() {
		t.Error("network errors must be retryable")
	}
}

func TestGetBinaryRejectsJSONErrorBody(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"metadata":{"status":"404","message":"not found"}}`))
	}))
	defer server.Close()

	_, err := newTestFetcher(3).GetBinary(context.Background(), server.URL, url.Values{})
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if fetchErr.Kind != KindParse {
		t.Errorf("kind = %s, want parse", fetchErr.Kind)
	}
	if calls != 1 {
		t.Errorf("parse failures must not be retried, calls = %d", calls)
	}
}

func TestGetBinaryAcceptsZipPayload(t *testing.T) {
	// A ZIP local header: never mistakable for JSON.
	payload := []byte("PK\x03\x04somebytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	body, err := newTestFetcher(1).GetBinary(context.Background(), server.URL, url.Values{})
	if err != nil {
		t.Fatalf("GetBinary failed: %v", err)
	}
	if string(body) != string(payload) {
		t.Error("payload altered in transit")
	}
}

func TestGetJSONAllowsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	if _, err := newTestFetcher(1).GetJSON(context.Background(), server.URL, url.Values{}); err != nil {
		t.Fatalf("JSON body must be a success for GetJSON: %v", err)
	}
}
