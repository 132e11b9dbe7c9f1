package fetch

import "fmt"

// Kind classifies a fetch failure. Every HTTP status and transport error
// maps to exactly one kind; retry decisions are derived from the kind, not
// from the raw status.
type Kind int

const (
	// KindNetwork covers transport-level failures: connection refused,
	// DNS errors, timeouts. Retryable.
	KindNetwork Kind = iota
	// KindAuth is a 401: bad or missing subscription key. Terminal.
	KindAuth
	// KindRateLimit is a 429. Retryable.
	KindRateLimit
	// KindClient covers 400 and 404 (invalid document ID, no CSV data for
	// the document, etc.). Terminal.
	KindClient
	// KindServer covers 500-599. Retryable.
	KindServer
	// KindParse means the service answered 200 but the body was a JSON
	// error object where binary content was expected. Terminal.
	KindParse
)

// String returns a short label for logging.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt can succeed.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindRateLimit || k == KindServer
}

// Error is the single error type produced by the fetcher. StatusCode is
// zero for transport-level failures.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the error's kind allows another attempt.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

func classifyStatus(status int) (Kind, string) {
	switch {
	case status == 401:
		return KindAuth, "authentication failed - check subscription key"
	case status == 429:
		return KindRateLimit, "API rate limit exceeded"
	case status == 400 || status == 404:
		return KindClient, "client error"
	case status >= 500:
		return KindServer, "server error"
	default:
		return KindClient, "unexpected status"
	}
}
