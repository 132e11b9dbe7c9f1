package edinet

import (
	"log/slog"
	"time"

	"edinet_fetch/pkg/core/fetch"
	"edinet_fetch/pkg/core/translate"
)

// Options is the caller-facing configuration for a client.
type Options struct {
	// SubscriptionKey authenticates every request.
	SubscriptionKey string
	// RequestTimeout bounds one HTTP attempt. Default 30s.
	RequestTimeout time.Duration
	// RetryPolicy bounds the retry sequence per call. Zero values take
	// the defaults (3 attempts, 45s budget).
	RetryPolicy fetch.RetryPolicy
	// FetchInterval paces consecutive date requests in ranged listing
	// fetches. Default 1s.
	FetchInterval time.Duration
	// Translation enables the Gemini-backed translator. Ignored when
	// Translator is set explicitly.
	Translation bool
	// Translator overrides the translator selected by Translation.
	Translator translate.Translator
	// Logger receives pipeline logs. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// Client is the façade over the two API surfaces. It holds one document
// service and one doclist service; both share the retrying fetcher and
// the translator.
type Client struct {
	Documents *DocumentService
	Lists     *DoclistService
}

// NewClient wires the services from one set of options.
func NewClient(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	translator := opts.Translator
	if translator == nil {
		translator = translate.ForMode(opts.Translation)
	}
	fetcher := fetch.New(opts.RetryPolicy, opts.RequestTimeout, logger)

	return &Client{
		Documents: &DocumentService{
			fetcher:    fetcher,
			translator: translator,
			baseURL:    apiBaseURL,
			key:        opts.SubscriptionKey,
			log:        logger.With(slog.String("component", "edinet.documents")),
		},
		Lists: &DoclistService{
			fetcher:    fetcher,
			translator: translator,
			baseURL:    apiBaseURL,
			key:        opts.SubscriptionKey,
			interval:   opts.FetchInterval,
			log:        logger.With(slog.String("component", "edinet.lists")),
		},
	}
}
