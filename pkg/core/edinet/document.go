package edinet

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"edinet_fetch/pkg/core/archive"
	"edinet_fetch/pkg/core/classify"
	"edinet_fetch/pkg/core/fetch"
	"edinet_fetch/pkg/core/tabular"
	"edinet_fetch/pkg/core/translate"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxDecodeWorkers bounds the per-document decode/parse pool so CPU-bound
// work does not starve concurrent network calls.
const maxDecodeWorkers = 4

// DocumentService fetches one document's archive and runs the extraction
// pipeline over it. Safe for concurrent use; calls share no mutable state.
type DocumentService struct {
	fetcher    *fetch.Fetcher
	translator translate.Translator
	baseURL    string
	key        string
	log        *slog.Logger
}

// FetchDocumentOptions tune a single document fetch.
type FetchDocumentOptions struct {
	// Fields restricts generic records to these element IDs. Nil keeps
	// every record; an empty non-nil slice keeps none.
	Fields []string
	// BypassTranslation disables translation for this call only.
	BypassTranslation bool
	// RaiseOnError returns fetch/extraction failures as errors instead
	// of a failed result.
	RaiseOnError bool
	// MetadataPolicy decides duplicate metadata tags across files.
	// Default LastFileWins.
	MetadataPolicy classify.MetadataPolicy
}

// Fetch downloads document docID and classifies its contents. Ordinary
// failures (auth, rate limit, not found, malformed archive) come back as
// a result with ExtractStatus fail; an error return happens only with
// RaiseOnError or on context cancellation.
func (s *DocumentService) Fetch(ctx context.Context, docID string, opts FetchDocumentOptions) (*ExtractionResult, error) {
	result := &ExtractionResult{
		RequestID:     uuid.NewString(),
		ProcessDate:   time.Now().UTC(),
		DocID:         docID,
		ExtractStatus: StatusFail,
		Results:       []classify.Record{},
	}

	params := url.Values{}
	params.Set("type", docFetchType)
	params.Set("Subscription-Key", s.key)

	payload, err := s.fetcher.GetBinary(ctx, s.baseURL+docEndpoint+docID, params)
	if err != nil {
		s.log.Error("error fetching document", "doc_id", docID, "error", err)
		if opts.RaiseOnError {
			return nil, err
		}
		result.ExtractMessage = err.Error()
		return result, nil
	}
	s.log.Info("document fetched", "doc_id", docID, "bytes", len(payload))

	ws, err := archive.Extract(payload, s.log)
	if err != nil {
		s.log.Warn("error extracting document archive", "doc_id", docID, "error", err)
		if opts.RaiseOnError {
			return nil, err
		}
		result.ExtractMessage = err.Error()
		return result, nil
	}
	defer ws.Close()

	files := ws.DataFiles()
	if len(files) == 0 {
		result.ExtractMessage = fmt.Sprintf("no CSV files found in archive for document %s", docID)
		s.log.Warn(result.ExtractMessage)
		return result, nil
	}

	fileRows, err := s.readAll(ctx, files)
	if err != nil {
		if opts.RaiseOnError {
			return nil, err
		}
		result.ExtractMessage = err.Error()
		return result, nil
	}

	translator := s.translator
	if opts.BypassTranslation {
		translator = translate.Bypass{}
	}
	classifier := classify.New(opts.Fields, opts.MetadataPolicy, translator, s.log)
	records, meta, err := classifier.Classify(ctx, fileRows)
	if err != nil {
		if opts.RaiseOnError {
			return nil, err
		}
		result.ExtractMessage = err.Error()
		return result, nil
	}

	result.ExtractStatus = StatusSuccess
	result.TotalFiles = len(fileRows)
	result.Metadata = meta
	result.Results = records
	s.log.Info("document processed", "doc_id", docID, "files", len(fileRows), "records", len(records))
	return result, nil
}

// readAll decodes and parses the data files on a bounded worker pool.
// Per-file failures are soft: the file is logged and skipped, never
// failing the document. The returned slices keep the workspace's sorted
// file order so classification is deterministic.
func (s *DocumentService) readAll(ctx context.Context, files []archive.CandidateFile) ([]classify.FileRows, error) {
	parsed := make([][]tabular.Row, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDecodeWorkers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			encodings := tabular.CandidateEncodings(file.Path, s.log)
			rows, err := tabular.ReadFile(file.Path, encodings, s.log)
			if err != nil {
				s.log.Warn("skipping unreadable file", "file", file.Name, "error", err)
				return nil
			}
			parsed[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]classify.FileRows, 0, len(files))
	for i, rows := range parsed {
		if rows == nil {
			continue
		}
		out = append(out, classify.FileRows{Filename: files[i].Name, Rows: rows})
	}
	return out, nil
}
