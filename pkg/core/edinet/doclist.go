package edinet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"edinet_fetch/pkg/core/fetch"
	"edinet_fetch/pkg/core/translate"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidDate marks a malformed caller-supplied date. Dates must be
// YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date format, expected YYYY-MM-DD")

const dateLayout = "2006-01-02"

// maxConcurrentNameTranslations bounds the filer-name translation fan-out
// per listing batch.
const maxConcurrentNameTranslations = 4

// ListType selects how much the listing endpoint returns.
type ListType int

const (
	// ListMetadataOnly returns only the listing metadata block.
	ListMetadataOnly ListType = 1
	// ListFull returns metadata plus the filing entries. Default.
	ListFull ListType = 2
)

// DoclistService fetches filing-list metadata, one date at a time.
type DoclistService struct {
	fetcher    *fetch.Fetcher
	translator translate.Translator
	baseURL    string
	key        string
	interval   time.Duration
	log        *slog.Logger
}

// FetchDate fetches the filing list for a single date, keeping only
// entries with a recognized filing-type code and a present filer name,
// then translating each kept entry's filer name. Fetch failures come back
// as a result with FetchStatus fail, not as an error.
func (s *DoclistService) FetchDate(ctx context.Context, date string, listType ListType) (*ListResult, error) {
	dateStr, err := validateDate(date)
	if err != nil {
		return nil, err
	}
	listType, err = normalizeListType(listType)
	if err != nil {
		return nil, err
	}
	s.log.Info("fetching document list", "date", dateStr)

	result := &ListResult{
		RequestID:   uuid.NewString(),
		ProcessDate: time.Now().UTC(),
		RequestType: "daily",
		Date:        dateStr,
		FetchStatus: StatusFail,
		Results:     []ListEntry{},
	}

	entries, outcome := s.fetchOne(ctx, dateStr, listType)
	result.StatusCode = outcome.statusCode
	result.ListStatus = outcome.listStatus
	result.Message = outcome.message
	if outcome.err != nil {
		s.log.Error("failed to fetch document list", "date", dateStr, "error", outcome.err)
		return result, nil
	}

	result.FetchStatus = StatusSuccess
	result.Results = entries
	result.Count = len(entries)
	s.log.Info("fetched document list", "date", dateStr, "count", len(entries))
	return result, nil
}

// FetchRange fetches the filing lists for every date in [from, to] in
// chronological order, pacing requests with the configured interval. A
// failed date is recorded and the range continues; partial results are
// always returned.
func (s *DoclistService) FetchRange(ctx context.Context, from, to string, listType ListType) (*RangeResult, error) {
	fromStr, err := validateDate(from)
	if err != nil {
		return nil, err
	}
	toStr, err := validateDate(to)
	if err != nil {
		return nil, err
	}
	listType, err = normalizeListType(listType)
	if err != nil {
		return nil, err
	}
	start, _ := time.Parse(dateLayout, fromStr)
	end, _ := time.Parse(dateLayout, toStr)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end %s precedes start %s", ErrInvalidDate, toStr, fromStr)
	}
	s.log.Info("fetching document lists", "from", fromStr, "to", toStr)

	result := &RangeResult{
		RequestID:   uuid.NewString(),
		ProcessDate: time.Now().UTC(),
		RequestType: "interval",
		DateFrom:    fromStr,
		DateTo:      toStr,
		Results:     []ListEntry{},
	}

	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 1) {
		dateStr := cursor.Format(dateLayout)
		entries, outcome := s.fetchOne(ctx, dateStr, listType)
		status := DateStatus{
			Date:       dateStr,
			Status:     StatusSuccess,
			StatusCode: outcome.statusCode,
			ListStatus: outcome.listStatus,
			Message:    outcome.message,
		}
		if outcome.err != nil {
			status.Status = StatusFail
			s.log.Warn("skipping date due to error", "date", dateStr, "error", outcome.err)
		} else {
			result.Results = append(result.Results, entries...)
		}
		result.Dates = append(result.Dates, status)

		if cursor.Equal(end) {
			break
		}
		select {
		case <-ctx.Done():
			result.Count = len(result.Results)
			return result, ctx.Err()
		case <-time.After(s.interval):
		}
	}

	result.Count = len(result.Results)
	s.log.Info("fetched document lists", "from", fromStr, "to", toStr, "count", result.Count)
	return result, nil
}

// listOutcome carries the per-attempt bookkeeping shared by the single
// and ranged flows.
type listOutcome struct {
	statusCode int
	listStatus int
	message    string
	err        error
}

func (s *DoclistService) fetchOne(ctx context.Context, date string, listType ListType) ([]ListEntry, listOutcome) {
	params := url.Values{}
	params.Set("date", date)
	params.Set("type", strconv.Itoa(int(listType)))
	params.Set("Subscription-Key", s.key)

	body, err := s.fetcher.GetJSON(ctx, s.baseURL+docListEndpoint, params)
	if err != nil {
		outcome := listOutcome{err: err, message: err.Error()}
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			outcome.statusCode = fetchErr.StatusCode
		}
		return nil, outcome
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, listOutcome{
			statusCode: 200,
			message:    fmt.Sprintf("malformed listing response: %v", err),
			err:        err,
		}
	}
	listStatus, _ := strconv.Atoi(resp.Metadata.Status)

	entries := s.filterEntries(resp.Results)
	if err := s.translateNames(ctx, entries); err != nil {
		return nil, listOutcome{statusCode: 200, listStatus: listStatus, message: err.Error(), err: err}
	}
	return entries, listOutcome{
		statusCode: 200,
		listStatus: listStatus,
		message:    resp.Metadata.Message,
	}
}

// filterEntries keeps entries whose filing-type code is supported and
// whose filer name is present.
func (s *DoclistService) filterEntries(raw []ListEntry) []ListEntry {
	entries := make([]ListEntry, 0, len(raw))
	for _, entry := range raw {
		if entry.FilerName == "" {
			continue
		}
		if _, ok := SupportedDocTypes[entry.DocTypeCode]; !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// translateNames fills FilerNameEng concurrently across the batch.
func (s *DoclistService) translateNames(ctx context.Context, entries []ListEntry) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentNameTranslations)
	for i := range entries {
		g.Go(func() error {
			entries[i].FilerNameEng = s.translator.Translate(ctx, entries[i].FilerName)
			return ctx.Err()
		})
	}
	return g.Wait()
}

func validateDate(date string) (string, error) {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return parsed.Format(dateLayout), nil
}

func normalizeListType(t ListType) (ListType, error) {
	switch t {
	case 0:
		return ListFull, nil
	case ListMetadataOnly, ListFull:
		return t, nil
	default:
		return 0, fmt.Errorf("unsupported list type %d", t)
	}
}
