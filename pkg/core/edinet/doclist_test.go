package edinet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// mockTranslator is a func-field mock of the translation port.
type mockTranslator struct {
	mu    sync.Mutex
	calls []string
	fn    func(string) string
}

func (m *mockTranslator) Translate(_ context.Context, text string) string {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(text)
	}
	return "EN:" + text
}

func newTestClient(t *testing.T, serverURL string) (*Client, *mockTranslator) {
	t.Helper()
	tr := &mockTranslator{}
	client := NewClient(Options{
		SubscriptionKey: "test-key",
		RequestTimeout:  5 * time.Second,
		FetchInterval:   time.Millisecond,
		Translator:      tr,
	})
	client.Documents.baseURL = serverURL + "/"
	client.Lists.baseURL = serverURL + "/"
	return client, tr
}

func listingBody(entries ...map[string]any) []byte {
	body := map[string]any{
		"metadata": map[string]any{"status": "200", "message": "OK"},
		"results":  entries,
	}
	raw, _ := json.Marshal(body)
	return raw
}

func TestFetchDateFiltersAndTranslates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("date") != "2024-04-01" || q.Get("type") != "2" || q.Get("Subscription-Key") != "test-key" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Write(listingBody(
			map[string]any{"docID": "S100AAAA", "docTypeCode": "120", "filerName": "株式会社テスト", "edinetCode": "E11111"},
			map[string]any{"docID": "S100BBBB", "docTypeCode": "030", "filerName": "対象外株式会社", "edinetCode": "E22222"},
			map[string]any{"docID": "S100CCCC", "docTypeCode": "140", "edinetCode": "E33333"}, // no filer name
		))
	}))
	defer server.Close()

	client, tr := newTestClient(t, server.URL)
	result, err := client.Lists.FetchDate(context.Background(), "2024-04-01", ListFull)
	if err != nil {
		t.Fatalf("FetchDate failed: %v", err)
	}

	if result.FetchStatus != StatusSuccess {
		t.Fatalf("status = %s: %s", result.FetchStatus, result.Message)
	}
	if result.Count != 1 || len(result.Results) != 1 {
		t.Fatalf("count = %d, want 1 (unsupported type and missing filer name excluded)", result.Count)
	}
	entry := result.Results[0]
	if entry.DocID != "S100AAAA" {
		t.Errorf("kept entry = %s", entry.DocID)
	}
	if entry.FilerNameEng != "EN:株式会社テスト" {
		t.Errorf("FilerNameEng = %q", entry.FilerNameEng)
	}
	if entry.ReportTypeName() != "Securities Report" {
		t.Errorf("report type = %q", entry.ReportTypeName())
	}
	if len(tr.calls) != 1 {
		t.Errorf("translator calls = %d, want 1", len(tr.calls))
	}
	if result.ListStatus != 200 {
		t.Errorf("ListStatus = %d", result.ListStatus)
	}
}

func TestFetchDateFailureBecomesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	result, err := client.Lists.FetchDate(context.Background(), "2024-04-01", ListFull)
	if err != nil {
		t.Fatalf("ordinary failures must not surface as errors: %v", err)
	}
	if result.FetchStatus != StatusFail {
		t.Errorf("status = %s, want fail", result.FetchStatus)
	}
	if result.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", result.StatusCode)
	}
	if result.Message == "" {
		t.Error("failure message missing")
	}
}

func TestFetchDateRejectsMalformedDate(t *testing.T) {
	client, _ := newTestClient(t, "http://unused")
	_, err := client.Lists.FetchDate(context.Background(), "01-04-2024", ListFull)
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func TestFetchRangeContinuesPastFailedDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "2024-04-02" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(listingBody(map[string]any{
			"docID": "DOC-" + date, "docTypeCode": "120", "filerName": "会社" + date, "edinetCode": "E1",
		}))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	result, err := client.Lists.FetchRange(context.Background(), "2024-04-01", "2024-04-03", ListFull)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}

	if len(result.Dates) != 3 {
		t.Fatalf("dates = %d, want 3", len(result.Dates))
	}
	wantDates := []string{"2024-04-01", "2024-04-02", "2024-04-03"}
	for i, ds := range result.Dates {
		if ds.Date != wantDates[i] {
			t.Errorf("dates[%d] = %s, want %s (chronological order)", i, ds.Date, wantDates[i])
		}
	}
	if result.Dates[1].Status != StatusFail {
		t.Error("middle date must be recorded as failed")
	}
	if result.Dates[0].Status != StatusSuccess || result.Dates[2].Status != StatusSuccess {
		t.Error("surrounding dates must succeed")
	}
	if len(result.Results) != 2 {
		t.Fatalf("results = %d, want 2 (failed date contributes none)", len(result.Results))
	}
	if result.Results[0].DocID != "DOC-2024-04-01" || result.Results[1].DocID != "DOC-2024-04-03" {
		t.Errorf("results out of order: %v", result.Results)
	}
}

func TestFetchRangeRejectsInvertedRange(t *testing.T) {
	client, _ := newTestClient(t, "http://unused")
	_, err := client.Lists.FetchRange(context.Background(), "2024-04-03", "2024-04-01", ListFull)
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func TestNormalizeListType(t *testing.T) {
	if got, err := normalizeListType(0); err != nil || got != ListFull {
		t.Errorf("default list type = %v, %v", got, err)
	}
	if _, err := normalizeListType(7); err == nil {
		t.Error("list type 7 must be rejected")
	}
}
