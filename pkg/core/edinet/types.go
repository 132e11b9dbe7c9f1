// Package edinet exposes the EDINET disclosure API through a single
// client façade: a document service (archive extraction pipeline) and a
// doclist service (filing-list metadata).
package edinet

import (
	"encoding/json"
	"time"

	"edinet_fetch/pkg/core/classify"
)

const (
	apiBaseURL      = "https://api.edinet-fsa.go.jp/api/v2/"
	docListEndpoint = "documents.json"
	docEndpoint     = "documents/"

	// The CSV flattening of a filing is selector type 5 on the document
	// endpoint.
	docFetchType = "5"
)

// SupportedDocTypes maps the recognized filing-type codes to report
// names. Listing entries with other codes are excluded.
var SupportedDocTypes = map[string]string{
	"120": "Securities Report",
	"140": "Quarterly Report",
	"160": "Semi-Annual Report",
}

// Status is the per-call outcome carried on every result message.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// ExtractionResult is the aggregate returned by a document fetch. The
// recognized metadata fields are embedded at the top level, matching the
// flat JSON shape consumers expect.
type ExtractionResult struct {
	RequestID      string    `json:"requestId"`
	ProcessDate    time.Time `json:"processDate"`
	DocID          string    `json:"docId"`
	ExtractStatus  Status    `json:"extractStatus"`
	ExtractMessage string    `json:"extractMessage,omitempty"`
	TotalFiles     int       `json:"totalCsvFiles"`
	classify.Metadata
	Results []classify.Record `json:"results"`
}

// Flatten merges the message-level fields into each record, producing one
// map per record. A result without records yields a single metadata map.
func (r *ExtractionResult) Flatten() []map[string]any {
	meta := toMap(r)
	delete(meta, "results")
	if len(r.Results) == 0 {
		return []map[string]any{meta}
	}
	out := make([]map[string]any, 0, len(r.Results))
	for i := range r.Results {
		row := make(map[string]any, len(meta)+8)
		for k, v := range meta {
			row[k] = v
		}
		for k, v := range toMap(&r.Results[i]) {
			row[k] = v
		}
		out = append(out, row)
	}
	return out
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// ListEntry is one filing-list entry, field names matching the EDINET
// listing JSON.
type ListEntry struct {
	DocID          string `json:"docID"`
	DocTypeCode    string `json:"docTypeCode"`
	FilerName      string `json:"filerName"`
	FilerNameEng   string `json:"filerNameInEnglish,omitempty"`
	EdinetCode     string `json:"edinetCode"`
	SecCode        string `json:"secCode,omitempty"`
	JCN            string `json:"JCN,omitempty"`
	FormCode       string `json:"formCode,omitempty"`
	FundCode       string `json:"fundCode,omitempty"`
	SeqNumber      int    `json:"seqNumber,omitempty"`
	PeriodStart    string `json:"periodStart,omitempty"`
	PeriodEnd      string `json:"periodEnd,omitempty"`
	SubmitDateTime string `json:"submitDateTime,omitempty"`
	DocDescription string `json:"docDescription,omitempty"`
	XbrlFlag       string `json:"xbrlFlag,omitempty"`
	PdfFlag        string `json:"pdfFlag,omitempty"`
	CsvFlag        string `json:"csvFlag,omitempty"`
}

// ReportTypeName returns the human-readable name of the entry's filing
// type, or the empty string for unrecognized codes.
func (e ListEntry) ReportTypeName() string {
	return SupportedDocTypes[e.DocTypeCode]
}

// listResponse is the wire shape of the listing endpoint. The metadata
// status arrives as a string ("200"), not a number.
type listResponse struct {
	Metadata struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"metadata"`
	Results []ListEntry `json:"results"`
}

// ListResult is the outcome of a single-date listing fetch.
type ListResult struct {
	RequestID   string      `json:"requestId"`
	ProcessDate time.Time   `json:"processDate"`
	RequestType string      `json:"requestType"` // always "daily"
	Date        string      `json:"date"`
	FetchStatus Status      `json:"fetchStatus"`
	StatusCode  int         `json:"statusCode,omitempty"`  // HTTP status of the attempt
	ListStatus  int         `json:"listStatus,omitempty"`  // metadata.status from the service
	Message     string      `json:"message,omitempty"`
	Count       int         `json:"count"`
	Results     []ListEntry `json:"results"`
}

// DateStatus records the per-date outcome within a ranged fetch.
type DateStatus struct {
	Date       string `json:"date"`
	Status     Status `json:"status"`
	StatusCode int    `json:"statusCode,omitempty"`
	ListStatus int    `json:"listStatus,omitempty"`
	Message    string `json:"message,omitempty"`
}

// RangeResult accumulates a chronological ranged listing fetch. A failed
// date is recorded in Dates and the range continues; Results always holds
// the entries of every successful date in order.
type RangeResult struct {
	RequestID   string       `json:"requestId"`
	ProcessDate time.Time    `json:"processDate"`
	RequestType string       `json:"requestType"` // always "interval"
	DateFrom    string       `json:"dateFrom"`
	DateTo      string       `json:"dateTo"`
	Dates       []DateStatus `json:"dates"`
	Count       int          `json:"count"`
	Results     []ListEntry  `json:"results"`
}
