// Package classify filters tagged financial-statement rows and splits
// them into document metadata, translated narrative text, and generic
// records.
package classify

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"edinet_fetch/pkg/core/tabular"
	"edinet_fetch/pkg/core/translate"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// Column headers of the EDINET CSV export.
const (
	colElementID      = "要素ID"
	colItemName       = "項目名"
	colContextID      = "コンテキストID"
	colRelativePeriod = "相対年度"
	colConsolidated   = "連結・個別"
	colPeriodOrPoint  = "期間・時点"
	colUnitID         = "ユニットID"
	colUnit           = "単位"
	colValue          = "値"
)

// contextPrefixes are the only reporting contexts in scope: filing date,
// current period, prior period 1.
var contextPrefixes = []string{"FilingDate", "Current", "Prior1"}

// MetaTags is the fixed set of element IDs treated as document-level
// metadata rather than line-item data.
var MetaTags = []string{
	"jpdei_cor:FilerNameInEnglishDEI",
	"jpdei_cor:SecurityCodeDEI",
	"jpdei_cor:AccountingStandardsDEI",
	"jpdei_cor:EDINETCodeDEI",
	"jpcrp_cor:CompanyNameInEnglishCoverPage",
	"jpdei_cor:WhetherConsolidatedFinancialStatementsArePreparedDEI",
	"jpdei_cor:TypeOfCurrentPeriodDEI",
	"jpdei_cor:CurrentFiscalYearStartDateDEI",
	"jpdei_cor:CurrentPeriodEndDateDEI",
	"jpdei_cor:CurrentFiscalYearEndDateDEI",
	"jpdei_cor:PreviousFiscalYearStartDateDEI",
	"jpdei_cor:ComparativePeriodEndDateDEI",
	"jpdei_cor:PreviousFiscalYearEndDateDEI",
	"jpdei_cor:AmendmentFlagDEI",
}

var narrativePattern = regexp.MustCompile(`DescriptionOfBusiness`)

// maxConcurrentTranslations bounds the translation fan-out per document.
const maxConcurrentTranslations = 4

// Record is one row that passed context and allow-list filtering, with
// its value normalized to int64, float64 or string.
type Record struct {
	ElementID      string `json:"elementId"`
	ItemName       string `json:"itemName,omitempty"`
	ContextID      string `json:"contextId"`
	RelativePeriod string `json:"relativePeriod,omitempty"`
	Consolidated   string `json:"consolidatedIndividual,omitempty"`
	PeriodOrPoint  string `json:"periodOrTime,omitempty"`
	UnitID         string `json:"currencyId,omitempty"`
	ReportedUnit   string `json:"reportedUnit,omitempty"`
	Value          any    `json:"value"`
	SourceFile     string `json:"sourceFile"`
}

// Metadata aggregates the recognized document-level tags plus the
// accumulated business description. BusinessDescription grows by
// concatenation across files and is never overwritten.
type Metadata struct {
	FilerNameEng         string `json:"filerNameEng,omitempty"`
	SecurityCode         any    `json:"securityCode,omitempty"`
	AccountingStandard   string `json:"accountingStandard,omitempty"`
	EdinetCode           string `json:"edinetCode,omitempty"`
	CompanyNameCoverEng  string `json:"companyNameCoverEng,omitempty"`
	Consolidated         any    `json:"consolidated,omitempty"`
	TypeOfCurrentPeriod  string `json:"typeOfCurrentPeriod,omitempty"`
	CurrentYearStartDate string `json:"currentYearStartDate,omitempty"`
	CurrentPeriodEndDate string `json:"currentPeriodEndDate,omitempty"`
	CurrentYearEndDate   string `json:"currentFiscalYearEndDate,omitempty"`
	PreviousYearStart    string `json:"previousFiscalYearStartDate,omitempty"`
	ComparativePeriodEnd string `json:"comparativePeriodEndDate,omitempty"`
	PreviousYearEndDate  string `json:"previousFiscalYearEndDate,omitempty"`
	IsAmendment          any    `json:"isAmendment,omitempty"`
	BusinessDescription  string `json:"businessDescription"`
}

// MetadataPolicy decides which value wins when the same metadata tag
// appears in more than one file of a document.
type MetadataPolicy int

const (
	// LastFileWins keeps the value from the last file processed. Files
	// are processed in sorted-name order, so this is deterministic.
	LastFileWins MetadataPolicy = iota
	// FirstFileWins keeps the first value seen and ignores later ones.
	FirstFileWins
)

// FileRows couples a source filename with its parsed rows.
type FileRows struct {
	Filename string
	Rows     []tabular.Row
}

// Classifier implements the per-row classification algorithm for one
// document. It holds no cross-document state.
type Classifier struct {
	allowList  map[string]bool // nil means keep every generic row
	policy     MetadataPolicy
	translator translate.Translator
	log        *slog.Logger
}

// New creates a classifier. allowList nil disables allow-list filtering;
// an empty non-nil list drops every generic row.
func New(allowList []string, policy MetadataPolicy, translator translate.Translator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if translator == nil {
		translator = translate.Bypass{}
	}
	var allowed map[string]bool
	if allowList != nil {
		allowed = make(map[string]bool, len(allowList))
		for _, id := range allowList {
			allowed[id] = true
		}
	}
	return &Classifier{
		allowList:  allowed,
		policy:     policy,
		translator: translator,
		log:        logger.With(slog.String("component", "classify")),
	}
}

// Classify processes all rows of a document, file by file. Narrative
// values are translated concurrently but concatenated in file order.
func (c *Classifier) Classify(ctx context.Context, files []FileRows) ([]Record, Metadata, error) {
	var (
		records   []Record
		meta      Metadata
		seen      = make(map[string]bool, len(MetaTags))
		narrative []string
	)

	for _, file := range files {
		kept := 0
		for _, row := range file.Rows {
			contextID, ok := row[colContextID]
			if !ok {
				continue
			}
			if !hasRecognizedPrefix(contextID) {
				continue
			}
			elementID := row[colElementID]
			if elementID == "" {
				continue
			}

			if isMetaTag(elementID) {
				if c.policy == FirstFileWins && seen[elementID] {
					continue
				}
				meta.set(elementID, normalizeValue(row[colValue]))
				seen[elementID] = true
				continue
			}

			if narrativePattern.MatchString(elementID) {
				narrative = append(narrative, stripMarkup(row[colValue]))
				continue
			}

			if c.allowList != nil && !c.allowList[elementID] {
				continue
			}
			records = append(records, recordFromRow(row, file.Filename))
			kept++
		}
		c.log.Debug("classified file", "file", file.Filename, "kept", kept)
	}

	translated, err := c.translateAll(ctx, narrative)
	if err != nil {
		return nil, meta, err
	}
	meta.BusinessDescription = strings.Join(translated, "")

	c.log.Info("classification complete",
		"files", len(files), "records", len(records), "narrative_parts", len(narrative))
	return records, meta, nil
}

// translateAll fans translation calls out to a bounded pool while
// preserving the original ordering of the narrative parts.
func (c *Classifier) translateAll(ctx context.Context, parts []string) ([]string, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]string, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTranslations)
	for i, part := range parts {
		g.Go(func() error {
			out[i] = c.translator.Translate(ctx, part)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func hasRecognizedPrefix(contextID string) bool {
	for _, prefix := range contextPrefixes {
		if strings.HasPrefix(contextID, prefix) {
			return true
		}
	}
	return false
}

func isMetaTag(elementID string) bool {
	for _, tag := range MetaTags {
		if elementID == tag {
			return true
		}
	}
	return false
}

func recordFromRow(row tabular.Row, filename string) Record {
	rec := Record{
		ElementID:      row[colElementID],
		ItemName:       row[colItemName],
		ContextID:      row[colContextID],
		RelativePeriod: row[colRelativePeriod],
		Consolidated:   row[colConsolidated],
		PeriodOrPoint:  row[colPeriodOrPoint],
		UnitID:         row[colUnitID],
		ReportedUnit:   row[colUnit],
		SourceFile:     filename,
	}
	if raw, ok := row[colValue]; ok {
		rec.Value = normalizeValue(raw)
	}
	return rec
}

// normalizeValue attempts integer then float parsing, keeping the
// original string when both fail. Absent values never reach here.
func normalizeValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// stripMarkup removes embedded HTML from a narrative text block. EDINET
// TextBlock values carry markup that would pollute translation input.
func stripMarkup(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return value
	}
	return text
}

func (m *Metadata) set(tag string, value any) {
	str := func() string {
		if s, ok := value.(string); ok {
			return s
		}
		return ""
	}
	switch tag {
	case "jpdei_cor:FilerNameInEnglishDEI":
		m.FilerNameEng = str()
	case "jpdei_cor:SecurityCodeDEI":
		m.SecurityCode = value
	case "jpdei_cor:AccountingStandardsDEI":
		m.AccountingStandard = str()
	case "jpdei_cor:EDINETCodeDEI":
		m.EdinetCode = str()
	case "jpcrp_cor:CompanyNameInEnglishCoverPage":
		m.CompanyNameCoverEng = str()
	case "jpdei_cor:WhetherConsolidatedFinancialStatementsArePreparedDEI":
		m.Consolidated = parseFlag(value)
	case "jpdei_cor:TypeOfCurrentPeriodDEI":
		m.TypeOfCurrentPeriod = str()
	case "jpdei_cor:CurrentFiscalYearStartDateDEI":
		m.CurrentYearStartDate = str()
	case "jpdei_cor:CurrentPeriodEndDateDEI":
		m.CurrentPeriodEndDate = str()
	case "jpdei_cor:CurrentFiscalYearEndDateDEI":
		m.CurrentYearEndDate = str()
	case "jpdei_cor:PreviousFiscalYearStartDateDEI":
		m.PreviousYearStart = str()
	case "jpdei_cor:ComparativePeriodEndDateDEI":
		m.ComparativePeriodEnd = str()
	case "jpdei_cor:PreviousFiscalYearEndDateDEI":
		m.PreviousYearEndDate = str()
	case "jpdei_cor:AmendmentFlagDEI":
		m.IsAmendment = parseFlag(value)
	}
}

// parseFlag normalizes boolean-ish metadata values ("true"/"false") while
// leaving anything else as-is.
func parseFlag(value any) any {
	if s, ok := value.(string); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return value
}
