package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	textencoding "golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrUnreadable marks a file that could not be read with any candidate
// encoding. It is a per-file soft failure: callers log and skip the file,
// the document-level result is unaffected.
var ErrUnreadable = errors.New("file unreadable with all candidate encodings")

// notAValue is the placeholder EDINET emits for absent figures.
const notAValue = "－" // full-width minus

// Row is one parsed line keyed by header name. Absent values (empty
// string or the not-a-value placeholder) are omitted from the map, so a
// comma-ok lookup doubles as the presence check.
type Row map[string]string

// ReadFile parses a tab-separated file, trying each candidate encoding in
// order. The first candidate that decodes without loss and parses without
// structural errors wins; the rest are not tried. Returns ErrUnreadable
// if every candidate fails.
func ReadFile(path string, candidates []string, logger *slog.Logger) ([]Row, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tried := make([]string, 0, len(candidates))
	for _, name := range candidates {
		enc, ok := decoderFor(name)
		if !ok {
			logger.Debug("no decoder for detected encoding", "encoding", name)
			continue
		}
		tried = append(tried, name)
		rows, err := parseWith(raw, enc)
		if err != nil {
			logger.Debug("candidate encoding failed", "file", path, "encoding", name, "error", err)
			continue
		}
		logger.Debug("read file", "file", path, "encoding", name, "rows", len(rows))
		return rows, nil
	}

	logger.Error("unable to determine encoding or format",
		"file", path, "tried", strings.Join(tried, ", "))
	return nil, ErrUnreadable
}

// parseWith decodes the payload with one encoding and parses it as TSV.
// The x/text decoders substitute U+FFFD for invalid input instead of
// failing, so lossy decoding is detected by inspecting the output.
func parseWith(raw []byte, enc textencoding.Encoding) ([]Row, error) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	// A BOM can survive decoding when the detector names the endianness
	// explicitly (e.g. "UTF-16LE" for BOM-prefixed content).
	text := strings.TrimPrefix(string(decoded), "\ufeff")
	if strings.ContainsRune(text, '�') {
		return nil, errors.New("decode error: replacement characters in output")
	}
	if strings.ContainsRune(text, '\x00') {
		return nil, errors.New("decode error: NUL bytes in output")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty content")
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = '\t'
	reader.LazyQuotes = true

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if len(lines) == 0 {
		return nil, errors.New("empty content")
	}
	header := lines[0]
	if len(header) < 2 {
		return nil, errors.New("parse error: no tab-delimited columns")
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(line) {
				break
			}
			value := line[i]
			if value == "" || value == notAValue {
				continue
			}
			row[col] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}
